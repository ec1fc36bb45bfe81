// Package bootstrap builds the ingestion pipeline's collaborators from an
// AppConfig. The CLI builds once per process and the service once at startup.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"

	"RepoChat/backend/go/internal/config"
	dbkafka "RepoChat/backend/go/internal/database/kafka"
	dbmilvus "RepoChat/backend/go/internal/database/milvus"
	dbminio "RepoChat/backend/go/internal/database/minio"
	"RepoChat/backend/go/internal/embedding"
	"RepoChat/backend/go/internal/ingestion/embeddings"
	"RepoChat/backend/go/internal/ingestion/interfaces"
	"RepoChat/backend/go/internal/ingestion/loaders"
	"RepoChat/backend/go/internal/ingestion/pipeline"
	"RepoChat/backend/go/internal/ingestion/splitters"
	"RepoChat/backend/go/internal/ingestion/storages/docstore"
	"RepoChat/backend/go/internal/ingestion/storages/vectorstore"
	"RepoChat/backend/go/pkg/cache"
	pkghttp "RepoChat/backend/go/pkg/http"
	"RepoChat/backend/go/pkg/logger"
	"RepoChat/backend/go/pkg/ratelimiter"
)

// Components holds the long-lived collaborators shared by every run.
type Components struct {
	Loader   *loaders.GitHubLoader
	Splitter *splitters.CharacterSplitter
	Embedder *embeddings.BatchEmbedder
	Index    interfaces.VectorIndex
	// Archive is nil unless ingestion.archive is set.
	Archive interfaces.DocumentArchive
	// Publisher is nil unless Kafka brokers are configured.
	Publisher *dbkafka.ProgressPublisher

	cfg      *config.AppConfig
	idScheme pipeline.IDScheme
	log      *logger.Logger
	closers  []func() error
}

// Build validates cfg and connects every configured backend. On error the
// connections opened so far are closed.
func Build(ctx context.Context, cfg *config.AppConfig, log *logger.Logger) (c *Components, err error) {
	if log == nil {
		log = logger.Discard()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	idScheme, err := pipeline.ParseIDScheme(cfg.Ingestion.IDScheme)
	if err != nil {
		return nil, err
	}

	c = &Components{cfg: cfg, idScheme: idScheme, log: log}
	defer func() {
		if err != nil {
			_ = c.Close()
			c = nil
		}
	}()

	// 每个远程服务各自一个熔断器，GitHub 故障不会拖垮 embedding 调用
	githubClient, err := pkghttp.NewClient(cfg.CircuitBreaker)
	if err != nil {
		return nil, err
	}
	embeddingClient, err := pkghttp.NewClient(cfg.CircuitBreaker)
	if err != nil {
		return nil, err
	}

	c.Loader = loaders.NewGitHubLoader(githubClient,
		loaders.WithAPIBaseURL(cfg.GitHub.APIBaseURL),
		loaders.WithMaxConcurrency(cfg.GitHub.MaxConcurrency),
		loaders.WithMaxFileBytes(cfg.GitHub.MaxFileBytes),
		loaders.WithLogger(log.WithField("component", "loader")),
	)

	if c.Splitter, err = splitters.NewCharacterSplitter(cfg.Ingestion.ChunkSize, cfg.Ingestion.ChunkOverlap); err != nil {
		return nil, err
	}

	provider, err := embedding.New(ctx, cfg.Embedding, embeddingClient)
	if err != nil {
		return nil, fmt.Errorf("create embedding provider: %w", err)
	}
	if closer, ok := provider.(io.Closer); ok {
		c.closers = append(c.closers, closer.Close)
	}
	embedOpts := []embeddings.Option{
		embeddings.WithMaxBatchSize(cfg.Embedding.MaxBatchSize),
		embeddings.WithLogger(log.WithField("component", "embedder")),
	}
	if rl := cfg.Embedding.RateLimit; rl.Rate > 0 && rl.Capacity > 0 {
		embedOpts = append(embedOpts, embeddings.WithRateLimiter(ratelimiter.NewTokenBucket(rl.Rate, rl.Capacity)))
	}
	if n := cfg.Embedding.CacheSize; n > 0 {
		vectors, err := cache.New[string, []float32](cache.Config{Capacity: n})
		if err != nil {
			return nil, err
		}
		embedOpts = append(embedOpts, embeddings.WithCache(vectors))
	}
	c.Embedder = embeddings.NewBatchEmbedder(provider, cfg.Embedding.Model, embedOpts...)

	if c.Index, err = c.openIndex(ctx); err != nil {
		return nil, err
	}

	if cfg.Ingestion.Archive {
		mc, err := dbminio.NewClient(ctx, cfg.Databases.MinIO)
		if err != nil {
			return nil, err
		}
		c.Archive = docstore.NewMinIODocStore(mc, cfg.Databases.MinIO.Bucket, log.WithField("component", "archive"))
	}

	if kc := cfg.Databases.Kafka; len(kc.Brokers) > 0 {
		if err := dbkafka.EnsureTopic(ctx, kc); err != nil {
			// 主题可能由运维预先创建，或 broker 开启了自动创建。
			log.WithError(err).Warn("Could not ensure progress topic")
		}
		c.Publisher = dbkafka.NewProgressPublisher(kc)
		c.closers = append(c.closers, c.Publisher.Close)
	}

	log.WithPayload(map[string]interface{}{
		"provider": cfg.Embedding.Provider,
		"model":    cfg.Embedding.Model,
		"backend":  cfg.VectorStore.Backend,
		"index":    c.Index.Name(),
		"archive":  c.Archive != nil,
		"kafka":    c.Publisher != nil,
	}).Info("Ingestion components ready")
	return c, nil
}

func (c *Components) openIndex(ctx context.Context) (interfaces.VectorIndex, error) {
	vs := c.cfg.VectorStore
	switch vs.Backend {
	case "pinecone":
		pc, err := vectorstore.NewPineconeIndex(vs.Pinecone)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, pc.Close)
		return pc, nil
	case "milvus":
		mc, err := dbmilvus.NewClient(ctx, vs.Milvus, c.log.WithField("component", "milvus"))
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, mc.Close)
		return vectorstore.NewMilvusIndex(mc)
	case "postgres":
		pg, err := vectorstore.NewPostgresIndex(ctx, vs.Postgres.DSN, vs.Postgres.Table)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() error { pg.Close(); return nil })
		return pg, nil
	default:
		return vectorstore.NewMemoryIndex(c.cfg.IndexName()), nil
	}
}

// Pipeline creates a pipeline for one run. The Kafka publisher, when
// configured, is appended to reporters.
func (c *Components) Pipeline(log *logger.Logger, reporters ...interfaces.ProgressReporter) (*pipeline.IndexingPipeline, error) {
	sink, err := vectorstore.NewSink(c.Index, c.cfg.Ingestion.BatchSize, log)
	if err != nil {
		return nil, err
	}
	if c.Publisher != nil {
		reporters = append(reporters, c.Publisher)
	}
	opts := []pipeline.Option{
		pipeline.WithIDScheme(c.idScheme),
		pipeline.WithIgnore(c.cfg.GitHub.IgnoreFiles),
		pipeline.WithReporters(reporters...),
		pipeline.WithLogger(log),
	}
	if c.Archive != nil {
		opts = append(opts, pipeline.WithArchive(c.Archive))
	}
	return pipeline.NewIndexingPipeline(c.Loader, c.Splitter, c.Embedder, sink, opts...), nil
}

// Close releases every connection in reverse order of creation.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
