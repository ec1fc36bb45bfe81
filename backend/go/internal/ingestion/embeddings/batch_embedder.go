package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"RepoChat/backend/go/internal/embedding"
	"RepoChat/backend/go/internal/ingestion/ingesterr"
	"RepoChat/backend/go/internal/ingestion/interfaces"
	"RepoChat/backend/go/pkg/cache"
	"RepoChat/backend/go/pkg/logger"
	"RepoChat/backend/go/pkg/ratelimiter"
)

// DefaultMaxBatchSize is the number of texts sent per provider call.
const DefaultMaxBatchSize = 512

var (
	errCountMismatch = errors.New("response vector count does not match input count")
	errEmptyVector   = errors.New("response contains an empty vector")
	errWidthMismatch = errors.New("response vectors have inconsistent dimensions")
)

// BatchEmbedder adapts a provider to interfaces.EmbeddingModel. It splits the
// input into provider calls of at most maxBatchSize texts, throttles the calls
// and validates every response before anything is returned.
type BatchEmbedder struct {
	provider     embedding.Embedding
	model        string
	maxBatchSize int
	limiter      ratelimiter.Waiter
	cache        *cache.LRU[string, []float32]
	log          *logger.Logger
}

// Option configures a BatchEmbedder.
type Option func(*BatchEmbedder)

// WithMaxBatchSize sets the number of texts per provider call.
func WithMaxBatchSize(n int) Option {
	return func(b *BatchEmbedder) {
		if n > 0 {
			b.maxBatchSize = n
		}
	}
}

// WithRateLimiter throttles provider calls.
func WithRateLimiter(l ratelimiter.Waiter) Option {
	return func(b *BatchEmbedder) {
		b.limiter = l
	}
}

// WithCache reuses vectors of texts embedded before with the same model.
// Entries are weighted by vector width.
func WithCache(c *cache.LRU[string, []float32]) Option {
	return func(b *BatchEmbedder) {
		b.cache = c
	}
}

// WithLogger sets the embedder's logger.
func WithLogger(l *logger.Logger) Option {
	return func(b *BatchEmbedder) {
		b.log = l
	}
}

// NewBatchEmbedder wraps provider, which serves the named model.
func NewBatchEmbedder(provider embedding.Embedding, model string, opts ...Option) *BatchEmbedder {
	b := &BatchEmbedder{
		provider:     provider,
		model:        model,
		maxBatchSize: DefaultMaxBatchSize,
		log:          logger.Discard(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var _ interfaces.EmbeddingModel = (*BatchEmbedder)(nil)

// Model returns the embedding model name.
func (b *BatchEmbedder) Model() string {
	return b.model
}

// Embed returns one vector per text, index-aligned with texts. On any failure
// it returns an *ingesterr.EmbeddingError and no vectors.
func (b *BatchEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if b.cache == nil {
		return b.embedBatches(ctx, texts)
	}

	// 只把缓存未命中的文本（去重后）发给 provider
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	pos := make(map[string]int)
	var pending []string
	for i, s := range texts {
		keys[i] = b.cacheKey(s)
		if v, ok := b.cache.Get(keys[i]); ok {
			out[i] = v
			continue
		}
		if _, seen := pos[keys[i]]; !seen {
			pos[keys[i]] = len(pending)
			pending = append(pending, s)
		}
	}
	if len(pending) > 0 {
		vectors, err := b.embedBatches(ctx, pending)
		if err != nil {
			return nil, err
		}
		for k, p := range pos {
			b.cache.Put(k, vectors[p], len(vectors[p]))
		}
		for i := range out {
			if out[i] == nil {
				out[i] = vectors[pos[keys[i]]]
			}
		}
	}

	b.log.WithPayload(map[string]interface{}{
		"texts":  len(texts),
		"cached": len(texts) - countFrom(pos, keys),
	}).Debug("Embedding cache consulted")
	return out, nil
}

func (b *BatchEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(b.model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// countFrom counts the inputs that were served by the provider.
func countFrom(pos map[string]int, keys []string) int {
	n := 0
	for _, k := range keys {
		if _, ok := pos[k]; ok {
			n++
		}
	}
	return n
}

func (b *BatchEmbedder) embedBatches(ctx context.Context, texts []string) ([][]float32, error) {
	total := (len(texts) + b.maxBatchSize - 1) / b.maxBatchSize
	out := make([][]float32, 0, len(texts))
	width := 0

	for call := 1; call <= total; call++ {
		start := (call - 1) * b.maxBatchSize
		end := min(start+b.maxBatchSize, len(texts))
		part := texts[start:end]

		fail := func(err error) error {
			return &ingesterr.EmbeddingError{Model: b.model, Call: call, Total: total, Err: err}
		}

		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return nil, fail(err)
			}
		}

		vectors, err := b.provider.EmbedBatch(ctx, part)
		if err != nil {
			return nil, fail(err)
		}
		if len(vectors) != len(part) {
			return nil, fail(fmt.Errorf("%w: sent %d, received %d", errCountMismatch, len(part), len(vectors)))
		}
		for i, v := range vectors {
			if len(v) == 0 {
				return nil, fail(fmt.Errorf("%w at input %d", errEmptyVector, start+i))
			}
			if width == 0 {
				width = len(v)
			} else if len(v) != width {
				return nil, fail(fmt.Errorf("%w: %d and %d", errWidthMismatch, width, len(v)))
			}
		}
		out = append(out, vectors...)

		b.log.WithPayload(map[string]interface{}{
			"call":  call,
			"total": total,
			"texts": len(part),
		}).Debug("Embedding call completed")
	}
	return out, nil
}
