package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"RepoChat/backend/go/internal/ingestion/ingesterr"
	"RepoChat/backend/go/internal/ingestion/interfaces"
	"RepoChat/backend/go/internal/ingestion/loaders"
	"RepoChat/backend/go/internal/ingestion/schema"
	"RepoChat/backend/go/internal/ingestion/storages/vectorstore"
	"RepoChat/backend/go/internal/models"
	"RepoChat/backend/go/pkg/logger"
)

// Result is the terminal outcome of a run.
type Result struct {
	RunID      string
	Status     models.RunStatus // RunStatusSucceeded or RunStatusFailed
	Stage      ingesterr.Stage  // failing stage, empty on success
	Err        error            // first error, a *ingesterr.StageError
	Counters   models.Counters
	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded reports whether the run completed every stage.
func (r Result) Succeeded() bool {
	return r.Status == models.RunStatusSucceeded
}

// IndexingPipeline drives load, split, embed and upsert strictly in sequence
// for one repository per Run.
type IndexingPipeline struct {
	loader    interfaces.Loader
	splitter  interfaces.Splitter
	embedder  interfaces.EmbeddingModel
	sink      *vectorstore.Sink
	archive   interfaces.DocumentArchive
	reporters []interfaces.ProgressReporter
	ignore    []string
	idScheme  IDScheme
	now       func() time.Time
	log       *logger.Logger
}

// Option configures an IndexingPipeline.
type Option func(*IndexingPipeline)

// WithArchive stores every loaded document before it is split.
func WithArchive(a interfaces.DocumentArchive) Option {
	return func(p *IndexingPipeline) { p.archive = a }
}

// WithReporters adds progress reporters.
func WithReporters(r ...interfaces.ProgressReporter) Option {
	return func(p *IndexingPipeline) { p.reporters = append(p.reporters, r...) }
}

// WithIgnore adds ignore patterns on top of the loader's built-in set.
func WithIgnore(patterns []string) Option {
	return func(p *IndexingPipeline) { p.ignore = append(p.ignore, patterns...) }
}

// WithIDScheme selects the record id scheme.
func WithIDScheme(s IDScheme) Option {
	return func(p *IndexingPipeline) { p.idScheme = s }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *IndexingPipeline) { p.now = now }
}

// WithLogger sets the pipeline's logger.
func WithLogger(l *logger.Logger) Option {
	return func(p *IndexingPipeline) { p.log = l }
}

// NewIndexingPipeline creates a new IndexingPipeline.
func NewIndexingPipeline(
	loader interfaces.Loader,
	splitter interfaces.Splitter,
	embedder interfaces.EmbeddingModel,
	sink *vectorstore.Sink,
	opts ...Option,
) *IndexingPipeline {
	p := &IndexingPipeline{
		loader:   loader,
		splitter: splitter,
		embedder: embedder,
		sink:     sink,
		idScheme: IDSchemeTimestamp,
		now:      time.Now,
		log:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run carries the mutable state of one Run call.
type run struct {
	p        *IndexingPipeline
	ctx      context.Context
	id       string
	log      *logger.Logger
	counters models.Counters
}

func (r *run) report(status models.RunStatus, stage ingesterr.Stage, msg string, err error) {
	ev := models.ProgressEvent{
		RunID:     r.id,
		Timestamp: r.p.now(),
		Status:    status,
		Stage:     string(stage),
		Message:   msg,
		Counters:  r.counters,
	}
	if err != nil {
		ev.Error = err.Error()
	}

	entry := r.log.WithPayload(map[string]interface{}{"stage": stage, "counters": r.counters})
	if err != nil {
		entry.WithError(err).Error(msg)
	} else {
		entry.Info(msg)
	}

	// Reporters are told about the run even after its context is cancelled.
	ctx := context.WithoutCancel(r.ctx)
	for _, rep := range r.p.reporters {
		if rerr := rep.Report(ctx, ev); rerr != nil {
			r.log.WithError(rerr).Warn("Progress reporter failed")
		}
	}
}

// Run ingests the repository ref points at. It never panics on collaborator
// errors: the first error ends the run and is returned in Result.Err.
func (p *IndexingPipeline) Run(ctx context.Context, runID string, ref schema.RepoRef) Result {
	r := &run{p: p, ctx: ctx, id: runID, log: p.log.WithField("run_id", runID)}
	res := Result{RunID: runID, StartedAt: p.now()}

	stage, err := r.execute(ref)
	res.Counters = r.counters
	res.FinishedAt = p.now()
	if err != nil {
		se := &ingesterr.StageError{Stage: stage, Err: err}
		res.Status = models.RunStatusFailed
		res.Stage = stage
		res.Err = se
		r.report(models.RunStatusFailed, stage, fmt.Sprintf("Ingestion failed at stage %s", stage), err)
		return res
	}
	res.Status = models.RunStatusSucceeded
	r.report(models.RunStatusSucceeded, "", "Ingestion complete!", nil)
	return res
}

// stageOf classifies err, falling back to the stage that was running.
func stageOf(err error, running ingesterr.Stage) ingesterr.Stage {
	if s, ok := ingesterr.StageOf(err); ok {
		return s
	}
	return running
}

func (r *run) execute(ref schema.RepoRef) (ingesterr.Stage, error) {
	p := r.p
	ctx := r.ctx

	// 1. Load
	r.report(models.RunStatusRunning, ingesterr.StageLoad, fmt.Sprintf("Loading repository %s", ref.URL), nil)
	docs, err := p.loader.Load(ctx, ref, p.ignore)
	if err != nil {
		return stageOf(err, ingesterr.StageLoad), err
	}
	r.counters.DocumentsLoaded = len(docs)
	r.report(models.RunStatusRunning, ingesterr.StageLoad, fmt.Sprintf("Loaded %d documents", len(docs)), nil)

	if p.archive != nil {
		if err := p.archiveDocs(ctx, r.id, ref, docs); err != nil {
			return ingesterr.StageLoad, err
		}
	}

	// 2. Split
	chunks, err := p.splitter.Split(ctx, docs)
	if err != nil {
		return stageOf(err, ingesterr.StageSplit), err
	}
	r.counters.ChunksProduced = len(chunks)
	r.report(models.RunStatusRunning, ingesterr.StageSplit, fmt.Sprintf("Split into %d chunks", len(chunks)), nil)

	// 3. Embed
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return stageOf(err, ingesterr.StageEmbed), err
	}
	if len(vectors) != len(chunks) {
		return ingesterr.StageEmbed, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	stamp := p.now()
	r.counters.EmbeddingsGenerated = len(vectors)
	r.report(models.RunStatusRunning, ingesterr.StageEmbed, fmt.Sprintf("Generated %d embeddings", len(vectors)), nil)

	// 4. Upsert
	records := buildRecords(p.idScheme, stamp, chunks, vectors)
	r.counters.TotalBatches = p.sink.Batches(len(records))
	r.report(models.RunStatusRunning, ingesterr.StageUpsert, fmt.Sprintf("Upserting %d vectors", len(records)), nil)
	err = p.sink.Write(ctx, records, func(done, total int) {
		r.counters.BatchesUpserted = done
		r.report(models.RunStatusRunning, ingesterr.StageUpsert, fmt.Sprintf("Upserted batch %d of %d", done, total), nil)
	})
	if err != nil {
		return stageOf(err, ingesterr.StageUpsert), err
	}
	return "", nil
}

func (p *IndexingPipeline) archiveDocs(ctx context.Context, runID string, ref schema.RepoRef, docs []schema.Document) error {
	repo, err := loaders.ParseRepoURL(ref.URL)
	if err != nil {
		return err
	}
	prefix := fmt.Sprintf("%s/%s/%s/%s", repo.Owner, repo.Name, repo.BranchOr(ref.Branch), runID)
	if err := p.archive.Put(ctx, prefix, docs); err != nil {
		var le *ingesterr.LoadError
		if errors.As(err, &le) {
			return err
		}
		return &ingesterr.LoadError{Repo: repo.FullName(), Err: fmt.Errorf("archive documents: %w", err)}
	}
	return nil
}
