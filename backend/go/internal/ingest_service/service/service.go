package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"RepoChat/backend/go/internal/ingest_service/store"
	"RepoChat/backend/go/internal/ingestion/ingesterr"
	"RepoChat/backend/go/internal/ingestion/interfaces"
	"RepoChat/backend/go/internal/ingestion/loaders"
	"RepoChat/backend/go/internal/ingestion/pipeline"
	"RepoChat/backend/go/internal/ingestion/schema"
	"RepoChat/backend/go/internal/models"
	"RepoChat/backend/go/pkg/logger"
	"github.com/google/uuid"
)

// Runner executes one ingestion run.
type Runner interface {
	Run(ctx context.Context, runID string, ref schema.RepoRef) pipeline.Result
}

// PipelineFactory creates the Runner for one run. reporters must receive
// every progress event of that run.
type PipelineFactory func(log *logger.Logger, reporters ...interfaces.ProgressReporter) (Runner, error)

// SubmitRequest is a request to ingest one repository.
type SubmitRequest struct {
	RepoURL string
	Branch  string
	Token   string
}

// IngestService accepts ingestion runs, executes them in the background and
// records their progress.
type IngestService struct {
	store   store.RunStore
	conns   *ConnectionManager
	factory PipelineFactory
	index   string
	logger  *logger.Logger
	now     func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewIngestService creates a new IngestService. index is recorded on every
// run as its target.
func NewIngestService(runStore store.RunStore, conns *ConnectionManager, factory PipelineFactory, index string, log *logger.Logger) *IngestService {
	ctx, cancel := context.WithCancel(context.Background())
	return &IngestService{
		store:   runStore,
		conns:   conns,
		factory: factory,
		index:   index,
		logger:  log,
		now:     time.Now,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Submit records a pending run and starts it. A malformed repository URL is
// rejected with *ingesterr.ConfigError before anything is stored.
func (s *IngestService) Submit(ctx context.Context, req SubmitRequest) (*models.IngestionRun, error) {
	repo, err := loaders.ParseRepoURL(req.RepoURL)
	if err != nil {
		return nil, err
	}
	branch := repo.BranchOr(req.Branch)

	now := s.now()
	run := &models.IngestionRun{
		ID:          uuid.New().String(),
		RepoURL:     req.RepoURL,
		Branch:      branch,
		Index:       s.index,
		Status:      models.RunStatusPending,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, run); err != nil {
		s.logger.WithError(err).WithField("run_id", run.ID).Error("Failed to create run in store")
		return nil, err
	}

	ref := schema.RepoRef{URL: req.RepoURL, Branch: branch, Token: req.Token}
	s.wg.Add(1)
	go s.execute(run.ID, ref)

	s.logger.WithPayload(map[string]interface{}{"run_id": run.ID, "repo": req.RepoURL, "branch": branch}).Info("Ingestion run submitted")
	return run, nil
}

func (s *IngestService) execute(runID string, ref schema.RepoRef) {
	defer s.wg.Done()

	log := s.logger.WithField("run_id", runID)
	reporters := []interfaces.ProgressReporter{store.NewReporter(s.store), s.conns}

	runner, err := s.factory(log, reporters...)
	if err != nil {
		log.WithError(err).Error("Failed to build ingestion pipeline")
		ev := models.ProgressEvent{
			RunID:     runID,
			Timestamp: s.now(),
			Status:    models.RunStatusFailed,
			Stage:     string(ingesterr.StageConfig),
			Message:   fmt.Sprintf("Ingestion failed at stage %s", ingesterr.StageConfig),
			Error:     err.Error(),
		}
		for _, r := range reporters {
			if rerr := r.Report(context.Background(), ev); rerr != nil {
				log.WithError(rerr).Warn("Progress reporter failed")
			}
		}
		return
	}

	res := runner.Run(s.baseCtx, runID, ref)
	log.WithPayload(map[string]interface{}{
		"status":   res.Status,
		"stage":    res.Stage,
		"counters": res.Counters,
		"duration": res.FinishedAt.Sub(res.StartedAt).String(),
	}).Info("Ingestion run finished")
}

// Get returns the run record of id, or store.ErrRunNotFound.
func (s *IngestService) Get(ctx context.Context, id string) (*models.IngestionRun, error) {
	return s.store.Get(ctx, id)
}

// List returns up to limit runs, most recent first.
func (s *IngestService) List(ctx context.Context, limit int) ([]*models.IngestionRun, error) {
	runs, err := s.store.List(ctx, limit)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list runs from store")
		return nil, err
	}
	return runs, nil
}

// Subscribe streams the progress events of runID.
func (s *IngestService) Subscribe(runID string) (<-chan models.ProgressEvent, func()) {
	return s.conns.Subscribe(runID)
}

// Close cancels every active run and waits for them to record their outcome
// or for ctx to expire.
func (s *IngestService) Close(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every run started so far has finished.
func (s *IngestService) Wait() {
	s.wg.Wait()
}
