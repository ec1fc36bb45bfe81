package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"RepoChat/backend/go/internal/config"
	"RepoChat/backend/go/internal/ingestion/bootstrap"
	"RepoChat/backend/go/internal/ingestion/ingesterr"
	"RepoChat/backend/go/internal/ingestion/loaders"
	"RepoChat/backend/go/internal/ingestion/schema"
	"RepoChat/backend/go/internal/models"
	"RepoChat/backend/go/pkg/logger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "config/config.yaml"

type ingestOptions struct {
	configPath string
	branch     string
	dryRun     bool
}

func newIngestCmd() *cobra.Command {
	opts := &ingestOptions{}
	cmd := &cobra.Command{
		Use:   "ingest [repo-url] [token]",
		Short: "Ingest a GitHub repository into the configured vector index",
		Long: `Ingest loads the repository, splits its files into chunks, embeds them and
upserts the vectors in batches. repo-url and token fall back to GITHUB_REPO_URL
and GITHUB_TOKEN.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIngest(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", "", "config file (default is ./"+defaultConfigPath+" when present)")
	cmd.Flags().StringVar(&opts.branch, "branch", "", "branch to ingest (default from config, then main)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "write vectors to an in-memory index instead of the configured backend")
	return cmd
}

func loadIngestConfig(opts *ingestOptions, args []string) (*config.AppConfig, error) {
	path := opts.configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		cfg.GitHub.RepoURL = args[0]
	}
	if len(args) > 1 {
		cfg.GitHub.Token = args[1]
	}
	if opts.branch != "" {
		cfg.GitHub.Branch = opts.branch
	}
	if opts.dryRun {
		cfg.VectorStore.Backend = "memory"
	}
	if cfg.GitHub.RepoURL == "" {
		return nil, &ingesterr.ConfigError{Field: "github.repoURL", Reason: "pass a repository URL or set GITHUB_REPO_URL"}
	}
	repo, err := loaders.ParseRepoURL(cfg.GitHub.RepoURL)
	if err != nil {
		return nil, err
	}
	cfg.GitHub.Branch = repo.BranchOr(cfg.GitHub.Branch)
	return cfg, nil
}

func runIngest(ctx context.Context, out, errOut io.Writer, opts *ingestOptions, args []string) error {
	cfg, err := loadIngestConfig(opts, args)
	if err != nil {
		return stageFailure(ingesterr.StageConfig, err)
	}

	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	logger.SetOutput(errOut)
	runID := uuid.New().String()
	log := logger.New("repochat-cli", runID)

	components, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		return stageFailure(ingesterr.StageConfig, err)
	}
	defer components.Close()

	p, err := components.Pipeline(log, &consoleReporter{out: out})
	if err != nil {
		return stageFailure(ingesterr.StageConfig, err)
	}

	fmt.Fprintf(out, "Ingesting %s (branch %s) into %s index %q\n",
		cfg.GitHub.RepoURL, cfg.GitHub.Branch, cfg.VectorStore.Backend, components.Index.Name())
	res := p.Run(ctx, runID, schema.RepoRef{URL: cfg.GitHub.RepoURL, Branch: cfg.GitHub.Branch, Token: cfg.GitHub.Token})
	if !res.Succeeded() {
		return stageFailure(res.Stage, res.Err)
	}

	c := res.Counters
	fmt.Fprintf(out, "Documents loaded:     %d\n", c.DocumentsLoaded)
	fmt.Fprintf(out, "Chunks produced:      %d\n", c.ChunksProduced)
	fmt.Fprintf(out, "Embeddings generated: %d\n", c.EmbeddingsGenerated)
	fmt.Fprintf(out, "Batches upserted:     %d/%d\n", c.BatchesUpserted, c.TotalBatches)
	fmt.Fprintln(out, "Ingestion complete!")
	return nil
}

// stageFailure builds the error the process exits with. A StageError is
// unwrapped so its stage is not repeated.
func stageFailure(stage ingesterr.Stage, err error) error {
	var se *ingesterr.StageError
	if errors.As(err, &se) {
		stage, err = se.Stage, se.Err
	}
	return fmt.Errorf("ingestion failed at stage %s: %w", stage, err)
}

// consoleReporter prints the running steps of a run, one line per event.
type consoleReporter struct {
	out io.Writer
}

func (r *consoleReporter) Report(_ context.Context, ev models.ProgressEvent) error {
	if ev.Status.Terminal() {
		return nil
	}
	_, err := fmt.Fprintf(r.out, "[%s] %s\n", ev.Stage, ev.Message)
	return err
}
