package bootstrap

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"RepoChat/backend/go/internal/config"
	"RepoChat/backend/go/internal/ingestion/ingesterr"
	"RepoChat/backend/go/internal/ingestion/schema"
	"RepoChat/backend/go/internal/ingestion/storages/vectorstore"
	"RepoChat/backend/go/internal/models"
	"RepoChat/backend/go/pkg/circuitbreaker"
	"RepoChat/backend/go/pkg/logger"
)

var repoFiles = map[string]string{
	"README.md":   "# Widgets\n",
	"cmd/main.go": "package main\n\nfunc main() {}\n",
}

// fakeUpstream serves the GitHub tree/contents endpoints and a feature
// extraction endpoint under /hf/.
func fakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/repos/acme/broken/"):
			http.Error(w, "bad gateway", http.StatusBadGateway)
		case r.URL.Path == "/repos/acme/widgets/git/trees/main":
			tree := []map[string]interface{}{
				{"path": "README.md", "type": "blob", "size": len(repoFiles["README.md"])},
				{"path": "cmd", "type": "tree"},
				{"path": "cmd/main.go", "type": "blob", "size": len(repoFiles["cmd/main.go"])},
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"sha": "abc", "tree": tree})
		case strings.HasPrefix(r.URL.Path, "/repos/acme/widgets/contents/"):
			p := strings.TrimPrefix(r.URL.Path, "/repos/acme/widgets/contents/")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"path":     p,
				"encoding": "base64",
				"content":  base64.StdEncoding.EncodeToString([]byte(repoFiles[p])),
			})
		case r.URL.Path == "/hf/bge-small" && r.Method == http.MethodPost:
			var req struct {
				Inputs []string `json:"inputs"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			out := make([][]float32, len(req.Inputs))
			for i, in := range req.Inputs {
				out[i] = []float32{float32(len(in)), 1, 0}
			}
			_ = json.NewEncoder(w).Encode(out)
		default:
			http.NotFound(w, r)
		}
	}))
}

func testConfig(baseURL string) *config.AppConfig {
	cfg := config.Defaults()
	cfg.GitHub.APIBaseURL = baseURL
	cfg.Embedding.Provider = "huggingface"
	cfg.Embedding.APIKey = "hf_test"
	cfg.Embedding.Model = "bge-small"
	cfg.Embedding.BaseURL = baseURL + "/hf/"
	cfg.VectorStore.Backend = "memory"
	cfg.Ingestion.BatchSize = 1
	return cfg
}

type recordingReporter struct {
	mu     sync.Mutex
	events []models.ProgressEvent
}

func (r *recordingReporter) Report(_ context.Context, ev models.ProgressEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func TestBuild_EndToEndWithMemoryIndex(t *testing.T) {
	ts := fakeUpstream(t)
	defer ts.Close()

	c, err := Build(context.Background(), testConfig(ts.URL), logger.Discard())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer c.Close()

	if c.Archive != nil || c.Publisher != nil {
		t.Errorf("archive and kafka must stay off unless configured")
	}

	rep := &recordingReporter{}
	p, err := c.Pipeline(logger.Discard(), rep)
	if err != nil {
		t.Fatalf("Pipeline() error = %v", err)
	}
	res := p.Run(context.Background(), "run-1", schema.RepoRef{URL: "https://github.com/acme/widgets"})
	if !res.Succeeded() {
		t.Fatalf("run failed at %s: %v", res.Stage, res.Err)
	}

	want := models.Counters{DocumentsLoaded: 2, ChunksProduced: 2, EmbeddingsGenerated: 2, BatchesUpserted: 2, TotalBatches: 2}
	if res.Counters != want {
		t.Errorf("expected counters %+v, got %+v", want, res.Counters)
	}

	idx, ok := c.Index.(*vectorstore.MemoryIndex)
	if !ok {
		t.Fatalf("expected a memory index, got %T", c.Index)
	}
	if idx.Len() != 2 {
		t.Errorf("expected 2 records, got %d", idx.Len())
	}
	sources := map[string]bool{}
	for _, id := range idx.IDs() {
		rec, _ := idx.Get(id)
		sources[rec.Metadata[schema.MetadataKeySource]] = true
	}
	if !sources["README.md"] || !sources["cmd/main.go"] {
		t.Errorf("unexpected sources %v", sources)
	}

	if len(rep.events) == 0 || rep.events[len(rep.events)-1].Status != models.RunStatusSucceeded {
		t.Errorf("expected a final succeeded event, got %+v", rep.events)
	}
}

func TestBuild_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Ingestion.ChunkOverlap = cfg.Ingestion.ChunkSize

	_, err := Build(context.Background(), cfg, nil)
	var ce *ingesterr.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if stage, _ := ingesterr.StageOf(err); stage != ingesterr.StageConfig {
		t.Errorf("expected config stage, got %q", stage)
	}
}

func TestBuild_GitHubOutageDoesNotTripEmbeddingClient(t *testing.T) {
	ts := fakeUpstream(t)
	defer ts.Close()

	cfg := testConfig(ts.URL)
	cfg.CircuitBreaker = config.CircuitBreakerConfig{Enabled: true, FailureThreshold: 1, SuccessThreshold: 1, Timeout: "1m"}
	c, err := Build(context.Background(), cfg, logger.Discard())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer c.Close()

	broken := schema.RepoRef{URL: "acme/broken"}
	if _, err := c.Loader.Load(context.Background(), broken, nil); err == nil {
		t.Fatalf("expected a load failure from the 502 upstream")
	}
	_, err = c.Loader.Load(context.Background(), broken, nil)
	if !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		t.Fatalf("expected the GitHub circuit to be open, got %v", err)
	}

	vectors, err := c.Embedder.Embed(context.Background(), []string{"package main"})
	if err != nil {
		t.Fatalf("embedding must not share the GitHub breaker: %v", err)
	}
	if len(vectors) != 1 || vectors[0][0] != float32(len("package main")) {
		t.Errorf("unexpected vectors %v", vectors)
	}
}
