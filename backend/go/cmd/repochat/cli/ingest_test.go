package cli

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func fakeUpstream() *httptest.Server {
	files := map[string]string{
		"README.md": strings.Repeat("r", 2500),
		"main.go":   "package main\n",
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/repos/acme/widgets/git/trees/main":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"tree": []map[string]interface{}{
				{"path": "README.md", "type": "blob", "size": 2500},
				{"path": "main.go", "type": "blob", "size": 13},
			}})
		case strings.HasPrefix(r.URL.Path, "/repos/acme/widgets/contents/"):
			p := strings.TrimPrefix(r.URL.Path, "/repos/acme/widgets/contents/")
			_ = json.NewEncoder(w).Encode(map[string]string{
				"encoding": "base64",
				"content":  base64.StdEncoding.EncodeToString([]byte(files[p])),
			})
		case r.URL.Path == "/hf/bge-small":
			var req struct {
				Inputs []string `json:"inputs"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			out := make([][]float32, len(req.Inputs))
			for i := range out {
				out[i] = []float32{0.5, 0.5}
			}
			_ = json.NewEncoder(w).Encode(out)
		default:
			http.NotFound(w, r)
		}
	}))
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	for _, k := range []string{"GITHUB_REPO_URL", "GITHUB_TOKEN", "GITHUB_BRANCH", "EMBEDDING_PROVIDER", "EMBEDDING_MODEL",
		"OPENAI_API_KEY", "VECTOR_STORE_BACKEND", "CHUNK_SIZE", "CHUNK_OVERLAP", "BATCH_SIZE"} {
		t.Setenv(k, "")
	}
	cfg := fmt.Sprintf(`
logger:
  level: error
github:
  apiBaseURL: %s
embedding:
  provider: huggingface
  model: bge-small
  apiKey: hf_test
  baseURL: %s/hf/
vectorStore:
  backend: pinecone
ingestion:
  batchSize: 2
`, baseURL, baseURL)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func execute(args ...string) (string, error) {
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestIngest_DryRun(t *testing.T) {
	ts := fakeUpstream()
	defer ts.Close()
	path := writeConfig(t, ts.URL)

	out, err := execute("ingest", "https://github.com/acme/widgets", "ghp_test", "--config", path, "--dry-run")
	if err != nil {
		t.Fatalf("ingest failed: %v\n%s", err, out)
	}
	// README.md: 2500 chars at 1000/200 gives 4 chunks; main.go gives 1.
	for _, want := range []string{
		"Documents loaded:     2",
		"Chunks produced:      5",
		"Embeddings generated: 5",
		"Batches upserted:     3/3",
		"Ingestion complete!",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output is missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "[upsert] Upserted batch 3 of 3") {
		t.Errorf("expected per-batch progress lines:\n%s", out)
	}
}

func TestIngest_MissingRepoURL(t *testing.T) {
	ts := fakeUpstream()
	defer ts.Close()
	path := writeConfig(t, ts.URL)

	_, err := execute("ingest", "--config", path, "--dry-run")
	if err == nil || !strings.HasPrefix(err.Error(), "ingestion failed at stage config:") {
		t.Errorf("expected a config stage failure, got %v", err)
	}
}

func TestIngest_LoadFailureNamesStage(t *testing.T) {
	ts := fakeUpstream()
	defer ts.Close()
	path := writeConfig(t, ts.URL)

	_, err := execute("ingest", "acme/missing", "--config", path, "--dry-run")
	if err == nil || !strings.HasPrefix(err.Error(), "ingestion failed at stage load:") {
		t.Errorf("expected a load stage failure, got %v", err)
	}
}

func TestIngest_PineconeWithoutCredentials(t *testing.T) {
	ts := fakeUpstream()
	defer ts.Close()
	path := writeConfig(t, ts.URL)
	t.Setenv("PINECONE_API_KEY", "")

	_, err := execute("ingest", "acme/widgets", "--config", path)
	if err == nil || !strings.Contains(err.Error(), "vectorStore.pinecone.apiKey") {
		t.Errorf("expected a missing pinecone key error, got %v", err)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute("version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if out != "repochat dev\n" {
		t.Errorf("unexpected version output %q", out)
	}
}
