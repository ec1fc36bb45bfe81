package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"RepoChat/backend/go/internal/ingestion/ingesterr"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func validConfig() *AppConfig {
	cfg := Defaults()
	cfg.Embedding.APIKey = "sk-test"
	cfg.VectorStore.Pinecone.APIKey = "pc-test"
	cfg.VectorStore.Pinecone.IndexName = "repochat"
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Ingestion.ChunkSize != 1000 || cfg.Ingestion.ChunkOverlap != 200 || cfg.Ingestion.BatchSize != 100 {
		t.Errorf("unexpected ingestion defaults %+v", cfg.Ingestion)
	}
	if cfg.GitHub.Branch != "" {
		t.Errorf("expected no default branch, got %q", cfg.GitHub.Branch)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("unexpected default model %q", cfg.Embedding.Model)
	}
}

func TestLoadConfig_FileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := []byte("ingestion:\n  chunkSize: 500\n  chunkOverlap: 50\ngithub:\n  ignoreFiles: [\"*.lock\"]\n")
	if err := os.WriteFile(path, yaml, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Ingestion.ChunkSize != 500 || cfg.Ingestion.ChunkOverlap != 50 {
		t.Errorf("file values not applied: %+v", cfg.Ingestion)
	}
	if cfg.Ingestion.BatchSize != 100 {
		t.Errorf("unset values should keep their default, got batch size %d", cfg.Ingestion.BatchSize)
	}
	if len(cfg.GitHub.IgnoreFiles) != 1 || cfg.GitHub.IgnoreFiles[0] != "*.lock" {
		t.Errorf("unexpected ignore files %v", cfg.GitHub.IgnoreFiles)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Errorf("expected an error for a missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Defaults()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"GITHUB_REPO_URL":     "https://github.com/acme/widgets",
		"GITHUB_TOKEN":        " ghp_x ",
		"PINECONE_INDEX_NAME": "widgets",
		"CHUNK_SIZE":          "800",
		"BATCH_SIZE":          "",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.GitHub.RepoURL != "https://github.com/acme/widgets" || cfg.GitHub.Token != "ghp_x" {
		t.Errorf("github overrides not applied: %+v", cfg.GitHub)
	}
	if cfg.VectorStore.Pinecone.IndexName != "widgets" {
		t.Errorf("index override not applied")
	}
	if cfg.Ingestion.ChunkSize != 800 || cfg.Ingestion.BatchSize != 100 {
		t.Errorf("unexpected ingestion values %+v", cfg.Ingestion)
	}
}

func TestApplyEnv_BadInteger(t *testing.T) {
	err := Defaults().ApplyEnv(envMap(map[string]string{"CHUNK_OVERLAP": "lots"}))
	var ce *ingesterr.ConfigError
	if !errors.As(err, &ce) || ce.Field != "CHUNK_OVERLAP" {
		t.Errorf("expected ConfigError for CHUNK_OVERLAP, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := map[string]struct {
		mutate func(*AppConfig)
		field  string
	}{
		"overlap equals size":   {func(c *AppConfig) { c.Ingestion.ChunkOverlap = c.Ingestion.ChunkSize }, "ingestion.chunkOverlap"},
		"zero batch size":       {func(c *AppConfig) { c.Ingestion.BatchSize = 0 }, "ingestion.batchSize"},
		"unknown id scheme":     {func(c *AppConfig) { c.Ingestion.IDScheme = "random" }, "ingestion.idScheme"},
		"missing openai key":    {func(c *AppConfig) { c.Embedding.APIKey = "" }, "embedding.apiKey"},
		"missing index name":    {func(c *AppConfig) { c.VectorStore.Pinecone.IndexName = "" }, "vectorStore.pinecone.indexName"},
		"unknown backend":       {func(c *AppConfig) { c.VectorStore.Backend = "faiss" }, "vectorStore.backend"},
		"archive without minio": {func(c *AppConfig) { c.Ingestion.Archive = true }, "databases.minio"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			var ce *ingesterr.ConfigError
			if err := cfg.Validate(); !errors.As(err, &ce) || ce.Field != tc.field {
				t.Errorf("expected ConfigError on %s, got %v", tc.field, err)
			}
		})
	}
}

func TestValidate_OllamaAndMemoryNeedNoCredentials(t *testing.T) {
	cfg := Defaults()
	cfg.Embedding.Provider = "ollama"
	cfg.Embedding.Model = "nomic-embed-text"
	cfg.VectorStore.Backend = "memory"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error %v", err)
	}
	if cfg.IndexName() != "memory" {
		t.Errorf("unexpected index name %q", cfg.IndexName())
	}
}

func TestValidateServer(t *testing.T) {
	cfg := Defaults()
	if err := cfg.ValidateServer(); err != nil {
		t.Fatalf("default server config rejected: %v", err)
	}
	cfg.Server.RunStore = "redis"
	var ce *ingesterr.ConfigError
	if err := cfg.ValidateServer(); !errors.As(err, &ce) {
		t.Errorf("expected ConfigError for redis without an address, got %v", err)
	}
	cfg.Databases.Redis.Address = "localhost:6379"
	if err := cfg.ValidateServer(); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}
