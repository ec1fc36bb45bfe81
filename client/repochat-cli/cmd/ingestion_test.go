package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWSURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080":       "ws://localhost:8080/ws/ingestions/run-1",
		"https://ingest.example.com/": "wss://ingest.example.com/ws/ingestions/run-1",
	}
	for base, want := range cases {
		got, err := wsURL(base, "run-1")
		if err != nil {
			t.Fatalf("wsURL(%q) error = %v", base, err)
		}
		if got != want {
			t.Errorf("wsURL(%q) = %q, want %q", base, got, want)
		}
	}
}

func TestSubmitRun(t *testing.T) {
	var got map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/ingestions" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"run_id":"run-42"}`))
	}))
	defer ts.Close()
	serverAddr = ts.URL

	id, err := submitRun(context.Background(), "https://github.com/acme/widgets", "dev", "")
	if err != nil {
		t.Fatalf("submitRun() error = %v", err)
	}
	if id != "run-42" {
		t.Errorf("expected run-42, got %q", id)
	}
	if got["repoUrl"] != "https://github.com/acme/widgets" || got["branch"] != "dev" {
		t.Errorf("unexpected payload %v", got)
	}
}

func TestSubmitRun_RejectedPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid configuration github.repoURL"}`, http.StatusBadRequest)
	}))
	defer ts.Close()
	serverAddr = ts.URL

	_, err := submitRun(context.Background(), "widgets", "", "")
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Errorf("expected a 400 error, got %v", err)
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := printJSON(&buf, []byte(`{"run_id":"run-1","status":"running"}`)); err != nil {
		t.Fatalf("printJSON() error = %v", err)
	}
	if !strings.Contains(buf.String(), "\n  \"status\": \"running\"") {
		t.Errorf("expected indented output, got %q", buf.String())
	}
}
