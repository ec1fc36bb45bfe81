package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"RepoChat/backend/go/internal/config"
	"RepoChat/backend/go/pkg/circuitbreaker"
)

func TestNewServer_WithAddress(t *testing.T) {
	addr := ":9999"
	srv := NewServer(http.NotFoundHandler(), WithAddress(addr))
	if srv.Addr() != addr {
		t.Errorf("Expected server address to be %s, but got %s", addr, srv.Addr())
	}
}

func TestNewServer_DefaultAddress(t *testing.T) {
	srv := NewServer(http.NotFoundHandler())
	if srv.Addr() != ":8080" {
		t.Errorf("Expected default address :8080, got %s", srv.Addr())
	}
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	srv := NewServer(http.NotFoundHandler(), WithAddress("127.0.0.1:0"))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, time.Second) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}
}

func newTestBreakerConfig() config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 2, // Open after 2 consecutive failures
		SuccessThreshold: 1,
		Timeout:          "10s",
	}
}

func TestClient_PostJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Api-Key") != "secret" {
			t.Errorf("missing Api-Key header")
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		var in map[string]int
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(map[string]int{"doubled": in["n"] * 2})
	}))
	defer ts.Close()

	client, err := NewClient(newTestBreakerConfig())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	var out map[string]int
	header := http.Header{"Api-Key": []string{"secret"}}
	if err := client.PostJSON(context.Background(), ts.URL, header, map[string]int{"n": 21}, &out); err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	if out["doubled"] != 42 {
		t.Errorf("expected 42, got %d", out["doubled"])
	}
}

func TestClient_StatusErrorAndBreaker(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer ts.Close()

	client, err := NewClient(newTestBreakerConfig())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		err := client.GetJSON(context.Background(), ts.URL, nil, nil)
		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusBadGateway {
			t.Fatalf("call %d: expected StatusError 502, got %v", i+1, err)
		}
	}

	err = client.GetJSON(context.Background(), ts.URL, nil, nil)
	if !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen after two failures, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected the open circuit to block the third call, server saw %d", calls)
	}
}

func TestClient_InvalidBreakerTimeout(t *testing.T) {
	cfg := newTestBreakerConfig()
	cfg.Timeout = "soon"
	if _, err := NewClient(cfg); err == nil {
		t.Error("expected an error for an unparseable timeout")
	}
}
