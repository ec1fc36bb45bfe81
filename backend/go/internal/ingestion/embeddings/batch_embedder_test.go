package embeddings

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"RepoChat/backend/go/internal/ingestion/ingesterr"
	"RepoChat/backend/go/pkg/cache"
	"RepoChat/backend/go/pkg/ratelimiter"
)

// fakeProvider returns vectors encoding the input length so alignment can be
// checked. failOn is the 1-based call that fails; zero means never.
type fakeProvider struct {
	calls  [][]string
	failOn int
	mutate func(call int, vectors [][]float32) [][]float32
	dim    int
}

func (f *fakeProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	call := len(f.calls)
	if call == f.failOn {
		return nil, fmt.Errorf("provider unavailable")
	}
	out := make([][]float32, len(texts))
	for i, s := range texts {
		v := make([]float32, f.dim)
		v[0] = float32(len(s))
		out[i] = v
	}
	if f.mutate != nil {
		out = f.mutate(call, out)
	}
	return out, nil
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%0*d", i+1, 0)
	}
	return out
}

func TestBatchEmbedder_SplitsAndAligns(t *testing.T) {
	p := &fakeProvider{dim: 4}
	b := NewBatchEmbedder(p, "test-model", WithMaxBatchSize(3))

	in := texts(7)
	got, err := b.Embed(context.Background(), in)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(p.calls) != 3 {
		t.Fatalf("expected 3 provider calls, got %d", len(p.calls))
	}
	if len(p.calls[0]) != 3 || len(p.calls[1]) != 3 || len(p.calls[2]) != 1 {
		t.Errorf("unexpected call sizes %d/%d/%d", len(p.calls[0]), len(p.calls[1]), len(p.calls[2]))
	}
	if len(got) != len(in) {
		t.Fatalf("expected %d vectors, got %d", len(in), len(got))
	}
	for i, v := range got {
		if int(v[0]) != len(in[i]) {
			t.Errorf("vector %d is not aligned with its text", i)
		}
	}
}

func TestBatchEmbedder_EmptyInput(t *testing.T) {
	p := &fakeProvider{dim: 2}
	got, err := NewBatchEmbedder(p, "m").Embed(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("Embed(nil) = %v, %v", got, err)
	}
	if len(p.calls) != 0 {
		t.Errorf("expected no provider calls, got %d", len(p.calls))
	}
}

func TestBatchEmbedder_FailureOnSecondOfThreeCalls(t *testing.T) {
	p := &fakeProvider{dim: 2, failOn: 2}
	b := NewBatchEmbedder(p, "test-model", WithMaxBatchSize(2))

	got, err := b.Embed(context.Background(), texts(6))
	if got != nil {
		t.Errorf("partial embeddings must be discarded, got %d", len(got))
	}
	var ee *ingesterr.EmbeddingError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EmbeddingError, got %v", err)
	}
	if ee.Call != 2 || ee.Total != 3 || ee.Model != "test-model" {
		t.Errorf("unexpected error fields %+v", ee)
	}
	if len(p.calls) != 2 {
		t.Errorf("expected the embedder to stop after the failing call, made %d", len(p.calls))
	}
}

func TestBatchEmbedder_MalformedResponses(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(call int, v [][]float32) [][]float32
		want   error
	}{
		{"count mismatch", func(_ int, v [][]float32) [][]float32 { return v[:len(v)-1] }, errCountMismatch},
		{"empty vector", func(_ int, v [][]float32) [][]float32 { v[1] = nil; return v }, errEmptyVector},
		{"width mismatch", func(call int, v [][]float32) [][]float32 {
			if call == 2 {
				v[0] = append(v[0], 9)
			}
			return v
		}, errWidthMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{dim: 3, mutate: tt.mutate}
			_, err := NewBatchEmbedder(p, "m", WithMaxBatchSize(2)).Embed(context.Background(), texts(4))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if stage, _ := ingesterr.StageOf(err); stage != ingesterr.StageEmbed {
				t.Errorf("expected embed stage, got %q", stage)
			}
		})
	}
}

func TestBatchEmbedder_RateLimiterCancellation(t *testing.T) {
	p := &fakeProvider{dim: 2}
	limiter := ratelimiter.NewTokenBucket(0, 1)
	b := NewBatchEmbedder(p, "m", WithMaxBatchSize(1), WithRateLimiter(limiter))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The first call consumes the only token; the second has to wait and
	// observes the cancelled context.
	_, err := b.Embed(ctx, texts(2))
	var ee *ingesterr.EmbeddingError
	if !errors.As(err, &ee) || ee.Call != 2 {
		t.Fatalf("expected EmbeddingError on call 2, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBatchEmbedder_CacheSkipsKnownTexts(t *testing.T) {
	p := &fakeProvider{dim: 2}
	vectors, err := cache.New[string, []float32](cache.Config{Capacity: 16})
	if err != nil {
		t.Fatalf("cache.New() error = %v", err)
	}
	b := NewBatchEmbedder(p, "m", WithMaxBatchSize(10), WithCache(vectors))

	first, err := b.Embed(context.Background(), []string{"a", "bb", "a"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(p.calls) != 1 || len(p.calls[0]) != 2 {
		t.Fatalf("duplicate texts must be embedded once, calls %v", p.calls)
	}
	if len(first) != 3 || first[0][0] != 1 || first[1][0] != 2 || first[2][0] != 1 {
		t.Errorf("vectors not aligned with inputs: %v", first)
	}

	second, err := b.Embed(context.Background(), []string{"bb", "ccc"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(p.calls) != 2 || len(p.calls[1]) != 1 || p.calls[1][0] != "ccc" {
		t.Errorf("only the new text should reach the provider, calls %v", p.calls)
	}
	if second[0][0] != 2 || second[1][0] != 3 {
		t.Errorf("unexpected vectors %v", second)
	}

	if _, err := b.Embed(context.Background(), []string{"bb"}); err != nil || len(p.calls) != 2 {
		t.Errorf("fully cached input must not call the provider, err=%v calls=%d", err, len(p.calls))
	}
}
