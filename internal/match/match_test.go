package match

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mkarpov-dev/jobsieve/internal/index"
	"github.com/mkarpov-dev/jobsieve/internal/job"
)

type stubEmbedder struct {
	vectors  map[string][]float32
	failures int
	calls    int
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, errors.New("embedding provider unavailable")
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

type stubReranker struct {
	scores []float64
	err    error
	calls  int
}

func (s *stubReranker) Scores(context.Context, string, []string) ([]float64, error) {
	s.calls++
	return s.scores, s.err
}

func newPosting(id string, ingested time.Time) *job.Posting {
	return &job.Posting{
		Key:          job.Key{ExternalID: id, Source: "test"},
		Title:        "Engineer " + id,
		Organization: "Acme",
		Description:  "description " + id,
		Workplace:    job.WorkplaceUnspecified,
		Employment:   job.EmploymentUnspecified,
		Experience:   job.ExperienceUnspecified,
		IngestedAt:   ingested,
	}
}

func TestIndexerRetriesThenSucceeds(t *testing.T) {
	embedder := &stubEmbedder{failures: 1}
	idx := index.NewMemory()
	ix := NewIndexer(embedder, idx, 3, zap.NewNop())

	p := newPosting("1", time.Now())
	if err := ix.Index(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if embedder.calls != 2 {
		t.Fatalf("calls = %d, want 2", embedder.calls)
	}
	if idx.Len() != 1 {
		t.Fatalf("index len = %d, want 1", idx.Len())
	}
}

func TestIndexerExhaustsRetries(t *testing.T) {
	embedder := &stubEmbedder{failures: 100}
	idx := index.NewMemory()
	ix := NewIndexer(embedder, idx, 1, zap.NewNop())

	if err := ix.Index(context.Background(), newPosting("1", time.Now())); err == nil {
		t.Fatal("expected error after retry exhaustion")
	}
	if idx.Len() != 0 {
		t.Fatalf("index len = %d, want 0", idx.Len())
	}
}

func TestRetrieverOnlyReturnsKnownPostings(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemory()

	known := newPosting("known", time.Now())
	stale := newPosting("stale", time.Now())
	if err := idx.Upsert(ctx, known.Key, []float32{1, 0, 0}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := idx.Upsert(ctx, stale.Key, []float32{1, 0, 0}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	r := NewRetriever(&stubEmbedder{}, idx, 10, zap.NewNop())
	profile := &job.CandidateProfile{ResumeText: "resume", TargetTitles: []string{"Engineer"}}

	out, err := r.Retrieve(ctx, profile, &job.Postings{Items: []*job.Posting{known}})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(out) != 1 || out[0].Key != known.Key {
		t.Fatalf("expected only the known posting, got %v", out)
	}
}

func TestRetrieverBreaksTiesByRecency(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemory()

	older := newPosting("older", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	newer := newPosting("newer", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	for _, p := range []*job.Posting{older, newer} {
		if err := idx.Upsert(ctx, p.Key, []float32{1, 0, 0}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	r := NewRetriever(&stubEmbedder{}, idx, 10, zap.NewNop())
	profile := &job.CandidateProfile{ResumeText: "resume", TargetTitles: []string{"Engineer"}}

	out, err := r.Retrieve(ctx, profile, &job.Postings{Items: []*job.Posting{older, newer}})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].Key != newer.Key {
		t.Fatalf("tie not broken by recency: got %v first", out[0].Key)
	}
}

func TestRerankerReordersAndTruncates(t *testing.T) {
	in := []*job.Posting{
		newPosting("a", time.Now()),
		newPosting("b", time.Now()),
		newPosting("c", time.Now()),
	}
	model := &stubReranker{scores: []float64{0.1, 0.9, 0.5}}
	r := NewReranker(model, 2, zap.NewNop())

	out := r.Rerank(context.Background(), "query", in)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].Key.ExternalID != "b" || out[1].Key.ExternalID != "c" {
		t.Fatalf("unexpected order: %v, %v", out[0].Key, out[1].Key)
	}

	// Output must be a subset of the input: no new postings.
	inKeys := make(map[job.Key]struct{})
	for _, p := range in {
		inKeys[p.Key] = struct{}{}
	}
	for _, p := range out {
		if _, ok := inKeys[p.Key]; !ok {
			t.Fatalf("reranker introduced posting %v", p.Key)
		}
	}
}

func TestRerankerFallsBackOnModelError(t *testing.T) {
	in := []*job.Posting{
		newPosting("a", time.Now()),
		newPosting("b", time.Now()),
		newPosting("c", time.Now()),
	}
	model := &stubReranker{err: errors.New("model unavailable")}
	r := NewReranker(model, 2, zap.NewNop())

	out := r.Rerank(context.Background(), "query", in)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	// Retrieval order kept on fallback.
	if out[0].Key.ExternalID != "a" || out[1].Key.ExternalID != "b" {
		t.Fatalf("fallback did not keep retrieval order: %v, %v", out[0].Key, out[1].Key)
	}
}

func TestRerankerNilModelPassthrough(t *testing.T) {
	in := []*job.Posting{newPosting("a", time.Now()), newPosting("b", time.Now())}
	r := NewReranker(nil, 1, zap.NewNop())

	out := r.Rerank(context.Background(), "query", in)
	if len(out) != 1 || out[0].Key.ExternalID != "a" {
		t.Fatalf("unexpected passthrough result: %v", out)
	}
}
