package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/mkarpov-dev/jobsieve/internal/filtering"
	"github.com/mkarpov-dev/jobsieve/internal/index"
	"github.com/mkarpov-dev/jobsieve/internal/ingest"
	"github.com/mkarpov-dev/jobsieve/internal/job"
	"github.com/mkarpov-dev/jobsieve/internal/match"
	"github.com/mkarpov-dev/jobsieve/internal/scoring"
)

type stubEmbedder struct {
	mu     sync.Mutex
	failOn string
	calls  int
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.failOn != "" && strings.Contains(text, s.failOn) {
		return nil, errors.New("embedding provider unavailable")
	}
	return []float32{1, 0, 0}, nil
}

// scriptedModel answers each prompt with the response whose trigger substring
// the prompt contains, falling back to a default reply.
type scriptedModel struct {
	mu        sync.Mutex
	responses map[string]string
	fallback  string
	calls     int
}

func (m *scriptedModel) Complete(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for trigger, resp := range m.responses {
		if strings.Contains(prompt, trigger) {
			return resp, nil
		}
	}
	return m.fallback, nil
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// blockingModel parks every call until the context is cancelled, signalling
// the first dispatch on started.
type blockingModel struct {
	started chan struct{}
}

func (m *blockingModel) Complete(ctx context.Context, _ string) (string, error) {
	select {
	case m.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return "", ctx.Err()
}

func quickReply(score int) string {
	return fmt.Sprintf(`{"score": %d, "rationale": "scripted"}`, score)
}

func judgeReply(skills int) string {
	return fmt.Sprintf(`{
		"skills": %d, "experience": 8, "education": 10, "location": 2, "salary": 5,
		"reasoning": "scripted", "strengths": ["Go"],
		"missing_skills": [], "interview_talking_points": []
	}`, skills)
}

func rawPosting(source, id, title, company string) ingest.RawPosting {
	return ingest.RawPosting{Source: source, Payload: map[string]any{
		"external_id": id,
		"title":       title,
		"company":     company,
		"description": "Build backend services in Go at " + company + ".",
		"location":    "Remote",
	}}
}

func testProfile() *job.CandidateProfile {
	return &job.CandidateProfile{
		ResumeText:   "Backend engineer with Go and Postgres experience.",
		TargetTitles: []string{"Backend Engineer"},
		KeySkills:    []string{"Go"},
		Experience:   job.ExperienceMid,
		Weights:      job.Weights{Skills: 0.4, Experience: 0.3, Education: 0.1, Location: 0.1, Salary: 0.1},
	}
}

func newTestPipeline(cfg Config, embedder *stubEmbedder, quick, judge *scriptedModel) *Pipeline {
	nop := zap.NewNop()
	idx := index.NewMemory()
	return New(cfg, Deps{
		Logger:     nop,
		Normalizer: ingest.NewNormalizer(),
		Filters:    filtering.Defaults(),
		Indexer:    match.NewIndexer(embedder, idx, 1, nop),
		Retriever:  match.NewRetriever(embedder, idx, 30, nop),
		Reranker:   match.NewReranker(nil, 10, nop),
		Quick:      scoring.NewQuickScorer(quick, 4, nop),
		Judge:      scoring.NewJudgeScorer(judge, nop),
		Index:      idx,
	})
}

func TestRunCollapsesCrossSourceDuplicates(t *testing.T) {
	raws := []ingest.RawPosting{
		rawPosting("boardy", "1", "Backend Engineer", "Acme Inc"),
		rawPosting("boardy", "1", "Backend Engineer", "Acme Inc"),
		rawPosting("jobsrus", "x9", "Backend Engineer", "Acme LLC"),
	}

	quick := &scriptedModel{fallback: quickReply(8)}
	judge := &scriptedModel{fallback: judgeReply(9)}
	p := newTestPipeline(Config{}, &stubEmbedder{}, quick, judge)

	result, err := p.Run(context.Background(), testProfile(), raws)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Summary.Deduped.Succeeded != 1 || result.Summary.Deduped.Excluded != 2 {
		t.Fatalf("dedupe summary = %+v", result.Summary.Deduped)
	}
	if len(result.Ranked) != 1 {
		t.Fatalf("ranked = %d, want 1", len(result.Ranked))
	}
}

func TestRunQuickScoreBelowThresholdSkipsJudge(t *testing.T) {
	raws := []ingest.RawPosting{
		rawPosting("boardy", "1", "Backend Engineer", "Alpha Corp"),
		rawPosting("boardy", "2", "Backend Engineer", "Beta Corp"),
	}

	quick := &scriptedModel{responses: map[string]string{
		"Alpha Corp": quickReply(8),
		"Beta Corp":  quickReply(3),
	}}
	judge := &scriptedModel{fallback: judgeReply(9)}
	p := newTestPipeline(Config{}, &stubEmbedder{}, quick, judge)

	result, err := p.Run(context.Background(), testProfile(), raws)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if judge.callCount() != 1 {
		t.Fatalf("judge calls = %d, want 1", judge.callCount())
	}
	if result.Summary.QuickScored.Succeeded != 1 || result.Summary.QuickScored.Excluded != 1 {
		t.Fatalf("quick summary = %+v", result.Summary.QuickScored)
	}
	if len(result.Ranked) != 1 || result.Ranked[0].Posting.Organization != "Alpha Corp" {
		t.Fatalf("unexpected ranking: %+v", result.Ranked)
	}
}

func TestRunIsolatesEmbeddingFailures(t *testing.T) {
	raws := make([]ingest.RawPosting, 0, 5)
	for i := 1; i <= 4; i++ {
		raws = append(raws, rawPosting("boardy", fmt.Sprint(i), "Backend Engineer", fmt.Sprintf("Org %d", i)))
	}
	raws = append(raws, rawPosting("boardy", "5", "Backend Engineer", "Poison Org"))

	quick := &scriptedModel{fallback: quickReply(8)}
	judge := &scriptedModel{fallback: judgeReply(9)}
	p := newTestPipeline(Config{}, &stubEmbedder{failOn: "Poison Org"}, quick, judge)

	result, err := p.Run(context.Background(), testProfile(), raws)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := StageCount{Attempted: 5, Succeeded: 4, Excluded: 1}
	if result.Summary.Indexed != want {
		t.Fatalf("indexed summary = %+v, want %+v", result.Summary.Indexed, want)
	}
	if len(result.Ranked) != 4 {
		t.Fatalf("ranked = %d, want 4", len(result.Ranked))
	}
	for _, m := range result.Ranked {
		if m.Posting.Organization == "Poison Org" {
			t.Fatal("failed posting leaked into the ranking")
		}
	}
}

func TestRunCancellationReturnsPartialResult(t *testing.T) {
	raws := []ingest.RawPosting{
		rawPosting("boardy", "1", "Backend Engineer", "Alpha Corp"),
		rawPosting("boardy", "2", "Backend Engineer", "Beta Corp"),
	}

	quick := &blockingModel{started: make(chan struct{}, 1)}
	judge := &scriptedModel{fallback: judgeReply(9)}

	nop := zap.NewNop()
	idx := index.NewMemory()
	embedder := &stubEmbedder{}
	p := New(Config{Workers: 1}, Deps{
		Logger:     nop,
		Normalizer: ingest.NewNormalizer(),
		Filters:    filtering.Defaults(),
		Indexer:    match.NewIndexer(embedder, idx, 1, nop),
		Retriever:  match.NewRetriever(embedder, idx, 30, nop),
		Reranker:   match.NewReranker(nil, 10, nop),
		Quick:      scoring.NewQuickScorer(quick, 4, nop),
		Judge:      scoring.NewJudgeScorer(judge, nop),
		Index:      idx,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-quick.started
		cancel()
	}()

	result, err := p.Run(ctx, testProfile(), raws)
	if err != nil {
		t.Fatalf("cancellation must not be an error: %v", err)
	}
	if !result.Cancelled {
		t.Fatal("expected Cancelled=true")
	}
	if len(result.Ranked) != 0 {
		t.Fatalf("ranked = %d, want 0", len(result.Ranked))
	}
}

func TestRunRanksByWeightedOverallDescending(t *testing.T) {
	raws := []ingest.RawPosting{
		rawPosting("boardy", "1", "Backend Engineer", "Low Corp"),
		rawPosting("boardy", "2", "Backend Engineer", "High Corp"),
		rawPosting("boardy", "3", "Backend Engineer", "Mid Corp"),
	}

	quick := &scriptedModel{fallback: quickReply(8)}
	judge := &scriptedModel{responses: map[string]string{
		"Low Corp":  judgeReply(2),
		"High Corp": judgeReply(10),
		"Mid Corp":  judgeReply(6),
	}}
	p := newTestPipeline(Config{}, &stubEmbedder{}, quick, judge)

	result, err := p.Run(context.Background(), testProfile(), raws)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Ranked) != 3 {
		t.Fatalf("ranked = %d, want 3", len(result.Ranked))
	}

	wantOrder := []string{"High Corp", "Mid Corp", "Low Corp"}
	for i, org := range wantOrder {
		if result.Ranked[i].Posting.Organization != org {
			t.Fatalf("position %d = %s, want %s", i, result.Ranked[i].Posting.Organization, org)
		}
	}
	for i := 1; i < len(result.Ranked); i++ {
		if result.Ranked[i].Score.Overall > result.Ranked[i-1].Score.Overall {
			t.Fatal("overall scores not descending")
		}
	}
}

func TestRunLLMBudgetExhaustionIsNotFatal(t *testing.T) {
	raws := []ingest.RawPosting{
		rawPosting("boardy", "1", "Backend Engineer", "Alpha Corp"),
		rawPosting("boardy", "2", "Backend Engineer", "Beta Corp"),
		rawPosting("boardy", "3", "Backend Engineer", "Gamma Corp"),
	}

	quick := &scriptedModel{fallback: quickReply(8)}
	judge := &scriptedModel{fallback: judgeReply(9)}
	p := newTestPipeline(Config{MaxLLMCalls: 4, Workers: 1}, &stubEmbedder{}, quick, judge)

	result, err := p.Run(context.Background(), testProfile(), raws)
	if err != nil {
		t.Fatalf("budget exhaustion must not be fatal: %v", err)
	}

	// 3 triage calls, then only 1 judge call fits in the budget.
	if len(result.Ranked) != 1 {
		t.Fatalf("ranked = %d, want 1", len(result.Ranked))
	}
	if result.Summary.Judged.Excluded != 2 {
		t.Fatalf("judged summary = %+v", result.Summary.Judged)
	}
}

func TestRunInvalidWeightsIsFatal(t *testing.T) {
	profile := testProfile()
	profile.Weights.Skills = 0.9

	p := newTestPipeline(Config{}, &stubEmbedder{}, &scriptedModel{fallback: quickReply(8)}, &scriptedModel{fallback: judgeReply(9)})

	if _, err := p.Run(context.Background(), profile, nil); !errors.Is(err, job.ErrInvalidWeights) {
		t.Fatalf("expected ErrInvalidWeights, got %v", err)
	}
}
