package scoring

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

const validJudgeReply = `{
  "skills": 9,
  "experience": 8,
  "education": 10,
  "location": 2,
  "salary": 5,
  "reasoning": "Strong technical overlap, location is a stretch.",
  "strengths": ["Go", "distributed systems"],
  "missing_skills": ["Kubernetes"],
  "interview_talking_points": ["migration project"]
}`

func TestJudgeScoreComputesWeightedOverall(t *testing.T) {
	model := &stubCompletion{responses: []string{validJudgeReply}}
	j := NewJudgeScorer(model, zap.NewNop())
	j.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	breakdown, err := j.Score(context.Background(), triageProfile(), triagePosting())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// .4*9 + .3*8 + .1*10 + .1*2 + .1*5
	if math.Abs(breakdown.Overall-7.7) > 1e-9 {
		t.Fatalf("overall = %v, want 7.7", breakdown.Overall)
	}
	if breakdown.Clamped {
		t.Fatal("in-range dimensions must not be flagged as clamped")
	}
	if breakdown.Posting != triagePosting().Key {
		t.Fatalf("posting key = %v", breakdown.Posting)
	}
	if breakdown.Reasoning == "" || len(breakdown.Strengths) != 2 {
		t.Fatalf("narrative fields not parsed: %+v", breakdown)
	}
	if !breakdown.CreatedAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("created at = %v", breakdown.CreatedAt)
	}
}

func TestJudgeScoreIgnoresModelOverall(t *testing.T) {
	reply := strings.Replace(validJudgeReply, `"skills": 9`, `"skills": 9, "overall_score": 1.0`, 1)
	model := &stubCompletion{responses: []string{reply}}
	j := NewJudgeScorer(model, zap.NewNop())

	breakdown, err := j.Score(context.Background(), triageProfile(), triagePosting())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(breakdown.Overall-7.7) > 1e-9 {
		t.Fatalf("overall = %v, want recomputed 7.7", breakdown.Overall)
	}
}

func TestJudgeScoreClampsOutOfRangeDimensions(t *testing.T) {
	reply := strings.Replace(validJudgeReply, `"education": 10`, `"education": 11`, 1)
	model := &stubCompletion{responses: []string{reply}}
	j := NewJudgeScorer(model, zap.NewNop())

	breakdown, err := j.Score(context.Background(), triageProfile(), triagePosting())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !breakdown.Clamped {
		t.Fatal("expected clamped flag")
	}
	if breakdown.Dimensions.Education != 10 {
		t.Fatalf("education = %d, want 10", breakdown.Dimensions.Education)
	}
}

func TestJudgeScoreRetriesThenFailsTyped(t *testing.T) {
	model := &stubCompletion{responses: []string{"no json here", "still prose"}}
	j := NewJudgeScorer(model, zap.NewNop())

	_, err := j.Score(context.Background(), triageProfile(), triagePosting())
	if err == nil {
		t.Fatal("expected error for persistent malformed reply")
	}

	var scoringErr *JudgeScoringError
	if !errors.As(err, &scoringErr) {
		t.Fatalf("expected JudgeScoringError, got %T", err)
	}
	if scoringErr.Posting != triagePosting().Key {
		t.Fatalf("error posting = %v", scoringErr.Posting)
	}
	if model.calls != 2 {
		t.Fatalf("calls = %d, want 2", model.calls)
	}
}

func TestJudgeScoreMissingDimensionIsMalformed(t *testing.T) {
	reply := strings.Replace(validJudgeReply, `"salary": 5,`, "", 1)
	model := &stubCompletion{responses: []string{reply}}
	j := NewJudgeScorer(model, zap.NewNop())

	var scoringErr *JudgeScoringError
	if _, err := j.Score(context.Background(), triageProfile(), triagePosting()); !errors.As(err, &scoringErr) {
		t.Fatalf("expected JudgeScoringError, got %v", err)
	}
}
