// Package scoring holds the two model-backed scoring stages: a cheap triage
// pass over a bounded posting summary and a full judge pass that produces the
// per-dimension breakdown.
package scoring

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/mkarpov-dev/jobsieve/internal/ai"
	"github.com/mkarpov-dev/jobsieve/internal/job"
	"github.com/mkarpov-dev/jobsieve/internal/utils"
)

//go:embed quick_prompt.md
var quickPromptTemplate string

const (
	// DefaultQuickThreshold is the minimum triage score that forwards a
	// posting to full scoring.
	DefaultQuickThreshold = 4

	// quickSummaryChars bounds the posting description sent to the triage
	// model. Triage is deliberately cheap; the judge sees the full text.
	quickSummaryChars = 600

	defaultMaxLogLength = 200

	schemaReminder = "\n\nYour previous reply was not valid JSON. " +
		"Reply again with ONLY the JSON object, exactly matching the schema above."
)

// QuickResult is the outcome of one triage call. Undetermined means the model
// never produced a parseable score; such postings pass through to full
// scoring rather than being silently dropped.
type QuickResult struct {
	Posting      job.Key
	Score        int
	Rationale    string
	Undetermined bool
}

// QuickScorer runs the cheap triage model over a bounded posting summary.
type QuickScorer struct {
	model     ai.CompletionModel
	threshold int
	logger    *zap.Logger
	maxLogLen int
}

func NewQuickScorer(model ai.CompletionModel, threshold int, logger *zap.Logger) *QuickScorer {
	if threshold <= 0 {
		threshold = DefaultQuickThreshold
	}
	return &QuickScorer{
		model:     model,
		threshold: threshold,
		logger:    logger,
		maxLogLen: defaultMaxLogLength,
	}
}

// Passes reports whether a triage result forwards the posting to full
// scoring. Undetermined results always pass.
func (q *QuickScorer) Passes(r *QuickResult) bool {
	return r.Undetermined || r.Score >= q.threshold
}

// Score runs the triage model once, retrying a single time with a schema
// reminder when the reply is not parseable. A reply that stays malformed is
// an Undetermined result, not an error; errors are reserved for the model
// call itself failing.
func (q *QuickScorer) Score(ctx context.Context, profile *job.CandidateProfile, posting *job.Posting) (*QuickResult, error) {
	prompt := buildQuickPrompt(profile, posting)

	q.logger.Debug("quick score request",
		zap.String("posting", posting.Key.String()),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, q.maxLogLen)),
	)

	raw, err := q.model.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("quick score %s: %w", posting.Key, err)
	}

	score, rationale, parseErr := parseQuickResponse(raw)
	if parseErr != nil {
		q.logger.Debug("quick score reply malformed, retrying with schema reminder",
			zap.String("posting", posting.Key.String()),
			zap.String("response_preview", utils.TruncateForLog(raw, q.maxLogLen)),
		)

		raw, err = q.model.Complete(ctx, prompt+schemaReminder)
		if err != nil {
			return nil, fmt.Errorf("quick score %s: %w", posting.Key, err)
		}
		score, rationale, parseErr = parseQuickResponse(raw)
	}

	if parseErr != nil {
		q.logger.Warn("quick score undetermined, passing posting through",
			zap.String("posting", posting.Key.String()),
			zap.Error(parseErr),
		)
		return &QuickResult{Posting: posting.Key, Undetermined: true}, nil
	}

	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}

	return &QuickResult{Posting: posting.Key, Score: score, Rationale: rationale}, nil
}

func buildQuickPrompt(profile *job.CandidateProfile, posting *job.Posting) string {
	var candidate []string
	if len(profile.TargetTitles) > 0 {
		candidate = append(candidate, "Target roles: "+strings.Join(profile.TargetTitles, ", "))
	}
	if len(profile.KeySkills) > 0 {
		candidate = append(candidate, "Key skills: "+strings.Join(profile.KeySkills, ", "))
	}
	if profile.Experience != job.ExperienceUnspecified && profile.Experience != "" {
		candidate = append(candidate, "Experience level: "+string(profile.Experience))
	}
	if len(candidate) == 0 {
		candidate = append(candidate, utils.TruncateForLog(profile.ResumeText, quickSummaryChars))
	}

	prompt := strings.ReplaceAll(quickPromptTemplate, "{{CANDIDATE}}", strings.Join(candidate, "\n"))
	prompt = strings.ReplaceAll(prompt, "{{POSTING}}", posting.Summary(quickSummaryChars))
	return prompt
}

func parseQuickResponse(raw string) (int, string, error) {
	data, err := decodeObject(raw)
	if err != nil {
		return 0, "", err
	}

	score, ok := coerceInt(data["score"])
	if !ok {
		return 0, "", fmt.Errorf("triage reply has no usable score")
	}

	return score, coerceString(data["rationale"]), nil
}
