package scoring

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/mkarpov-dev/jobsieve/internal/ai"
	"github.com/mkarpov-dev/jobsieve/internal/job"
	"github.com/mkarpov-dev/jobsieve/internal/utils"
)

//go:embed judge_prompt.md
var judgePromptTemplate string

// JudgeScoringError reports that the judge model failed to produce a usable
// breakdown for one posting. The pipeline treats it as a per-candidate
// failure, never a run failure.
type JudgeScoringError struct {
	Posting job.Key
	Err     error
}

func (e *JudgeScoringError) Error() string {
	return fmt.Sprintf("judge scoring failed for %s: %v", e.Posting, e.Err)
}

func (e *JudgeScoringError) Unwrap() error {
	return e.Err
}

// JudgeScorer runs the strong judge model over the full posting and resume
// and produces the per-dimension score breakdown.
type JudgeScorer struct {
	model     ai.CompletionModel
	logger    *zap.Logger
	maxLogLen int
	now       func() time.Time
}

func NewJudgeScorer(model ai.CompletionModel, logger *zap.Logger) *JudgeScorer {
	return &JudgeScorer{
		model:     model,
		logger:    logger,
		maxLogLen: defaultMaxLogLength,
		now:       time.Now,
	}
}

// Score evaluates one posting against the profile. The model's reply is
// retried once with a schema reminder; a reply that stays unparseable yields
// a JudgeScoringError. Dimension values outside [1,10] are clamped and the
// breakdown flagged. The overall score is always recomputed from the profile
// weights, never read from the model.
func (j *JudgeScorer) Score(ctx context.Context, profile *job.CandidateProfile, posting *job.Posting) (*job.ScoreBreakdown, error) {
	prompt := buildJudgePrompt(profile, posting)

	j.logger.Debug("judge score request",
		zap.String("posting", posting.Key.String()),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, j.maxLogLen)),
	)

	raw, err := j.model.Complete(ctx, prompt)
	if err != nil {
		return nil, &JudgeScoringError{Posting: posting.Key, Err: err}
	}

	breakdown, parseErr := parseJudgeResponse(raw)
	if parseErr != nil {
		j.logger.Debug("judge reply malformed, retrying with schema reminder",
			zap.String("posting", posting.Key.String()),
			zap.String("response_preview", utils.TruncateForLog(raw, j.maxLogLen)),
		)

		raw, err = j.model.Complete(ctx, prompt+schemaReminder)
		if err != nil {
			return nil, &JudgeScoringError{Posting: posting.Key, Err: err}
		}
		breakdown, parseErr = parseJudgeResponse(raw)
	}
	if parseErr != nil {
		return nil, &JudgeScoringError{Posting: posting.Key, Err: parseErr}
	}

	breakdown.Posting = posting.Key
	breakdown.Clamped = breakdown.Dimensions.Clamp()
	breakdown.Overall = breakdown.Dimensions.Overall(profile.Weights)
	breakdown.CreatedAt = j.now().UTC()

	if breakdown.Clamped {
		j.logger.Warn("judge returned out-of-range dimensions, clamped",
			zap.String("posting", posting.Key.String()),
		)
	}

	return breakdown, nil
}

func buildJudgePrompt(profile *job.CandidateProfile, posting *job.Posting) string {
	requirements := posting.Requirements
	if requirements == "" {
		requirements = "not specified"
	}
	location := posting.Location
	if location == "" {
		location = "not specified"
	}

	prompt := strings.ReplaceAll(judgePromptTemplate, "{{RESUME}}", profile.ResumeText)
	prompt = strings.ReplaceAll(prompt, "{{TITLE}}", posting.Title)
	prompt = strings.ReplaceAll(prompt, "{{ORGANIZATION}}", posting.Organization)
	prompt = strings.ReplaceAll(prompt, "{{LOCATION}}", location)
	prompt = strings.ReplaceAll(prompt, "{{DESCRIPTION}}", posting.Description)
	prompt = strings.ReplaceAll(prompt, "{{REQUIREMENTS}}", requirements)
	prompt = strings.ReplaceAll(prompt, "{{SALARY}}", posting.Salary.String())
	prompt = strings.ReplaceAll(prompt, "{{PREFERRED_LOCATIONS}}", profile.PreferredLocations())
	prompt = strings.ReplaceAll(prompt, "{{SALARY_RANGE}}", profile.SalaryExpectation())
	return prompt
}

func parseJudgeResponse(raw string) (*job.ScoreBreakdown, error) {
	data, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	var dims job.Dimensions
	for name, target := range map[string]*int{
		"skills":     &dims.Skills,
		"experience": &dims.Experience,
		"education":  &dims.Education,
		"location":   &dims.Location,
		"salary":     &dims.Salary,
	} {
		v, ok := coerceInt(data[name])
		if !ok {
			return nil, fmt.Errorf("judge reply missing dimension %q", name)
		}
		*target = v
	}

	return &job.ScoreBreakdown{
		Dimensions:    dims,
		Reasoning:     coerceString(data["reasoning"]),
		Strengths:     coerceStringSlice(data["strengths"]),
		MissingSkills: coerceStringSlice(data["missing_skills"]),
		TalkingPoints: coerceStringSlice(data["interview_talking_points"]),
	}, nil
}
