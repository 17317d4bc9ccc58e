package job

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// weightTolerance is the allowed deviation of the weight sum from 1.0.
const weightTolerance = 0.001

// ErrInvalidWeights signals that profile scoring weights do not sum to 1.0.
var ErrInvalidWeights = errors.New("scoring weights must sum to 1.0")

// Weights holds the per-dimension scoring weights of a profile.
type Weights struct {
	Skills     float64 `json:"skills" mapstructure:"skills"`
	Experience float64 `json:"experience" mapstructure:"experience"`
	Education  float64 `json:"education" mapstructure:"education"`
	Location   float64 `json:"location" mapstructure:"location"`
	Salary     float64 `json:"salary" mapstructure:"salary"`
}

// Validate checks that all weights are non-negative and sum to 1.0 within
// tolerance.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"skills":     w.Skills,
		"experience": w.Experience,
		"education":  w.Education,
		"location":   w.Location,
		"salary":     w.Salary,
	} {
		if v < 0 {
			return fmt.Errorf("weight %q is negative: %w", name, ErrInvalidWeights)
		}
	}

	sum := w.Skills + w.Experience + w.Education + w.Location + w.Salary
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("weights sum to %.4f: %w", sum, ErrInvalidWeights)
	}
	return nil
}

// CandidateProfile is the job seeker's resume, preferences, and scoring
// weights. It is created by the configuration layer and read-only to the
// pipeline.
type CandidateProfile struct {
	ResumeText      string           `json:"resume_text" mapstructure:"resume-text"`
	TargetTitles    []string         `json:"target_titles" mapstructure:"target-titles"`
	KeySkills       []string         `json:"key_skills" mapstructure:"key-skills"`
	TargetLocations []string         `json:"target_locations" mapstructure:"target-locations"`
	SalaryMin       int              `json:"salary_min" mapstructure:"salary-min"`
	SalaryMax       int              `json:"salary_max" mapstructure:"salary-max"`
	WorkplaceModes  []WorkplaceMode  `json:"workplace_modes" mapstructure:"workplace-modes"`
	Experience      ExperienceLevel  `json:"experience" mapstructure:"experience"`
	Employment      []EmploymentType `json:"employment" mapstructure:"employment"`
	Weights         Weights          `json:"weights" mapstructure:"weights"`
}

// Validate rejects profiles that cannot enter the pipeline.
func (p *CandidateProfile) Validate() error {
	if p == nil {
		return errors.New("profile is required")
	}
	if strings.TrimSpace(p.ResumeText) == "" {
		return errors.New("profile resume text is required")
	}
	return p.Weights.Validate()
}

// Query builds the retrieval query string. It is deliberately narrower than
// the full resume: titles, key skills, and target locations only, so the
// query embedding is not diluted by unrelated resume prose.
func (p *CandidateProfile) Query() string {
	var parts []string
	if len(p.TargetTitles) > 0 {
		parts = append(parts, strings.Join(p.TargetTitles, ", "))
	}
	if len(p.KeySkills) > 0 {
		parts = append(parts, strings.Join(p.KeySkills, ", "))
	}
	if len(p.TargetLocations) > 0 {
		parts = append(parts, strings.Join(p.TargetLocations, ", "))
	}
	return strings.Join(parts, "\n")
}

// PreferredLocations renders the target locations for prompts.
func (p *CandidateProfile) PreferredLocations() string {
	if len(p.TargetLocations) == 0 {
		return "any"
	}
	return strings.Join(p.TargetLocations, ", ")
}

// SalaryExpectation renders the salary expectations for prompts.
func (p *CandidateProfile) SalaryExpectation() string {
	switch {
	case p.SalaryMin > 0 && p.SalaryMax > 0:
		return fmt.Sprintf("%d-%d", p.SalaryMin, p.SalaryMax)
	case p.SalaryMin > 0:
		return fmt.Sprintf("%d+", p.SalaryMin)
	default:
		return "not specified"
	}
}
