package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/mkarpov-dev/jobsieve/internal/job"
)

// RawPosting is the unit handed over by the acquisition layer: a source tag
// plus an opaque payload whose shape varies per source.
type RawPosting struct {
	Source  string         `json:"source"`
	Payload map[string]any `json:"payload"`
}

// NormalizationError signals a raw record that cannot become a Posting.
type NormalizationError struct {
	Source string
	Field  string
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s posting: field %q: %s", e.Source, e.Field, e.Reason)
}

// rawFields is the loose superset of fields the known sources emit. Sources
// disagree on naming, so most fields have an alias resolved in Normalize.
type rawFields struct {
	ExternalID      string `mapstructure:"external_id"`
	ID              string `mapstructure:"id"`
	Title           string `mapstructure:"title"`
	Name            string `mapstructure:"name"`
	Organization    string `mapstructure:"organization"`
	Company         string `mapstructure:"company"`
	Description     string `mapstructure:"description"`
	Requirements    string `mapstructure:"requirements"`
	Location        string `mapstructure:"location"`
	WorkplaceType   string `mapstructure:"workplace_type"`
	Remote          bool   `mapstructure:"remote"`
	SalaryMin       int    `mapstructure:"salary_min"`
	SalaryMax       int    `mapstructure:"salary_max"`
	SalaryCurrency  string `mapstructure:"salary_currency"`
	EmploymentType  string `mapstructure:"employment_type"`
	ExperienceLevel string `mapstructure:"experience_level"`
	ApplyURL        string `mapstructure:"apply_url"`
	URL             string `mapstructure:"url"`
}

var employmentAliases = map[string]job.EmploymentType{
	"full-time":  job.EmploymentFullTime,
	"full time":  job.EmploymentFullTime,
	"fulltime":   job.EmploymentFullTime,
	"full_time":  job.EmploymentFullTime,
	"part-time":  job.EmploymentPartTime,
	"part time":  job.EmploymentPartTime,
	"parttime":   job.EmploymentPartTime,
	"part_time":  job.EmploymentPartTime,
	"contract":   job.EmploymentContract,
	"contractor": job.EmploymentContract,
	"freelance":  job.EmploymentContract,
	"intern":     job.EmploymentInternship,
	"internship": job.EmploymentInternship,
	"temporary":  job.EmploymentTemporary,
	"temp":       job.EmploymentTemporary,
}

var workplaceAliases = map[string]job.WorkplaceMode{
	"remote":         job.WorkplaceRemote,
	"fully remote":   job.WorkplaceRemote,
	"work from home": job.WorkplaceRemote,
	"anywhere":       job.WorkplaceRemote,
	"hybrid":         job.WorkplaceHybrid,
	"onsite":         job.WorkplaceOnsite,
	"on-site":        job.WorkplaceOnsite,
	"on site":        job.WorkplaceOnsite,
	"office":         job.WorkplaceOnsite,
	"in-office":      job.WorkplaceOnsite,
}

var experienceAliases = map[string]job.ExperienceLevel{
	"entry":     job.ExperienceEntry,
	"junior":    job.ExperienceEntry,
	"mid":       job.ExperienceMid,
	"middle":    job.ExperienceMid,
	"senior":    job.ExperienceSenior,
	"lead":      job.ExperienceLead,
	"staff":     job.ExperienceLead,
	"principal": job.ExperienceLead,
	"executive": job.ExperienceExecutive,
	"director":  job.ExperienceExecutive,
}

// Normalizer maps heterogeneous raw postings into canonical Posting records.
// It is a pure transform; the clock is injectable for tests.
type Normalizer struct {
	now func() time.Time
}

func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// Normalize converts one raw record into a Posting. Missing mandatory fields
// (title, organization, description) fail with a NormalizationError; unknown
// vocabulary values map to the "unspecified" sentinels instead of failing.
func (n *Normalizer) Normalize(raw RawPosting) (*job.Posting, error) {
	source := strings.TrimSpace(raw.Source)
	if source == "" {
		return nil, &NormalizationError{Source: "unknown", Field: "source", Reason: "missing"}
	}

	var fields rawFields
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &fields,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("build payload decoder: %w", err)
	}
	if err := decoder.Decode(raw.Payload); err != nil {
		return nil, &NormalizationError{Source: source, Field: "payload", Reason: err.Error()}
	}

	title := firstNonEmpty(fields.Title, fields.Name)
	if title == "" {
		return nil, &NormalizationError{Source: source, Field: "title", Reason: "missing"}
	}
	org := firstNonEmpty(fields.Organization, fields.Company)
	if org == "" {
		return nil, &NormalizationError{Source: source, Field: "organization", Reason: "missing"}
	}
	description := strings.TrimSpace(fields.Description)
	if description == "" {
		return nil, &NormalizationError{Source: source, Field: "description", Reason: "missing"}
	}

	externalID := firstNonEmpty(fields.ExternalID, fields.ID)
	if externalID == "" {
		return nil, &NormalizationError{Source: source, Field: "external_id", Reason: "missing"}
	}

	workplace := coerceWorkplace(fields.WorkplaceType, fields.Remote, fields.Location)

	var salary *job.Salary
	if fields.SalaryMin > 0 || fields.SalaryMax > 0 {
		salary = &job.Salary{
			Min:      fields.SalaryMin,
			Max:      fields.SalaryMax,
			Currency: strings.ToUpper(strings.TrimSpace(fields.SalaryCurrency)),
		}
	}

	return &job.Posting{
		Key:          job.Key{ExternalID: externalID, Source: source},
		Title:        title,
		Organization: org,
		Description:  description,
		Requirements: strings.TrimSpace(fields.Requirements),
		Location:     strings.TrimSpace(fields.Location),
		Workplace:    workplace,
		Salary:       salary,
		Employment:   coerceEmployment(fields.EmploymentType),
		Experience:   coerceExperience(fields.ExperienceLevel),
		ApplyURL:     firstNonEmpty(fields.ApplyURL, fields.URL),
		IngestedAt:   n.now().UTC(),
	}, nil
}

func coerceEmployment(raw string) job.EmploymentType {
	if t, ok := employmentAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return t
	}
	return job.EmploymentUnspecified
}

func coerceWorkplace(raw string, remote bool, location string) job.WorkplaceMode {
	if mode, ok := workplaceAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return mode
	}
	if remote {
		return job.WorkplaceRemote
	}
	// Some boards only hint at remote work through the location string.
	loc := strings.ToLower(location)
	for alias, mode := range workplaceAliases {
		if mode == job.WorkplaceRemote && strings.Contains(loc, alias) {
			return job.WorkplaceRemote
		}
	}
	return job.WorkplaceUnspecified
}

func coerceExperience(raw string) job.ExperienceLevel {
	if lvl, ok := experienceAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return lvl
	}
	return job.ExperienceUnspecified
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
