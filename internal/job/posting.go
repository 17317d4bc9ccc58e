package job

import (
	"fmt"
	"strings"
	"time"
)

// WorkplaceMode is the canonical workplace arrangement of a posting.
type WorkplaceMode string

const (
	WorkplaceRemote      WorkplaceMode = "remote"
	WorkplaceHybrid      WorkplaceMode = "hybrid"
	WorkplaceOnsite      WorkplaceMode = "onsite"
	WorkplaceUnspecified WorkplaceMode = "unspecified"
)

// EmploymentType is the canonical employment arrangement of a posting.
type EmploymentType string

const (
	EmploymentFullTime    EmploymentType = "full_time"
	EmploymentPartTime    EmploymentType = "part_time"
	EmploymentContract    EmploymentType = "contract"
	EmploymentInternship  EmploymentType = "internship"
	EmploymentTemporary   EmploymentType = "temporary"
	EmploymentUnspecified EmploymentType = "unspecified"
)

// ExperienceLevel is the canonical seniority of a posting or profile.
type ExperienceLevel string

const (
	ExperienceEntry       ExperienceLevel = "entry"
	ExperienceMid         ExperienceLevel = "mid"
	ExperienceSenior      ExperienceLevel = "senior"
	ExperienceLead        ExperienceLevel = "lead"
	ExperienceExecutive   ExperienceLevel = "executive"
	ExperienceUnspecified ExperienceLevel = "unspecified"
)

// Key identifies a posting uniquely across sources.
type Key struct {
	ExternalID string `json:"external_id"`
	Source     string `json:"source"`
}

func (k Key) String() string {
	return k.Source + ":" + k.ExternalID
}

// Salary is a source-provided salary range. Min/Max of zero mean unknown.
type Salary struct {
	Min      int    `json:"min,omitempty"`
	Max      int    `json:"max,omitempty"`
	Currency string `json:"currency,omitempty"`
}

func (s *Salary) String() string {
	if s == nil || (s.Min == 0 && s.Max == 0) {
		return "not specified"
	}
	cur := s.Currency
	if cur == "" {
		cur = "USD"
	}
	switch {
	case s.Min > 0 && s.Max > 0:
		return fmt.Sprintf("%d-%d %s", s.Min, s.Max, cur)
	case s.Min > 0:
		return fmt.Sprintf("%d+ %s", s.Min, cur)
	default:
		return fmt.Sprintf("up to %d %s", s.Max, cur)
	}
}

// Posting is the canonical job record produced by normalization. Postings are
// immutable once created; a re-scrape produces a replacement record with the
// same Key.
type Posting struct {
	Key          Key             `json:"key"`
	Title        string          `json:"title"`
	Organization string          `json:"organization"`
	Description  string          `json:"description"`
	Requirements string          `json:"requirements,omitempty"`
	Location     string          `json:"location,omitempty"`
	Workplace    WorkplaceMode   `json:"workplace"`
	Salary       *Salary         `json:"salary,omitempty"`
	Employment   EmploymentType  `json:"employment"`
	Experience   ExperienceLevel `json:"experience"`
	ApplyURL     string          `json:"apply_url,omitempty"`
	IngestedAt   time.Time       `json:"ingested_at"`
}

// EmbeddingText builds the text that is embedded for similarity search.
func (p *Posting) EmbeddingText() string {
	parts := []string{
		"Title: " + p.Title,
		"Organization: " + p.Organization,
	}
	if p.Location != "" {
		parts = append(parts, "Location: "+p.Location)
	}
	if p.Workplace != WorkplaceUnspecified {
		parts = append(parts, "Workplace: "+string(p.Workplace))
	}
	parts = append(parts, "Description: "+p.Description)
	if p.Requirements != "" {
		parts = append(parts, "Requirements: "+p.Requirements)
	}
	return strings.Join(parts, "\n")
}

// Summary is a short representation for cheap triage prompts, bounded to
// maxDescription runes of description text.
func (p *Posting) Summary(maxDescription int) string {
	desc := strings.TrimSpace(p.Description)
	runes := []rune(desc)
	if maxDescription > 0 && len(runes) > maxDescription {
		desc = string(runes[:maxDescription]) + "..."
	}
	return fmt.Sprintf("%s at %s\n%s", p.Title, p.Organization, desc)
}

// Postings is an ordered collection of postings.
type Postings struct {
	Items []*Posting
}

func (ps *Postings) Len() int {
	return len(ps.Items)
}

func (ps *Postings) FindByKey(key Key) *Posting {
	for _, p := range ps.Items {
		if p.Key == key {
			return p
		}
	}
	return nil
}

func (ps *Postings) Keys() []Key {
	keys := make([]Key, 0, len(ps.Items))
	for _, p := range ps.Items {
		keys = append(keys, p.Key)
	}
	return keys
}
