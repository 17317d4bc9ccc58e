package filtering

import (
	"regexp"
	"strings"

	"github.com/mkarpov-dev/jobsieve/internal/job"
)

// seniorityMarker maps a title keyword to a seniority rung. wordBoundary
// markers must appear as whole words so "internal" does not read as "intern".
type seniorityMarker struct {
	keyword      string
	level        int
	wordBoundary bool
}

var seniorityMarkers = []seniorityMarker{
	{"internship", 0, false},
	{"intern", 0, true},
	{"junior", 1, false},
	{"entry", 1, true},
	{"associate", 1, false},
	{"senior", 3, false},
	{"sr.", 3, false},
	{"sr ", 3, false},
	{"staff", 4, false},
	{"principal", 5, false},
	{"distinguished", 5, false},
	{"fellow", 5, true},
	{"director", 6, false},
	{"head of", 6, false},
	{"vice president", 7, false},
	{"vp ", 7, false},
	{" vp", 7, false},
	{"chief", 8, true},
	{" cto", 8, false},
	{" cio", 8, false},
}

// seniorityCeiling maps a profile experience level to the highest title rung
// it tolerates. Markers strictly above the ceiling are rejected.
var seniorityCeiling = map[job.ExperienceLevel]int{
	job.ExperienceEntry:     2,
	job.ExperienceMid:       3,
	job.ExperienceSenior:    4,
	job.ExperienceLead:      5,
	job.ExperienceExecutive: 8,
}

var boundaryPatterns = func() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp)
	for _, m := range seniorityMarkers {
		if m.wordBoundary {
			patterns[m.keyword] = regexp.MustCompile(`\b` + regexp.QuoteMeta(m.keyword) + `\b`)
		}
	}
	return patterns
}()

// detectSeniority returns the highest marker rung found in the title, or -1
// when no marker is present.
func detectSeniority(title string) int {
	padded := " " + strings.ToLower(title) + " "
	detected := -1
	for _, m := range seniorityMarkers {
		var found bool
		if m.wordBoundary {
			found = boundaryPatterns[m.keyword].MatchString(padded)
		} else {
			found = strings.Contains(padded, m.keyword)
		}
		if found && m.level > detected {
			detected = m.level
		}
	}
	return detected
}

type seniorityFilter struct {
	disabled bool
}

// NewSeniority creates the seniority compatibility check: postings whose
// title carries a seniority marker above the profile's ceiling are rejected.
// Titles without a detectable marker pass.
func NewSeniority() Filter {
	return &seniorityFilter{}
}

func (f *seniorityFilter) Name() string { return "seniority" }

func (f *seniorityFilter) Enabled() bool { return !f.disabled }

func (f *seniorityFilter) Disable(string) { f.disabled = true }

func (f *seniorityFilter) Apply(profile *job.CandidateProfile, in []*job.Posting) ([]*job.Posting, Step) {
	ceiling, ok := seniorityCeiling[profile.Experience]
	if !ok {
		// Unspecified profile level tolerates everything.
		ceiling = 8
	}

	return keep(in, func(p *job.Posting) bool {
		level := detectSeniority(p.Title)
		return level <= ceiling
	})
}
