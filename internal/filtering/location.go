package filtering

import (
	"regexp"
	"strings"

	"github.com/mkarpov-dev/jobsieve/internal/job"
)

var locationSplit = regexp.MustCompile(`[,\s]+`)

type locationFilter struct {
	disabled bool
}

// NewLocation creates the location compatibility check: remote postings pass,
// otherwise the posting location must share a country/region token with one
// of the profile's target locations.
func NewLocation() Filter {
	return &locationFilter{}
}

func (f *locationFilter) Name() string { return "location" }

func (f *locationFilter) Enabled() bool { return !f.disabled }

func (f *locationFilter) Disable(string) { f.disabled = true }

func (f *locationFilter) Apply(profile *job.CandidateProfile, in []*job.Posting) ([]*job.Posting, Step) {
	return keep(in, func(p *job.Posting) bool {
		return locationCompatible(p, profile.TargetLocations)
	})
}

func locationCompatible(p *job.Posting, targets []string) bool {
	if p.Workplace == job.WorkplaceRemote {
		return true
	}
	// A missing location is unreliable data, not an incompatibility; the
	// judge sees the full posting later and scores the location dimension.
	if strings.TrimSpace(p.Location) == "" {
		return true
	}
	if len(targets) == 0 {
		return true
	}

	loc := strings.ToLower(p.Location)
	for _, target := range targets {
		if strings.EqualFold(strings.TrimSpace(target), "remote") {
			continue
		}
		for _, token := range locationSplit.Split(strings.ToLower(target), -1) {
			if len(token) > 2 && strings.Contains(loc, token) {
				return true
			}
		}
	}
	return false
}
