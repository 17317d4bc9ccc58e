package filtering

import (
	"github.com/mkarpov-dev/jobsieve/internal/job"
)

type employmentFilter struct {
	disabled bool
}

// NewEmployment creates the employment-type compatibility check: the posting
// type must be in the profile's accepted set. Postings normalized to the
// unspecified sentinel pass, since the absence of data is not a mismatch.
func NewEmployment() Filter {
	return &employmentFilter{}
}

func (f *employmentFilter) Name() string { return "employment" }

func (f *employmentFilter) Enabled() bool { return !f.disabled }

func (f *employmentFilter) Disable(string) { f.disabled = true }

func (f *employmentFilter) Apply(profile *job.CandidateProfile, in []*job.Posting) ([]*job.Posting, Step) {
	if len(profile.Employment) == 0 {
		return keep(in, func(*job.Posting) bool { return true })
	}

	accepted := make(map[job.EmploymentType]struct{}, len(profile.Employment))
	for _, t := range profile.Employment {
		accepted[t] = struct{}{}
	}

	return keep(in, func(p *job.Posting) bool {
		if p.Employment == job.EmploymentUnspecified {
			return true
		}
		_, ok := accepted[p.Employment]
		return ok
	})
}
