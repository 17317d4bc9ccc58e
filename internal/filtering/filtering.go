package filtering

import (
	"go.uber.org/zap"

	"github.com/mkarpov-dev/jobsieve/internal/job"
)

// Filter is a single pre-filter check applied to postings. Checks are cheap,
// rule-based hard rejects: no I/O, no model calls, bounded time.
type Filter interface {
	Name() string
	Enabled() bool
	Disable(reason string)
	Apply(profile *job.CandidateProfile, in []*job.Posting) ([]*job.Posting, Step)
}

// Step describes the result of one filter execution.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Defaults returns the standard filter chain in its fixed order.
func Defaults() []Filter {
	return []Filter{NewSeniority(), NewLocation(), NewEmployment()}
}

// Run executes the enabled filters sequentially, preserving input order.
// Each filter only narrows the set; disabling a filter can only grow the
// surviving set.
func Run(logger *zap.Logger, profile *job.CandidateProfile, filters []Filter, in []*job.Posting) ([]*job.Posting, []Step) {
	steps := make([]Step, 0, len(filters))

	for _, f := range filters {
		if !f.Enabled() {
			logger.Info("pre-filter disabled", zap.String("name", f.Name()))
			continue
		}

		next, step := f.Apply(profile, in)
		logger.Info("pre-filter step",
			zap.String("name", f.Name()),
			zap.Int("initial", step.Initial),
			zap.Int("dropped", step.Dropped),
			zap.Int("left", step.Left),
		)

		in = next
		steps = append(steps, step)
	}

	return in, steps
}

// keep is the shared reduction used by all filters: order-preserving,
// monotonic narrowing.
func keep(in []*job.Posting, pass func(*job.Posting) bool) ([]*job.Posting, Step) {
	out := make([]*job.Posting, 0, len(in))
	for _, p := range in {
		if pass(p) {
			out = append(out, p)
		}
	}
	return out, Step{Initial: len(in), Dropped: len(in) - len(out), Left: len(out)}
}
