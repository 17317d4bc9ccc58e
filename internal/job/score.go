package job

import "time"

// Dimensions are the five integer dimension scores, each in [1,10].
type Dimensions struct {
	Skills     int `json:"skills"`
	Experience int `json:"experience"`
	Education  int `json:"education"`
	Location   int `json:"location"`
	Salary     int `json:"salary"`
}

// Clamp forces every dimension into [1,10] and reports whether any value had
// to be adjusted.
func (d *Dimensions) Clamp() bool {
	clamped := false
	for _, v := range []*int{&d.Skills, &d.Experience, &d.Education, &d.Location, &d.Salary} {
		if *v < 1 {
			*v = 1
			clamped = true
		}
		if *v > 10 {
			*v = 10
			clamped = true
		}
	}
	return clamped
}

// Overall is the deterministic weighted combination of the dimension scores.
// The judge model's own aggregate is never trusted; with weights summing to
// 1.0 and dimensions in [1,10] the result is already on the [1,10] scale.
func (d Dimensions) Overall(w Weights) float64 {
	return w.Skills*float64(d.Skills) +
		w.Experience*float64(d.Experience) +
		w.Education*float64(d.Education) +
		w.Location*float64(d.Location) +
		w.Salary*float64(d.Salary)
}

// ScoreBreakdown is one scoring record for a (profile, posting) pair.
// Re-scoring supersedes a breakdown with a new record; it is never mutated.
type ScoreBreakdown struct {
	Posting       Key        `json:"posting"`
	Dimensions    Dimensions `json:"dimensions"`
	Overall       float64    `json:"overall"`
	Reasoning     string     `json:"reasoning"`
	Strengths     []string   `json:"strengths"`
	MissingSkills []string   `json:"missing_skills"`
	TalkingPoints []string   `json:"talking_points"`
	Clamped       bool       `json:"clamped,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
