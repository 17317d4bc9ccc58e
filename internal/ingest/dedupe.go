package ingest

import (
	"regexp"
	"strings"

	"github.com/mkarpov-dev/jobsieve/internal/job"
)

// companySuffixes strips common corporate suffixes so "Acme Inc." and
// "Acme LLC" collapse to the same organization.
var companySuffixes = regexp.MustCompile(
	`\s*,?\s*\b(inc|incorporated|llc|ltd|limited|corp|corporation|co|company|` +
		`group|holdings|international|plc|gmbh|ag|sa|srl|pty)\b\.?\s*$`,
)

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeOrganization lowercases an organization name, strips corporate
// suffixes, and collapses whitespace.
func NormalizeOrganization(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = companySuffixes.ReplaceAllString(name, "")
	return whitespace.ReplaceAllString(strings.TrimSpace(name), " ")
}

func normalizeField(s string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// HeuristicKey is the cross-source duplicate key: normalized organization,
// title, and location.
func HeuristicKey(p *job.Posting) string {
	return NormalizeOrganization(p.Organization) + "|" +
		normalizeField(p.Title) + "|" +
		normalizeField(p.Location)
}

// Deduplicate collapses postings referring to the same real-world opening.
// Exact (external_id, source) duplicates are dropped outright; cross-source
// heuristic duplicates keep the posting with the earliest ingestion timestamp
// in the slot of the first occurrence, so first-seen order is preserved. The
// reduction is pure and idempotent.
func Deduplicate(postings []*job.Posting) []*job.Posting {
	out := make([]*job.Posting, 0, len(postings))
	seen := make(map[job.Key]struct{}, len(postings))
	byHeuristic := make(map[string]int, len(postings))

	for _, p := range postings {
		if _, ok := seen[p.Key]; ok {
			continue
		}
		seen[p.Key] = struct{}{}

		hk := HeuristicKey(p)
		if idx, ok := byHeuristic[hk]; ok {
			if p.IngestedAt.Before(out[idx].IngestedAt) {
				out[idx] = p
			}
			continue
		}

		byHeuristic[hk] = len(out)
		out = append(out, p)
	}

	return out
}
