package match

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/mkarpov-dev/jobsieve/internal/ai"
	"github.com/mkarpov-dev/jobsieve/internal/index"
	"github.com/mkarpov-dev/jobsieve/internal/job"
)

// DefaultRetrieveK is the default candidate count from the vector stage.
const DefaultRetrieveK = 30

// Retriever queries the similarity index for the postings closest to the
// profile-derived query.
type Retriever struct {
	embedder ai.EmbeddingModel
	idx      index.VectorIndex
	k        int
	logger   *zap.Logger
}

func NewRetriever(embedder ai.EmbeddingModel, idx index.VectorIndex, k int, logger *zap.Logger) *Retriever {
	if k <= 0 {
		k = DefaultRetrieveK
	}
	return &Retriever{embedder: embedder, idx: idx, k: k, logger: logger}
}

// Retrieve returns up to K postings most similar to the profile query,
// descending by similarity, ties broken by most recent ingestion. Only
// postings present in known are returned; hits for keys the run does not
// know (stale index entries, concurrent runs) are skipped.
func (r *Retriever) Retrieve(ctx context.Context, profile *job.CandidateProfile, known *job.Postings) ([]*job.Posting, error) {
	query := profile.Query()
	if query == "" {
		query = profile.ResumeText
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := r.idx.Query(ctx, vector, r.k)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	type scored struct {
		posting *job.Posting
		score   float32
	}
	resolved := make([]scored, 0, len(hits))
	for _, hit := range hits {
		p := known.FindByKey(hit.Key)
		if p == nil {
			r.logger.Debug("skipping hit for unknown posting", zap.String("posting", hit.Key.String()))
			continue
		}
		resolved = append(resolved, scored{posting: p, score: hit.Score})
	}

	sort.SliceStable(resolved, func(i, j int) bool {
		if resolved[i].score != resolved[j].score {
			return resolved[i].score > resolved[j].score
		}
		return resolved[i].posting.IngestedAt.After(resolved[j].posting.IngestedAt)
	})

	out := make([]*job.Posting, 0, len(resolved))
	for _, s := range resolved {
		out = append(out, s.posting)
	}

	r.logger.Info("retrieval complete",
		zap.Int("hits", len(hits)),
		zap.Int("resolved", len(out)),
		zap.Int("k", r.k),
	)

	return out, nil
}
