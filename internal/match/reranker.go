package match

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/mkarpov-dev/jobsieve/internal/ai"
	"github.com/mkarpov-dev/jobsieve/internal/job"
)

// DefaultRerankN is the default candidate count after reranking.
const DefaultRerankN = 10

// Reranker reorders retrieved candidates with a pairwise relevance model and
// truncates to the top N. It never introduces postings absent from its input.
type Reranker struct {
	model  ai.RerankModel
	topN   int
	logger *zap.Logger
}

// NewReranker builds a reranker. A nil model is allowed and degrades to
// passthrough truncation.
func NewReranker(model ai.RerankModel, topN int, logger *zap.Logger) *Reranker {
	if topN <= 0 {
		topN = DefaultRerankN
	}
	return &Reranker{model: model, topN: topN, logger: logger}
}

// Rerank reorders in by model relevance and truncates to top N. When the
// model is unavailable or misbehaves the retriever's order is kept and
// truncated instead; that is an explicit fallback, not an error.
func (r *Reranker) Rerank(ctx context.Context, query string, in []*job.Posting) []*job.Posting {
	if len(in) == 0 {
		return in
	}

	if r.model == nil {
		r.logger.Info("rerank model not configured; keeping retrieval order")
		return truncate(in, r.topN)
	}

	docs := make([]string, len(in))
	for i, p := range in {
		docs[i] = p.EmbeddingText()
	}

	scores, err := r.model.Scores(ctx, query, docs)
	if err != nil || len(scores) != len(in) {
		r.logger.Warn("rerank failed; falling back to retrieval order", zap.Error(err))
		return truncate(in, r.topN)
	}

	order := make([]int, len(in))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	out := make([]*job.Posting, 0, len(in))
	for _, idx := range order {
		out = append(out, in[idx])
	}

	r.logger.Info("rerank complete",
		zap.Int("initial", len(in)),
		zap.Int("kept", min(r.topN, len(out))),
	)

	return truncate(out, r.topN)
}

func truncate(in []*job.Posting, n int) []*job.Posting {
	if len(in) > n {
		return in[:n]
	}
	return in
}
