package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const rerankPrompt = `You are a relevance model. Given a search query and a numbered list of job postings, rate how relevant each posting is to the query on a 0.0-1.0 scale.

Query:
%s

Postings:
%s

Return ONLY a JSON array of %d numbers, one per posting, in the same order. Example: [0.92, 0.15, 0.78]`

// Reranker scores (query, posting) pairs with a single batched completion
// call, implementing ai.RerankModel.
type Reranker struct {
	model  *Model
	logger *zap.Logger
}

// Reranker returns a rerank model backed by the given generation model.
func (c *Client) Reranker(model string, logger *zap.Logger) *Reranker {
	if strings.TrimSpace(model) == "" {
		model = defaultTriageModel
	}
	return &Reranker{model: c.Model(model, 0), logger: logger}
}

// Scores rates every doc against the query. The returned slice aligns with
// docs by index.
func (r *Reranker) Scores(ctx context.Context, query string, docs []string) ([]float64, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	var list strings.Builder
	for i, doc := range docs {
		fmt.Fprintf(&list, "%d. %s\n\n", i+1, doc)
	}

	prompt := fmt.Sprintf(rerankPrompt, query, list.String(), len(docs))
	raw, err := r.model.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	cleaned := extractJSON(raw)
	var scores []float64
	if err := json.Unmarshal([]byte(cleaned), &scores); err != nil {
		return nil, fmt.Errorf("parse rerank response: %w", err)
	}
	if len(scores) != len(docs) {
		return nil, fmt.Errorf("rerank returned %d scores for %d docs", len(scores), len(docs))
	}

	r.logger.Debug("rerank scores computed",
		zap.Int("docs", len(docs)),
		zap.String("model", r.model.Name()),
	)

	return scores, nil
}

// extractJSON strips markdown code fences the model may wrap around JSON.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
