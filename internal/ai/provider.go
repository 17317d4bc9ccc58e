// Package ai defines the provider boundaries the pipeline depends on.
// Implementations are replaceable without touching pipeline logic; the
// gemini subpackage provides the production implementations.
package ai

import "context"

// EmbeddingModel turns text into a dense vector.
type EmbeddingModel interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CompletionModel answers a prompt with raw model text. The pipeline uses two
// distinct roles behind this interface: a cheap triage model and a stronger
// judge model.
type CompletionModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// RerankModel scores (query, document) pairs jointly. Scores align with the
// docs slice by index; higher means more relevant.
type RerankModel interface {
	Scores(ctx context.Context, query string, docs []string) ([]float64, error)
}
