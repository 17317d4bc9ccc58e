// Package match holds the retrieval stages of the pipeline: embedding and
// indexing postings, vector-similarity retrieval, and cross-encoder style
// reranking.
package match

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/mkarpov-dev/jobsieve/internal/ai"
	"github.com/mkarpov-dev/jobsieve/internal/index"
	"github.com/mkarpov-dev/jobsieve/internal/job"
)

const (
	defaultMaxAttempts     = 3
	defaultInitialInterval = 200 * time.Millisecond
	defaultMaxInterval     = 2 * time.Second
)

// retry runs op with bounded exponential backoff and jitter, honoring ctx.
func retry(ctx context.Context, attempts int, op func() error) error {
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = defaultInitialInterval
	bo.MaxInterval = defaultMaxInterval

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(attempts-1)), ctx))
}

// Indexer embeds a posting and upserts its vector into the similarity index.
// Re-indexing a posting replaces its vector.
type Indexer struct {
	embedder ai.EmbeddingModel
	idx      index.VectorIndex
	logger   *zap.Logger
	attempts int
}

func NewIndexer(embedder ai.EmbeddingModel, idx index.VectorIndex, attempts int, logger *zap.Logger) *Indexer {
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	return &Indexer{embedder: embedder, idx: idx, logger: logger, attempts: attempts}
}

// Index embeds the posting text and stores the vector. Embedding failures
// are retried with backoff; on exhaustion the error is returned so the
// caller can report the posting as a partial failure for this run.
func (ix *Indexer) Index(ctx context.Context, p *job.Posting) error {
	var vector []float32
	err := retry(ctx, ix.attempts, func() error {
		var embedErr error
		vector, embedErr = ix.embedder.Embed(ctx, p.EmbeddingText())
		return embedErr
	})
	if err != nil {
		return fmt.Errorf("embed posting %s: %w", p.Key, err)
	}

	if err := ix.idx.Upsert(ctx, p.Key, vector); err != nil {
		return fmt.Errorf("index posting %s: %w", p.Key, err)
	}

	ix.logger.Debug("posting indexed", zap.String("posting", p.Key.String()))
	return nil
}
