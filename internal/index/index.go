// Package index provides the vector similarity index the retrieval stage
// queries. Implementations must tolerate concurrent upserts and queries;
// last-writer-wins on the posting key is acceptable.
package index

import (
	"context"

	"github.com/mkarpov-dev/jobsieve/internal/job"
)

// Hit is one similarity match returned by a query.
type Hit struct {
	Key   job.Key
	Score float32
}

// VectorIndex stores one vector per posting key. Upserting an existing key
// replaces its vector.
type VectorIndex interface {
	Upsert(ctx context.Context, key job.Key, vector []float32) error
	Query(ctx context.Context, vector []float32, k int) ([]Hit, error)
	Ping(ctx context.Context) error
}
