package index

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/mkarpov-dev/jobsieve/internal/job"
)

// Memory is an in-process VectorIndex using a brute-force cosine scan. It is
// the default for single-process runs and tests; concurrent upserts and
// queries are safe, with last-writer-wins semantics per key.
type Memory struct {
	mu      sync.RWMutex
	vectors map[job.Key][]float32
}

func NewMemory() *Memory {
	return &Memory{vectors: make(map[job.Key][]float32)}
}

func (m *Memory) Upsert(_ context.Context, key job.Key, vector []float32) error {
	stored := make([]float32, len(vector))
	copy(stored, vector)

	m.mu.Lock()
	m.vectors[key] = stored
	m.mu.Unlock()
	return nil
}

func (m *Memory) Query(_ context.Context, vector []float32, k int) ([]Hit, error) {
	m.mu.RLock()
	hits := make([]Hit, 0, len(m.vectors))
	for key, stored := range m.vectors {
		hits = append(hits, Hit{Key: key, Score: cosine(vector, stored)})
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		// Deterministic order for equal scores; the retriever applies the
		// documented recency tie-break on top.
		return hits[i].Key.String() < hits[j].Key.String()
	})

	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// Len reports the number of indexed vectors.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
