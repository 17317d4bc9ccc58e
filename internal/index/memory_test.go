package index

import (
	"context"
	"sync"
	"testing"

	"github.com/mkarpov-dev/jobsieve/internal/job"
)

func key(id string) job.Key {
	return job.Key{ExternalID: id, Source: "test"}
}

func TestMemoryQueryOrdersByCosine(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Upsert(ctx, key("exact"), []float32{1, 0, 0}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := m.Upsert(ctx, key("close"), []float32{0.9, 0.1, 0}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := m.Upsert(ctx, key("far"), []float32{0, 0, 1}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	hits, err := m.Query(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("len = %d, want 2", len(hits))
	}
	if hits[0].Key != key("exact") || hits[1].Key != key("close") {
		t.Fatalf("unexpected order: %v", hits)
	}
	if hits[0].Score < hits[1].Score {
		t.Fatalf("scores not descending: %v", hits)
	}
}

func TestMemoryUpsertReplaces(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Upsert(ctx, key("a"), []float32{1, 0}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := m.Upsert(ctx, key("a"), []float32{0, 1}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if m.Len() != 1 {
		t.Fatalf("len = %d, want 1", m.Len())
	}

	hits, err := m.Query(ctx, []float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if hits[0].Score < 0.99 {
		t.Fatalf("vector not replaced, score = %v", hits[0].Score)
	}
}

func TestMemoryConcurrentUpsertAndQuery(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = m.Upsert(ctx, job.Key{ExternalID: string(rune('a' + i)), Source: "test"}, []float32{float32(i), 1})
		}(i)
		go func() {
			defer wg.Done()
			_, _ = m.Query(ctx, []float32{1, 1}, 5)
		}()
	}
	wg.Wait()

	if m.Len() != 16 {
		t.Fatalf("len = %d, want 16", m.Len())
	}
}
