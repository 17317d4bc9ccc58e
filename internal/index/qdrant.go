package index

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/mkarpov-dev/jobsieve/internal/job"
)

// Qdrant is a VectorIndex backed by a Qdrant collection with cosine distance.
// Point ids are derived deterministically from the posting key, so upserting
// the same posting replaces its vector.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	vectorSize uint64
}

// NewQdrant connects to a Qdrant instance. urlStr carries host, gRPC port,
// and TLS scheme.
func NewQdrant(urlStr, apiKey, collection string, vectorSize uint64) (*Qdrant, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant url: %w", err)
	}

	port := 6334
	if p := parsed.Port(); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   parsed.Hostname(),
		Port:   port,
		APIKey: apiKey,
		UseTLS: parsed.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	return &Qdrant{client: client, collection: collection, vectorSize: vectorSize}, nil
}

// EnsureCollection creates the collection if it does not exist yet.
func (q *Qdrant) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

func pointID(key job.Key) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key.String())).String()
}

func (q *Qdrant) Upsert(ctx context.Context, key job.Key, vector []float32) error {
	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(pointID(key)),
		Vectors: qdrant.NewVectors(vector...),
		Payload: qdrant.NewValueMap(map[string]any{
			"external_id": key.ExternalID,
			"source":      key.Source,
		}),
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("upsert point: %w", err)
	}
	return nil
}

func (q *Qdrant) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	hits := make([]Hit, 0, len(points))
	for _, point := range points {
		var key job.Key
		if v, ok := point.Payload["external_id"]; ok {
			if s, ok := v.GetKind().(*qdrant.Value_StringValue); ok {
				key.ExternalID = s.StringValue
			}
		}
		if v, ok := point.Payload["source"]; ok {
			if s, ok := v.GetKind().(*qdrant.Value_StringValue); ok {
				key.Source = s.StringValue
			}
		}
		if key.ExternalID == "" {
			continue
		}
		hits = append(hits, Hit{Key: key, Score: point.Score})
	}
	return hits, nil
}

func (q *Qdrant) Ping(ctx context.Context) error {
	if _, err := q.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}
	return nil
}
