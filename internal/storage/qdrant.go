package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantIndex implements Index on a Qdrant collection. It exists for server
// deployments where the index must survive the process; the in-memory
// backend remains the session default.
//
// Qdrant orders equal scores internally, so the insertion-order tie-break of
// MemoryIndex is not guaranteed here.
type QdrantIndex struct {
	client    *qdrant.Client
	dimension int
}

// NewQdrantIndex connects to Qdrant, verifies health with retry, and ensures
// the statements collection exists with the given vector dimensionality.
func NewQdrantIndex(host string, port int, dimension int) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	idx := &QdrantIndex{client: client, dimension: dimension}

	ctx := context.Background()
	if err := idx.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}
	if err := idx.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return idx, nil
}

// healthCheckWithRetry performs health checks with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (q *QdrantIndex) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		return q.Health(ctx)
	}

	return backoff.Retry(operation, backoff.WithContext(exponentialBackoff, ctx))
}

// Health performs a single health check against Qdrant.
func (q *QdrantIndex) Health(ctx context.Context) error {
	result, err := q.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// ensureCollection creates the statements collection and its payload index
// if missing. Idempotent.
func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	collections, err := q.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range collections {
		if name == CollectionName {
			return nil
		}
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: CollectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// document_id filtering backs Remove; without the index it degrades to a
	// full scan.
	_, err = q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: CollectionName,
		FieldName:      "document_id",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to create document_id index: %w", err)
	}

	return nil
}

// Add upserts entries in batches of 100 with retry. Dimension validation
// happens up front so a bad batch leaves the collection untouched.
func (q *QdrantIndex) Add(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for i, e := range entries {
		if len(e.Vector) != q.dimension {
			return fmt.Errorf("%w: entry %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(e.Vector), q.dimension)
		}
	}

	batchSize := 100
	for i := 0; i < len(entries); i += batchSize {
		end := min(i+batchSize, len(entries))
		batch := entries[i:end]

		points := make([]*qdrant.PointStruct, len(batch))
		for j, e := range batch {
			points[j] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(e.ChunkID),
				Vectors: qdrant.NewVectors(e.Vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"document_id":   e.DocumentID,
					"document_name": e.DocumentName,
					"page":          e.Page,
					"start":         e.Start,
					"end":           e.End,
					"content":       e.Content,
					"tokens":        e.Tokens,
				}),
			}
		}

		if err := q.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// upsertWithRetry performs an upsert with exponential backoff.
func (q *QdrantIndex) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: CollectionName,
			Points:         points,
		})
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(exponentialBackoff, ctx))
}

// Remove deletes every point of the given document.
func (q *QdrantIndex) Remove(ctx context.Context, documentID string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: CollectionName,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("document_id", documentID),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to remove document %s: %w", documentID, err)
	}
	return nil
}

// Search performs vector similarity search, highest score first.
func (q *QdrantIndex) Search(ctx context.Context, vector []float32, k int) ([]Scored, error) {
	if len(vector) != q.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), q.dimension)
	}

	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: CollectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	scored := make([]Scored, 0, len(results))
	for _, result := range results {
		payload := result.Payload
		scored = append(scored, Scored{
			Entry: Entry{
				ChunkID:      result.Id.GetUuid(),
				DocumentID:   payload["document_id"].GetStringValue(),
				DocumentName: payload["document_name"].GetStringValue(),
				Page:         int(payload["page"].GetIntegerValue()),
				Start:        int(payload["start"].GetIntegerValue()),
				End:          int(payload["end"].GetIntegerValue()),
				Content:      payload["content"].GetStringValue(),
				Tokens:       int(payload["tokens"].GetIntegerValue()),
			},
			Score: float64(result.Score),
		})
	}

	return scored, nil
}

// Count reports the collection's point count.
func (q *QdrantIndex) Count(ctx context.Context) (int, error) {
	collection, err := q.client.GetCollectionInfo(ctx, CollectionName)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection: %w", err)
	}
	return int(collection.GetPointsCount()), nil
}

// Close closes the Qdrant client connection.
func (q *QdrantIndex) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}
