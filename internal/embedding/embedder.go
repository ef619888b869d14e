package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go/v3"
)

const (
	// Model is the OpenAI model used for generating embeddings.
	Model = "text-embedding-3-small"

	// Dimension is the vector dimension for text-embedding-3-small.
	Dimension = 1536

	// DefaultBatchSize balances requests-per-minute vs tokens-per-minute
	// rate limits.
	DefaultBatchSize = 500
)

// Service converts text into fixed-dimension vectors. The indexing pipeline
// and chat orchestrator depend on this interface so tests can inject
// deterministic fakes.
type Service interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension is the vector length every result has.
	Dimension() int
}

// Embedder generates embeddings through OpenAI. It batches requests and
// retries transient failures with exponential backoff; invalid-input
// failures are not retried.
type Embedder struct {
	client    *Client
	batchSize int
}

// NewEmbedder creates an Embedder with the given client and optional batch
// size. If batchSize is 0, DefaultBatchSize is used.
func NewEmbedder(client *Client, batchSize int) *Embedder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Embedder{
		client:    client,
		batchSize: batchSize,
	}
}

// Dimension implements Service.
func (e *Embedder) Dimension() int { return Dimension }

// Embed generates embeddings for the given texts, batch by batch.
// On failure it returns ErrUnavailable (wrapped) and no vectors.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var all [][]float32

	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))
		vectors, err := e.embedBatchWithRetry(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w: %v", i, end, ErrUnavailable, err)
		}
		all = append(all, vectors...)
	}

	return all, nil
}

// EmbedConcurrent embeds texts with up to parallelism batches in flight.
// Results are reassembled in input order; the first batch error cancels the
// rest and is returned alone.
func (e *Embedder) EmbedConcurrent(ctx context.Context, texts []string, parallelism int) ([][]float32, error) {
	if parallelism <= 1 || len(texts) <= e.batchSize {
		return e.Embed(ctx, texts)
	}

	type batch struct {
		start, end int
	}
	var batches []batch
	for i := 0; i < len(texts); i += e.batchSize {
		batches = append(batches, batch{start: i, end: min(i+e.batchSize, len(texts))})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([][][]float32, len(batches))
	work := make(chan int)
	errs := make(chan error, parallelism)

	var wg sync.WaitGroup
	for w := 0; w < parallelism; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				b := batches[i]
				vectors, err := e.embedBatchWithRetry(ctx, texts[b.start:b.end])
				if err != nil {
					errs <- fmt.Errorf("batch %d-%d: %w: %v", b.start, b.end, ErrUnavailable, err)
					cancel()
					return
				}
				results[i] = vectors
			}
		}()
	}

	for i := range batches {
		select {
		case work <- i:
		case <-ctx.Done():
		}
	}
	close(work)
	wg.Wait()

	select {
	case err := <-errs:
		return nil, err
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	all := make([][]float32, 0, len(texts))
	for _, vectors := range results {
		all = append(all, vectors...)
	}
	return all, nil
}

// embedBatchWithRetry generates embeddings for a single batch.
// Rate limits and server errors retry with exponential backoff; other API
// errors are permanent and fail immediately.
func (e *Embedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		resp, err := e.client.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: Model,
		})
		if err != nil {
			if isTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		vectors = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			vectors[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// isTransient reports whether an embedding call failure is worth retrying:
// rate limiting, server-side errors, or plain network failures.
func isTransient(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	// Non-API errors are network-level; retry them.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// toFloat32 converts the API's float64 vectors to float32 for storage.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
