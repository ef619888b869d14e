// Package indexer runs the document ingestion pipeline: extract, chunk,
// embed, add to the vector index.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bull/portfolio-chat/internal/embedding"
	"github.com/bull/portfolio-chat/internal/pdfs"
	"github.com/bull/portfolio-chat/internal/session"
	"github.com/bull/portfolio-chat/internal/storage"
)

// DefaultParallelism bounds concurrent embedding batches per document.
const DefaultParallelism = 4

// concurrentEmbedder is implemented by embedding.Embedder; fakes may only
// implement the plain Service.
type concurrentEmbedder interface {
	EmbedConcurrent(ctx context.Context, texts []string, parallelism int) ([][]float32, error)
}

// IndexResult reports what indexing one document did.
type IndexResult struct {
	DocumentID      string
	DocumentName    string
	Pages           int
	UnreadablePages int
	Chunks          int
	Skipped         bool // duplicate content, nothing indexed
}

// Pipeline ingests documents into the vector index. Each document commits
// atomically: any failure or cancellation before the final add leaves the
// index and session untouched.
type Pipeline struct {
	embedder    embedding.Service
	index       storage.Index
	chunker     *pdfs.Chunker
	session     *session.Session
	parallelism int
	logger      *slog.Logger

	// extract is pdfs.ExtractPages; tests swap it to feed pages directly.
	extract func(data []byte) (*pdfs.ExtractResult, error)
}

func NewPipeline(embedder embedding.Service, index storage.Index, chunker *pdfs.Chunker,
	sess *session.Session, parallelism int, logger *slog.Logger) *Pipeline {
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		embedder:    embedder,
		index:       index,
		chunker:     chunker,
		session:     sess,
		parallelism: parallelism,
		logger:      logger,
		extract:     pdfs.ExtractPages,
	}
}

// IndexDocument ingests one PDF. Unreadable pages are skipped and counted;
// a document already indexed (same content hash) is skipped entirely.
func (p *Pipeline) IndexDocument(ctx context.Context, filename string, data []byte) (*IndexResult, error) {
	sum := sha256.Sum256(data)
	sha := hex.EncodeToString(sum[:])

	if existing, ok := p.session.DocumentBySHA(sha); ok {
		p.logger.Info("skipping duplicate document",
			"filename", filename,
			"existing", existing.Name)
		return &IndexResult{
			DocumentID:   existing.ID,
			DocumentName: existing.Name,
			Skipped:      true,
		}, nil
	}

	extracted, err := p.extract(data)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filename, err)
	}

	documentID := uuid.New().String()
	chunks := p.chunker.ChunkPages(documentID, extracted.Pages)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("extract %s: %w: no extractable text on any page",
			filename, pdfs.ErrUnreadableDocument)
	}

	p.logger.Info("indexing document",
		"filename", filename,
		"pages", len(extracted.Pages),
		"unreadable_pages", extracted.UnreadablePages,
		"chunks", len(chunks))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := p.embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", filename, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make([]storage.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = storage.Entry{
			ChunkID:      chunkID(documentID, c.Index),
			DocumentID:   documentID,
			DocumentName: filename,
			Page:         c.Page,
			Start:        c.Start,
			End:          c.End,
			Content:      c.Text,
			Tokens:       c.Tokens,
			Vector:       vectors[i],
		}
	}

	if err := p.index.Add(ctx, entries); err != nil {
		return nil, fmt.Errorf("add %s: %w", filename, err)
	}

	p.session.AddDocument(&session.Document{
		ID:              documentID,
		Name:            filename,
		SHA256:          sha,
		Pages:           len(extracted.Pages),
		UnreadablePages: extracted.UnreadablePages,
		Chunks:          len(chunks),
		IndexedAt:       time.Now(),
	})

	return &IndexResult{
		DocumentID:      documentID,
		DocumentName:    filename,
		Pages:           len(extracted.Pages),
		UnreadablePages: extracted.UnreadablePages,
		Chunks:          len(chunks),
	}, nil
}

// RemoveDocument unindexes a document and forgets its content hash so the
// same file can be re-uploaded.
func (p *Pipeline) RemoveDocument(ctx context.Context, documentID string) error {
	if err := p.index.Remove(ctx, documentID); err != nil {
		return fmt.Errorf("remove %s: %w", documentID, err)
	}
	if doc, ok := p.session.RemoveDocument(documentID); ok {
		p.logger.Info("removed document", "filename", doc.Name, "chunks", doc.Chunks)
		return nil
	}
	return fmt.Errorf("remove %s: unknown document", documentID)
}

func (p *Pipeline) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if ce, ok := p.embedder.(concurrentEmbedder); ok {
		return ce.EmbedConcurrent(ctx, texts, p.parallelism)
	}
	return p.embedder.Embed(ctx, texts)
}

// chunkID derives a stable UUID per chunk so re-indexing the same document
// id upserts rather than duplicates.
func chunkID(documentID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s/%d", documentID, index))).String()
}
