package indexer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/portfolio-chat/internal/pdfs"
	"github.com/bull/portfolio-chat/internal/session"
	"github.com/bull/portfolio-chat/internal/storage"
)

// fakeEmbedder produces small deterministic vectors, or fails on demand.
type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return 3 }

func statementPages() *pdfs.ExtractResult {
	return &pdfs.ExtractResult{
		Pages: []pdfs.Page{
			{Number: 1, Text: strings.TrimSpace(strings.Repeat("holdings detail line ", 40))},
			{Number: 2, Unreadable: true, Reason: "no extractable text"},
			{Number: 3, Text: "closing balance 12,345.67"},
		},
		UnreadablePages: 1,
	}
}

func newTestPipeline(embedder *fakeEmbedder, index storage.Index, sess *session.Session) *Pipeline {
	p := NewPipeline(embedder, index, pdfs.NewChunker(50, 5), sess, 1, nil)
	p.extract = func([]byte) (*pdfs.ExtractResult, error) {
		return statementPages(), nil
	}
	return p
}

func TestIndexDocument(t *testing.T) {
	index := storage.NewMemoryIndex()
	sess := session.New()
	p := newTestPipeline(&fakeEmbedder{}, index, sess)

	result, err := p.IndexDocument(context.Background(), "march.pdf", []byte("%PDF-a"))
	require.NoError(t, err)

	assert.False(t, result.Skipped)
	assert.Equal(t, 3, result.Pages)
	assert.Equal(t, 1, result.UnreadablePages)
	assert.Greater(t, result.Chunks, 1)

	count, err := index.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, result.Chunks, count)

	docs := sess.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "march.pdf", docs[0].Name)
	assert.Equal(t, result.Chunks, docs[0].Chunks)
}

func TestIndexDocument_DuplicateContentSkipped(t *testing.T) {
	index := storage.NewMemoryIndex()
	sess := session.New()
	embedder := &fakeEmbedder{}
	p := newTestPipeline(embedder, index, sess)

	first, err := p.IndexDocument(context.Background(), "march.pdf", []byte("%PDF-a"))
	require.NoError(t, err)

	// Same bytes under a different name: recognized by content hash.
	second, err := p.IndexDocument(context.Background(), "march-copy.pdf", []byte("%PDF-a"))
	require.NoError(t, err)

	assert.True(t, second.Skipped)
	assert.Equal(t, first.DocumentID, second.DocumentID)
	assert.Equal(t, 1, embedder.calls)
	require.Len(t, sess.Documents(), 1)
}

func TestIndexDocument_EmbedFailureLeavesIndexUntouched(t *testing.T) {
	index := storage.NewMemoryIndex()
	sess := session.New()
	p := newTestPipeline(&fakeEmbedder{err: errors.New("embedding down")}, index, sess)

	_, err := p.IndexDocument(context.Background(), "march.pdf", []byte("%PDF-a"))
	require.Error(t, err)

	count, err := index.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, sess.Documents())
}

func TestIndexDocument_CancellationRollsBack(t *testing.T) {
	index := storage.NewMemoryIndex()
	sess := session.New()
	p := newTestPipeline(&fakeEmbedder{}, index, sess)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.IndexDocument(ctx, "march.pdf", []byte("%PDF-a"))
	require.ErrorIs(t, err, context.Canceled)

	count, err := index.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, sess.Documents())
}

func TestIndexDocument_NoReadablePages(t *testing.T) {
	p := newTestPipeline(&fakeEmbedder{}, storage.NewMemoryIndex(), session.New())
	p.extract = func([]byte) (*pdfs.ExtractResult, error) {
		return &pdfs.ExtractResult{
			Pages:           []pdfs.Page{{Number: 1, Unreadable: true, Reason: "no extractable text"}},
			UnreadablePages: 1,
		}, nil
	}

	_, err := p.IndexDocument(context.Background(), "scan.pdf", []byte("%PDF-a"))
	require.ErrorIs(t, err, pdfs.ErrUnreadableDocument)
}

func TestRemoveDocument(t *testing.T) {
	index := storage.NewMemoryIndex()
	sess := session.New()
	p := newTestPipeline(&fakeEmbedder{}, index, sess)

	result, err := p.IndexDocument(context.Background(), "march.pdf", []byte("%PDF-a"))
	require.NoError(t, err)

	require.NoError(t, p.RemoveDocument(context.Background(), result.DocumentID))

	count, err := index.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, sess.Documents())

	// The hash is forgotten with the document, so re-upload re-indexes.
	again, err := p.IndexDocument(context.Background(), "march.pdf", []byte("%PDF-a"))
	require.NoError(t, err)
	assert.False(t, again.Skipped)
}

func TestRemoveDocument_Unknown(t *testing.T) {
	p := newTestPipeline(&fakeEmbedder{}, storage.NewMemoryIndex(), session.New())
	err := p.RemoveDocument(context.Background(), "no-such-id")
	assert.Error(t, err)
}
