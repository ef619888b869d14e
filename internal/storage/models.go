package storage

// Entry pairs one chunk with its embedding vector inside a vector index.
// Provenance fields make citations reconstructible from search hits alone,
// including after a snapshot is restored.
type Entry struct {
	ChunkID      string    `json:"chunk_id"`
	DocumentID   string    `json:"document_id"`
	DocumentName string    `json:"document_name"`
	Page         int       `json:"page"`
	Start        int       `json:"start"`
	End          int       `json:"end"`
	Content      string    `json:"content"`
	Tokens       int       `json:"tokens"`
	Vector       []float32 `json:"vector"`
}

// Scored is a search hit: an index entry with its similarity score.
// Cosine scores fall in [-1, 1].
type Scored struct {
	Entry Entry
	Score float64
}

// CollectionName is the single Qdrant collection used by the qdrant backend.
const CollectionName = "statements"

// MetricCosine identifies the similarity metric recorded in snapshots.
const MetricCosine = "cosine"
