package pdfs

// Chunk is a bounded segment of one document page, the unit of indexing and
// retrieval. Start and End are byte offsets into the page text, so identical
// input always reproduces byte-identical chunks.
type Chunk struct {
	DocumentID string
	Index      int // position within the document (0, 1, 2...)
	Page       int // 1-based page number, never spans pages
	Start      int
	End        int
	Text       string
	Tokens     int
}

// Chunker splits page texts into overlapping token-bounded chunks.
type Chunker struct {
	targetTokens  int
	overlapTokens int
}

// NewChunker creates a chunker with the given target chunk size and overlap,
// both in estimated tokens. Non-positive values fall back to 500/50; the
// overlap is always kept below the target so every chunk makes progress.
func NewChunker(targetTokens, overlapTokens int) *Chunker {
	if targetTokens <= 0 {
		targetTokens = 500
	}
	if overlapTokens < 0 || overlapTokens >= targetTokens {
		overlapTokens = 50
		if overlapTokens >= targetTokens {
			overlapTokens = targetTokens / 10
		}
	}
	return &Chunker{
		targetTokens:  targetTokens,
		overlapTokens: overlapTokens,
	}
}

// ChunkPages splits every readable page of a document into chunks.
// Unreadable pages are skipped without failing the document. The page is a
// hard split boundary: no chunk ever spans two pages.
func (c *Chunker) ChunkPages(documentID string, pages []Page) []Chunk {
	var chunks []Chunk
	for _, page := range pages {
		if page.Unreadable {
			continue
		}
		chunks = c.chunkPage(documentID, page, chunks)
	}
	return chunks
}

// chunkPage appends the chunks of a single page. Each chunk stays within the
// target token count except when a single indivisible word exceeds it, in
// which case that word is emitted alone and oversized rather than truncated.
// Consecutive chunks share a trailing overlap region for context continuity.
func (c *Chunker) chunkPage(documentID string, page Page, chunks []Chunk) []Chunk {
	words := scanWords(page.Text)
	if len(words) == 0 {
		return chunks
	}

	i := 0
	for i < len(words) {
		total := 0
		j := i
		for j < len(words) && total+words[j].tokens <= c.targetTokens {
			total += words[j].tokens
			j++
		}
		if j == i {
			// Single word larger than the whole budget: emit oversized.
			total = words[i].tokens
			j = i + 1
		}

		chunks = append(chunks, Chunk{
			DocumentID: documentID,
			Index:      len(chunks),
			Page:       page.Number,
			Start:      words[i].start,
			End:        words[j-1].end,
			Text:       page.Text[words[i].start:words[j-1].end],
			Tokens:     total,
		})

		if j >= len(words) {
			break
		}

		// Walk back from the cut point until the overlap budget is covered,
		// always keeping forward progress of at least one word.
		next := j
		covered := 0
		for next > i+1 && covered < c.overlapTokens {
			next--
			covered += words[next].tokens
		}
		i = next
	}

	return chunks
}
