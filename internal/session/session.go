// Package session holds the per-conversation state: indexed documents,
// conversation turns and confirmed holdings. Components receive a *Session
// explicitly; nothing here is a process-wide global.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bull/portfolio-chat/internal/holdings"
)

// Document describes one indexed statement. The page texts themselves live
// in the vector index entries; the session keeps the upload metadata.
type Document struct {
	ID              string
	Name            string
	SHA256          string
	Pages           int
	UnreadablePages int
	Chunks          int
	IndexedAt       time.Time
}

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one conversation entry. Turns are append-only and never mutated
// after creation. Citations lists the chunk ids the answer was grounded in.
type Turn struct {
	Role      Role
	Text      string
	Citations []string
	CreatedAt time.Time
}

// Session is the explicit state object for one working session. It is
// created on session start and torn down with Close; no state survives it
// unless the caller snapshots the index separately.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	documents map[string]*Document
	hashes    map[string]string // sha256 -> document id
	turns     []Turn
	holdings  []holdings.Holding
}

// New creates an empty session.
func New() *Session {
	return &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		documents: make(map[string]*Document),
		hashes:    make(map[string]string),
	}
}

// AddDocument records an indexed document and its content hash.
func (s *Session) AddDocument(doc *Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = doc
	if doc.SHA256 != "" {
		s.hashes[doc.SHA256] = doc.ID
	}
}

// RemoveDocument forgets a document and its hash so the same file can be
// re-uploaded later. Returns false when the id is unknown.
func (s *Session) RemoveDocument(id string) (*Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, false
	}
	delete(s.documents, id)
	delete(s.hashes, doc.SHA256)
	return doc, true
}

// DocumentBySHA reports whether a document with this content hash is
// already indexed (duplicate-upload detection).
func (s *Session) DocumentBySHA(sha string) (*Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.hashes[sha]
	if !ok {
		return nil, false
	}
	return s.documents[id], true
}

// Documents lists indexed documents ordered by indexing time.
func (s *Session) Documents() []*Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := make([]*Document, 0, len(s.documents))
	for _, d := range s.documents {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].IndexedAt.Before(docs[j].IndexedAt)
	})
	return docs
}

// AppendTurn appends a conversation turn.
func (s *Session) AppendTurn(turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	s.turns = append(s.turns, turn)
}

// Turns returns a copy of the conversation so far, oldest first.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// ConfirmHoldings merges user-confirmed holdings into the canonical set.
// A confirmed holding replaces an earlier one for the same ticker, which is
// how explicit user corrections are applied.
func (s *Session) ConfirmHoldings(confirmed []holdings.Holding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range confirmed {
		replaced := false
		for i, existing := range s.holdings {
			if existing.Ticker == h.Ticker {
				s.holdings[i] = h
				replaced = true
				break
			}
		}
		if !replaced {
			s.holdings = append(s.holdings, h)
		}
	}
}

// Holdings returns a copy of the confirmed holdings.
func (s *Session) Holdings() []holdings.Holding {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]holdings.Holding, len(s.holdings))
	copy(out, s.holdings)
	return out
}

// Close tears the session down. The session must not be used afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = nil
	s.hashes = nil
	s.turns = nil
	s.holdings = nil
}
