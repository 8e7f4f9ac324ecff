// Package memory provides an in-memory chunk and gap store with
// brute-force cosine similarity. It mirrors the behavior of the Postgres
// store and backs tests and the -memory local mode.
package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/openhouse/property-assistant/internal/db"
)

// Store holds documents, chunks and gap entries behind one RWMutex.
type Store struct {
	mu     sync.RWMutex
	docs   map[uuid.UUID]*db.Document
	chunks map[uuid.UUID][]*db.Chunk // keyed by document_id
	gaps   []*db.GapEntry
	now    func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		docs:   make(map[uuid.UUID]*db.Document),
		chunks: make(map[uuid.UUID][]*db.Chunk),
		now:    time.Now,
	}
}

// SetClock overrides the timestamp source. Useful for testing.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// CreateDocument inserts a new document record with version 1.
func (s *Store) CreateDocument(_ context.Context, d *db.Document) (*db.Document, error) {
	if err := d.Scope().Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := *d
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.Version = 1
	doc.CreatedAt = s.now()
	doc.UpdatedAt = doc.CreatedAt
	s.docs[doc.ID] = &doc
	return &doc, nil
}

// GetDocument retrieves a document by id. Returns nil when not found.
func (s *Store) GetDocument(_ context.Context, id uuid.UUID) (*db.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, nil
	}
	copied := *doc
	return &copied, nil
}

// GetDocumentByTitle retrieves a document by title within a scope.
func (s *Store) GetDocumentByTitle(_ context.Context, scope db.Scope, title string) (*db.Document, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.docs {
		if doc.TenantID == scope.TenantID && doc.DevelopmentID == scope.DevelopmentID && doc.Title == title {
			copied := *doc
			return &copied, nil
		}
	}
	return nil, nil
}

// BumpDocumentVersion increments the version counter on re-upload.
func (s *Store) BumpDocumentVersion(_ context.Context, id uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return 0, db.ErrMissingScope
	}
	doc.Version++
	doc.UpdatedAt = s.now()
	return doc.Version, nil
}

// ListDocuments retrieves all documents within a scope.
func (s *Store) ListDocuments(_ context.Context, scope db.Scope) ([]*db.Document, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []*db.Document
	for _, doc := range s.docs {
		if doc.TenantID == scope.TenantID && doc.DevelopmentID == scope.DevelopmentID {
			copied := *doc
			docs = append(docs, &copied)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].CreatedAt.After(docs[j].CreatedAt) })
	return docs, nil
}

// DeleteDocument deletes a document and its chunks.
func (s *Store) DeleteDocument(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs, id)
	delete(s.chunks, id)
	return nil
}

// ReplaceChunks swaps the chunk set for a document atomically under the
// write lock, matching the Postgres store's transactional replace.
func (s *Store) ReplaceChunks(_ context.Context, documentID uuid.UUID, chunks []*db.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	replacement := make([]*db.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		copied := *chunk
		if copied.CreatedAt.IsZero() {
			copied.CreatedAt = s.now()
		}
		replacement = append(replacement, &copied)
	}
	s.chunks[documentID] = replacement
	return nil
}

// CountChunks returns the number of chunks stored for a document.
func (s *Store) CountChunks(_ context.Context, documentID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks[documentID]), nil
}

// SearchChunks ranks in-scope chunks by cosine similarity to the query
// embedding. Out-of-scope rows are skipped before scoring.
func (s *Store) SearchChunks(_ context.Context, scope db.Scope, embedding *pgvector.Vector, limit int) ([]db.ChunkMatch, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := embedding.Slice()
	var matches []db.ChunkMatch
	for _, chunks := range s.chunks {
		for _, chunk := range chunks {
			if chunk.TenantID != scope.TenantID || chunk.DevelopmentID != scope.DevelopmentID {
				continue
			}
			if scope.HouseTypeCode != "" && chunk.HouseTypeCode != "" && chunk.HouseTypeCode != scope.HouseTypeCode {
				continue
			}
			if chunk.Embedding == nil {
				continue
			}
			copied := *chunk
			matches = append(matches, db.ChunkMatch{
				Chunk:      &copied,
				Similarity: cosineSimilarity(query, chunk.Embedding.Slice()),
			})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		if matches[i].Chunk.ChunkIndex != matches[j].Chunk.ChunkIndex {
			return matches[i].Chunk.ChunkIndex < matches[j].Chunk.ChunkIndex
		}
		return strings.Compare(matches[i].Chunk.DocumentID.String(), matches[j].Chunk.DocumentID.String()) < 0
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// InsertGap appends one answer-gap record.
func (s *Store) InsertGap(_ context.Context, entry *db.GapEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *entry
	if copied.ID == uuid.Nil {
		copied.ID = uuid.New()
	}
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = s.now()
	}
	s.gaps = append(s.gaps, &copied)
	return nil
}

// GroupedGaps aggregates gap records the same way the SQL store does:
// grouped, counted, ordered by count descending, capped at q.Limit.
func (s *Store) GroupedGaps(_ context.Context, q db.GapQuery) ([]db.GapGroup, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	allowed := make(map[string]bool, len(q.Reasons))
	for _, r := range q.Reasons {
		allowed[r] = true
	}

	type key struct {
		question string
		intent   string
		reason   string
		scheme   uuid.UUID
	}
	groups := make(map[key]*db.GapGroup)
	for _, entry := range s.gaps {
		if !allowed[entry.GapReason] {
			continue
		}
		if q.SchemeID != uuid.Nil && entry.SchemeID != q.SchemeID {
			continue
		}
		if q.TenantID != uuid.Nil && entry.TenantID != q.TenantID {
			continue
		}
		k := key{entry.UserQuestion, entry.IntentType, entry.GapReason, entry.SchemeID}
		g, ok := groups[k]
		if !ok {
			g = &db.GapGroup{
				UserQuestion: entry.UserQuestion,
				IntentType:   entry.IntentType,
				GapReason:    entry.GapReason,
				SchemeID:     entry.SchemeID,
			}
			groups[k] = g
		}
		g.Count++
		if entry.CreatedAt.After(g.LastAsked) {
			g.LastAsked = entry.CreatedAt
		}
	}

	result := make([]db.GapGroup, 0, len(groups))
	for _, g := range groups {
		result = append(result, *g)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].LastAsked.After(result[j].LastAsked)
	})

	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
