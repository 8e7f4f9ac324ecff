package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// ErrMissingScope is returned when a read or write omits a required scope field.
var ErrMissingScope = errors.New("scope requires tenant_id and development_id")

// Scope identifies the tenant and development a read or write applies to.
// HouseTypeCode is optional; empty means the whole development.
type Scope struct {
	TenantID      uuid.UUID
	DevelopmentID uuid.UUID
	HouseTypeCode string
}

// Validate rejects a scope with missing required fields.
func (s Scope) Validate() error {
	if s.TenantID == uuid.Nil || s.DevelopmentID == uuid.Nil {
		return ErrMissingScope
	}
	return nil
}

// CacheKey returns a key that includes the full scope tuple, so cached
// lookups can never cross tenants or developments.
func (s Scope) CacheKey(query string) string {
	return s.TenantID.String() + "|" + s.DevelopmentID.String() + "|" + s.HouseTypeCode + "|" + query
}

// Document represents one uploaded file within a development
type Document struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	DevelopmentID uuid.UUID
	HouseTypeCode string // empty when the document applies to all house types
	Title         string
	SourceType    string
	Version       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Scope returns the document's scope tuple.
func (d *Document) Scope() Scope {
	return Scope{
		TenantID:      d.TenantID,
		DevelopmentID: d.DevelopmentID,
		HouseTypeCode: d.HouseTypeCode,
	}
}

// Chunk represents a scoped, embedded slice of one document's text.
// Scope fields are denormalized from the owning document so retrieval
// can filter without a join.
type Chunk struct {
	ID            uuid.UUID
	DocumentID    uuid.UUID
	TenantID      uuid.UUID
	DevelopmentID uuid.UUID
	HouseTypeCode string
	ChunkIndex    int
	Content       string
	Embedding     *pgvector.Vector
	CreatedAt     time.Time
}

// NewChunk builds a chunk for a document, copying the document's scope.
// It fails when the document's own scope is incomplete.
func NewChunk(doc *Document, index int, content string, embedding *pgvector.Vector) (*Chunk, error) {
	if err := doc.Scope().Validate(); err != nil {
		return nil, fmt.Errorf("chunk for document %s: %w", doc.ID, err)
	}
	return &Chunk{
		ID:            uuid.New(),
		DocumentID:    doc.ID,
		TenantID:      doc.TenantID,
		DevelopmentID: doc.DevelopmentID,
		HouseTypeCode: doc.HouseTypeCode,
		ChunkIndex:    index,
		Content:       content,
		Embedding:     embedding,
	}, nil
}

// ChunkMatch pairs a chunk with its similarity to a query embedding.
// Similarity is 1 - cosine distance, in [0,1].
type ChunkMatch struct {
	Chunk      *Chunk
	Similarity float64
}

// GapEntry records one question the assistant could not answer from
// indexed documents. Write-once; grouping happens at read time.
type GapEntry struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	SchemeID     uuid.UUID // development_id of the asking scope
	UserQuestion string
	IntentType   string
	GapReason    string
	CreatedAt    time.Time
}

// GapGroup is one aggregated row of the developer-facing gap listing.
type GapGroup struct {
	UserQuestion string
	IntentType   string
	GapReason    string
	SchemeID     uuid.UUID
	Count        int
	LastAsked    time.Time
}

// GapQuery selects and bounds a grouped gap listing. At least one of
// SchemeID or TenantID must be set. Reasons limits which gap_reason
// values are visible.
type GapQuery struct {
	SchemeID uuid.UUID
	TenantID uuid.UUID
	Reasons  []string
	Limit    int
}

// Validate rejects a gap query with no scheme and no tenant.
func (q GapQuery) Validate() error {
	if q.SchemeID == uuid.Nil && q.TenantID == uuid.Nil {
		return errors.New("gap query requires schemeId or tenantId")
	}
	return nil
}
