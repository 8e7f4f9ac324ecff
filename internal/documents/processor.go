package documents

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/openhouse/property-assistant/internal/db"
	"github.com/openhouse/property-assistant/internal/embeddings"
	"github.com/openhouse/property-assistant/internal/logger"
)

// ChunkStore is the storage surface the pipeline writes to. ReplaceChunks
// must swap a document's chunk set atomically.
type ChunkStore interface {
	CreateDocument(ctx context.Context, d *db.Document) (*db.Document, error)
	GetDocumentByTitle(ctx context.Context, scope db.Scope, title string) (*db.Document, error)
	BumpDocumentVersion(ctx context.Context, id uuid.UUID) (int, error)
	ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []*db.Chunk) error
}

// IngestResult reports what one ingestion call did
type IngestResult struct {
	DocumentID      uuid.UUID `json:"document_id"`
	Version         int       `json:"version"`
	ChunksAttempted int       `json:"chunks_attempted"`
	ChunksWritten   int       `json:"chunks_written"`
	ChunksFailed    int       `json:"chunks_failed"`
}

// Pipeline turns a raw document into scoped, embedded chunks. Re-running
// it on an unchanged document produces the same final chunk set: the old
// version's rows are replaced, never merged.
type Pipeline struct {
	store       ChunkStore
	embedder    embeddings.Embedder
	chunkSize   int
	overlapPct  int
	minChunkLen int
}

// NewPipeline creates a new ingestion pipeline
func NewPipeline(store ChunkStore, embedder embeddings.Embedder, chunkSize, overlapPct, minChunkLen int) *Pipeline {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if minChunkLen <= 0 {
		minChunkLen = 20
	}
	return &Pipeline{
		store:       store,
		embedder:    embedder,
		chunkSize:   chunkSize,
		overlapPct:  overlapPct,
		minChunkLen: minChunkLen,
	}
}

// Ingest chunks and embeds the extracted text of one document version and
// replaces any prior chunk set. An embedding failure for one chunk skips
// that chunk and continues; a wholesale embedding failure leaves the
// previous version's chunks in place rather than serving zero chunks.
func (p *Pipeline) Ingest(ctx context.Context, doc *db.Document, text string) (*IngestResult, error) {
	if err := doc.Scope().Validate(); err != nil {
		return nil, err
	}

	result := &IngestResult{DocumentID: doc.ID, Version: doc.Version}

	pieces := p.splitText(text)
	result.ChunksAttempted = len(pieces)

	chunkData := make([]*db.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		embedding, err := p.embedder.Embed(ctx, piece)
		if err != nil {
			logger.Warn("embedding failed for chunk %d of document %s: %v", i, doc.ID, err)
			result.ChunksFailed++
			continue
		}

		chunk, err := db.NewChunk(doc, i, piece, embedding)
		if err != nil {
			return nil, err
		}
		chunkData = append(chunkData, chunk)
	}

	if result.ChunksAttempted > 0 && len(chunkData) == 0 {
		return result, fmt.Errorf("all %d chunks failed to embed for document %s", result.ChunksAttempted, doc.ID)
	}

	if err := p.store.ReplaceChunks(ctx, doc.ID, chunkData); err != nil {
		return result, fmt.Errorf("failed to replace chunks: %w", err)
	}
	result.ChunksWritten = len(chunkData)

	logger.Info("ingested document %s v%d: %d/%d chunks written",
		doc.ID, doc.Version, result.ChunksWritten, result.ChunksAttempted)
	return result, nil
}

// IngestFile extracts text from a file, creates or re-versions the
// document record for its title within the scope, and ingests it.
func (p *Pipeline) IngestFile(ctx context.Context, scope db.Scope, filePath string) (*IngestResult, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	text, err := ExtractText(filePath)
	if err != nil {
		return nil, err
	}

	title := filepath.Base(filePath)
	doc, err := p.store.GetDocumentByTitle(ctx, scope, title)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		houseType := scope.HouseTypeCode
		if houseType == "" {
			houseType = ExtractHouseTypeCode(title)
		}
		doc, err = p.store.CreateDocument(ctx, &db.Document{
			TenantID:      scope.TenantID,
			DevelopmentID: scope.DevelopmentID,
			HouseTypeCode: houseType,
			Title:         title,
			SourceType:    ClassifyDocumentType(title),
		})
		if err != nil {
			return nil, err
		}
	} else {
		doc.Version, err = p.store.BumpDocumentVersion(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
	}

	return p.Ingest(ctx, doc, text)
}

// splitText splits text into fixed-size word windows with percent overlap.
// Window boundaries ignore sentence structure; chunks shorter than the
// minimum non-trivial length are dropped.
func (p *Pipeline) splitText(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	currentChunk := []string{}
	currentSize := 0

	flush := func() {
		joined := strings.Join(currentChunk, " ")
		if len(joined) >= p.minChunkLen {
			chunks = append(chunks, joined)
		}
	}

	for _, word := range words {
		wordSize := len(word) + 1 // +1 for space
		if currentSize+wordSize > p.chunkSize && len(currentChunk) > 0 {
			flush()

			// Keep overlap words for next chunk
			overlapWords := len(currentChunk) * p.overlapPct / 100
			if overlapWords > 0 && overlapWords < len(currentChunk) {
				currentChunk = currentChunk[len(currentChunk)-overlapWords:]
				currentSize = len(strings.Join(currentChunk, " "))
			} else {
				currentChunk = []string{}
				currentSize = 0
			}
		}
		currentChunk = append(currentChunk, word)
		currentSize += wordSize
	}

	if len(currentChunk) > 0 {
		flush()
	}

	return chunks
}
