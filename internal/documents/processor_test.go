package documents

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhouse/property-assistant/internal/db"
	"github.com/openhouse/property-assistant/internal/db/memory"
)

type stubEmbedder struct {
	failOn string
}

func (e *stubEmbedder) Embed(_ context.Context, text string) (*pgvector.Vector, error) {
	if e.failOn != "" && strings.Contains(text, e.failOn) {
		return nil, errors.New("embedding backend unavailable")
	}
	vec := pgvector.NewVector([]float32{1, 0, 0})
	return &vec, nil
}

func (e *stubEmbedder) Dimensions() int { return 3 }

func testScope() db.Scope {
	return db.Scope{TenantID: uuid.New(), DevelopmentID: uuid.New()}
}

func TestSplitTextWindowsWithOverlap(t *testing.T) {
	p := &Pipeline{chunkSize: 12, overlapPct: 25, minChunkLen: 5}

	chunks := p.splitText("aa bb cc dd ee ff")
	require.Equal(t, []string{"aa bb cc dd", "dd ee ff"}, chunks)
}

func TestSplitTextDropsShortChunks(t *testing.T) {
	p := &Pipeline{chunkSize: 500, overlapPct: 10, minChunkLen: 20}

	assert.Empty(t, p.splitText("tiny"))
	assert.Empty(t, p.splitText(""))
	assert.Empty(t, p.splitText("   \n\t  "))
}

func TestSplitTextNoOverlap(t *testing.T) {
	p := &Pipeline{chunkSize: 12, overlapPct: 0, minChunkLen: 2}

	chunks := p.splitText("aa bb cc dd ee ff")
	require.Equal(t, []string{"aa bb cc dd", "ee ff"}, chunks)
}

func TestIngestSkipsFailedChunksAndKeepsGoing(t *testing.T) {
	store := memory.NewStore()
	pipeline := NewPipeline(store, &stubEmbedder{failOn: "FAILWORD"}, 8, 0, 2)

	doc, err := store.CreateDocument(context.Background(), &db.Document{
		TenantID:      uuid.New(),
		DevelopmentID: uuid.New(),
		Title:         "guide.txt",
	})
	require.NoError(t, err)

	result, err := pipeline.Ingest(context.Background(), doc, "alpha beta FAILWORD gamma")
	require.NoError(t, err)

	assert.Equal(t, 4, result.ChunksAttempted)
	assert.Equal(t, 1, result.ChunksFailed)
	assert.Equal(t, 3, result.ChunksWritten)

	count, err := store.CountChunks(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestIngestFailsWhenEveryChunkFails(t *testing.T) {
	store := memory.NewStore()
	pipeline := NewPipeline(store, &stubEmbedder{failOn: "word"}, 8, 0, 2)

	doc, err := store.CreateDocument(context.Background(), &db.Document{
		TenantID:      uuid.New(),
		DevelopmentID: uuid.New(),
		Title:         "guide.txt",
	})
	require.NoError(t, err)

	// Preload a prior version's chunks; a wholesale failure must not wipe them.
	prior, err := db.NewChunk(doc, 0, "previous version content", nil)
	require.NoError(t, err)
	require.NoError(t, store.ReplaceChunks(context.Background(), doc.ID, []*db.Chunk{prior}))

	_, err = pipeline.Ingest(context.Background(), doc, "word1 word2 word3")
	require.Error(t, err)

	count, err := store.CountChunks(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "previous chunks should survive a failed re-ingest")
}

func TestIngestRejectsIncompleteScope(t *testing.T) {
	pipeline := NewPipeline(memory.NewStore(), &stubEmbedder{}, 500, 10, 20)

	_, err := pipeline.Ingest(context.Background(), &db.Document{Title: "orphan.txt"}, "some text")
	assert.ErrorIs(t, err, db.ErrMissingScope)
}

func TestIngestFileCreatesThenReversions(t *testing.T) {
	store := memory.NewStore()
	pipeline := NewPipeline(store, &stubEmbedder{}, 500, 10, 20)
	scope := testScope()

	dir := t.TempDir()
	path := filepath.Join(dir, "homeowner_manual_BD01.txt")
	content := strings.Repeat("The heat pump heats the house and the hot water cylinder. ", 5)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	first, err := pipeline.IngestFile(context.Background(), scope, path)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)
	assert.Greater(t, first.ChunksWritten, 0)

	doc, err := store.GetDocumentByTitle(context.Background(), scope, "homeowner_manual_BD01.txt")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "BD01", doc.HouseTypeCode)
	assert.Equal(t, "homeowner_manual", doc.SourceType)

	second, err := pipeline.IngestFile(context.Background(), scope, path)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, second.DocumentID)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, first.ChunksWritten, second.ChunksWritten, "re-ingest of unchanged text replaces, never merges")

	count, err := store.CountChunks(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ChunksWritten, count)
}

func TestIngestFileScopeHouseTypeWins(t *testing.T) {
	store := memory.NewStore()
	pipeline := NewPipeline(store, &stubEmbedder{}, 500, 10, 20)

	scope := testScope()
	scope.HouseTypeCode = "BS02"

	dir := t.TempDir()
	path := filepath.Join(dir, "floor_plan_BD01.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("Living room four by five metres. ", 5)), 0644))

	_, err := pipeline.IngestFile(context.Background(), scope, path)
	require.NoError(t, err)

	doc, err := store.GetDocumentByTitle(context.Background(), scope, "floor_plan_BD01.txt")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "BS02", doc.HouseTypeCode)
}
