package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhouse/property-assistant/internal/db"
)

func newScope() db.Scope {
	return db.Scope{TenantID: uuid.New(), DevelopmentID: uuid.New()}
}

func mustCreate(t *testing.T, store *Store, scope db.Scope, title string) *db.Document {
	t.Helper()
	doc, err := store.CreateDocument(context.Background(), &db.Document{
		TenantID:      scope.TenantID,
		DevelopmentID: scope.DevelopmentID,
		HouseTypeCode: scope.HouseTypeCode,
		Title:         title,
	})
	require.NoError(t, err)
	return doc
}

func chunkFor(t *testing.T, doc *db.Document, index int, content string, raw []float32) *db.Chunk {
	t.Helper()
	vec := pgvector.NewVector(raw)
	chunk, err := db.NewChunk(doc, index, content, &vec)
	require.NoError(t, err)
	return chunk
}

func TestDocumentLifecycle(t *testing.T) {
	store := NewStore()
	scope := newScope()

	doc := mustCreate(t, store, scope, "manual.txt")
	assert.Equal(t, 1, doc.Version)

	found, err := store.GetDocumentByTitle(context.Background(), scope, "manual.txt")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, doc.ID, found.ID)

	missing, err := store.GetDocumentByTitle(context.Background(), newScope(), "manual.txt")
	require.NoError(t, err)
	assert.Nil(t, missing, "title lookups never cross scope")

	version, err := store.BumpDocumentVersion(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	require.NoError(t, store.DeleteDocument(context.Background(), doc.ID))
	gone, err := store.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestReplaceChunksSwapsAtomically(t *testing.T) {
	store := NewStore()
	scope := newScope()
	doc := mustCreate(t, store, scope, "manual.txt")

	first := []*db.Chunk{
		chunkFor(t, doc, 0, "old content one", []float32{1, 0, 0}),
		chunkFor(t, doc, 1, "old content two", []float32{1, 0, 0}),
	}
	require.NoError(t, store.ReplaceChunks(context.Background(), doc.ID, first))

	second := []*db.Chunk{chunkFor(t, doc, 0, "new content", []float32{1, 0, 0})}
	require.NoError(t, store.ReplaceChunks(context.Background(), doc.ID, second))

	count, err := store.CountChunks(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	vec := pgvector.NewVector([]float32{1, 0, 0})
	matches, err := store.SearchChunks(context.Background(), scope, &vec, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "new content", matches[0].Chunk.Content)
}

func TestSearchChunksScopeAndHouseType(t *testing.T) {
	store := NewStore()
	scope := newScope()

	shared := mustCreate(t, store, scope, "shared.txt")
	require.NoError(t, store.ReplaceChunks(context.Background(), shared.ID,
		[]*db.Chunk{chunkFor(t, shared, 0, "shared", []float32{1, 0, 0})}))

	bd01Scope := scope
	bd01Scope.HouseTypeCode = "BD01"
	bd01 := mustCreate(t, store, bd01Scope, "bd01.txt")
	require.NoError(t, store.ReplaceChunks(context.Background(), bd01.ID,
		[]*db.Chunk{chunkFor(t, bd01, 0, "bd01 only", []float32{1, 0, 0})}))

	otherScope := newScope()
	other := mustCreate(t, store, otherScope, "other.txt")
	require.NoError(t, store.ReplaceChunks(context.Background(), other.ID,
		[]*db.Chunk{chunkFor(t, other, 0, "other development", []float32{1, 0, 0})}))

	vec := pgvector.NewVector([]float32{1, 0, 0})

	// Development-wide query sees everything in scope.
	matches, err := store.SearchChunks(context.Background(), scope, &vec, 10)
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	// House-typed query sees its own documents plus unscoped ones.
	bs02Scope := scope
	bs02Scope.HouseTypeCode = "BS02"
	matches, err = store.SearchChunks(context.Background(), bs02Scope, &vec, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "shared", matches[0].Chunk.Content)
}

func TestSearchChunksRanksBySimilarity(t *testing.T) {
	store := NewStore()
	scope := newScope()
	doc := mustCreate(t, store, scope, "doc.txt")

	require.NoError(t, store.ReplaceChunks(context.Background(), doc.ID, []*db.Chunk{
		chunkFor(t, doc, 0, "orthogonal", []float32{0, 1, 0}),
		chunkFor(t, doc, 1, "exact", []float32{1, 0, 0}),
		chunkFor(t, doc, 2, "diagonal", []float32{1, 1, 0}),
	}))

	vec := pgvector.NewVector([]float32{1, 0, 0})
	matches, err := store.SearchChunks(context.Background(), scope, &vec, 10)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "exact", matches[0].Chunk.Content)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-6)
	assert.Equal(t, "diagonal", matches[1].Chunk.Content)
	assert.Equal(t, "orthogonal", matches[2].Chunk.Content)
	assert.InDelta(t, 0.0, matches[2].Similarity, 1e-6)
}

func TestGroupedGapsAggregation(t *testing.T) {
	store := NewStore()
	tenantID := uuid.New()
	schemeID := uuid.New()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		require.NoError(t, store.InsertGap(context.Background(), &db.GapEntry{
			TenantID:     tenantID,
			SchemeID:     schemeID,
			UserQuestion: "when is bin day",
			IntentType:   "timing",
			GapReason:    "no_documents_found",
			CreatedAt:    base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, store.InsertGap(context.Background(), &db.GapEntry{
		TenantID:     tenantID,
		SchemeID:     schemeID,
		UserQuestion: "what is the u-value",
		IntentType:   "technical",
		GapReason:    "low_doc_confidence",
		CreatedAt:    base,
	}))

	groups, err := store.GroupedGaps(context.Background(), db.GapQuery{
		SchemeID: schemeID,
		Reasons:  []string{"no_documents_found", "low_doc_confidence"},
		Limit:    30,
	})
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, "when is bin day", groups[0].UserQuestion)
	assert.Equal(t, 4, groups[0].Count)
	assert.Equal(t, base.Add(3*time.Hour), groups[0].LastAsked)
	assert.Equal(t, 1, groups[1].Count)
}

func TestGroupedGapsLimitAndReasonFilter(t *testing.T) {
	store := NewStore()
	schemeID := uuid.New()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.InsertGap(context.Background(), &db.GapEntry{
			TenantID:     uuid.New(),
			SchemeID:     schemeID,
			UserQuestion: "question " + uuid.New().String(),
			GapReason:    "no_documents_found",
		}))
	}
	require.NoError(t, store.InsertGap(context.Background(), &db.GapEntry{
		TenantID:     uuid.New(),
		SchemeID:     schemeID,
		UserQuestion: "where is the pharmacy",
		GapReason:    "location_lookup_failed",
	}))

	groups, err := store.GroupedGaps(context.Background(), db.GapQuery{
		SchemeID: schemeID,
		Reasons:  []string{"no_documents_found"},
		Limit:    3,
	})
	require.NoError(t, err)
	assert.Len(t, groups, 3)
	for _, g := range groups {
		assert.Equal(t, "no_documents_found", g.GapReason)
	}
}

func TestGroupedGapsRequiresScope(t *testing.T) {
	store := NewStore()
	_, err := store.GroupedGaps(context.Background(), db.GapQuery{})
	assert.Error(t, err)
}
