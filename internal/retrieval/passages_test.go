package retrieval

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhouse/property-assistant/internal/db"
)

func namedMatch(content string, similarity float64) db.ChunkMatch {
	return db.ChunkMatch{
		Chunk:      &db.Chunk{ID: uuid.New(), DocumentID: uuid.New(), Content: content},
		Similarity: similarity,
	}
}

func TestPassagesPreserveOrderAndFields(t *testing.T) {
	matches := []db.ChunkMatch{
		namedMatch("first excerpt", 0.9),
		namedMatch("second excerpt", 0.7),
	}

	passages := Passages(matches)
	require.Len(t, passages, 2)
	assert.Equal(t, "first excerpt", passages[0].Content)
	assert.InDelta(t, 0.9, passages[0].Similarity, 1e-9)
	assert.Equal(t, matches[0].Chunk.DocumentID, passages[0].DocumentID)
	assert.Equal(t, "second excerpt", passages[1].Content)
}

func TestFormatContextNumbersExcerpts(t *testing.T) {
	matches := []db.ChunkMatch{
		namedMatch("the heat pump manual text", 0.9),
		namedMatch("the warranty booklet text", 0.7),
	}

	context := FormatContext(matches, 0)
	assert.Contains(t, context, "## Relevant Document Excerpts:")
	assert.Contains(t, context, "### Excerpt 1:")
	assert.Contains(t, context, "the heat pump manual text")
	assert.Contains(t, context, "### Excerpt 2:")
	assert.Contains(t, context, "the warranty booklet text")
	assert.Less(t, strings.Index(context, "heat pump"), strings.Index(context, "warranty"),
		"excerpts keep retrieval order")
}

func TestFormatContextTruncates(t *testing.T) {
	matches := []db.ChunkMatch{namedMatch(strings.Repeat("x", 500), 0.9)}

	context := FormatContext(matches, 120)
	assert.LessOrEqual(t, len(context), 120+len("\n\n[Context truncated...]"))
	assert.True(t, strings.HasSuffix(context, "[Context truncated...]"))
}

func TestFormatContextEmpty(t *testing.T) {
	assert.Empty(t, FormatContext(nil, 0))
	assert.Empty(t, Passages(nil))
}
