package retrieval

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/openhouse/property-assistant/internal/db"
)

// Passage is one ranked, scope-correct excerpt handed to the external
// answer generator. The core's responsibility ends here.
type Passage struct {
	DocumentID uuid.UUID `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Similarity float64   `json:"similarity"`
}

// Passages converts gate-approved matches into the ordered passage list
// for the answer boundary.
func Passages(matches []db.ChunkMatch) []Passage {
	passages := make([]Passage, 0, len(matches))
	for _, match := range matches {
		passages = append(passages, Passage{
			DocumentID: match.Chunk.DocumentID,
			ChunkIndex: match.Chunk.ChunkIndex,
			Content:    match.Chunk.Content,
			Similarity: match.Similarity,
		})
	}
	return passages
}

// FormatContext creates a formatted context string from ranked matches,
// truncated to maxChars for prompt budgets.
func FormatContext(matches []db.ChunkMatch, maxChars int) string {
	if len(matches) == 0 {
		return ""
	}
	if maxChars <= 0 {
		maxChars = 8000
	}

	var parts []string
	parts = append(parts, "## Relevant Document Excerpts:")
	for i, match := range matches {
		parts = append(parts, fmt.Sprintf("\n### Excerpt %d:", i+1))
		parts = append(parts, match.Chunk.Content)
		parts = append(parts, "")
	}

	context := strings.Join(parts, "\n")
	if len(context) > maxChars {
		context = context[:maxChars] + "\n\n[Context truncated...]"
	}
	return context
}
