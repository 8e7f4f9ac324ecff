package retrieval

import (
	"github.com/openhouse/property-assistant/internal/db"
	"github.com/openhouse/property-assistant/internal/gaps"
)

// GapRecorder is the best-effort sink the gate hands gap entries to.
// Implementations must never propagate failures back to the gate.
type GapRecorder interface {
	Record(entry *db.GapEntry)
}

// Decision is the gate's verdict on one retrieval result
type Decision struct {
	Answerable bool
	GapReason  string // empty when answerable
	// Chunks are attached for answerable decisions and, on
	// low_doc_confidence, for an optional best-effort fallback answer.
	Chunks        []db.ChunkMatch
	TopSimilarity float64
}

// Gate decides whether an answer can be attempted from a retrieval
// result, and records document-related gaps for developer triage.
type Gate struct {
	confidenceThreshold float64
	recorder            GapRecorder
}

// NewGate creates a gate. The confidence threshold is the "good enough
// to answer" cutoff, higher than and independent of the retrieval
// cutoff. The recorder may be nil to disable gap logging.
func NewGate(confidenceThreshold float64, recorder GapRecorder) *Gate {
	if confidenceThreshold <= 0 {
		confidenceThreshold = 0.55
	}
	return &Gate{
		confidenceThreshold: confidenceThreshold,
		recorder:            recorder,
	}
}

// Evaluate applies the decision policy in order: retrieval error, empty
// result, low confidence, answerable. Document-related gaps are recorded
// as a side effect; recording never alters the decision.
func (g *Gate) Evaluate(scope db.Scope, question string, result *Result, retrievalErr error) Decision {
	decision := g.decide(result, retrievalErr)

	if decision.GapReason != "" && gaps.IsDocumentRelated(decision.GapReason) && g.recorder != nil {
		g.recorder.Record(&db.GapEntry{
			TenantID:     scope.TenantID,
			SchemeID:     scope.DevelopmentID,
			UserQuestion: question,
			IntentType:   PrimaryIntent(question),
			GapReason:    decision.GapReason,
		})
	}

	return decision
}

func (g *Gate) decide(result *Result, retrievalErr error) Decision {
	if retrievalErr != nil {
		return Decision{GapReason: gaps.ReasonValidationFailed}
	}
	if result == nil || len(result.Matches) == 0 {
		return Decision{GapReason: gaps.ReasonNoDocumentsFound}
	}

	top := result.TopSimilarity()
	if top < g.confidenceThreshold {
		return Decision{
			GapReason:     gaps.ReasonLowDocConfidence,
			Chunks:        result.Matches,
			TopSimilarity: top,
		}
	}

	return Decision{
		Answerable:    true,
		Chunks:        result.Matches,
		TopSimilarity: top,
	}
}
