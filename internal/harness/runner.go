package harness

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openhouse/property-assistant/internal/db"
	"github.com/openhouse/property-assistant/internal/logger"
	"github.com/openhouse/property-assistant/internal/retrieval"
)

// DefaultConcurrency bounds in-flight test cases. The small fixed value
// is a deliberate throttle against embedding-API rate limits, not a
// performance knob.
const DefaultConcurrency = 2

// TestResult is one run of one test case against one scope.
type TestResult struct {
	TestID        string  `json:"test_id"`
	Category      string  `json:"category"`
	Question      string  `json:"question"`
	Passed        bool    `json:"passed"`
	Answerable    bool    `json:"answerable"`
	GapReason     string  `json:"gap_reason,omitempty"`
	TopSimilarity float64 `json:"top_similarity"`
	ChunksUsed    int     `json:"chunks_used"`
	LatencyMS     int64   `json:"latency_ms"`
	Notes         string  `json:"notes,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// CategoryScore aggregates results for one category.
type CategoryScore struct {
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	PassRate float64 `json:"pass_rate"`
}

// Scorecard aggregates one suite run for a scope.
type Scorecard struct {
	RunID      string                   `json:"run_id"`
	SchemeID   uuid.UUID                `json:"scheme_id"`
	RunAt      time.Time                `json:"run_at"`
	TotalTests int                      `json:"total_tests"`
	Passed     int                      `json:"passed"`
	Failed     int                      `json:"failed"`
	PassRate   float64                  `json:"pass_rate"`
	ByCategory map[string]CategoryScore `json:"by_category"`
	Results    []TestResult             `json:"results"`
}

// Options selects and bounds a suite run.
type Options struct {
	Categories  []string
	TestIDs     []string
	UnitID      string
	Concurrency int
}

// Runner drives the retriever and gate with the canned catalog.
type Runner struct {
	retriever *retrieval.Retriever
	gate      *retrieval.Gate
}

// NewRunner creates a runner over a retriever and gate.
func NewRunner(retriever *retrieval.Retriever, gate *retrieval.Gate) *Runner {
	return &Runner{retriever: retriever, gate: gate}
}

// RunSuite executes the selected catalog cases for a scope with bounded
// concurrency and returns the aggregated scorecard. A run executes to
// completion; there is no partial-cancel contract.
func (r *Runner) RunSuite(ctx context.Context, scope db.Scope, opts Options) (*Scorecard, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	cases, err := Suite()
	if err != nil {
		return nil, err
	}
	cases = filterCases(cases, opts)

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	logger.Info("test run starting: %d cases, concurrency %d", len(cases), concurrency)

	results := make([]TestResult, len(cases))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i := range cases {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = r.RunSingle(ctx, scope, cases[i], opts.UnitID)
		}(i)
	}
	wg.Wait()

	return buildScorecard(scope.DevelopmentID, results), nil
}

// RunSingle executes one test case against a scope. unitID, when set,
// narrows the scope to that unit's house type for the case.
func (r *Runner) RunSingle(ctx context.Context, scope db.Scope, tc TestCase, unitID string) TestResult {
	caseScope := scope
	if unitID != "" {
		caseScope.HouseTypeCode = unitID
	} else if tc.ExpectedUnitID != "" {
		caseScope.HouseTypeCode = tc.ExpectedUnitID
	}

	start := time.Now()
	result, err := r.retriever.Retrieve(ctx, caseScope, tc.Question, 0, -1)
	decision := r.gate.Evaluate(caseScope, tc.Question, result, err)
	latency := time.Since(start)

	tr := TestResult{
		TestID:        tc.ID,
		Category:      tc.Category,
		Question:      tc.Question,
		Answerable:    decision.Answerable,
		GapReason:     decision.GapReason,
		TopSimilarity: decision.TopSimilarity,
		ChunksUsed:    len(decision.Chunks),
		LatencyMS:     latency.Milliseconds(),
	}
	if err != nil {
		tr.Error = err.Error()
	}

	tr.Passed, tr.Notes = score(tc, decision)
	return tr
}

func score(tc TestCase, decision retrieval.Decision) (bool, string) {
	if tc.Rubric.ExpectAnswerable != decision.Answerable {
		if decision.Answerable {
			return false, "expected a gap but the gate answered"
		}
		return false, fmt.Sprintf("expected an answer but got gap %s", decision.GapReason)
	}

	if !decision.Answerable {
		return true, ""
	}

	if tc.Rubric.MinTopSimilarity > 0 && decision.TopSimilarity < tc.Rubric.MinTopSimilarity {
		return false, fmt.Sprintf("top similarity %.4f below required %.4f",
			decision.TopSimilarity, tc.Rubric.MinTopSimilarity)
	}

	if tc.Rubric.ExpectedContent != "" {
		found := false
		want := strings.ToLower(tc.Rubric.ExpectedContent)
		for _, match := range decision.Chunks {
			if strings.Contains(strings.ToLower(match.Chunk.Content), want) {
				found = true
				break
			}
		}
		if !found {
			return false, fmt.Sprintf("no returned chunk mentions %q", tc.Rubric.ExpectedContent)
		}
	}

	return true, ""
}

func filterCases(cases []TestCase, opts Options) []TestCase {
	if len(opts.Categories) == 0 && len(opts.TestIDs) == 0 {
		return cases
	}

	categories := make(map[string]bool, len(opts.Categories))
	for _, c := range opts.Categories {
		categories[c] = true
	}
	ids := make(map[string]bool, len(opts.TestIDs))
	for _, id := range opts.TestIDs {
		ids[id] = true
	}

	var filtered []TestCase
	for _, tc := range cases {
		if len(categories) > 0 && !categories[tc.Category] {
			continue
		}
		if len(ids) > 0 && !ids[tc.ID] {
			continue
		}
		filtered = append(filtered, tc)
	}
	return filtered
}

func buildScorecard(schemeID uuid.UUID, results []TestResult) *Scorecard {
	card := &Scorecard{
		RunID:      fmt.Sprintf("run_%d_%s", time.Now().UnixMilli(), uuid.New().String()[:8]),
		SchemeID:   schemeID,
		RunAt:      time.Now().UTC(),
		TotalTests: len(results),
		ByCategory: make(map[string]CategoryScore),
		Results:    results,
	}

	for _, r := range results {
		cat := card.ByCategory[r.Category]
		cat.Total++
		if r.Passed {
			cat.Passed++
			card.Passed++
		} else {
			card.Failed++
		}
		card.ByCategory[r.Category] = cat
	}
	for name, cat := range card.ByCategory {
		cat.PassRate = float64(cat.Passed) / float64(cat.Total) * 100
		card.ByCategory[name] = cat
	}
	if card.TotalTests > 0 {
		card.PassRate = float64(card.Passed) / float64(card.TotalTests) * 100
	}

	logger.Info("test run %s complete: %d/%d passed (%.1f%%)",
		card.RunID, card.Passed, card.TotalTests, card.PassRate)
	return card
}
