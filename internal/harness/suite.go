// Package harness runs a fixed battery of canned questions through the
// retriever and gate for one scheme, and scores the outcome.
package harness

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
)

//go:embed testsuite.json
var suiteData []byte

// Rubric defines how one test case is scored.
type Rubric struct {
	// ExpectAnswerable is the gate outcome the case requires.
	ExpectAnswerable bool `json:"expect_answerable"`
	// MinTopSimilarity, when > 0, requires the top chunk to score at
	// least this much on answerable cases.
	MinTopSimilarity float64 `json:"min_top_similarity,omitempty"`
	// ExpectedContent, when set, requires some returned chunk to
	// contain this substring (case-insensitive).
	ExpectedContent string `json:"expected_content,omitempty"`
}

// TestCase is one canned question fixture.
type TestCase struct {
	ID             string `json:"id"`
	Category       string `json:"category"`
	Question       string `json:"question"`
	ExpectedUnitID string `json:"expected_unit_id,omitempty"`
	Rubric         Rubric `json:"rubric"`
	Notes          string `json:"notes,omitempty"`
}

type suiteFile struct {
	Categories map[string]string `json:"categories"`
	Tests      []TestCase        `json:"tests"`
}

var (
	suiteOnce   sync.Once
	suiteParsed suiteFile
	suiteErr    error
)

func loadSuite() (suiteFile, error) {
	suiteOnce.Do(func() {
		suiteErr = json.Unmarshal(suiteData, &suiteParsed)
		if suiteErr != nil {
			suiteErr = fmt.Errorf("failed to parse embedded test suite: %w", suiteErr)
		}
	})
	return suiteParsed, suiteErr
}

// Suite returns the embedded test case catalog.
func Suite() ([]TestCase, error) {
	parsed, err := loadSuite()
	if err != nil {
		return nil, err
	}
	out := make([]TestCase, len(parsed.Tests))
	copy(out, parsed.Tests)
	return out, nil
}

// Categories returns the category id -> description map.
func Categories() (map[string]string, error) {
	parsed, err := loadSuite()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(parsed.Categories))
	for k, v := range parsed.Categories {
		out[k] = v
	}
	return out, nil
}

// FindCase returns the catalog entry with the given id, or nil.
func FindCase(id string) (*TestCase, error) {
	cases, err := Suite()
	if err != nil {
		return nil, err
	}
	for i := range cases {
		if cases[i].ID == id {
			return &cases[i], nil
		}
	}
	return nil, nil
}
