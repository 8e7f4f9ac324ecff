package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectIntents(t *testing.T) {
	tests := []struct {
		question string
		want     []string
	}{
		{"Where is the nearest bus stop?", []string{"location"}},
		{"How do I turn on the immersion?", []string{"operational"}},
		{"Who do I call about a leak?", []string{"contact"}},
		{"What brand is the heat pump?", []string{"technical"}},
		{"How much is the service charge?", []string{"financial"}},
		{"When are the bins collected?", []string{"timing"}},
		{"Tell me a story.", nil},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectIntents(tt.question))
		})
	}
}

func TestDetectIntentsMultiple(t *testing.T) {
	intents := DetectIntents("How far is the school and how much does the creche cost?")
	assert.Contains(t, intents, "location")
	assert.Contains(t, intents, "financial")
}

func TestPrimaryIntent(t *testing.T) {
	assert.Equal(t, "location", PrimaryIntent("Where is the playground?"))
	assert.Equal(t, "unknown", PrimaryIntent("Tell me a story."))
}
