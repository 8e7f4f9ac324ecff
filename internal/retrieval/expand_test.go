package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandQueryAddsRelatedTerms(t *testing.T) {
	expanded := ExpandQuery("what is my BER?")

	assert.True(t, strings.HasPrefix(expanded, "what is my BER? (related: "))
	assert.Contains(t, expanded, "building energy rating")
}

func TestExpandQueryUnknownTermsUnchanged(t *testing.T) {
	query := "is there a community centre planned?"
	assert.Equal(t, query, ExpandQuery(query))
}

func TestExpandQueryCapsExpansions(t *testing.T) {
	expanded := ExpandQuery("heating and hot water and insulation")

	related := strings.TrimSuffix(strings.SplitN(expanded, "(related: ", 2)[1], ")")
	assert.LessOrEqual(t, len(strings.Split(related, ", ")), maxExpansions)
}

func TestExpandQuerySkipsTermsAlreadyPresent(t *testing.T) {
	expanded := ExpandQuery("does the heating use a heat pump?")

	assert.NotContains(t, strings.ToLower(strings.TrimPrefix(expanded, "does the heating use a heat pump?")), "heat pump,")
}

func TestExpandQueryDeterministic(t *testing.T) {
	first := ExpandQuery("bins and parking")
	second := ExpandQuery("bins and parking")
	assert.Equal(t, first, second)
}

func TestExpandQueryMatchesWholeWordsOnly(t *testing.T) {
	// "carbine" must not trigger the "bin" expansion.
	query := "where can I store a carbine case?"
	assert.Equal(t, query, ExpandQuery(query))
}
