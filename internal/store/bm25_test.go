package store

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/RandomsUsernames/sgrep/internal/chunk"
)

func TestTokenizeWhitespace_LowercasesAndKeepsPunctuationAttached(t *testing.T) {
	toks := tokenizeWhitespace("Foo::bar BAZ")
	assert.Equal(t, []string{"foo::bar", "baz"}, toks)
}

func TestComputeIDF_MatchesReferenceFormula(t *testing.T) {
	chunks := map[string]*chunk.Chunk{
		"c1": {ID: "c1", Content: "foo bar"},
		"c2": {ID: "c2", Content: "bar baz"},
		"c3": {ID: "c3", Content: "baz qux"},
	}
	idf := computeIDF(chunks)

	// "bar" appears in 2 of 3 docs: ln((3-2+0.5)/(2+0.5)+1)
	want := math.Log((3.0-2.0+0.5)/(2.0+0.5) + 1)
	assert.InDelta(t, want, idf["bar"], 1e-9)
}

// Scenario S5: content "foo bar foo", query "foo", idf("foo")=1.0,
// avg_len=12, k1=1.2, b=0.75.
func TestBM25Score_ScenarioS5(t *testing.T) {
	content := "foo bar foo"
	idf := map[string]float64{"foo": 1.0}
	score := BM25Score(content, []string{"foo"}, idf, 12, 1.2, 0.75)

	// tf(foo)=2; docLen is len("foo bar foo") = 11 bytes.
	docLen := 11.0
	avgLen := 12.0
	k1, b := 1.2, 0.75
	f := 2.0
	want := 1.0 * (f * (k1 + 1)) / (f + k1*(1-b+b*(docLen/avgLen)))

	assert.InDelta(t, want, score, 1e-9)
}

func TestBM25Score_MissingQueryTermContributesZero(t *testing.T) {
	score := BM25Score("foo bar", []string{"absent"}, map[string]float64{}, 10, 1.2, 0.75)
	assert.Equal(t, 0.0, score)
}

// Invariant 7 (ordering, partial): BM25 score must be monotonically
// non-decreasing in term frequency for a fixed idf/avg_len.
func TestBM25Score_MonotonicInTermFrequency(t *testing.T) {
	idf := map[string]float64{"foo": 1.0}
	low := BM25Score("foo bar", []string{"foo"}, idf, 10, 1.2, 0.75)
	high := BM25Score("foo foo foo bar", []string{"foo"}, idf, 10, 1.2, 0.75)
	assert.Greater(t, high, low)
}

func TestSigmoid_BoundedBetweenZeroAndOne(t *testing.T) {
	assert.InDelta(t, 0.5, Sigmoid(0), 1e-9)
	assert.Greater(t, Sigmoid(10), 0.99)
	assert.Less(t, Sigmoid(-10), 0.01)
}
