package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tc.com/price-oracle/pkg/sources"
)

func sumOf(weights map[string]float64) float64 {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	return total
}

func TestNormalizeWeights_ExplicitWeightsKeepShares(t *testing.T) {
	observations := []sources.Price{obs("a", 100), obs("b", 200)}

	normalized := NormalizeWeights(observations, map[string]float64{"a": 3, "b": 1})

	assert.InDelta(t, 0.75, normalized["a"], 1e-9)
	assert.InDelta(t, 0.25, normalized["b"], 1e-9)
}

func TestNormalizeWeights_UnweightedSplitRemainder(t *testing.T) {
	observations := []sources.Price{obs("a", 100), obs("b", 200), obs("c", 300)}

	normalized := NormalizeWeights(observations, map[string]float64{"a": 0.5})

	assert.InDelta(t, 0.5, normalized["a"], 1e-9)
	assert.InDelta(t, 0.25, normalized["b"], 1e-9)
	assert.InDelta(t, 0.25, normalized["c"], 1e-9)
	assert.InDelta(t, 1.0, sumOf(normalized), 1e-9)
}

func TestNormalizeWeights_ExplicitExceedsOne(t *testing.T) {
	observations := []sources.Price{obs("a", 100), obs("b", 200)}

	// Explicit weights already sum past 1; the unweighted source gets the
	// mean explicit weight before renormalization.
	normalized := NormalizeWeights(observations, map[string]float64{"a": 2})

	assert.InDelta(t, 0.5, normalized["a"], 1e-9)
	assert.InDelta(t, 0.5, normalized["b"], 1e-9)
}

func TestNormalizeWeights_NoWeights(t *testing.T) {
	observations := []sources.Price{obs("a", 100), obs("b", 200), obs("c", 300), obs("d", 400)}

	normalized := NormalizeWeights(observations, nil)

	require.Len(t, normalized, 4)
	for name, w := range normalized {
		assert.InDelta(t, 0.25, w, 1e-9, name)
	}
}

func TestNormalizeWeights_SumsToOne(t *testing.T) {
	observations := []sources.Price{obs("a", 1), obs("b", 2), obs("c", 3)}

	cases := []map[string]float64{
		nil,
		{"a": 1, "b": 1, "c": 1},
		{"a": 0.1},
		{"a": 5, "b": 3},
		{"a": 0.2, "b": 0.3, "c": 0.5},
	}

	for _, weights := range cases {
		normalized := NormalizeWeights(observations, weights)
		assert.InDelta(t, 1.0, sumOf(normalized), 1e-9, "weights %v", weights)
	}
}

func TestNormalizeWeights_Empty(t *testing.T) {
	assert.Nil(t, NormalizeWeights(nil, map[string]float64{"a": 1}))
}
