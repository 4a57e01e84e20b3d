package quant

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPearsonPerfectCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	y := []float64{2, 4, 6, 8}
	assert.InDelta(t, 1.0, Pearson(x, y), 1e-12)

	inv := []float64{8, 6, 4, 2}
	assert.InDelta(t, -1.0, Pearson(x, inv), 1e-12)
}

func TestPearsonDegenerate(t *testing.T) {
	assert.True(t, math.IsNaN(Pearson([]float64{1}, []float64{2})))
	assert.True(t, math.IsNaN(Pearson([]float64{1, 1, 1}, []float64{1, 2, 3})))
	assert.True(t, math.IsNaN(Pearson([]float64{1, 2}, []float64{1, 2, 3})))
}

func TestPearsonSkipsNaNPairs(t *testing.T) {
	x := []float64{1, math.NaN(), 2, 3}
	y := []float64{2, 100, 4, 6}
	assert.InDelta(t, 1.0, Pearson(x, y), 1e-12)
}

func TestPercentileRanks(t *testing.T) {
	ranks := PercentileRanks([]float64{10, 30, 20})
	assert.InDelta(t, 1.0/3.0, ranks[0], 1e-12)
	assert.InDelta(t, 1.0, ranks[1], 1e-12)
	assert.InDelta(t, 2.0/3.0, ranks[2], 1e-12)
}

func TestPercentileRanksTiesShareAverage(t *testing.T) {
	ranks := PercentileRanks([]float64{5, 5, 1})
	// ranks 2 and 3 tie at value 5, averaging to 2.5/3
	assert.InDelta(t, 2.5/3.0, ranks[0], 1e-12)
	assert.InDelta(t, 2.5/3.0, ranks[1], 1e-12)
	assert.InDelta(t, 1.0/3.0, ranks[2], 1e-12)
}

func TestPercentileRanksKeepNaN(t *testing.T) {
	ranks := PercentileRanks([]float64{1, math.NaN(), 2})
	assert.False(t, math.IsNaN(ranks[0]))
	assert.True(t, math.IsNaN(ranks[1]))
	assert.InDelta(t, 1.0, ranks[2], 1e-12)
}

func TestCorrPValue(t *testing.T) {
	// r=0 gives p=1 regardless of n
	assert.InDelta(t, 1.0, CorrPValue(0, 100), 1e-9)

	// a strong correlation over many days is highly significant
	p := CorrPValue(0.8, 50)
	assert.Less(t, p, 1e-6)

	// weak correlation over few days is not
	p = CorrPValue(0.1, 10)
	assert.Greater(t, p, 0.5)
}

func TestCorrPValueUndefined(t *testing.T) {
	assert.True(t, math.IsNaN(CorrPValue(0.5, 3)))
	assert.True(t, math.IsNaN(CorrPValue(1.0, 50)))
	assert.True(t, math.IsNaN(CorrPValue(-1.0, 50)))
	assert.True(t, math.IsNaN(CorrPValue(math.NaN(), 50)))
}
