package quant

import (
	"math"
	"sort"
)

// Pearson computes the Pearson correlation of two equal-length slices over
// pairs where both values are finite. Returns NaN with fewer than 2 valid
// pairs or when either side has zero variance.
func Pearson(x, y []float64) float64 {
	if len(x) != len(y) {
		return math.NaN()
	}
	var n float64
	var sx, sy float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		n++
		sx += x[i]
		sy += y[i]
	}
	if n < 2 {
		return math.NaN()
	}
	mx := sx / n
	my := sy / n
	var cov, vx, vy float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		dx := x[i] - mx
		dy := y[i] - my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(vx*vy)
}

// PercentileRanks maps each finite value to its average percentile rank in
// (0, 1]. Ties share the average of their ordinal ranks. NaN inputs stay NaN.
func PercentileRanks(s []float64) []float64 {
	type iv struct {
		idx int
		val float64
	}
	vals := make([]iv, 0, len(s))
	for i, v := range s {
		if !math.IsNaN(v) {
			vals = append(vals, iv{i, v})
		}
	}
	out := make([]float64, len(s))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(vals) == 0 {
		return out
	}
	sort.SliceStable(vals, func(a, b int) bool { return vals[a].val < vals[b].val })

	n := float64(len(vals))
	i := 0
	for i < len(vals) {
		j := i
		for j+1 < len(vals) && vals[j+1].val == vals[i].val {
			j++
		}
		// ranks are 1-based; ties get the mean rank of the run
		avgRank := float64(i+j+2) / 2.0
		for k := i; k <= j; k++ {
			out[vals[k].idx] = avgRank / n
		}
		i = j + 1
	}
	return out
}

// CorrPValue returns the two-sided p-value for a correlation r observed over
// n samples, using the Fisher transform with a normal approximation. Returns
// NaN when n < 4 or |r| >= 1.
func CorrPValue(r float64, n int) float64 {
	if math.IsNaN(r) || n < 4 || math.Abs(r) >= 1.0 {
		return math.NaN()
	}
	clamped := math.Max(math.Min(r, 0.999999), -0.999999)
	z := math.Atanh(clamped) * math.Sqrt(float64(n-3))
	return 2.0 * (1.0 - 0.5*(1.0+math.Erf(math.Abs(z)/math.Sqrt2)))
}
