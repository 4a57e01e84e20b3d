package quant

import (
	"math"
	"sort"
)

// Series functions operate on float64 slices where NaN marks a missing value.
// Rolling windows count only finite observations against minPeriods, matching
// the convention of observation-count windows (absent days are absent rows,
// never zero-filled).

// Winsorize clips values to the [lo, hi] quantile range of the series itself.
// Quantiles are computed over finite values only. A series with no finite
// values is returned unchanged.
func Winsorize(s []float64, lo, hi float64) []float64 {
	out := make([]float64, len(s))
	copy(out, s)

	qlo, okLo := Quantile(s, lo)
	qhi, okHi := Quantile(s, hi)
	if !okLo || !okHi {
		return out
	}

	for i, v := range out {
		if math.IsNaN(v) {
			continue
		}
		if v < qlo {
			out[i] = qlo
		} else if v > qhi {
			out[i] = qhi
		}
	}
	return out
}

// MedianFilter applies a centered rolling median with the given odd window.
// Window edges shrink (min periods 1), so the result has the same length and
// no NaN is introduced at the boundaries. window <= 1 returns a copy.
func MedianFilter(s []float64, window int) []float64 {
	out := make([]float64, len(s))
	copy(out, s)
	if window <= 1 || len(s) == 0 {
		return out
	}

	half := window / 2
	buf := make([]float64, 0, window)
	for i := range s {
		start := i - half
		if start < 0 {
			start = 0
		}
		end := i + half + 1
		if end > len(s) {
			end = len(s)
		}
		buf = buf[:0]
		for _, v := range s[start:end] {
			if !math.IsNaN(v) {
				buf = append(buf, v)
			}
		}
		if len(buf) == 0 {
			continue
		}
		out[i] = median(buf)
	}
	return out
}

// median mutates its argument by sorting.
func median(v []float64) float64 {
	sort.Float64s(v)
	n := len(v)
	if n%2 == 1 {
		return v[n/2]
	}
	return (v[n/2-1] + v[n/2]) / 2
}

// RollingMean returns the trailing mean over window observations, NaN until
// minPeriods finite values have accumulated in the window.
func RollingMean(s []float64, window, minPeriods int) []float64 {
	return rollingApply(s, window, minPeriods, func(w []float64) float64 {
		sum := 0.0
		for _, v := range w {
			sum += v
		}
		return sum / float64(len(w))
	})
}

// RollingStd returns the trailing sample standard deviation (ddof=1) over
// window observations, NaN below minPeriods or when fewer than 2 values exist.
func RollingStd(s []float64, window, minPeriods int) []float64 {
	return rollingApply(s, window, minPeriods, func(w []float64) float64 {
		n := len(w)
		if n < 2 {
			return math.NaN()
		}
		mean := 0.0
		for _, v := range w {
			mean += v
		}
		mean /= float64(n)
		ss := 0.0
		for _, v := range w {
			d := v - mean
			ss += d * d
		}
		return math.Sqrt(ss / float64(n-1))
	})
}

// RollingSum returns the trailing sum over window observations, NaN below
// minPeriods.
func RollingSum(s []float64, window, minPeriods int) []float64 {
	return rollingApply(s, window, minPeriods, func(w []float64) float64 {
		sum := 0.0
		for _, v := range w {
			sum += v
		}
		return sum
	})
}

func rollingApply(s []float64, window, minPeriods int, f func([]float64) float64) []float64 {
	out := make([]float64, len(s))
	buf := make([]float64, 0, window)
	for i := range s {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		buf = buf[:0]
		for _, v := range s[start : i+1] {
			if !math.IsNaN(v) {
				buf = append(buf, v)
			}
		}
		if len(buf) < minPeriods || len(buf) == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = f(buf)
	}
	return out
}

// EWMA returns the exponentially weighted moving average with the given span
// and no bias adjustment: alpha = 2/(span+1), y[t] = alpha*x[t] + (1-alpha)*y[t-1].
// NaN inputs carry the previous smoothed value forward.
func EWMA(s []float64, span int) []float64 {
	out := make([]float64, len(s))
	alpha := 2.0 / (float64(span) + 1.0)
	prev := math.NaN()
	for i, v := range s {
		if math.IsNaN(v) {
			out[i] = prev
			continue
		}
		if math.IsNaN(prev) {
			prev = v
		} else {
			prev = alpha*v + (1-alpha)*prev
		}
		out[i] = prev
	}
	return out
}

// Quantile computes the q-th quantile (0..1) of the finite values using linear
// interpolation between order statistics. The second return is false when the
// series holds no finite values.
func Quantile(s []float64, q float64) (float64, bool) {
	vals := make([]float64, 0, len(s))
	for _, v := range s {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return math.NaN(), false
	}
	sort.Float64s(vals)
	if q <= 0 {
		return vals[0], true
	}
	if q >= 1 {
		return vals[len(vals)-1], true
	}
	pos := q * float64(len(vals)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return vals[lo], true
	}
	frac := pos - float64(lo)
	return vals[lo]*(1-frac) + vals[hi]*frac, true
}
