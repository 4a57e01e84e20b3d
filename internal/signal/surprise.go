package signal

import (
	"math"
	"sort"

	"github.com/dmarche/newsquant/internal/quant"
)

// surpriseStage folds per-outlet tone anomalies back to the group level. For
// each (group, source) pair it computes a 7-observation rolling z-score
// (minimum 3) of that source's own daily mean score, then averages the
// per-source z-scores across sources for each date. When publisher metadata
// was entirely absent every observation sits under the synthetic "unknown"
// source, so the stage still yields a degenerate value instead of failing.
func surpriseStage(p Params, f *groupFrame) {
	type acc struct {
		sum float64
		n   int
	}
	byDS := make(map[string]*acc)

	for _, daily := range f.bySource {
		dates := make([]string, 0, len(daily))
		for ds := range daily {
			dates = append(dates, ds)
		}
		sort.Strings(dates)

		s := make([]float64, len(dates))
		for i, ds := range dates {
			s[i] = daily[ds]
		}
		rmean := quant.RollingMean(s, surpriseWin, surpriseMin)
		rstd := quant.RollingStd(s, surpriseWin, surpriseMin)

		for i, ds := range dates {
			if math.IsNaN(rmean[i]) || math.IsNaN(rstd[i]) || rstd[i] == 0 {
				continue
			}
			z := (s[i] - rmean[i]) / rstd[i]
			a := byDS[ds]
			if a == nil {
				a = &acc{}
				byDS[ds] = a
			}
			a.sum += z
			a.n++
		}
	}

	for i := range f.rows {
		if a, ok := byDS[f.rows[i].ds]; ok && a.n > 0 {
			f.rows[i].surprise = a.sum / float64(a.n)
		}
	}
}
