package signal

import (
	"math"

	"github.com/dmarche/newsquant/internal/quant"
)

const (
	ewmaSpan      = 20
	zscoreWindow  = 30
	zscoreMinObs  = 5
	cumsumWindow  = 30
	surpriseWin   = 7
	surpriseMin   = 3
	weightEpsilon = 1e-9
)

// rollingStage computes ewma_20, zscore_30 and cum30 over the denoised
// mean_score series. Missing trading days are simply absent rows; windows are
// observation counts, never calendar spans. A zero rolling std leaves
// zscore_30 as NaN rather than dividing by zero.
func rollingStage(p Params, f *groupFrame) {
	s := f.meanSeries()

	ewma := quant.EWMA(s, ewmaSpan)
	rmean := quant.RollingMean(s, zscoreWindow, zscoreMinObs)
	rstd := quant.RollingStd(s, zscoreWindow, zscoreMinObs)
	csum := quant.RollingSum(s, cumsumWindow, 1)

	for i := range f.rows {
		f.rows[i].ewma20 = ewma[i]
		f.rows[i].cum30 = csum[i]
		if math.IsNaN(rmean[i]) || math.IsNaN(rstd[i]) || rstd[i] == 0 {
			f.rows[i].zscore30 = math.NaN()
			continue
		}
		f.rows[i].zscore30 = (s[i] - rmean[i]) / rstd[i]
	}
}
