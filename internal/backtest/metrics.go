package backtest

import (
	"math"
	"sort"

	"github.com/dmarche/newsquant/internal/quant"
)

// minPairsPerDay is the smallest cross-section a trading day needs before its
// correlations are considered at all.
const minPairsPerDay = 3

// Summary is the horizon-level aggregate of the daily cross-sectional
// metrics. Metric fields are NaN when no qualifying day produced a value.
type Summary struct {
	Horizon int
	IC      float64
	ICPVal  float64
	RIC     float64
	RICPVal float64
	HitRate float64
	NDays   int
	NPairs  int
}

// pair is one (score, forward return) observation on one day.
type pair struct {
	score float64
	ret   float64
}

// ComputeSummary joins the signal panel with the forward returns of one
// horizon and averages the daily cross-sectional IC, RankIC and hit rate over
// all days carrying at least minPairsPerDay joined observations. P-values for
// the mean IC/RankIC use the Fisher transform with n equal to the number of
// contributing days.
func ComputeSummary(signals []SignalDay, fwd map[ReturnKey]float64, horizon int) Summary {
	byDay := make(map[string][]pair)
	for _, s := range signals {
		ret, ok := fwd[ReturnKey{Ticker: s.Ticker, DS: s.DS}]
		if !ok {
			continue
		}
		byDay[s.DS] = append(byDay[s.DS], pair{score: s.MeanScore, ret: ret})
	}

	days := make([]string, 0, len(byDay))
	for ds := range byDay {
		days = append(days, ds)
	}
	sort.Strings(days)

	var ics, rics, hits []float64
	nPairs := 0
	nDays := 0
	for _, ds := range days {
		pairs := byDay[ds]
		if len(pairs) < minPairsPerDay {
			continue
		}
		nDays++
		nPairs += len(pairs)

		scores := make([]float64, len(pairs))
		rets := make([]float64, len(pairs))
		hit := 0
		for i, p := range pairs {
			scores[i] = p.score
			rets[i] = p.ret
			if p.score*p.ret > 0 {
				hit++
			}
		}
		ics = append(ics, quant.Pearson(scores, rets))
		rics = append(rics, quant.Pearson(quant.PercentileRanks(scores), quant.PercentileRanks(rets)))
		hits = append(hits, float64(hit)/float64(len(pairs)))
	}

	meanIC, nIC := finiteMean(ics)
	meanRIC, nRIC := finiteMean(rics)
	meanHit, _ := finiteMean(hits)

	return Summary{
		Horizon: horizon,
		IC:      meanIC,
		ICPVal:  quant.CorrPValue(meanIC, nIC),
		RIC:     meanRIC,
		RICPVal: quant.CorrPValue(meanRIC, nRIC),
		HitRate: meanHit,
		NDays:   nDays,
		NPairs:  nPairs,
	}
}

// finiteMean averages the finite entries of s. Degenerate days (zero variance
// cross-sections) produce NaN correlations and are excluded from the mean.
func finiteMean(s []float64) (float64, int) {
	sum := 0.0
	n := 0
	for _, v := range s {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN(), 0
	}
	return sum / float64(n), n
}
