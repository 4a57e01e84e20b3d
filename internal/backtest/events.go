package backtest

import (
	"sort"

	"github.com/dmarche/newsquant/internal/quant"
)

// EventResult is one side of an event study at one horizon.
type EventResult struct {
	Side    string // "long" or "short"
	Horizon int
	MeanRet float64
	NEvents int
}

// EventStudy measures forward returns when the signal is extreme. Per day the
// long side selects tickers whose score is at or above that day's
// pct-quantile and the short side those at or below the (1-pct)-quantile with
// return sign negated; each side's returns are averaged within the day, then
// across days. The quantile is recomputed from each day's own cross-section,
// so a thin day can select a degenerate single-element extreme group; that
// behavior is kept as-is. Sides with no events are omitted.
func EventStudy(signals []SignalDay, fwd map[ReturnKey]float64, horizon int, pct float64) []EventResult {
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

	var longDays, shortDays []float64
	longN, shortN := 0, 0
	for _, ds := range days {
		pairs := byDay[ds]
		scores := make([]float64, len(pairs))
		for i, p := range pairs {
			scores[i] = p.score
		}
		qHi, okHi := quant.Quantile(scores, pct)
		qLo, okLo := quant.Quantile(scores, 1-pct)
		if !okHi || !okLo {
			continue
		}

		longSum, longCnt := 0.0, 0
		shortSum, shortCnt := 0.0, 0
		for _, p := range pairs {
			if p.score >= qHi {
				longSum += p.ret
				longCnt++
			}
			if p.score <= qLo {
				shortSum += -p.ret
				shortCnt++
			}
		}
		if longCnt > 0 {
			longDays = append(longDays, longSum/float64(longCnt))
			longN += longCnt
		}
		if shortCnt > 0 {
			shortDays = append(shortDays, shortSum/float64(shortCnt))
			shortN += shortCnt
		}
	}

	var out []EventResult
	if longN > 0 {
		mean, _ := finiteMean(longDays)
		out = append(out, EventResult{Side: "long", Horizon: horizon, MeanRet: mean, NEvents: longN})
	}
	if shortN > 0 {
		mean, _ := finiteMean(shortDays)
		out = append(out, EventResult{Side: "short", Horizon: horizon, MeanRet: mean, NEvents: shortN})
	}
	return out
}
