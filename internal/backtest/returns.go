package backtest

import (
	"sort"

	"github.com/dmarche/newsquant/internal/database"
)

// ReturnKey identifies one forward-return observation.
type ReturnKey struct {
	Ticker string
	DS     string
}

// ForwardReturns computes ret_h = price[t+h]/price[t] - 1 for every horizon,
// shifting within each ticker's own date-sorted series. Tickers are
// independent time series; the shift never crosses tickers. Rows in the final
// h trading rows of a ticker have no forward return and are simply absent.
func ForwardReturns(prices []database.PriceBar, horizons []int) map[int]map[ReturnKey]float64 {
	byTicker := make(map[string][]database.PriceBar)
	for _, p := range prices {
		byTicker[p.Ticker] = append(byTicker[p.Ticker], p)
	}
	for _, bars := range byTicker {
		sort.Slice(bars, func(i, j int) bool { return bars[i].DS < bars[j].DS })
	}

	out := make(map[int]map[ReturnKey]float64, len(horizons))
	for _, h := range horizons {
		fwd := make(map[ReturnKey]float64)
		for ticker, bars := range byTicker {
			for i := 0; i+h < len(bars); i++ {
				if bars[i].Close == 0 {
					continue
				}
				fwd[ReturnKey{Ticker: ticker, DS: bars[i].DS}] = bars[i+h].Close/bars[i].Close - 1
			}
		}
		out[h] = fwd
	}
	return out
}
