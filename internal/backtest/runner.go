package backtest

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dmarche/newsquant/internal/config"
	"github.com/dmarche/newsquant/internal/database"
	"github.com/dmarche/newsquant/internal/session"
)

// Runner drives one backtest invocation: parameter audit, price loading,
// per-year signal streaming, metric and event computation, and persistence of
// both database rows and per-year export files.
type Runner struct {
	db     *database.DB
	cfg    config.Backtest
	outDir string
}

func NewRunner(db *database.DB, cfg config.Backtest, outDir string) *Runner {
	return &Runner{db: db, cfg: cfg, outDir: outDir}
}

// runParams is the audit snapshot appended to bt_params.
type runParams struct {
	Start      string           `json:"start"`
	End        string           `json:"end"`
	Cutoff     string           `json:"cutoff"`
	Horizons   []int            `json:"horizons"`
	Percentile float64          `json:"percentile"`
	ChunkSize  int              `json:"chunk_size"`
	MinDocs    int              `json:"min_docs"`
	Signal     database.SignalQuery `json:"signal_query"`
	Price      database.PriceQuery  `json:"price_query"`
}

// Run evaluates the signal over [start, end] (inclusive dates), one fold per
// calendar year. Missing data for a year logs and skips that year; the run
// only fails outright on schema or persistence errors.
func (r *Runner) Run(ctx context.Context, start, end string) error {
	cutoff, err := session.ParseCutoff(r.cfg.Cutoff)
	if err != nil {
		return err
	}
	startDate, err := time.Parse("2006-01-02", start)
	if err != nil {
		return fmt.Errorf("invalid start date %q: %w", start, err)
	}
	endDate, err := time.Parse("2006-01-02", end)
	if err != nil {
		return fmt.Errorf("invalid end date %q: %w", end, err)
	}
	if endDate.Before(startDate) {
		return fmt.Errorf("end date %s precedes start date %s", end, start)
	}

	resolver := database.NewColumnResolver(r.db)
	sigQuery, err := r.db.ResolveSignalQuery(resolver,
		r.cfg.SigTable, r.cfg.SigIDCol, r.cfg.SigTimeCol, r.cfg.SigScoreCol,
		r.cfg.EntTable, r.cfg.EntFKCol, r.cfg.EntJSONCol)
	if err != nil {
		return fmt.Errorf("resolving signal schema: %w", err)
	}
	priceQuery := database.PriceQuery{
		Table:     r.cfg.PriceTable,
		TickerCol: r.cfg.TickerCol,
		DateCol:   r.cfg.DateCol,
		PriceCol:  r.cfg.PriceCol,
	}

	params := runParams{
		Start:      start,
		End:        end,
		Cutoff:     r.cfg.Cutoff,
		Horizons:   r.cfg.Horizons,
		Percentile: r.cfg.Percentile,
		ChunkSize:  r.cfg.ChunkSize,
		MinDocs:    r.cfg.MinDocs,
		Signal:     sigQuery,
		Price:      priceQuery,
	}
	snapshot, err := json.Marshal(params)
	if err != nil {
		return err
	}
	runID, err := r.db.InsertRunParams(string(snapshot))
	if err != nil {
		return fmt.Errorf("recording run parameters: %w", err)
	}
	log.Info().Int64("run_id", runID).Str("start", start).Str("end", end).Msg("backtest run started")

	maxHorizon := 0
	for _, h := range r.cfg.Horizons {
		if h > maxHorizon {
			maxHorizon = h
		}
	}
	// forward returns near the end of the range need price rows past it;
	// 2h+10 calendar days covers h trading days with weekends and holidays
	priceEnd := endDate.AddDate(0, 0, maxHorizon*2+10).Format("2006-01-02")
	prices, err := r.db.LoadPrices(priceQuery, start, priceEnd)
	if err != nil {
		return err
	}
	fwd := ForwardReturns(prices, r.cfg.Horizons)

	iter := NewIterator(r.db, sigQuery, cutoff, r.cfg.ChunkSize, r.cfg.MinDocs,
		time.Duration(r.cfg.ThrottleMs)*time.Millisecond)

	if r.outDir != "" {
		if err := os.MkdirAll(r.outDir, 0o755); err != nil {
			return err
		}
	}

	metricRows, eventRows := 0, 0
	for year := startDate.Year(); year <= endDate.Year(); year++ {
		m, e, err := r.runYear(ctx, iter, fwd, year, startDate, endDate)
		if err != nil {
			return err
		}
		metricRows += m
		eventRows += e
	}

	log.Info().Int64("run_id", runID).Int("metric_rows", metricRows).Int("event_rows", eventRows).
		Msg("backtest run complete")
	return nil
}

func (r *Runner) runYear(ctx context.Context, iter *Iterator, fwd map[int]map[ReturnKey]float64, year int, startDate, endDate time.Time) (int, int, error) {
	foldStart := maxDate(startDate, time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC))
	foldEnd := minDate(endDate, time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC))
	start := foldStart.Format("2006-01-02")
	end := foldEnd.Format("2006-01-02")

	signals, seen, err := r.drainYear(ctx, iter, start, end)
	if err != nil {
		return 0, 0, err
	}
	if len(signals) == 0 {
		log.Warn().Int("year", year).Msg("no signals for year, skipping fold")
		return 0, 0, nil
	}
	log.Info().Int("year", year).Int("raw_rows", seen).Int("signal_days", len(signals)).Msg("fold loaded")

	var summaries []Summary
	var events []EventResult
	for _, h := range r.cfg.Horizons {
		summaries = append(summaries, ComputeSummary(signals, fwd[h], h))
		events = append(events, EventStudy(signals, fwd[h], h, r.cfg.Percentile)...)
	}

	fold := fmt.Sprintf("Y%d", year)
	for _, s := range summaries {
		row := database.MetricRow{
			Kind:    "entity",
			Horizon: s.Horizon,
			Fold:    fold,
			Year:    year,
			IC:      nullable(s.IC),
			ICP:     nullable(s.ICPVal),
			RIC:     nullable(s.RIC),
			RICP:    nullable(s.RICPVal),
			HitRate: nullable(s.HitRate),
			NDays:   s.NDays,
			NPairs:  s.NPairs,
		}
		if err := r.db.InsertMetricRow(row); err != nil {
			return 0, 0, fmt.Errorf("writing metric row for %s h=%d: %w", fold, s.Horizon, err)
		}
	}
	for _, e := range events {
		row := database.EventRow{
			Kind:    "entity",
			Side:    e.Side,
			Horizon: e.Horizon,
			Year:    year,
			MeanRet: e.MeanRet,
			NEvents: e.NEvents,
		}
		if err := r.db.InsertEventRow(row); err != nil {
			return 0, 0, fmt.Errorf("writing event row for %s h=%d side=%s: %w", fold, e.Horizon, e.Side, err)
		}
	}

	if r.outDir != "" {
		if err := r.exportYear(year, summaries, events); err != nil {
			return 0, 0, err
		}
	}
	return len(summaries), len(events), nil
}

// drainYear consumes the iterator for one fold, deduplicating (ticker, ds)
// across batches; the first batch to produce a day wins.
func (r *Runner) drainYear(ctx context.Context, iter *Iterator, start, end string) ([]SignalDay, int, error) {
	seenKeys := make(map[ReturnKey]bool)
	var signals []SignalDay
	seen, err := iter.Stream(ctx, start, end, func(batch []SignalDay) error {
		for _, s := range batch {
			k := ReturnKey{Ticker: s.Ticker, DS: s.DS}
			if seenKeys[k] {
				continue
			}
			seenKeys[k] = true
			signals = append(signals, s)
		}
		return nil
	})
	return signals, seen, err
}

func (r *Runner) exportYear(year int, summaries []Summary, events []EventResult) error {
	mPath := filepath.Join(r.outDir, fmt.Sprintf("metrics_entity_Y%d.csv", year))
	mRows := [][]string{{"horizon", "ic", "ic_p", "ric", "ric_p", "hitrate", "n_days", "n_pairs"}}
	for _, s := range summaries {
		mRows = append(mRows, []string{
			strconv.Itoa(s.Horizon),
			formatFloat(s.IC), formatFloat(s.ICPVal),
			formatFloat(s.RIC), formatFloat(s.RICPVal),
			formatFloat(s.HitRate),
			strconv.Itoa(s.NDays), strconv.Itoa(s.NPairs),
		})
	}
	if err := writeCSV(mPath, mRows); err != nil {
		return err
	}

	ePath := filepath.Join(r.outDir, fmt.Sprintf("events_entity_Y%d.csv", year))
	eRows := [][]string{{"side", "horizon", "mean_ret", "n_events"}}
	for _, e := range events {
		eRows = append(eRows, []string{
			e.Side, strconv.Itoa(e.Horizon), formatFloat(e.MeanRet), strconv.Itoa(e.NEvents),
		})
	}
	return writeCSV(ePath, eRows)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', 8, 64)
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func maxDate(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minDate(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
