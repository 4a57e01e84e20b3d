// Package backtest implements the evaluation engine: keyset-paginated signal
// streaming, session-aligned forward-return joins, cross-sectional IC/RankIC/
// hit-rate metrics, and percentile event studies, folded per calendar year.
package backtest

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dmarche/newsquant/internal/database"
	"github.com/dmarche/newsquant/internal/session"
)

// SignalDay is one (ticker, trading date) aggregate derived from the raw
// signal stream.
type SignalDay struct {
	Ticker    string
	DS        string
	NDocs     int
	MeanScore float64
}

// Iterator streams raw-signal rows in strictly increasing primary-key batches,
// expands their JSON entity tags, aligns each row to a trading session and
// groups per batch. Memory stays bounded regardless of total signal volume.
type Iterator struct {
	db       *database.DB
	query    database.SignalQuery
	cutoff   session.Cutoff
	chunk    int
	minDocs  int
	throttle time.Duration
}

func NewIterator(db *database.DB, q database.SignalQuery, cutoff session.Cutoff, chunk, minDocs int, throttle time.Duration) *Iterator {
	if chunk <= 0 {
		chunk = 2000
	}
	return &Iterator{db: db, query: q, cutoff: cutoff, chunk: chunk, minDocs: minDocs, throttle: throttle}
}

// Stream drains signals for the inclusive date range [start, end], invoking
// emit once per non-empty batch. It stops on the first empty fetch. When the
// very first fetch of the whole range is empty, it falls back to reading any
// already-materialized entity daily panel for the range; that is a degraded
// best-effort path, not a re-derivation. Returns the number of raw rows seen.
func (it *Iterator) Stream(ctx context.Context, start, end string, emit func([]SignalDay) error) (int, error) {
	endExclusive, err := nextDay(end)
	if err != nil {
		return 0, err
	}

	var lastID int64
	seen := 0
	for {
		if err := ctx.Err(); err != nil {
			return seen, err
		}
		rows, err := it.db.FetchSignalBatch(it.query, start, endExclusive, lastID, it.chunk)
		if err != nil {
			return seen, err
		}
		if len(rows) == 0 {
			if seen == 0 {
				return it.streamFallback(start, end, emit)
			}
			return seen, nil
		}
		seen += len(rows)
		lastID = rows[len(rows)-1].SigID

		batch := it.groupBatch(rows)
		if len(batch) > 0 {
			if err := emit(batch); err != nil {
				return seen, err
			}
		}
		if it.throttle > 0 {
			time.Sleep(it.throttle)
		}
	}
}

// groupBatch expands entity tags, aligns timestamps to trading dates and
// aggregates one batch into per-(ticker, ds) rows.
func (it *Iterator) groupBatch(rows []database.RawSignalRow) []SignalDay {
	type acc struct {
		n   int
		sum float64
	}
	type key struct {
		ticker string
		ds     string
	}
	groups := make(map[key]*acc)

	for _, r := range rows {
		if !r.MatchedJSON.Valid || r.MatchedJSON.String == "" {
			continue
		}
		var matches []database.EntityMatch
		if err := json.Unmarshal([]byte(r.MatchedJSON.String), &matches); err != nil {
			log.Debug().Int64("sig_id", r.SigID).Err(err).Msg("skipping undecodable entity blob")
			continue
		}
		ts, ok := parseTimestamp(r.PubTS)
		if !ok {
			continue
		}
		ds := session.AlignTradingDate(ts, it.cutoff).Format("2006-01-02")
		for _, m := range matches {
			if m.Ticker == "" {
				continue
			}
			k := key{ticker: m.Ticker, ds: ds}
			a := groups[k]
			if a == nil {
				a = &acc{}
				groups[k] = a
			}
			a.n++
			a.sum += r.Score
		}
	}

	out := make([]SignalDay, 0, len(groups))
	for k, a := range groups {
		if a.n < it.minDocs {
			continue
		}
		out = append(out, SignalDay{Ticker: k.ticker, DS: k.ds, NDocs: a.n, MeanScore: a.sum / float64(a.n)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ticker != out[j].Ticker {
			return out[i].Ticker < out[j].Ticker
		}
		return out[i].DS < out[j].DS
	})
	return out
}

func (it *Iterator) streamFallback(start, end string, emit func([]SignalDay) error) (int, error) {
	panel, err := it.db.GetEntityDailyRange(start, end)
	if err != nil || len(panel) == 0 {
		return 0, err
	}
	log.Warn().Str("start", start).Str("end", end).
		Msg("no raw signals in range, falling back to materialized entity panel")

	batch := make([]SignalDay, 0, len(panel))
	for _, p := range panel {
		if !p.MeanScore.Valid || p.NDocs < it.minDocs {
			continue
		}
		batch = append(batch, SignalDay{Ticker: p.Key, DS: p.DS, NDocs: p.NDocs, MeanScore: p.MeanScore.Float64})
	}
	if len(batch) == 0 {
		return 0, nil
	}
	return len(batch), emit(batch)
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func nextDay(ds string) (string, error) {
	d, err := time.Parse("2006-01-02", ds)
	if err != nil {
		return "", err
	}
	return d.AddDate(0, 0, 1).Format("2006-01-02"), nil
}
