package signal

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dmarche/newsquant/internal/config"
	"github.com/dmarche/newsquant/internal/database"
	"github.com/dmarche/newsquant/internal/session"
)

// Params carries the aggregation engine configuration for one run.
type Params struct {
	LookbackDays int
	Limit        int
	TauDays      float64
	WinsorLow    float64
	WinsorHigh   float64
	MedianWindow int
	MinDocs      int
	NaNPolicy    string
	Throttle     time.Duration
	Cutoff       session.Cutoff
}

// ParamsFromConfig builds run parameters from the loaded configuration. The
// session cutoff is shared with the backtest engine so both align timestamps
// identically.
func ParamsFromConfig(cfg *config.Config) (Params, error) {
	cutoff, err := session.ParseCutoff(cfg.Backtest.Cutoff)
	if err != nil {
		return Params{}, err
	}
	return Params{
		LookbackDays: cfg.Signals.LookbackDays,
		Limit:        cfg.Signals.Limit,
		TauDays:      cfg.Signals.TauDays,
		WinsorLow:    cfg.Signals.WinsorLow,
		WinsorHigh:   cfg.Signals.WinsorHigh,
		MedianWindow: cfg.Signals.MedianWindow,
		MinDocs:      cfg.Signals.MinDocs,
		NaNPolicy:    cfg.Signals.NaNPolicy,
		Throttle:     time.Duration(cfg.Signals.ThrottleMs) * time.Millisecond,
		Cutoff:       cutoff,
	}, nil
}

// Aggregator joins per-document scores with entity tags and publisher
// metadata, then builds and upserts the three daily panels.
type Aggregator struct {
	db     *database.DB
	auth   config.Authority
	params Params
	now    func() time.Time
}

func NewAggregator(db *database.DB, auth config.Authority, params Params) *Aggregator {
	return &Aggregator{db: db, auth: auth, params: params, now: time.Now}
}

// obs is one weighted observation: a document's contribution to one group on
// one trading date. Transient, never persisted.
type obs struct {
	key    string
	ds     string
	score  float64
	weight float64
	source string
}

// Run executes one aggregation pass. An empty lookback window is not an
// error; the run logs and returns without touching storage.
func (a *Aggregator) Run(ctx context.Context) error {
	docs, err := a.db.FetchRecentDocScores(a.params.LookbackDays, a.params.Limit)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		log.Info().Int("lookback_days", a.params.LookbackDays).Msg("no scored documents in window, nothing to aggregate")
		return nil
	}

	ids := make([]int64, len(docs))
	for i, d := range docs {
		ids[i] = d.NewsID
	}

	entRows, err := a.db.FetchEntitiesForIDs(ids, a.params.Throttle)
	if err != nil {
		return err
	}
	metaRows, err := a.db.FetchMetaForIDs(ids, a.params.Throttle)
	if err != nil {
		return err
	}

	entities := decodeEntities(entRows)
	meta := make(map[int64]database.DocMeta, len(metaRows))
	for _, m := range metaRows {
		meta[m.NewsID] = m
	}

	entityObs, industryObs, marketObs := a.buildObservations(docs, entities, meta)

	layers := []struct {
		name   string
		obs    []obs
		upsert func(database.PanelRow) error
	}{
		{"entity", entityObs, a.db.UpsertEntityDaily},
		{"industry", industryObs, a.db.UpsertIndustryDaily},
		{"market", marketObs, a.db.UpsertMarketDaily},
	}

	total := 0
	for _, layer := range layers {
		n, err := a.runLayer(ctx, layer.obs, layer.upsert)
		if err != nil {
			return err
		}
		log.Info().Str("layer", layer.name).Int("rows", n).Msg("panel upserted")
		total += n
	}
	log.Info().Int("docs", len(docs)).Int("rows_written", total).Msg("aggregation complete")
	return nil
}

// buildObservations joins documents to tags and metadata. A document fans out
// to one observation per tagged ticker, one per tagged industry, and exactly
// one market observation. Missing metadata degrades: source falls back to
// "unknown" and the publication date to the document's own timestamp.
func (a *Aggregator) buildObservations(
	docs []database.DocScore,
	entities map[int64][]database.EntityMatch,
	meta map[int64]database.DocMeta,
) (entity, industry, market []obs) {
	now := a.now().UTC()
	tau := time.Duration(a.params.TauDays * 24 * float64(time.Hour))

	for _, d := range docs {
		ts, err := time.Parse(time.RFC3339, d.CreatedAt)
		if err != nil {
			ts, _ = time.Parse("2006-01-02", d.DS)
		}
		ds := session.AlignTradingDate(ts, a.params.Cutoff).Format("2006-01-02")

		source := "unknown"
		published := ts
		if m, ok := meta[d.NewsID]; ok {
			if m.Source != nil && *m.Source != "" {
				source = *m.Source
			}
			if m.PubDate != nil {
				if pd, err := time.Parse("2006-01-02", *m.PubDate); err == nil {
					published = pd
				}
			}
		}

		w := AuthorityWeight(a.auth, source) * FreshnessWeight(published, now, tau)
		base := obs{ds: ds, score: d.Score, weight: w, source: source}

		market = append(market, base)
		for _, m := range entities[d.NewsID] {
			if m.Ticker != "" {
				o := base
				o.key = m.Ticker
				entity = append(entity, o)
			}
			if m.Industry != "" {
				o := base
				o.key = m.Industry
				industry = append(industry, o)
			}
		}
	}
	return entity, industry, market
}

// runLayer groups observations, applies the transform stages in their fixed
// order, filters by min_docs, sanitizes and upserts. Returns rows written.
func (a *Aggregator) runLayer(ctx context.Context, observations []obs, upsert func(database.PanelRow) error) (int, error) {
	frames := buildFrames(observations)

	keys := make([]string, 0, len(frames))
	for k := range frames {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	written := 0
	for _, k := range keys {
		f := frames[k]
		for _, st := range pipelineStages() {
			st.apply(a.params, f)
		}
		for _, r := range f.rows {
			if r.nDocs < a.params.MinDocs {
				continue
			}
			if err := ctx.Err(); err != nil {
				return written, err
			}
			if err := upsert(a.toPanelRow(f.key, r)); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}

// buildFrames groups observations by (key, ds), computing n_docs, the plain
// mean, and the weight-normalized mean with the weight sum floored so a total
// weight collapse still yields a finite value.
func buildFrames(observations []obs) map[string]*groupFrame {
	type acc struct {
		n      int
		sum    float64
		wSum   float64
		wScore float64
	}
	days := make(map[string]map[string]*acc)
	bySrc := make(map[string]map[string]map[string]*acc)

	for _, o := range observations {
		if days[o.key] == nil {
			days[o.key] = make(map[string]*acc)
			bySrc[o.key] = make(map[string]map[string]*acc)
		}
		d := days[o.key][o.ds]
		if d == nil {
			d = &acc{}
			days[o.key][o.ds] = d
		}
		d.n++
		d.sum += o.score
		d.wSum += o.weight
		d.wScore += o.weight * o.score

		if bySrc[o.key][o.source] == nil {
			bySrc[o.key][o.source] = make(map[string]*acc)
		}
		s := bySrc[o.key][o.source][o.ds]
		if s == nil {
			s = &acc{}
			bySrc[o.key][o.source][o.ds] = s
		}
		s.n++
		s.sum += o.score
	}

	frames := make(map[string]*groupFrame, len(days))
	for key, byDS := range days {
		f := &groupFrame{key: key, bySource: make(map[string]map[string]float64)}

		dates := make([]string, 0, len(byDS))
		for ds := range byDS {
			dates = append(dates, ds)
		}
		sort.Strings(dates)

		for _, ds := range dates {
			d := byDS[ds]
			r := newDayRow(ds)
			r.nDocs = d.n
			r.meanScore = d.sum / float64(d.n)
			wSum := d.wSum
			if wSum < weightEpsilon {
				wSum = weightEpsilon
			}
			r.weightedMean = d.wScore / wSum
			f.rows = append(f.rows, r)
		}

		for src, daily := range bySrc[key] {
			means := make(map[string]float64, len(daily))
			for ds, s := range daily {
				means[ds] = s.sum / float64(s.n)
			}
			f.bySource[src] = means
		}
		frames[key] = f
	}
	return frames
}

func (a *Aggregator) toPanelRow(key string, r dayRow) database.PanelRow {
	return database.PanelRow{
		Key:          key,
		DS:           r.ds,
		NDocs:        r.nDocs,
		MeanScore:    a.sanitize(r.meanScore),
		WeightedMean: a.sanitize(r.weightedMean),
		EWMA20:       a.sanitize(r.ewma20),
		ZScore30:     a.sanitize(r.zscore30),
		Cum30:        a.sanitize(r.cum30),
		SurpriseSrc7: a.sanitize(r.surprise),
	}
}

// sanitize enforces the finiteness invariant: NaN/Inf never reach storage.
// Depending on policy a non-finite value becomes NULL or zero.
func (a *Aggregator) sanitize(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		if a.params.NaNPolicy == "zero" {
			return sql.NullFloat64{Float64: 0, Valid: true}
		}
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func decodeEntities(rows []database.EntityRow) map[int64][]database.EntityMatch {
	out := make(map[int64][]database.EntityMatch, len(rows))
	for _, r := range rows {
		if r.MatchedJSON == nil || *r.MatchedJSON == "" {
			continue
		}
		var matches []database.EntityMatch
		if err := json.Unmarshal([]byte(*r.MatchedJSON), &matches); err != nil {
			log.Debug().Int64("news_id", r.NewsID).Err(err).Msg("skipping undecodable entity blob")
			continue
		}
		if len(matches) > 0 {
			out[r.NewsID] = matches
		}
	}
	return out
}
