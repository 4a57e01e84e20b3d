package signal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarche/newsquant/internal/config"
	"github.com/dmarche/newsquant/internal/database"
	"github.com/dmarche/newsquant/internal/session"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

type fixtureDoc struct {
	url    string
	source string
	score  float64
	ts     time.Time
	ticker string
	ind    string
}

func seedDocs(t *testing.T, db *database.DB, docs []fixtureDoc) {
	t.Helper()
	for _, d := range docs {
		var src *string
		if d.source != "" {
			src = ptr(d.source)
		}
		id, err := db.InsertArticle(d.url, "headline", src, ptr(d.ts.Format("2006-01-02")), nil)
		require.NoError(t, err)
		require.NotZero(t, id)
		require.NoError(t, db.InsertDocScore(id, d.ts, d.score))
		if d.ticker != "" {
			require.NoError(t, db.InsertEntityMatches(id, []database.EntityMatch{
				{Ticker: d.ticker, Industry: d.ind, Count: 1},
			}))
		}
	}
}

func testAuthority() config.Authority {
	return config.Authority{Default: 1.0, Sources: map[string]float64{"Reuters": 1.3}}
}

// fixtureBase is captured once so a midnight rollover mid-test cannot shift
// the expected trading dates.
var fixtureBase = time.Now().UTC().AddDate(0, 0, -5)

func fixtureDays() (time.Time, time.Time) {
	// 09:00 UTC is before the 13:30 cutoff, so created_at date == trading date
	d1 := time.Date(fixtureBase.Year(), fixtureBase.Month(), fixtureBase.Day(), 9, 0, 0, 0, time.UTC)
	return d1, d1.AddDate(0, 0, 1)
}

func fixture() []fixtureDoc {
	day1, day2 := fixtureDays()
	return []fixtureDoc{
		{"https://example.com/1", "Reuters", 0.4, day1, "AAPL", "tech"},
		{"https://example.com/2", "CNBC", 0.2, day1, "AAPL", "tech"},
		{"https://example.com/3", "Reuters", 0.6, day2, "AAPL", "tech"},
		{"https://example.com/4", "", -0.5, day1, "MSFT", "software"},
	}
}

func TestAggregatorWritesThreeLayers(t *testing.T) {
	db := openTestDB(t)
	seedDocs(t, db, fixture())
	day1, day2 := fixtureDays()
	ds1 := day1.Format("2006-01-02")
	ds2 := day2.Format("2006-01-02")

	p := testParams()
	p.Cutoff = session.Cutoff{Hour: 13, Minute: 30}
	agg := NewAggregator(db, testAuthority(), p)
	require.NoError(t, agg.Run(context.Background()))

	entity, err := db.GetEntityDailyRange(ds1, ds2)
	require.NoError(t, err)
	require.Len(t, entity, 3)

	byKey := map[string]database.PanelRow{}
	for _, r := range entity {
		byKey[r.Key+"|"+r.DS] = r
	}

	aapl1 := byKey["AAPL|"+ds1]
	assert.Equal(t, 2, aapl1.NDocs)
	require.True(t, aapl1.WeightedMean.Valid)
	// (1.3*0.4 + 1.0*0.2) / 2.3, freshness cancels since both docs share a date
	assert.InDelta(t, 0.72/2.3, aapl1.WeightedMean.Float64, 1e-9)

	aapl2 := byKey["AAPL|"+ds2]
	assert.Equal(t, 1, aapl2.NDocs)

	msft := byKey["MSFT|"+ds1]
	assert.Equal(t, 1, msft.NDocs)
	require.True(t, msft.ZScore30.Valid == false, "single observation cannot have a z-score")

	market, err := db.GetMarketDailyRange(ds1, ds2)
	require.NoError(t, err)
	require.Len(t, market, 2)
	assert.Equal(t, 3, market[0].NDocs)
	assert.Equal(t, 1, market[1].NDocs)
}

func TestAggregatorMinDocsBoundary(t *testing.T) {
	day1, day2 := fixtureDays()
	ds1 := day1.Format("2006-01-02")
	ds2 := day2.Format("2006-01-02")

	for minDocs, wantRows := range map[int]int{1: 3, 2: 1} {
		db := openTestDB(t)
		seedDocs(t, db, fixture())

		p := testParams()
		p.MinDocs = minDocs
		p.Cutoff = session.Cutoff{Hour: 13, Minute: 30}
		agg := NewAggregator(db, testAuthority(), p)
		require.NoError(t, agg.Run(context.Background()))

		entity, err := db.GetEntityDailyRange(ds1, ds2)
		require.NoError(t, err)
		assert.Len(t, entity, wantRows, "min_docs=%d", minDocs)
		if minDocs == 2 {
			assert.Equal(t, "AAPL", entity[0].Key)
			assert.Equal(t, ds1, entity[0].DS)
		}
	}
}

func TestAggregatorRerunIdempotent(t *testing.T) {
	db := openTestDB(t)
	seedDocs(t, db, fixture())
	day1, day2 := fixtureDays()
	ds1 := day1.Format("2006-01-02")
	ds2 := day2.Format("2006-01-02")

	p := testParams()
	p.Cutoff = session.Cutoff{Hour: 13, Minute: 30}
	agg := NewAggregator(db, testAuthority(), p)

	require.NoError(t, agg.Run(context.Background()))
	first, err := db.GetEntityDailyRange(ds1, ds2)
	require.NoError(t, err)

	require.NoError(t, agg.Run(context.Background()))
	second, err := db.GetEntityDailyRange(ds1, ds2)
	require.NoError(t, err)

	assert.Equal(t, first, second, "re-running over an unchanged window must rewrite identical rows")
}

func TestAggregatorEmptyWindowIsNotAnError(t *testing.T) {
	db := openTestDB(t)

	p := testParams()
	p.Cutoff = session.Cutoff{Hour: 13, Minute: 30}
	agg := NewAggregator(db, testAuthority(), p)
	require.NoError(t, agg.Run(context.Background()))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Zero(t, stats.EntityPanel)
	assert.Zero(t, stats.MarketPanel)
}

func TestAggregatorMissingMetadataDegrades(t *testing.T) {
	db := openTestDB(t)
	day1, _ := fixtureDays()
	ds1 := day1.Format("2006-01-02")

	// no source on any article: all weight contributions fall back to defaults
	seedDocs(t, db, []fixtureDoc{
		{"https://example.com/1", "", 0.4, day1, "AAPL", "tech"},
		{"https://example.com/2", "", 0.2, day1, "AAPL", "tech"},
	})

	p := testParams()
	p.Cutoff = session.Cutoff{Hour: 13, Minute: 30}
	agg := NewAggregator(db, testAuthority(), p)
	require.NoError(t, agg.Run(context.Background()))

	entity, err := db.GetEntityDailyRange(ds1, ds1)
	require.NoError(t, err)
	require.Len(t, entity, 1)
	require.True(t, entity[0].WeightedMean.Valid)
	// equal default weights make the weighted mean the plain mean
	assert.InDelta(t, 0.3, entity[0].WeightedMean.Float64, 1e-9)
}
