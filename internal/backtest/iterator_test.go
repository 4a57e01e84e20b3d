package backtest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarche/newsquant/internal/database"
	"github.com/dmarche/newsquant/internal/session"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func seedSignal(t *testing.T, db *database.DB, url string, ts time.Time, score float64, ticker string) {
	t.Helper()
	id, err := db.InsertArticle(url, "headline", ptr("Reuters"), ptr(ts.Format(time.RFC3339)), ptr("body"))
	require.NoError(t, err)
	require.Greater(t, id, int64(0))
	require.NoError(t, db.InsertDocScore(id, ts, score))
	if ticker != "" {
		require.NoError(t, db.InsertEntityMatches(id, []database.EntityMatch{
			{Ticker: ticker, Industry: "tech", Count: 1},
		}))
	}
}

func signalQuery(t *testing.T, db *database.DB) database.SignalQuery {
	t.Helper()
	q, err := db.ResolveSignalQuery(database.NewColumnResolver(db),
		"news_doc_sentiment", "", "", "", "news_entity", "", "")
	require.NoError(t, err)
	return q
}

func seedIteratorFixture(t *testing.T, db *database.DB) {
	t.Helper()
	morning := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	afternoon := time.Date(2024, 3, 4, 14, 0, 0, 0, time.UTC)
	nextDay := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

	seedSignal(t, db, "https://example.com/1", morning, 0.2, "AAPL")
	seedSignal(t, db, "https://example.com/2", morning.Add(time.Minute), 0.4, "AAPL")
	seedSignal(t, db, "https://example.com/3", morning.Add(2*time.Minute), 0.6, "AAPL")
	seedSignal(t, db, "https://example.com/4", afternoon, -0.3, "AAPL")
	seedSignal(t, db, "https://example.com/5", nextDay, 0.5, "MSFT")
}

func TestIteratorGroupsBySessionDate(t *testing.T) {
	db := openTestDB(t)
	seedIteratorFixture(t, db)

	it := NewIterator(db, signalQuery(t, db), session.Cutoff{Hour: 13, Minute: 30}, 100, 1, 0)
	var got []SignalDay
	seen, err := it.Stream(context.Background(), "2024-03-01", "2024-03-10", func(batch []SignalDay) error {
		got = append(got, batch...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, seen)

	require.Len(t, got, 3)
	assert.Equal(t, "AAPL", got[0].Ticker)
	assert.Equal(t, "2024-03-04", got[0].DS)
	assert.Equal(t, 3, got[0].NDocs)
	assert.InDelta(t, 0.4, got[0].MeanScore, 1e-12)

	// the 14:00 UTC article lands past the 13:30 cutoff, on the next session
	assert.Equal(t, SignalDay{Ticker: "AAPL", DS: "2024-03-05", NDocs: 1, MeanScore: -0.3}, got[1])
	assert.Equal(t, SignalDay{Ticker: "MSFT", DS: "2024-03-05", NDocs: 1, MeanScore: 0.5}, got[2])
}

func TestIteratorKeysetBatches(t *testing.T) {
	db := openTestDB(t)
	seedIteratorFixture(t, db)

	it := NewIterator(db, signalQuery(t, db), session.Cutoff{Hour: 13, Minute: 30}, 2, 1, 0)
	emits := 0
	seen, err := it.Stream(context.Background(), "2024-03-01", "2024-03-10", func(batch []SignalDay) error {
		emits++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, seen)
	assert.Equal(t, 3, emits, "5 rows at chunk 2 drain in 3 fetches")
}

func TestIteratorMinDocsFilter(t *testing.T) {
	db := openTestDB(t)
	seedIteratorFixture(t, db)

	it := NewIterator(db, signalQuery(t, db), session.Cutoff{Hour: 13, Minute: 30}, 100, 2, 0)
	var got []SignalDay
	_, err := it.Stream(context.Background(), "2024-03-01", "2024-03-10", func(batch []SignalDay) error {
		got = append(got, batch...)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "AAPL", got[0].Ticker)
	assert.Equal(t, 3, got[0].NDocs)
}

func TestIteratorDateWindowBounds(t *testing.T) {
	db := openTestDB(t)
	seedIteratorFixture(t, db)

	// only the 2024-03-05 article falls inside this raw-timestamp window
	it := NewIterator(db, signalQuery(t, db), session.Cutoff{Hour: 13, Minute: 30}, 100, 1, 0)
	var got []SignalDay
	seen, err := it.Stream(context.Background(), "2024-03-05", "2024-03-05", func(batch []SignalDay) error {
		got = append(got, batch...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, seen)
	require.Len(t, got, 1)
	assert.Equal(t, "MSFT", got[0].Ticker)
}

func TestIteratorSkipsUntaggedRows(t *testing.T) {
	db := openTestDB(t)
	ts := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	seedSignal(t, db, "https://example.com/a", ts, 0.9, "")
	seedSignal(t, db, "https://example.com/b", ts, 0.1, "AAPL")

	it := NewIterator(db, signalQuery(t, db), session.Cutoff{Hour: 13, Minute: 30}, 100, 1, 0)
	var got []SignalDay
	seen, err := it.Stream(context.Background(), "2024-03-01", "2024-03-10", func(batch []SignalDay) error {
		got = append(got, batch...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, seen, "untagged rows still count as raw rows")
	require.Len(t, got, 1)
	assert.InDelta(t, 0.1, got[0].MeanScore, 1e-12)
}

func TestIteratorFallsBackToPanel(t *testing.T) {
	db := openTestDB(t)

	valid := sql.NullFloat64{Float64: 0.25, Valid: true}
	require.NoError(t, db.UpsertEntityDaily(database.PanelRow{
		Key: "AAPL", DS: "2024-03-04", NDocs: 3, MeanScore: valid,
	}))
	// NULL mean and sub-threshold rows never reach the consumer
	require.NoError(t, db.UpsertEntityDaily(database.PanelRow{
		Key: "MSFT", DS: "2024-03-04", NDocs: 4,
	}))
	require.NoError(t, db.UpsertEntityDaily(database.PanelRow{
		Key: "NVDA", DS: "2024-03-04", NDocs: 1, MeanScore: valid,
	}))

	it := NewIterator(db, signalQuery(t, db), session.Cutoff{Hour: 13, Minute: 30}, 100, 2, 0)
	var got []SignalDay
	seen, err := it.Stream(context.Background(), "2024-03-01", "2024-03-10", func(batch []SignalDay) error {
		got = append(got, batch...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, seen)
	require.Len(t, got, 1)
	assert.Equal(t, SignalDay{Ticker: "AAPL", DS: "2024-03-04", NDocs: 3, MeanScore: 0.25}, got[0])
}
