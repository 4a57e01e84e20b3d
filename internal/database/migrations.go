package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS news_raw (
    news_id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT UNIQUE NOT NULL,
    title TEXT NOT NULL,
    source TEXT,
    published_at TEXT,
    content TEXT,
    content_fetched INTEGER DEFAULT 0,
    collected_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS news_doc_sentiment (
    news_id INTEGER PRIMARY KEY REFERENCES news_raw(news_id),
    created_at TEXT NOT NULL,
    doc_score REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS news_entity (
    news_id INTEGER PRIMARY KEY REFERENCES news_raw(news_id),
    matched_json TEXT
);

CREATE TABLE IF NOT EXISTS prices_daily (
    ticker TEXT NOT NULL,
    ds TEXT NOT NULL,
    close REAL NOT NULL,
    PRIMARY KEY (ticker, ds)
);

CREATE TABLE IF NOT EXISTS signals_entity_daily (
    ticker TEXT NOT NULL,
    ds TEXT NOT NULL,
    n_docs INTEGER NOT NULL,
    mean_score REAL,
    weighted_mean REAL,
    ewma_20 REAL,
    zscore_30 REAL,
    cum30 REAL,
    surprise_src7 REAL,
    PRIMARY KEY (ticker, ds)
);

CREATE TABLE IF NOT EXISTS signals_industry_daily (
    industry TEXT NOT NULL,
    ds TEXT NOT NULL,
    n_docs INTEGER NOT NULL,
    mean_score REAL,
    weighted_mean REAL,
    ewma_20 REAL,
    zscore_30 REAL,
    cum30 REAL,
    surprise_src7 REAL,
    PRIMARY KEY (industry, ds)
);

CREATE TABLE IF NOT EXISTS signals_market_daily (
    ds TEXT PRIMARY KEY,
    n_docs INTEGER NOT NULL,
    mean_score REAL,
    weighted_mean REAL,
    ewma_20 REAL,
    zscore_30 REAL,
    cum30 REAL,
    surprise_src7 REAL
);

CREATE TABLE IF NOT EXISTS dim_trading_calendar (
    ds TEXT PRIMARY KEY,
    is_open INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS bt_params (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    params TEXT NOT NULL,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS bt_signal_ic (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,
    horizon INTEGER NOT NULL,
    fold TEXT,
    year INTEGER,
    ic REAL,
    ic_p REAL,
    ric REAL,
    ric_p REAL,
    hitrate REAL,
    n_days INTEGER,
    n_pairs INTEGER,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS bt_event_study (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,
    side TEXT NOT NULL,
    horizon INTEGER NOT NULL,
    year INTEGER,
    mean_ret REAL,
    n_events INTEGER,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_news_raw_published ON news_raw(published_at);
CREATE INDEX IF NOT EXISTS idx_doc_sentiment_created ON news_doc_sentiment(created_at);
CREATE INDEX IF NOT EXISTS idx_prices_ds ON prices_daily(ds);
CREATE INDEX IF NOT EXISTS idx_entity_daily_ds ON signals_entity_daily(ds);
CREATE INDEX IF NOT EXISTS idx_industry_daily_ds ON signals_industry_daily(ds);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
