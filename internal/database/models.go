package database

import "database/sql"

// Article represents a collected news article.
type Article struct {
	NewsID         int64
	URL            string
	Title          string
	Source         *string
	PublishedAt    *string
	Content        *string
	ContentFetched bool
	CollectedAt    *string
}

// DocScore is one per-document sentiment observation.
type DocScore struct {
	NewsID    int64  `db:"news_id"`
	CreatedAt string `db:"created_at"` // RFC 3339 timestamp
	DS        string `db:"ds"`         // calendar date of created_at
	Score     float64 `db:"doc_score"`
}

// DocMeta is publisher metadata for one document.
type DocMeta struct {
	NewsID  int64   `db:"news_id"`
	Source  *string `db:"source"`
	PubDate *string `db:"pub_date"` // YYYY-MM-DD
}

// EntityRow is the raw JSON-encoded entity match blob for one document.
// matched_json is a JSON array of EntityMatch objects; this single-column
// one-to-many convention is a deliberate serialization contract kept for
// warehouse compatibility.
type EntityRow struct {
	NewsID      int64   `db:"news_id"`
	MatchedJSON *string `db:"matched_json"`
}

// EntityMatch is one decoded entry of a matched_json array.
type EntityMatch struct {
	Ticker   string   `json:"ticker"`
	Industry string   `json:"industry"`
	Matches  []string `json:"matches,omitempty"`
	Count    int      `json:"count,omitempty"`
}

// PanelRow is one persisted daily panel row. Key selects the entity ticker or
// industry name; it is empty for the market panel. Metric fields are nullable:
// numeric degeneracy (insufficient window, zero variance) persists as NULL.
type PanelRow struct {
	Key          string          `db:"key"`
	DS           string          `db:"ds"`
	NDocs        int             `db:"n_docs"`
	MeanScore    sql.NullFloat64 `db:"mean_score"`
	WeightedMean sql.NullFloat64 `db:"weighted_mean"`
	EWMA20       sql.NullFloat64 `db:"ewma_20"`
	ZScore30     sql.NullFloat64 `db:"zscore_30"`
	Cum30        sql.NullFloat64 `db:"cum30"`
	SurpriseSrc7 sql.NullFloat64 `db:"surprise_src7"`
}

// PriceBar is one (ticker, date, close) observation.
type PriceBar struct {
	Ticker string  `db:"ticker"`
	DS     string  `db:"ds"`
	Close  float64 `db:"px"`
}

// MetricRow is one horizon-level backtest summary (appended, never updated).
type MetricRow struct {
	Kind    string
	Horizon int
	Fold    string
	Year    int
	IC      sql.NullFloat64
	ICP     sql.NullFloat64
	RIC     sql.NullFloat64
	RICP    sql.NullFloat64
	HitRate sql.NullFloat64
	NDays   int
	NPairs  int
}

// EventRow is one event-study summary for a (side, horizon) pair.
type EventRow struct {
	Kind    string
	Side    string
	Horizon int
	Year    int
	MeanRet float64
	NEvents int
}

// CalendarDay is one trading-calendar entry.
type CalendarDay struct {
	DS     string `db:"ds"`
	IsOpen bool   `db:"is_open"`
}

// Stats contains aggregate warehouse statistics for the status command.
type Stats struct {
	TotalArticles  int
	ScoredDocs     int
	TaggedDocs     int
	PriceRows      int
	EntityPanel    int
	IndustryPanel  int
	MarketPanel    int
	BacktestRuns   int
	MetricRows     int
	EventRows      int
}
