package database

import (
	"fmt"
	"strings"
)

// PriceQuery names the table and columns holding the daily price panel. Names
// are validated before any query text is built.
type PriceQuery struct {
	Table     string
	TickerCol string
	DateCol   string
	PriceCol  string
}

func (q PriceQuery) validate() error {
	if err := ValidateTable(q.Table); err != nil {
		return err
	}
	for _, c := range []string{q.TickerCol, q.DateCol, q.PriceCol} {
		if err := ValidateColumn(c); err != nil {
			return err
		}
	}
	return nil
}

// InsertPrice writes one (ticker, ds, close) bar into prices_daily.
func (db *DB) InsertPrice(ticker, ds string, close float64) error {
	_, err := db.conn.Exec(`
		INSERT INTO prices_daily (ticker, ds, close) VALUES (?, ?, ?)
		ON CONFLICT(ticker, ds) DO UPDATE SET close = excluded.close`,
		ticker, ds, close)
	return err
}

// LoadPrices reads the price panel for [start, end]. When the configured
// table or columns cannot be read, the error lists candidate tables that look
// price-shaped so the operator can fix the configuration.
func (db *DB) LoadPrices(q PriceQuery, start, end string) ([]PriceBar, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT %s AS ticker, date(%s) AS ds, %s AS px
		FROM %s
		WHERE %s BETWEEN ? AND ?`,
		q.TickerCol, q.DateCol, q.PriceCol, q.Table, q.DateCol)

	var out []PriceBar
	if err := db.conn.Select(&out, query, start, end); err != nil {
		hint := db.priceCandidateHint()
		return nil, fmt.Errorf("loading price table %s (%s/%s/%s): %w%s",
			q.Table, q.TickerCol, q.DateCol, q.PriceCol, err, hint)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("price table %s has no rows in %s..%s", q.Table, start, end)
	}
	return out, nil
}

// priceCandidateHint scans the schema for tables whose columns look like a
// price panel and formats them into an actionable message.
func (db *DB) priceCandidateHint() string {
	rows, err := db.conn.Query(
		"SELECT name FROM sqlite_master WHERE type IN ('table','view') ORDER BY name")
	if err != nil {
		return ""
	}
	defer rows.Close()

	var b strings.Builder
	for rows.Next() {
		var table string
		if rows.Scan(&table) != nil {
			continue
		}
		cols, err := db.tableColumns(table)
		if err != nil {
			continue
		}
		hasTicker := hasAny(cols, "ticker", "symbol", "code")
		hasDate := hasAny(cols, "ds", "date", "tradedate", "trade_date")
		hasClose := hasAny(cols, "close", "adj_close", "adjclose", "price", "px", "last")
		if hasTicker || hasDate || hasClose {
			fmt.Fprintf(&b, "\n  - %s (ticker:%t, date:%t, close:%t)", table, hasTicker, hasDate, hasClose)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "\ncandidate price tables:" + b.String()
}

func (db *DB) tableColumns(table string) ([]string, error) {
	if err := ValidateTable(table); err != nil {
		return nil, err
	}
	rows, err := db.conn.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, strings.ToLower(name))
	}
	return cols, rows.Err()
}

func hasAny(cols []string, names ...string) bool {
	for _, c := range cols {
		for _, n := range names {
			if c == n {
				return true
			}
		}
	}
	return false
}
