package database

import (
	"database/sql"
	"fmt"
)

// SignalQuery names the raw-signal and entity tables with their resolved
// columns. Built by ResolveSignalQuery; all identifiers are validated before
// they reach query text.
type SignalQuery struct {
	SigTable    string
	SigIDCol    string
	SigTimeCol  string
	SigScoreCol string

	NewsTable string // "" when no metadata table is available
	NewsFKCol string

	EntTable   string // "" when entity columns could not be resolved
	EntFKCol   string
	EntJSONCol string
}

// RawSignalRow is one row of the wide raw-signal join consumed by the
// backtest iterator.
type RawSignalRow struct {
	SigID       int64          `db:"sig_id"`
	PubTS       string         `db:"pub_ts"` // published_at, falling back to the signal timestamp
	Score       float64        `db:"doc_score"`
	MatchedJSON sql.NullString `db:"matched_json"`
}

// ResolveSignalQuery probes the store for the signal/news/entity column names,
// honoring any non-empty overrides. Missing id/time/score columns are fatal
// with the tried candidates in the message; a missing entity table degrades to
// no entity join.
func (db *DB) ResolveSignalQuery(r *ColumnResolver, sigTable, sigID, sigTime, sigScore, entTable, entFK, entJSON string) (SignalQuery, error) {
	q := SignalQuery{SigTable: sigTable, SigIDCol: sigID, SigTimeCol: sigTime, SigScoreCol: sigScore}

	if !r.TableExists(sigTable) {
		return q, fmt.Errorf("signal table %s does not exist or is not queryable", sigTable)
	}

	var err error
	if q.SigIDCol == "" {
		if q.SigIDCol, err = r.ResolveRequired(sigTable, []string{"news_id", "id", "doc_id"}); err != nil {
			return q, err
		}
	}
	if q.SigTimeCol == "" {
		if q.SigTimeCol, err = r.ResolveRequired(sigTable, []string{"created_at", "created", "ts", "timestamp", "published_at"}); err != nil {
			return q, err
		}
	}
	if q.SigScoreCol == "" {
		if q.SigScoreCol, err = r.ResolveRequired(sigTable, []string{"doc_score", "score", "sent_score", "sentiment"}); err != nil {
			return q, err
		}
	}

	for _, newsTable := range []string{"news_raw", "news"} {
		if r.TableExists(newsTable) {
			fk, err := r.Resolve(newsTable, []string{"news_id", "id", "doc_id"})
			if err == nil && fk != "" {
				q.NewsTable = newsTable
				q.NewsFKCol = fk
				break
			}
		}
	}

	if entTable != "" && r.TableExists(entTable) {
		if q.EntFKCol = entFK; q.EntFKCol == "" {
			q.EntFKCol, _ = r.Resolve(entTable, []string{"news_id", "id", "doc_id"})
		}
		if q.EntJSONCol = entJSON; q.EntJSONCol == "" {
			q.EntJSONCol, _ = r.Resolve(entTable, []string{"matched_json", "entities_json", "matched", "json"})
		}
		if q.EntFKCol != "" && q.EntJSONCol != "" {
			q.EntTable = entTable
		}
	}

	return q, q.validate()
}

func (q SignalQuery) validate() error {
	if err := ValidateTable(q.SigTable); err != nil {
		return err
	}
	for _, c := range []string{q.SigIDCol, q.SigTimeCol, q.SigScoreCol} {
		if err := ValidateColumn(c); err != nil {
			return err
		}
	}
	if q.NewsTable != "" {
		if err := ValidateTable(q.NewsTable); err != nil {
			return err
		}
		if err := ValidateColumn(q.NewsFKCol); err != nil {
			return err
		}
	}
	if q.EntTable != "" {
		if err := ValidateTable(q.EntTable); err != nil {
			return err
		}
		if err := ValidateColumn(q.EntFKCol); err != nil {
			return err
		}
		if err := ValidateColumn(q.EntJSONCol); err != nil {
			return err
		}
	}
	return nil
}

// FetchSignalBatch returns up to limit raw-signal rows with id strictly
// greater than lastID, in increasing id order, restricted to the half-open
// timestamp window [startTS, endTS). This keyset form avoids offset
// pagination on unbounded tables.
func (db *DB) FetchSignalBatch(q SignalQuery, startTS, endTS string, lastID int64, limit int) ([]RawSignalRow, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	pubExpr := fmt.Sprintf("d.%s", q.SigTimeCol)
	joins := ""
	if q.NewsTable != "" {
		pubExpr = fmt.Sprintf("COALESCE(r.published_at, d.%s)", q.SigTimeCol)
		joins += fmt.Sprintf(" LEFT JOIN %s r ON r.%s = d.%s", q.NewsTable, q.NewsFKCol, q.SigIDCol)
	}
	jsonExpr := "NULL AS matched_json"
	if q.EntTable != "" {
		jsonExpr = fmt.Sprintf("e.%s AS matched_json", q.EntJSONCol)
		joins += fmt.Sprintf(" LEFT JOIN %s e ON e.%s = d.%s", q.EntTable, q.EntFKCol, q.SigIDCol)
	}

	query := fmt.Sprintf(`
		SELECT d.%s AS sig_id, %s AS pub_ts, d.%s AS doc_score, %s
		FROM %s d%s
		WHERE d.%s >= ? AND d.%s < ? AND d.%s > ?
		ORDER BY d.%s ASC
		LIMIT ?`,
		q.SigIDCol, pubExpr, q.SigScoreCol, jsonExpr,
		q.SigTable, joins,
		q.SigTimeCol, q.SigTimeCol, q.SigIDCol,
		q.SigIDCol)

	var out []RawSignalRow
	if err := db.conn.Select(&out, query, startTS, endTS, lastID, limit); err != nil {
		return nil, fmt.Errorf("fetching signal batch after id %d: %w", lastID, err)
	}
	return out, nil
}
