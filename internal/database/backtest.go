package database

// Backtest history tables are append-only: each run accumulates rows rather
// than overwriting earlier ones. Cross-run comparison stays possible, and the
// asymmetry with the idempotent panel upserts is intentional.

// InsertRunParams appends the resolved configuration snapshot of one backtest
// run for audit and reproducibility.
func (db *DB) InsertRunParams(paramsJSON string) (int64, error) {
	res, err := db.conn.Exec("INSERT INTO bt_params (params) VALUES (?)", paramsJSON)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// InsertMetricRow appends one horizon-level metric summary.
func (db *DB) InsertMetricRow(r MetricRow) error {
	_, err := db.conn.Exec(`
		INSERT INTO bt_signal_ic (kind, horizon, fold, year, ic, ic_p, ric, ric_p, hitrate, n_days, n_pairs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Kind, r.Horizon, r.Fold, r.Year, r.IC, r.ICP, r.RIC, r.RICP, r.HitRate, r.NDays, r.NPairs)
	return err
}

// InsertEventRow appends one event-study summary.
func (db *DB) InsertEventRow(r EventRow) error {
	_, err := db.conn.Exec(`
		INSERT INTO bt_event_study (kind, side, horizon, year, mean_ret, n_events)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.Kind, r.Side, r.Horizon, r.Year, r.MeanRet, r.NEvents)
	return err
}

// GetLatestMetricRows returns the metric rows written by the most recent run,
// newest first.
func (db *DB) GetLatestMetricRows(limit int) ([]MetricRow, error) {
	rows, err := db.conn.Query(`
		SELECT kind, horizon, fold, year, ic, ic_p, ric, ric_p, hitrate, n_days, n_pairs
		FROM bt_signal_ic ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MetricRow
	for rows.Next() {
		var r MetricRow
		if err := rows.Scan(&r.Kind, &r.Horizon, &r.Fold, &r.Year,
			&r.IC, &r.ICP, &r.RIC, &r.RICP, &r.HitRate, &r.NDays, &r.NPairs); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetLatestEventRows returns the event-study rows written by the most recent
// run, newest first.
func (db *DB) GetLatestEventRows(limit int) ([]EventRow, error) {
	rows, err := db.conn.Query(`
		SELECT kind, side, horizon, year, mean_ret, n_events
		FROM bt_event_study ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var r EventRow
		if err := rows.Scan(&r.Kind, &r.Side, &r.Horizon, &r.Year, &r.MeanRet, &r.NEvents); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetStats returns aggregate row counts for the status command.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}
	counts := []struct {
		dst   *int
		query string
	}{
		{&s.TotalArticles, "SELECT COUNT(*) FROM news_raw"},
		{&s.ScoredDocs, "SELECT COUNT(*) FROM news_doc_sentiment"},
		{&s.TaggedDocs, "SELECT COUNT(*) FROM news_entity"},
		{&s.PriceRows, "SELECT COUNT(*) FROM prices_daily"},
		{&s.EntityPanel, "SELECT COUNT(*) FROM signals_entity_daily"},
		{&s.IndustryPanel, "SELECT COUNT(*) FROM signals_industry_daily"},
		{&s.MarketPanel, "SELECT COUNT(*) FROM signals_market_daily"},
		{&s.BacktestRuns, "SELECT COUNT(*) FROM bt_params"},
		{&s.MetricRows, "SELECT COUNT(*) FROM bt_signal_ic"},
		{&s.EventRows, "SELECT COUNT(*) FROM bt_event_study"},
	}
	for _, c := range counts {
		if err := db.conn.QueryRow(c.query).Scan(c.dst); err != nil {
			return nil, err
		}
	}
	return s, nil
}
