package database

// Panel table writes. Each upsert is keyed by the natural composite key
// (group, ds), so re-running aggregation over an unchanged window rewrites
// identical rows.

// UpsertEntityDaily writes one entity panel row keyed by (ticker, ds).
func (db *DB) UpsertEntityDaily(r PanelRow) error {
	_, err := db.conn.Exec(`
		INSERT INTO signals_entity_daily
			(ticker, ds, n_docs, mean_score, weighted_mean, ewma_20, zscore_30, cum30, surprise_src7)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker, ds) DO UPDATE SET
			n_docs = excluded.n_docs,
			mean_score = excluded.mean_score,
			weighted_mean = excluded.weighted_mean,
			ewma_20 = excluded.ewma_20,
			zscore_30 = excluded.zscore_30,
			cum30 = excluded.cum30,
			surprise_src7 = excluded.surprise_src7`,
		r.Key, r.DS, r.NDocs, r.MeanScore, r.WeightedMean, r.EWMA20, r.ZScore30, r.Cum30, r.SurpriseSrc7)
	return err
}

// UpsertIndustryDaily writes one industry panel row keyed by (industry, ds).
func (db *DB) UpsertIndustryDaily(r PanelRow) error {
	_, err := db.conn.Exec(`
		INSERT INTO signals_industry_daily
			(industry, ds, n_docs, mean_score, weighted_mean, ewma_20, zscore_30, cum30, surprise_src7)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(industry, ds) DO UPDATE SET
			n_docs = excluded.n_docs,
			mean_score = excluded.mean_score,
			weighted_mean = excluded.weighted_mean,
			ewma_20 = excluded.ewma_20,
			zscore_30 = excluded.zscore_30,
			cum30 = excluded.cum30,
			surprise_src7 = excluded.surprise_src7`,
		r.Key, r.DS, r.NDocs, r.MeanScore, r.WeightedMean, r.EWMA20, r.ZScore30, r.Cum30, r.SurpriseSrc7)
	return err
}

// UpsertMarketDaily writes one market panel row keyed by ds alone.
func (db *DB) UpsertMarketDaily(r PanelRow) error {
	_, err := db.conn.Exec(`
		INSERT INTO signals_market_daily
			(ds, n_docs, mean_score, weighted_mean, ewma_20, zscore_30, cum30, surprise_src7)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ds) DO UPDATE SET
			n_docs = excluded.n_docs,
			mean_score = excluded.mean_score,
			weighted_mean = excluded.weighted_mean,
			ewma_20 = excluded.ewma_20,
			zscore_30 = excluded.zscore_30,
			cum30 = excluded.cum30,
			surprise_src7 = excluded.surprise_src7`,
		r.DS, r.NDocs, r.MeanScore, r.WeightedMean, r.EWMA20, r.ZScore30, r.Cum30, r.SurpriseSrc7)
	return err
}

// GetEntityDailyRange reads entity panel rows for a date range, ordered by
// (ticker, ds). Used by the backtest fallback path and the report.
func (db *DB) GetEntityDailyRange(start, end string) ([]PanelRow, error) {
	var out []PanelRow
	err := db.conn.Select(&out, `
		SELECT ticker AS key, ds, n_docs, mean_score, weighted_mean, ewma_20, zscore_30, cum30, surprise_src7
		FROM signals_entity_daily
		WHERE ds BETWEEN ? AND ?
		ORDER BY ticker, ds`, start, end)
	return out, err
}

// GetMarketDailyRange reads market panel rows for a date range, ordered by ds.
func (db *DB) GetMarketDailyRange(start, end string) ([]PanelRow, error) {
	var out []PanelRow
	err := db.conn.Select(&out, `
		SELECT '' AS key, ds, n_docs, mean_score, weighted_mean, ewma_20, zscore_30, cum30, surprise_src7
		FROM signals_market_daily
		WHERE ds BETWEEN ? AND ?
		ORDER BY ds`, start, end)
	return out, err
}
