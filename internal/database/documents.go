package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// InsertArticle inserts an article. Returns the ID on success, 0 if duplicate.
func (db *DB) InsertArticle(url, title string, source, publishedAt, content *string) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO news_raw (url, title, source, published_at, content)
		VALUES (?, ?, ?, ?, ?)`,
		url, title, source, publishedAt, content,
	)
	if err != nil {
		// Duplicate URL constraint
		return 0, nil //nolint: nilerr
	}
	return result.LastInsertId()
}

// GetArticlesNeedingFetch returns articles with empty content that haven't
// been fetch-attempted yet.
func (db *DB) GetArticlesNeedingFetch() ([]Article, error) {
	rows, err := db.conn.Query(
		`SELECT news_id, url, title, source, published_at, content, content_fetched, collected_at
		FROM news_raw WHERE (content IS NULL OR content = '') AND content_fetched = 0
		ORDER BY news_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

// UpdateArticleContent updates article content after fetching.
func (db *DB) UpdateArticleContent(newsID int64, content *string) error {
	_, err := db.conn.Exec(
		"UPDATE news_raw SET content = ?, content_fetched = 1 WHERE news_id = ?",
		content, newsID,
	)
	return err
}

// MarkArticleFetchAttempted marks that we tried to fetch content.
func (db *DB) MarkArticleFetchAttempted(newsID int64) error {
	_, err := db.conn.Exec(
		"UPDATE news_raw SET content_fetched = 1 WHERE news_id = ?", newsID,
	)
	return err
}

// GetUnscoredArticles returns articles without a sentiment row, oldest first.
func (db *DB) GetUnscoredArticles(limit int) ([]Article, error) {
	rows, err := db.conn.Query(
		`SELECT a.news_id, a.url, a.title, a.source, a.published_at, a.content, a.content_fetched, a.collected_at
		FROM news_raw a LEFT JOIN news_doc_sentiment s ON a.news_id = s.news_id
		WHERE s.news_id IS NULL
		ORDER BY a.news_id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

// InsertDocScore records the scorer's verdict for a document.
func (db *DB) InsertDocScore(newsID int64, createdAt time.Time, score float64) error {
	_, err := db.conn.Exec(
		`INSERT INTO news_doc_sentiment (news_id, created_at, doc_score)
		VALUES (?, ?, ?)
		ON CONFLICT(news_id) DO UPDATE SET created_at = excluded.created_at, doc_score = excluded.doc_score`,
		newsID, createdAt.UTC().Format(time.RFC3339), score,
	)
	return err
}

// InsertEntityMatches stores the JSON-encoded entity matches for a document.
func (db *DB) InsertEntityMatches(newsID int64, matches []EntityMatch) error {
	data, err := json.Marshal(matches)
	if err != nil {
		return fmt.Errorf("encoding entity matches: %w", err)
	}
	_, err = db.conn.Exec(
		`INSERT INTO news_entity (news_id, matched_json) VALUES (?, ?)
		ON CONFLICT(news_id) DO UPDATE SET matched_json = excluded.matched_json`,
		newsID, string(data),
	)
	return err
}

// FetchRecentDocScores returns per-document scores whose created_at lies in
// the trailing lookback window, newest documents first, capped by limit to
// bound memory.
func (db *DB) FetchRecentDocScores(lookbackDays, limit int) ([]DocScore, error) {
	since := time.Now().UTC().AddDate(0, 0, -lookbackDays).Format(time.RFC3339)
	var out []DocScore
	err := db.conn.Select(&out,
		`SELECT news_id, created_at, date(created_at) AS ds, doc_score
		FROM news_doc_sentiment
		WHERE created_at >= ?
		ORDER BY news_id DESC LIMIT ?`, since, limit,
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}

const fetchChunkSize = 800

// FetchEntitiesForIDs returns matched_json rows for exactly the given
// document ids, chunked to bound query size. throttle pauses between chunks.
func (db *DB) FetchEntitiesForIDs(ids []int64, throttle time.Duration) ([]EntityRow, error) {
	var out []EntityRow
	err := db.forEachIDChunk(ids, throttle, func(part []int64) error {
		query, args, err := sqlx.In(
			"SELECT news_id, matched_json FROM news_entity WHERE news_id IN (?)", part)
		if err != nil {
			return err
		}
		var rows []EntityRow
		if err := db.conn.Select(&rows, db.conn.Rebind(query), args...); err != nil {
			return err
		}
		out = append(out, rows...)
		return nil
	})
	return out, err
}

// FetchMetaForIDs returns publisher metadata (source, publication date) for
// the given document ids, chunked. Missing rows simply don't appear.
func (db *DB) FetchMetaForIDs(ids []int64, throttle time.Duration) ([]DocMeta, error) {
	var out []DocMeta
	err := db.forEachIDChunk(ids, throttle, func(part []int64) error {
		query, args, err := sqlx.In(
			"SELECT news_id, source, date(published_at) AS pub_date FROM news_raw WHERE news_id IN (?)", part)
		if err != nil {
			return err
		}
		var rows []DocMeta
		if err := db.conn.Select(&rows, db.conn.Rebind(query), args...); err != nil {
			return err
		}
		out = append(out, rows...)
		return nil
	})
	return out, err
}

func (db *DB) forEachIDChunk(ids []int64, throttle time.Duration, f func([]int64) error) error {
	for i := 0; i < len(ids); i += fetchChunkSize {
		end := i + fetchChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		if err := f(ids[i:end]); err != nil {
			return err
		}
		if throttle > 0 && end < len(ids) {
			time.Sleep(throttle)
		}
	}
	return nil
}

func scanArticles(rows *sql.Rows) ([]Article, error) {
	var articles []Article
	for rows.Next() {
		var a Article
		var fetched int
		if err := rows.Scan(&a.NewsID, &a.URL, &a.Title, &a.Source, &a.PublishedAt,
			&a.Content, &fetched, &a.CollectedAt); err != nil {
			return nil, err
		}
		a.ContentFetched = fetched != 0
		articles = append(articles, a)
	}
	return articles, rows.Err()
}
