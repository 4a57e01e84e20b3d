package score

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dmarche/newsquant/internal/database"
	"github.com/dmarche/newsquant/internal/tag"
)

// maxScoreChars bounds the text sent per scoring call.
const maxScoreChars = 8000

// Result summarizes one scoring run.
type Result struct {
	Scored int
	Tagged int
	Failed int
}

// Runner scores and tags articles that have no sentiment row yet. Scorer
// failures are terminal for the affected document; already-written rows are
// never touched.
type Runner struct {
	db       *database.DB
	provider Provider
	tagger   *tag.Tagger
	limit    int
}

func NewRunner(db *database.DB, provider Provider, tagger *tag.Tagger, limit int) *Runner {
	if limit <= 0 {
		limit = 500
	}
	return &Runner{db: db, provider: provider, tagger: tagger, limit: limit}
}

// Run scores up to the configured limit of unscored articles.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	articles, err := r.db.GetUnscoredArticles(r.limit)
	if err != nil {
		return nil, err
	}
	res := &Result{}
	if len(articles) == 0 {
		log.Info().Msg("no unscored articles")
		return res, nil
	}
	if !r.provider.IsConfigured() {
		log.Warn().Msg("scorer unavailable, leaving articles unscored")
		return res, nil
	}

	for _, a := range articles {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		text := a.Title
		if a.Content != nil && *a.Content != "" {
			text = text + "\n\n" + *a.Content
		}
		if len(text) > maxScoreChars {
			text = text[:maxScoreChars]
		}

		s, err := r.provider.ScoreText(ctx, text)
		if err != nil {
			res.Failed++
			log.Warn().Int64("news_id", a.NewsID).Err(err).Msg("scoring failed")
			continue
		}

		createdAt := articleTimestamp(a)
		if err := r.db.InsertDocScore(a.NewsID, createdAt, s.Value); err != nil {
			return res, err
		}
		res.Scored++

		matches := r.tagger.Match(text)
		if len(matches) > 0 {
			if err := r.db.InsertEntityMatches(a.NewsID, matches); err != nil {
				return res, err
			}
			res.Tagged++
		}
	}

	log.Info().Int("scored", res.Scored).Int("tagged", res.Tagged).Int("failed", res.Failed).
		Msg("scoring run complete")
	return res, nil
}

// articleTimestamp prefers the published date, then the collection time, then
// now. The sentiment row's created_at drives session alignment downstream.
func articleTimestamp(a database.Article) time.Time {
	if a.PublishedAt != nil {
		if ts, ok := parseLoose(*a.PublishedAt); ok {
			return ts
		}
	}
	if a.CollectedAt != nil {
		if ts, ok := parseLoose(*a.CollectedAt); ok {
			return ts
		}
	}
	return time.Now().UTC()
}

func parseLoose(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
