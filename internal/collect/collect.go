// Package collect gathers financial news articles from RSS feeds and NewsAPI
// into the raw article table.
package collect

import (
	"github.com/rs/zerolog/log"

	"github.com/dmarche/newsquant/internal/config"
	"github.com/dmarche/newsquant/internal/database"
)

// Result holds the results of a collection run.
type Result struct {
	TotalFound  int
	NewArticles int
	Duplicates  int
	Sources     map[string]int
}

// Collector orchestrates article collection from RSS feeds and NewsAPI.
type Collector struct {
	db         *database.DB
	feedParser *FeedParser
	newsClient *NewsAPIClient
	newsQuery  string
	daysBack   int
}

// NewCollector creates a new article collector.
func NewCollector(cfg *config.Config, db *database.DB, daysBack int) *Collector {
	c := &Collector{
		db:       db,
		daysBack: daysBack,
	}

	if len(cfg.Sources.Feeds) > 0 {
		feeds := make([]FeedConfig, len(cfg.Sources.Feeds))
		for i, f := range cfg.Sources.Feeds {
			feeds[i] = FeedConfig{URL: f.URL, Name: f.Name}
		}
		c.feedParser = NewFeedParser(feeds)
	}

	apiCfg := cfg.Sources.APIs.NewsAPI
	if apiCfg.Enabled {
		c.newsClient = NewNewsAPIClient(apiCfg.APIKeyEnv)
		c.newsQuery = apiCfg.Query
		if c.newsQuery == "" {
			c.newsQuery = "stock market earnings"
		}
	}

	return c
}

// Collect collects articles from all configured sources. Duplicate URLs are
// counted but never rewritten.
func (c *Collector) Collect() *Result {
	r := &Result{Sources: make(map[string]int)}

	if c.feedParser != nil {
		log.Info().Msg("collecting from RSS feeds")
		entries := c.feedParser.ParseAll(c.daysBack)
		r.TotalFound += len(entries)
		for _, entry := range entries {
			c.store(r, entry.URL, entry.Title, entry.Source, entry.PublishedDate, entry.Content)
		}
	}

	if c.newsClient != nil && c.newsClient.IsConfigured() {
		log.Info().Msg("collecting from NewsAPI")
		articles := c.newsClient.Search(c.newsQuery, c.daysBack, 100)
		r.TotalFound += len(articles)
		for _, a := range articles {
			c.store(r, a.URL, a.Title, a.Source, a.PublishedDate, a.Content)
		}
	}

	log.Info().Int("found", r.TotalFound).Int("new", r.NewArticles).Int("duplicates", r.Duplicates).
		Msg("collection complete")
	return r
}

func (c *Collector) store(r *Result, articleURL, title, sourceName, pubDate, content string) {
	var source, published, body *string
	if sourceName != "" {
		source = &sourceName
	}
	if pubDate != "" {
		published = &pubDate
	}
	if content != "" {
		body = &content
	}

	id, _ := c.db.InsertArticle(articleURL, title, source, published, body)
	if id > 0 {
		r.NewArticles++
		r.Sources[sourceName]++
	} else {
		r.Duplicates++
	}
}
