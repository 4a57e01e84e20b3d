package score

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmarche/newsquant/internal/config"
	"github.com/dmarche/newsquant/internal/database"
	"github.com/dmarche/newsquant/internal/tag"
)

type fakeProvider struct {
	configured bool
	scores     map[string]float64
	failOn     string
	calls      int
}

func (f *fakeProvider) IsConfigured() bool { return f.configured }

func (f *fakeProvider) ScoreText(ctx context.Context, text string) (Score, error) {
	f.calls++
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return Score{}, errors.New("classifier exploded")
	}
	for frag, v := range f.scores {
		if strings.Contains(text, frag) {
			return Score{Value: v}, nil
		}
	}
	return Score{}, nil
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func testTagger() *tag.Tagger {
	return tag.New([]config.Entity{
		{Ticker: "AAPL", Industry: "tech", Aliases: []string{"Apple"}},
	})
}

func TestRunnerScoresAndTags(t *testing.T) {
	db := openTestDB(t)
	published := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC).Format(time.RFC3339)
	id1, err := db.InsertArticle("https://example.com/1", "Apple beats estimates",
		ptr("Reuters"), ptr(published), ptr("Apple reported record revenue."))
	if err != nil || id1 == 0 {
		t.Fatalf("insert: id=%d err=%v", id1, err)
	}
	id2, err := db.InsertArticle("https://example.com/2", "Oil prices steady",
		ptr("Reuters"), ptr(published), nil)
	if err != nil || id2 == 0 {
		t.Fatalf("insert: id=%d err=%v", id2, err)
	}

	provider := &fakeProvider{configured: true, scores: map[string]float64{"Apple": 0.8, "Oil": -0.1}}
	res, err := NewRunner(db, provider, testTagger(), 0).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Scored != 2 || res.Tagged != 1 || res.Failed != 0 {
		t.Errorf("result = %+v, want 2 scored / 1 tagged / 0 failed", res)
	}

	// scored articles leave the queue
	remaining, err := db.GetUnscoredArticles(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 0 {
		t.Errorf("expected empty queue, got %d", len(remaining))
	}
}

func TestRunnerScorerFailureIsPerDocument(t *testing.T) {
	db := openTestDB(t)
	for i, title := range []string{"Apple surges", "toxic document", "markets calm"} {
		url := "https://example.com/" + string(rune('a'+i))
		if _, err := db.InsertArticle(url, title, nil, nil, nil); err != nil {
			t.Fatal(err)
		}
	}

	provider := &fakeProvider{configured: true, failOn: "toxic"}
	res, err := NewRunner(db, provider, testTagger(), 0).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Scored != 2 || res.Failed != 1 {
		t.Errorf("result = %+v, want 2 scored / 1 failed", res)
	}

	// the failed document stays queued for the next run
	remaining, err := db.GetUnscoredArticles(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 || remaining[0].Title != "toxic document" {
		t.Errorf("queue = %+v", remaining)
	}
}

func TestRunnerSkipsWhenScorerUnavailable(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.InsertArticle("https://example.com/1", "headline", nil, nil, nil); err != nil {
		t.Fatal(err)
	}

	provider := &fakeProvider{configured: false}
	res, err := NewRunner(db, provider, testTagger(), 0).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Scored != 0 || provider.calls != 0 {
		t.Errorf("unavailable scorer must not be called: %+v calls=%d", res, provider.calls)
	}
}

func TestRunnerHonorsLimit(t *testing.T) {
	db := openTestDB(t)
	for _, u := range []string{"https://example.com/1", "https://example.com/2", "https://example.com/3"} {
		if _, err := db.InsertArticle(u, "headline", nil, nil, nil); err != nil {
			t.Fatal(err)
		}
	}

	provider := &fakeProvider{configured: true}
	res, err := NewRunner(db, provider, testTagger(), 2).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Scored != 2 {
		t.Errorf("limit ignored: %+v", res)
	}
}

func TestArticleTimestampFallbacks(t *testing.T) {
	published := "2024-03-04T09:00:00Z"
	collected := "2024-03-05 10:00:00"

	a := database.Article{PublishedAt: &published, CollectedAt: &collected}
	if got := articleTimestamp(a); got.Day() != 4 {
		t.Errorf("published date should win: %v", got)
	}

	a = database.Article{CollectedAt: &collected}
	if got := articleTimestamp(a); got.Day() != 5 {
		t.Errorf("collected date is the fallback: %v", got)
	}

	garbage := "not a date"
	a = database.Article{PublishedAt: &garbage}
	if got := articleTimestamp(a); time.Since(got) > time.Minute {
		t.Errorf("unparseable dates should fall back to now: %v", got)
	}
}
