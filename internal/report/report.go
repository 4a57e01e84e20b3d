// Package report renders a markdown and HTML summary of the latest backtest
// results and recent market-level sentiment.
package report

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"

	"github.com/dmarche/newsquant/internal/database"
)

const (
	latestMetricLimit = 30
	latestEventLimit  = 60
	marketWindowDays  = 30
)

var md = goldmark.New()

// Reporter builds the summary report from the warehouse.
type Reporter struct {
	db *database.DB
}

func NewReporter(db *database.DB) *Reporter {
	return &Reporter{db: db}
}

// Write renders the report and writes report.md and report.html under outDir.
func (r *Reporter) Write(outDir string) error {
	body, err := r.build()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	mdPath := filepath.Join(outDir, "report.md")
	if err := os.WriteFile(mdPath, []byte(body), 0o644); err != nil {
		return err
	}

	var html bytes.Buffer
	if err := md.Convert([]byte(body), &html); err != nil {
		return fmt.Errorf("rendering report HTML: %w", err)
	}
	htmlPath := filepath.Join(outDir, "report.html")
	if err := os.WriteFile(htmlPath, html.Bytes(), 0o644); err != nil {
		return err
	}

	log.Info().Str("md", mdPath).Str("html", htmlPath).Msg("report written")
	return nil
}

func (r *Reporter) build() (string, error) {
	metrics, err := r.db.GetLatestMetricRows(latestMetricLimit)
	if err != nil {
		return "", err
	}
	events, err := r.db.GetLatestEventRows(latestEventLimit)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	start := now.AddDate(0, 0, -marketWindowDays).Format("2006-01-02")
	end := now.Format("2006-01-02")
	market, err := r.db.GetMarketDailyRange(start, end)
	if err != nil {
		return "", err
	}
	calendar, err := r.db.LoadCalendar(start, end)
	if err != nil {
		return "", err
	}
	openDays := 0
	for _, d := range calendar {
		if d.IsOpen {
			openDays++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Signal Report\n\nGenerated %s\n\n", now.Format("2006-01-02 15:04 UTC"))

	b.WriteString("## Latest Backtest Metrics\n\n")
	if len(metrics) == 0 {
		b.WriteString("No backtest runs recorded.\n\n")
	} else {
		b.WriteString("| Fold | Horizon | IC | p | RankIC | p | Hit rate | Days | Pairs |\n")
		b.WriteString("|---|---|---|---|---|---|---|---|---|\n")
		for _, m := range metrics {
			fmt.Fprintf(&b, "| %s | %d | %s | %s | %s | %s | %s | %d | %d |\n",
				m.Fold, m.Horizon,
				cell(m.IC), cell(m.ICP), cell(m.RIC), cell(m.RICP), cell(m.HitRate),
				m.NDays, m.NPairs)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Latest Event Studies\n\n")
	if len(events) == 0 {
		b.WriteString("No event studies recorded.\n\n")
	} else {
		b.WriteString("| Side | Horizon | Mean return | Events |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, e := range events {
			fmt.Fprintf(&b, "| %s | %d | %.4f | %d |\n", e.Side, e.Horizon, e.MeanRet, e.NEvents)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Market Sentiment (last %d days)\n\n", marketWindowDays)
	fmt.Fprintf(&b, "%d trading sessions in window, market rows for %d.\n\n", openDays, len(market))
	if len(market) == 0 {
		b.WriteString("No market panel rows in window.\n")
	} else {
		b.WriteString("| Date | Docs | Mean | EWMA 20 | Z 30 | Surprise |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for _, row := range market {
			fmt.Fprintf(&b, "| %s | %d | %s | %s | %s | %s |\n",
				row.DS, row.NDocs,
				cell(row.MeanScore), cell(row.EWMA20), cell(row.ZScore30), cell(row.SurpriseSrc7))
		}
	}

	return b.String(), nil
}

func cell(v sql.NullFloat64) string {
	if !v.Valid {
		return "-"
	}
	return fmt.Sprintf("%.4f", v.Float64)
}
