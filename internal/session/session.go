// Package session implements the T/T+1 trading-session alignment rule shared
// by the signal aggregation model and the backtest iterator: news published at
// or after the daily cutoff is priced in the next session.
package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cutoff is a time-of-day boundary (e.g. 13:30 for a market close).
type Cutoff struct {
	Hour   int
	Minute int
}

// ParseCutoff parses an "HH:MM" string.
func ParseCutoff(s string) (Cutoff, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return Cutoff{}, fmt.Errorf("invalid cutoff %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return Cutoff{}, fmt.Errorf("invalid cutoff hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return Cutoff{}, fmt.Errorf("invalid cutoff minute in %q", s)
	}
	return Cutoff{Hour: h, Minute: m}, nil
}

// AlignTradingDate assigns a publication timestamp to a trading date.
// Timestamps are normalized to UTC before comparison so that the two engines
// agree regardless of the zone the store handed back. Publication strictly
// before the cutoff belongs to the same calendar date; at or after the cutoff
// it rolls to the next date.
func AlignTradingDate(ts time.Time, c Cutoff) time.Time {
	u := ts.UTC()
	day := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	if u.Hour() > c.Hour || (u.Hour() == c.Hour && u.Minute() >= c.Minute) {
		return day.AddDate(0, 0, 1)
	}
	return day
}
