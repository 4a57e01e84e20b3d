package session

import (
	"testing"
	"time"
)

func TestParseCutoff(t *testing.T) {
	c, err := ParseCutoff("13:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Hour != 13 || c.Minute != 30 {
		t.Errorf("got %d:%d, want 13:30", c.Hour, c.Minute)
	}

	for _, bad := range []string{"", "13", "25:00", "13:60", "a:b", "13:30:00"} {
		if _, err := ParseCutoff(bad); err == nil {
			t.Errorf("ParseCutoff(%q) should fail", bad)
		}
	}
}

func TestAlignTradingDateBoundary(t *testing.T) {
	cutoff := Cutoff{Hour: 13, Minute: 30}
	tests := []struct {
		name string
		ts   time.Time
		want string
	}{
		{"minute before cutoff stays on T", time.Date(2024, 3, 5, 13, 29, 0, 0, time.UTC), "2024-03-05"},
		{"exactly at cutoff rolls to T+1", time.Date(2024, 3, 5, 13, 30, 0, 0, time.UTC), "2024-03-06"},
		{"after cutoff rolls to T+1", time.Date(2024, 3, 5, 20, 0, 0, 0, time.UTC), "2024-03-06"},
		{"morning stays on T", time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC), "2024-03-05"},
		{"midnight stays on T", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), "2024-03-05"},
		{"month boundary rolls over", time.Date(2024, 2, 29, 23, 59, 0, 0, time.UTC), "2024-03-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AlignTradingDate(tt.ts, cutoff).Format("2006-01-02")
			if got != tt.want {
				t.Errorf("AlignTradingDate(%v) = %s, want %s", tt.ts, got, tt.want)
			}
		})
	}
}

func TestAlignTradingDateNormalizesZone(t *testing.T) {
	cutoff := Cutoff{Hour: 13, Minute: 30}
	// 09:00 -0500 is 14:00 UTC, past the cutoff
	est := time.FixedZone("EST", -5*3600)
	ts := time.Date(2024, 3, 5, 9, 0, 0, 0, est)
	got := AlignTradingDate(ts, cutoff).Format("2006-01-02")
	if got != "2024-03-06" {
		t.Errorf("zone-shifted timestamp aligned to %s, want 2024-03-06", got)
	}
}
