package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := parse([]byte("{}"))
	if err != nil {
		t.Fatalf("parse empty config: %v", err)
	}
	if cfg.Signals.TauDays != 30 {
		t.Errorf("tau_days default = %v, want 30", cfg.Signals.TauDays)
	}
	if cfg.Signals.NaNPolicy != "null" {
		t.Errorf("nan_policy default = %q, want null", cfg.Signals.NaNPolicy)
	}
	if cfg.Backtest.Cutoff != "13:30" {
		t.Errorf("cutoff default = %q, want 13:30", cfg.Backtest.Cutoff)
	}
	if got := cfg.Backtest.Horizons; len(got) != 3 || got[0] != 1 || got[1] != 5 || got[2] != 10 {
		t.Errorf("horizons default = %v, want [1 5 10]", got)
	}
	if cfg.Authority.Default != 1.0 {
		t.Errorf("authority default = %v, want 1.0", cfg.Authority.Default)
	}
	if cfg.Scorer.URL != "http://localhost:8500" {
		t.Errorf("scorer url default = %q", cfg.Scorer.URL)
	}
}

func TestParseOverrides(t *testing.T) {
	yaml := `
signals:
  tau_days: 10
  nan_policy: zero
backtest:
  cutoff: "09:00"
  horizons: [2]
universe:
  - ticker: AAPL
    industry: tech
    aliases: [Apple]
authority:
  default: 0.5
  sources:
    Reuters: 1.3
`
	cfg, err := parse([]byte(yaml))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Signals.TauDays != 10 || cfg.Signals.NaNPolicy != "zero" {
		t.Errorf("signals overrides not applied: %+v", cfg.Signals)
	}
	if cfg.Backtest.Cutoff != "09:00" || len(cfg.Backtest.Horizons) != 1 {
		t.Errorf("backtest overrides not applied: %+v", cfg.Backtest)
	}
	if len(cfg.Universe) != 1 || cfg.Universe[0].Ticker != "AAPL" {
		t.Errorf("universe not parsed: %+v", cfg.Universe)
	}
	if cfg.Authority.Sources["Reuters"] != 1.3 || cfg.Authority.Default != 0.5 {
		t.Errorf("authority not parsed: %+v", cfg.Authority)
	}
	// untouched sections keep their defaults
	if cfg.Backtest.PriceTable != "prices_daily" {
		t.Errorf("price_table default lost: %q", cfg.Backtest.PriceTable)
	}
}

func TestParseRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"bad nan policy", "signals:\n  nan_policy: drop\n"},
		{"inverted winsor bounds", "signals:\n  winsor_low: 0.9\n  winsor_high: 0.1\n"},
		{"winsor high above one", "signals:\n  winsor_high: 1.5\n"},
		{"not yaml", ":::"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parse([]byte(tc.yaml)); err == nil {
				t.Errorf("expected error for %q", tc.yaml)
			}
		})
	}
}

func TestEmbeddedDefaultParses(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("embedded default config must parse: %v", err)
	}
	if len(cfg.Sources.Feeds) == 0 {
		t.Error("embedded default should ship at least one feed")
	}
	if len(cfg.Universe) == 0 {
		t.Error("embedded default should ship a starter universe")
	}
}

func TestResolveConfigPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ResolveConfigPath(path)
	if err != nil || got != path {
		t.Errorf("explicit path: got %q, %v", got, err)
	}

	if _, err := ResolveConfigPath(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing explicit path should error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "reading config") {
		t.Errorf("want reading config error, got %v", err)
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	if got := cfg.GetDataDir(); got == "" {
		t.Error("empty data dir should fall back to XDG default")
	}
	cfg.Output.DataDir = "/tmp/custom"
	if got := cfg.GetDataDir(); got != "/tmp/custom" {
		t.Errorf("explicit data dir ignored: %q", got)
	}
}
