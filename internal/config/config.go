package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Sources   Sources   `yaml:"sources"`
	Scorer    Scorer    `yaml:"scorer"`
	Authority Authority `yaml:"authority"`
	Universe  []Entity  `yaml:"universe"`
	Signals   Signals   `yaml:"signals"`
	Backtest  Backtest  `yaml:"backtest"`
	Output    Output    `yaml:"output"`
	Logging   Logging   `yaml:"logging"`
}

type Sources struct {
	Feeds []Feed     `yaml:"feeds"`
	APIs  APIsConfig `yaml:"apis"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type APIsConfig struct {
	NewsAPI NewsAPIConfig `yaml:"newsapi"`
}

type NewsAPIConfig struct {
	Enabled   bool   `yaml:"enabled"`
	APIKeyEnv string `yaml:"api_key_env"`
	Query     string `yaml:"query"`
}

// Scorer configures the external per-document sentiment scorer.
type Scorer struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// Authority maps publisher names to trust multipliers. Unknown publishers
// receive Default, never zero.
type Authority struct {
	Default float64            `yaml:"default"`
	Sources map[string]float64 `yaml:"sources"`
}

// Entity is one tradable name in the tagging universe.
type Entity struct {
	Ticker   string   `yaml:"ticker"`
	Industry string   `yaml:"industry"`
	Aliases  []string `yaml:"aliases"`
}

// Signals holds the aggregation engine parameters.
type Signals struct {
	LookbackDays int     `yaml:"lookback_days"`
	Limit        int     `yaml:"limit"`
	TauDays      float64 `yaml:"tau_days"`
	WinsorLow    float64 `yaml:"winsor_low"`
	WinsorHigh   float64 `yaml:"winsor_high"`
	MedianWindow int     `yaml:"median_window"`
	MinDocs      int     `yaml:"min_docs"`
	NaNPolicy    string  `yaml:"nan_policy"` // "null" or "zero"
	ThrottleMs   int     `yaml:"throttle_ms"`
}

// Backtest holds the evaluation engine parameters. Table and column names are
// independently overridable to tolerate schema drift; empty column names are
// auto-detected against the store.
type Backtest struct {
	Cutoff     string  `yaml:"cutoff"`
	Horizons   []int   `yaml:"horizons"`
	Percentile float64 `yaml:"percentile"`
	ChunkSize  int     `yaml:"chunk_size"`
	ThrottleMs int     `yaml:"throttle_ms"`
	MinDocs    int     `yaml:"min_docs"`

	PriceTable string `yaml:"price_table"`
	TickerCol  string `yaml:"ticker_col"`
	DateCol    string `yaml:"date_col"`
	PriceCol   string `yaml:"price_col"`

	SigTable    string `yaml:"sig_table"`
	SigIDCol    string `yaml:"sig_id_col"`
	SigTimeCol  string `yaml:"sig_time_col"`
	SigScoreCol string `yaml:"sig_score_col"`

	EntTable   string `yaml:"ent_table"`
	EntFKCol   string `yaml:"ent_fk_col"`
	EntJSONCol string `yaml:"ent_json_col"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
	OutDir  string `yaml:"out_dir"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for newsquant.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "newsquant")
}

// DataDir returns the XDG data directory for newsquant.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "newsquant")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/newsquant/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'newsquant init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Sources: Sources{
			APIs: APIsConfig{
				NewsAPI: NewsAPIConfig{
					Enabled:   false,
					APIKeyEnv: "NEWSAPI_KEY",
					Query:     "stock market earnings",
				},
			},
		},
		Scorer: Scorer{
			URL:            "http://localhost:8500",
			TimeoutSeconds: 30,
			MaxRetries:     3,
		},
		Authority: Authority{Default: 1.0},
		Signals: Signals{
			LookbackDays: 120,
			Limit:        50000,
			TauDays:      30,
			WinsorLow:    0.05,
			WinsorHigh:   0.95,
			MedianWindow: 3,
			MinDocs:      1,
			NaNPolicy:    "null",
		},
		Backtest: Backtest{
			Cutoff:     "13:30",
			Horizons:   []int{1, 5, 10},
			Percentile: 0.95,
			ChunkSize:  2000,
			MinDocs:    1,
			PriceTable: "prices_daily",
			TickerCol:  "ticker",
			DateCol:    "ds",
			PriceCol:   "close",
			SigTable:   "news_doc_sentiment",
			EntTable:   "news_entity",
		},
		Output:  Output{OutDir: "out"},
		Logging: Logging{Level: "info"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Signals.NaNPolicy != "null" && cfg.Signals.NaNPolicy != "zero" {
		return nil, fmt.Errorf("signals.nan_policy must be \"null\" or \"zero\", got %q", cfg.Signals.NaNPolicy)
	}
	if cfg.Signals.WinsorLow < 0 || cfg.Signals.WinsorHigh > 1 || cfg.Signals.WinsorLow >= cfg.Signals.WinsorHigh {
		return nil, fmt.Errorf("signals winsor bounds must satisfy 0 <= low < high <= 1")
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
