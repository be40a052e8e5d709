package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/theirongolddev/fincast/internal/alerts"
	"github.com/theirongolddev/fincast/internal/engine"
	"github.com/theirongolddev/fincast/internal/forecast"
	"github.com/theirongolddev/fincast/internal/planner"
	"github.com/theirongolddev/fincast/internal/recommend"
	"github.com/theirongolddev/fincast/internal/score"
	"github.com/theirongolddev/fincast/internal/timeseries"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Environment variables that override the file.
const (
	EnvDataDir  = "FINCAST_DATA_DIR"
	EnvLogLevel = "FINCAST_LOG_LEVEL"
)

// Config holds all fincast configuration.
type Config struct {
	General         GeneralConfig         `toml:"general"`
	Forecast        ForecastConfig        `toml:"forecast"`
	Alerts          AlertsConfig          `toml:"alerts"`
	Recommendations RecommendationsConfig `toml:"recommendations"`
	Score           ScoreConfig           `toml:"score"`
	Engine          EngineConfig          `toml:"engine"`
	Daemon          DaemonConfig          `toml:"daemon"`
	Appearance      AppearanceConfig      `toml:"appearance"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	DataDir  string `toml:"data_dir,omitempty"`
	Month    string `toml:"month,omitempty"` // YYYY-MM; empty follows the calendar
	LogLevel string `toml:"log_level"`
}

// ForecastConfig controls the prediction planner.
type ForecastConfig struct {
	Horizon   int     `toml:"horizon"`
	EMAAlpha  float64 `toml:"ema_alpha"`
	MinPoints int     `toml:"min_points"`
}

// AlertsConfig holds alert thresholds as fractions of the credit limit.
type AlertsConfig struct {
	LimitNear     float64 `toml:"limit_near"`
	LimitCritical float64 `toml:"limit_critical"`
	UnusualFactor float64 `toml:"unusual_factor"`
	ForecastRisk  float64 `toml:"forecast_risk"`
}

// RecommendationsConfig holds the recommendation heuristics.
type RecommendationsConfig struct {
	WindowMonths  int     `toml:"window_months"`
	UnderuseRatio float64 `toml:"underuse_ratio"`
	CategoryCut   float64 `toml:"category_cut"`
}

// ScoreConfig controls the score lookback.
type ScoreConfig struct {
	HistoryMonths int `toml:"history_months"`
}

// EngineConfig controls recomputation.
type EngineConfig struct {
	Debounce string `toml:"debounce"`
	Workers  int    `toml:"workers"`
}

// DaemonConfig controls the background service.
type DaemonConfig struct {
	Addr         string `toml:"addr"`
	PollInterval string `toml:"poll_interval"`
	Refresh      string `toml:"refresh"` // cron spec, empty disables
	EventsBuffer int    `toml:"events_buffer"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Forecast: ForecastConfig{
			Horizon:   3,
			EMAAlpha:  forecast.DefaultAlpha,
			MinPoints: forecast.MinHybridPoints,
		},
		Alerts: AlertsConfig{
			LimitNear:     0.80,
			LimitCritical: 0.95,
			UnusualFactor: 1.5,
			ForecastRisk:  0.90,
		},
		Recommendations: RecommendationsConfig{
			WindowMonths:  3,
			UnderuseRatio: 0.10,
			CategoryCut:   0.20,
		},
		Score: ScoreConfig{
			HistoryMonths: 6,
		},
		Engine: EngineConfig{
			Debounce: "500ms",
		},
		Daemon: DaemonConfig{
			Addr:         "127.0.0.1:8797",
			PollInterval: "10s",
			Refresh:      "@hourly",
			EventsBuffer: 200,
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fincast")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "fincast")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads the config file, returning defaults if it doesn't exist, then
// applies environment overrides. A .env file in the working directory is
// loaded first when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg, err := LoadFile(ConfigPath())
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// LoadFile reads one TOML file over the defaults. No environment overrides.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // user config path
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides file values with FINCAST_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.General.DataDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.General.LogLevel = strings.ToLower(v)
	}
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return toml.NewEncoder(f).Encode(cfg)
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}

// Validate rejects out-of-range settings. All problems are reported at once.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	if c.General.Month != "" {
		_, err := timeseries.ParsePeriod(c.General.Month)
		check(err == nil, "general.month %q: want YYYY-MM", c.General.Month)
	}
	check(c.Forecast.Horizon >= 1, "forecast.horizon must be >= 1, got %d", c.Forecast.Horizon)
	check(c.Forecast.EMAAlpha > 0 && c.Forecast.EMAAlpha <= 1, "forecast.ema_alpha must be in (0, 1], got %g", c.Forecast.EMAAlpha)
	check(c.Forecast.MinPoints >= forecast.MinHybridPoints, "forecast.min_points must be >= %d, got %d", forecast.MinHybridPoints, c.Forecast.MinPoints)

	check(c.Alerts.LimitNear > 0 && c.Alerts.LimitNear <= 1, "alerts.limit_near must be in (0, 1], got %g", c.Alerts.LimitNear)
	check(c.Alerts.LimitCritical >= c.Alerts.LimitNear, "alerts.limit_critical (%g) must be >= limit_near (%g)", c.Alerts.LimitCritical, c.Alerts.LimitNear)
	check(c.Alerts.UnusualFactor > 1, "alerts.unusual_factor must be > 1, got %g", c.Alerts.UnusualFactor)
	check(c.Alerts.ForecastRisk > 0, "alerts.forecast_risk must be > 0, got %g", c.Alerts.ForecastRisk)

	check(c.Recommendations.WindowMonths >= 1, "recommendations.window_months must be >= 1, got %d", c.Recommendations.WindowMonths)
	check(c.Recommendations.UnderuseRatio > 0 && c.Recommendations.UnderuseRatio < 1, "recommendations.underuse_ratio must be in (0, 1), got %g", c.Recommendations.UnderuseRatio)
	check(c.Recommendations.CategoryCut > 0 && c.Recommendations.CategoryCut <= 1, "recommendations.category_cut must be in (0, 1], got %g", c.Recommendations.CategoryCut)

	check(c.Score.HistoryMonths >= 2, "score.history_months must be >= 2, got %d", c.Score.HistoryMonths)

	if _, err := parseDuration(c.Engine.Debounce); err != nil {
		errs = append(errs, fmt.Errorf("engine.debounce: %w", err))
	}
	check(c.Engine.Workers >= 0, "engine.workers must be >= 0, got %d", c.Engine.Workers)

	if d, err := parseDuration(c.Daemon.PollInterval); err != nil {
		errs = append(errs, fmt.Errorf("daemon.poll_interval: %w", err))
	} else {
		check(d >= time.Second, "daemon.poll_interval must be >= 1s, got %s", d)
	}
	check(c.Daemon.EventsBuffer >= 1, "daemon.events_buffer must be >= 1, got %d", c.Daemon.EventsBuffer)

	switch c.General.LogLevel {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("general.log_level %q: want trace, debug, info, warn or error", c.General.LogLevel))
	}

	return errors.Join(errs...)
}

// Reference returns the pinned reference month, or zero to follow the clock.
func (c Config) Reference() (timeseries.Period, error) {
	if c.General.Month == "" {
		return timeseries.Period{}, nil
	}
	return timeseries.ParsePeriod(c.General.Month)
}

// DebounceDuration returns the parsed engine debounce delay.
func (c Config) DebounceDuration() time.Duration {
	d, _ := parseDuration(c.Engine.Debounce)
	return d
}

// PollInterval returns the parsed daemon poll interval.
func (c Config) PollInterval() time.Duration {
	d, _ := parseDuration(c.Daemon.PollInterval)
	return d
}

// EngineConfig converts the file settings into engine component settings.
// Call Validate first; invalid values fall back to component defaults.
func (c Config) EngineConfig() engine.Config {
	ref, _ := c.Reference()
	return engine.Config{
		Planner: planner.Config{
			Horizon:   c.Forecast.Horizon,
			MinPoints: c.Forecast.MinPoints,
			Workers:   c.Engine.Workers,
			Forecast:  forecast.Options{Alpha: c.Forecast.EMAAlpha},
		},
		Alerts: alerts.Config{
			LimitNear:     c.Alerts.LimitNear,
			LimitCritical: c.Alerts.LimitCritical,
			UnusualFactor: c.Alerts.UnusualFactor,
			ForecastRisk:  c.Alerts.ForecastRisk,
		},
		Recommend: recommend.Config{
			WindowMonths:  c.Recommendations.WindowMonths,
			UnderuseRatio: c.Recommendations.UnderuseRatio,
			CategoryCut:   c.Recommendations.CategoryCut,
		},
		Score:     score.Config{HistoryMonths: c.Score.HistoryMonths},
		Debounce:  c.DebounceDuration(),
		Reference: ref,
	}
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}
