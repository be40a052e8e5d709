package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
}

func TestLoadFile_MissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Forecast.Horizon != 3 || cfg.Daemon.Refresh != "@hourly" {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadFile_OverridesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[general]
month = "2025-04"

[forecast]
horizon = 6
ema_alpha = 0.5

[alerts]
limit_near = 0.7

[daemon]
poll_interval = "30s"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Forecast.Horizon != 6 || cfg.Forecast.EMAAlpha != 0.5 {
		t.Errorf("forecast = %+v", cfg.Forecast)
	}
	// Untouched keys keep their defaults.
	if cfg.Forecast.MinPoints != 3 || cfg.Alerts.LimitCritical != 0.95 {
		t.Errorf("defaults lost: %+v %+v", cfg.Forecast, cfg.Alerts)
	}
	if cfg.PollInterval() != 30*time.Second {
		t.Errorf("PollInterval = %s, want 30s", cfg.PollInterval())
	}

	ec := cfg.EngineConfig()
	if ec.Reference.String() != "2025-04" {
		t.Errorf("Reference = %s, want 2025-04", ec.Reference)
	}
	if ec.Planner.Horizon != 6 || ec.Planner.Forecast.Alpha != 0.5 {
		t.Errorf("Planner = %+v", ec.Planner)
	}
	if ec.Alerts.LimitNear != 0.7 {
		t.Errorf("Alerts.LimitNear = %g, want 0.7", ec.Alerts.LimitNear)
	}
	if ec.Debounce != 500*time.Millisecond {
		t.Errorf("Debounce = %s, want 500ms", ec.Debounce)
	}
}

func TestLoadFile_BadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[forecast\nhorizon = "), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.General.Month = "April"
	cfg.Forecast.Horizon = 0
	cfg.Forecast.EMAAlpha = 1.5
	cfg.Alerts.LimitCritical = 0.5
	cfg.Daemon.PollInterval = "soon"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"general.month", "forecast.horizon", "forecast.ema_alpha", "alerts.limit_critical", "daemon.poll_interval"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvDataDir, "/tmp/fincast-data")
	t.Setenv(EnvLogLevel, "DEBUG")

	cfg := DefaultConfig()
	cfg.ApplyEnv()
	if cfg.General.DataDir != "/tmp/fincast-data" {
		t.Errorf("DataDir = %q", cfg.General.DataDir)
	}
	if cfg.General.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.General.LogLevel)
	}
}

func TestSaveThenLoad(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(EnvDataDir, "")
	t.Setenv(EnvLogLevel, "")

	if Exists() {
		t.Fatal("config exists before Save")
	}
	cfg := DefaultConfig()
	cfg.Forecast.Horizon = 4
	cfg.Appearance.Theme = "tokyo-night"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !Exists() {
		t.Fatal("config missing after Save")
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Forecast.Horizon != 4 || got.Appearance.Theme != "tokyo-night" {
		t.Errorf("round trip lost values: %+v", got)
	}
}
