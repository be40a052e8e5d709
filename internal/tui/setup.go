package tui

import (
	"fmt"
	"strconv"

	"github.com/theirongolddev/fincast/internal/config"
	"github.com/theirongolddev/fincast/internal/tui/theme"

	"github.com/charmbracelet/huh"
)

// SetupValues holds the answers of the setup form.
type SetupValues struct {
	DataDir  string
	Horizon  string
	Refresh  string
	Theme    string
	LogLevel string
}

// SetupValuesFrom pre-fills the form from an existing config.
func SetupValuesFrom(cfg config.Config) SetupValues {
	return SetupValues{
		DataDir:  cfg.General.DataDir,
		Horizon:  strconv.Itoa(cfg.Forecast.Horizon),
		Refresh:  cfg.Daemon.Refresh,
		Theme:    cfg.Appearance.Theme,
		LogLevel: cfg.General.LogLevel,
	}
}

// Apply copies the answers into cfg.
func (v SetupValues) Apply(cfg *config.Config) {
	cfg.General.DataDir = v.DataDir
	if h, err := strconv.Atoi(v.Horizon); err == nil && h > 0 {
		cfg.Forecast.Horizon = h
	}
	cfg.Daemon.Refresh = v.Refresh
	if v.Theme != "" {
		cfg.Appearance.Theme = v.Theme
	}
	if v.LogLevel != "" {
		cfg.General.LogLevel = v.LogLevel
	}
}

// NewSetupForm builds the first-run form. accounts is the number of accounts
// already in the store, shown as context.
func NewSetupForm(accounts int, feedDir string, vals *SetupValues) *huh.Form {
	themeOpts := make([]huh.Option[string], 0, len(theme.All))
	for _, t := range theme.All {
		themeOpts = append(themeOpts, huh.NewOption(t.Name, t.Name))
	}

	intro := "No feeds ingested yet. Drop JSONL feeds into " + feedDir
	if accounts > 0 {
		intro = fmt.Sprintf("Found %d accounts. Feeds are read from %s", accounts, feedDir)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to fincast").
				Description(intro),
			huh.NewInput().
				Title("Data directory").
				Description("Leave empty for the default location.").
				Value(&vals.DataDir),
			huh.NewSelect[string]().
				Title("Forecast horizon").
				Options(
					huh.NewOption("1 month", "1"),
					huh.NewOption("3 months", "3"),
					huh.NewOption("6 months", "6"),
					huh.NewOption("12 months", "12"),
				).
				Value(&vals.Horizon),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Daemon refresh schedule").
				Description("Recompute even without new data, so month rollover is picked up.").
				Options(
					huh.NewOption("Every hour", "@hourly"),
					huh.NewOption("Every day", "@daily"),
					huh.NewOption("Never", ""),
				).
				Value(&vals.Refresh),
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themeOpts...).
				Value(&vals.Theme),
		),
	).WithTheme(huh.ThemeCharm())
}

// saveSetup applies the form answers to the stored config.
func saveSetup(vals SetupValues) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.DefaultConfig()
	}
	vals.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	theme.SetActive(cfg.Appearance.Theme)
	return cfg, config.Save(cfg)
}
