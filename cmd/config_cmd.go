package cmd

import (
	"fmt"

	"github.com/theirongolddev/fincast/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	RunE:  runConfig,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	RunE: func(_ *cobra.Command, _ []string) error {
		if config.Exists() {
			return fmt.Errorf("%s already exists", config.ConfigPath())
		}
		if err := config.Save(config.DefaultConfig()); err != nil {
			return err
		}
		fmt.Printf("  Wrote %s\n", config.ConfigPath())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg := appCfg
	if flagJSON {
		return printJSON(cfg)
	}

	fmt.Printf("  Config file: %s\n", config.ConfigPath())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	month := cfg.General.Month
	if month == "" {
		month = "current (follows the calendar)"
	}
	section("General",
		"Data directory", cfg.General.DataDir,
		"Reference month", month,
		"Log level", cfg.General.LogLevel)
	section("Forecast",
		"Horizon", fmt.Sprintf("%d months", cfg.Forecast.Horizon),
		"EMA alpha", fmt.Sprintf("%.2f", cfg.Forecast.EMAAlpha),
		"Min points", fmt.Sprint(cfg.Forecast.MinPoints))
	section("Alerts",
		"Limit near", fmt.Sprintf("%.0f%%", cfg.Alerts.LimitNear*100),
		"Limit critical", fmt.Sprintf("%.0f%%", cfg.Alerts.LimitCritical*100),
		"Unusual factor", fmt.Sprintf("%.2fx", cfg.Alerts.UnusualFactor),
		"Forecast risk", fmt.Sprintf("%.0f%%", cfg.Alerts.ForecastRisk*100))
	section("Recommendations",
		"Window", fmt.Sprintf("%d months", cfg.Recommendations.WindowMonths),
		"Underuse ratio", fmt.Sprintf("%.0f%%", cfg.Recommendations.UnderuseRatio*100),
		"Category cut", fmt.Sprintf("%.0f%%", cfg.Recommendations.CategoryCut*100))
	section("Score",
		"History", fmt.Sprintf("%d months", cfg.Score.HistoryMonths))

	workers := "GOMAXPROCS"
	if cfg.Engine.Workers > 0 {
		workers = fmt.Sprint(cfg.Engine.Workers)
	}
	section("Engine",
		"Debounce", cfg.DebounceDuration().String(),
		"Workers", workers)

	refresh := cfg.Daemon.Refresh
	if refresh == "" {
		refresh = "disabled"
	}
	section("Daemon",
		"Address", cfg.Daemon.Addr,
		"Poll interval", cfg.PollInterval().String(),
		"Refresh", refresh,
		"Events buffer", fmt.Sprint(cfg.Daemon.EventsBuffer))
	section("Appearance",
		"Theme", cfg.Appearance.Theme)

	fmt.Println("  Run `fincast setup` to reconfigure.")
	return nil
}

// section prints a [Name] block from alternating label/value pairs.
func section(name string, kv ...string) {
	fmt.Printf("  [%s]\n", name)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Printf("    %-16s %s\n", kv[i]+":", kv[i+1])
	}
	fmt.Println()
}
