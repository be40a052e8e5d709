package cmd

import (
	"fmt"

	"github.com/theirongolddev/fincast/internal/config"
	"github.com/theirongolddev/fincast/internal/pipeline"
	"github.com/theirongolddev/fincast/internal/tui"
	"github.com/theirongolddev/fincast/internal/tui/theme"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var flagNoRefresh bool

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive dashboard",
	RunE:  runTUI,
}

func init() {
	tuiCmd.Flags().BoolVar(&flagNoRefresh, "no-refresh", false, "Disable periodic re-ingest while the dashboard is open")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	theme.SetActive(appCfg.Appearance.Theme)

	// Force TrueColor profile so all background styling produces ANSI codes
	// Without this, lipgloss may default to Ascii profile (no colors)
	lipgloss.SetColorProfile(termenv.TrueColor)

	// The alternate screen owns the terminal; console logs would tear it.
	logger = zerolog.Nop()

	// Ingestion runs inside the dashboard so its progress is visible there.
	sess, err := openSession(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer sess.Close()

	opts := tui.Options{
		Config:       appCfg,
		Workers:      appCfg.Engine.Workers,
		RefreshEvery: appCfg.PollInterval(),
		NeedSetup:    !config.Exists(),
	}
	if !flagNoIngest {
		opts.FeedDir = pipeline.FeedDir(appCfg.General.DataDir)
	}
	if flagNoRefresh {
		opts.RefreshEvery = 0
	}

	p := tea.NewProgram(tui.NewApp(sess.st, sess.eng, opts), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
