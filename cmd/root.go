// Package cmd implements the fincast CLI commands.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/theirongolddev/fincast/internal/cli"
	"github.com/theirongolddev/fincast/internal/config"
	"github.com/theirongolddev/fincast/internal/engine"
	"github.com/theirongolddev/fincast/internal/model"
	"github.com/theirongolddev/fincast/internal/pipeline"
	"github.com/theirongolddev/fincast/internal/store"
	"github.com/theirongolddev/fincast/internal/timeseries"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	flagDataDir  string
	flagMonth    string
	flagQuiet    bool
	flagLogLevel string
	flagJSON     bool
	flagNoIngest bool
	flagWorkers  int
)

// appCfg and logger are set by the root pre-run hook for every command.
var (
	appCfg config.Config
	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:               "fincast",
	Short:             "Credit spend forecasting, alerts and financial score",
	Long:              "Forecast monthly spend per credit account, raise limit and anomaly alerts, suggest savings, and track a 0-1000 financial health score.",
	PersistentPreRunE: setupRun,
	RunE:              runSummary,
	SilenceUsage:      true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagDataDir, "data-dir", "d", "", "Data directory (default $XDG_DATA_HOME/fincast)")
	rootCmd.PersistentFlags().StringVarP(&flagMonth, "month", "m", "", "Reference month YYYY-MM (default: current month)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print JSON instead of tables")
	rootCmd.PersistentFlags().BoolVar(&flagNoIngest, "no-ingest", false, "Skip scanning the feed directory before computing")
	rootCmd.PersistentFlags().IntVarP(&flagWorkers, "workers", "w", 0, "Parallel workers (default: config or GOMAXPROCS)")
}

// setupRun loads config, applies flag overrides and prepares logging.
func setupRun(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.General.DataDir = flagDataDir
	}
	if flags.Changed("month") {
		cfg.General.Month = flagMonth
	}
	if flags.Changed("log-level") {
		cfg.General.LogLevel = flagLogLevel
	}
	if flags.Changed("workers") {
		cfg.Engine.Workers = flagWorkers
	}
	if cfg.General.DataDir == "" {
		cfg.General.DataDir = pipeline.DataDir()
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	appCfg = cfg
	logger = newLogger(cfg.General.LogLevel, flagQuiet)
	cli.ConfigureColor(os.Stdout, flagJSON)
	return nil
}

func newLogger(level string, quiet bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	// Commands print their own output; only the daemon logs at info.
	if quiet && lvl < zerolog.WarnLevel {
		lvl = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// session bundles the store and an engine seeded with persisted results.
type session struct {
	st  *store.Store
	eng *engine.Engine
}

// openSession opens the store, ingests the feed directory unless disabled,
// and builds an engine that persists to the store. Alerts, recommendations
// and their flags from earlier runs carry over.
func openSession(ctx context.Context, ingest bool) (*session, error) {
	dataDir := appCfg.General.DataDir
	st, err := store.Open(pipeline.DBPath(dataDir))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	if ingest && !flagNoIngest {
		if err := ingestFeeds(st, pipeline.FeedDir(dataDir)); err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	prev, err := st.LoadResults(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("could not restore previous results")
		prev = model.Results{}
	}

	eng := engine.New(st, appCfg.EngineConfig(), logger,
		engine.WithSink(st),
		engine.WithPrevious(prev),
	)
	return &session{st: st, eng: eng}, nil
}

func (s *session) Close() {
	s.eng.Close()
	_ = s.st.Close()
}

// compute runs one recomputation. A snapshot failure still yields results
// with the fallback score, so it is reported but not fatal.
func (s *session) compute(ctx context.Context) model.Results {
	res, err := s.eng.Recompute(ctx)
	if err != nil && !flagQuiet {
		fmt.Fprintf(os.Stderr, "  Warning: %v (showing fallback score)\n", err)
	}
	return res
}

// ingestFeeds is the shared feed loading path used by all commands.
func ingestFeeds(st *store.Store, feedDir string) error {
	progressFn := func(current, total int) {
		if flagQuiet {
			return
		}
		if current%50 == 0 || current == total {
			fmt.Fprintf(os.Stderr, "\r  Ingesting [%d/%d]", current, total)
		}
	}

	start := time.Now()
	res, err := pipeline.IngestDir(feedDir, st, appCfg.Engine.Workers, progressFn)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", feedDir, err)
	}

	if !flagQuiet && res.TotalFiles > 0 {
		if res.ParsedFiles == 0 && res.Removed == 0 {
			fmt.Fprintf(os.Stderr, "\r  %d feed files unchanged                \n", res.TotalFiles)
		} else {
			fmt.Fprintf(os.Stderr, "\r  Ingested %d files, %s records (%d unchanged, %d removed) in %s\n",
				res.ParsedFiles, cli.FormatNumber(int64(res.Records)), res.Unchanged, res.Removed,
				time.Since(start).Round(time.Millisecond))
		}
		if res.ParseErrors > 0 || res.FileErrors > 0 {
			fmt.Fprintf(os.Stderr, "  %d malformed lines skipped, %d files unreadable\n", res.ParseErrors, res.FileErrors)
		}
	}
	return nil
}

// loadSnapshot ingests feeds and reads the raw inputs, for reports that do
// not need a recomputation.
func loadSnapshot(ctx context.Context) (model.Snapshot, error) {
	st, err := store.Open(pipeline.DBPath(appCfg.General.DataDir))
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("opening store: %w", err)
	}
	defer func() { _ = st.Close() }()

	if !flagNoIngest {
		if err := ingestFeeds(st, pipeline.FeedDir(appCfg.General.DataDir)); err != nil {
			return model.Snapshot{}, err
		}
	}
	return st.Snapshot(ctx)
}

// referenceMonth resolves --month or the config month, else the current one.
func referenceMonth() timeseries.Period {
	if p, err := appCfg.Reference(); err == nil && !p.IsZero() {
		return p
	}
	return timeseries.PeriodOf(time.Now())
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// accountNames maps account IDs to display names for table output.
func accountNames(ctx context.Context, st *store.Store) map[string]string {
	names := make(map[string]string)
	snap, err := st.Snapshot(ctx)
	if err != nil {
		return names
	}
	for _, a := range snap.Accounts {
		names[a.ID] = a.DisplayName()
	}
	return names
}

func nameOf(names map[string]string, id string) string {
	if n, ok := names[id]; ok {
		return n
	}
	return id
}
