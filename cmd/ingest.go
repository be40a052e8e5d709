package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/theirongolddev/fincast/internal/cli"
	"github.com/theirongolddev/fincast/internal/pipeline"
	"github.com/theirongolddev/fincast/internal/store"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [FILE...]",
	Short: "Load account and spend feeds into the local store",
	Long: `Without arguments, scans the feed directory and loads new or changed
JSONL files. With arguments, loads the named files directly.`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	st, err := store.Open(pipeline.DBPath(appCfg.General.DataDir))
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() { _ = st.Close() }()

	if len(args) == 0 {
		if err := ingestFeeds(st, pipeline.FeedDir(appCfg.General.DataDir)); err != nil {
			return err
		}
	} else {
		for _, path := range args {
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			res, err := pipeline.IngestFile(abs, st)
			if err != nil {
				return fmt.Errorf("ingesting %s: %w", path, err)
			}
			if !flagQuiet {
				fmt.Printf("  %s: %d accounts, %s records, %d malformed lines\n",
					filepath.Base(path), res.Accounts, cli.FormatNumber(int64(res.Records)), res.ParseErrors)
			}
		}
	}

	return printCounts(cmd.Context(), st)
}

func printCounts(ctx context.Context, st *store.Store) error {
	if flagQuiet {
		return nil
	}
	accounts, records, err := st.Counts()
	if err != nil {
		return err
	}
	rev, err := st.Fingerprint(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("  Store: %d accounts, %s records (revision %d)\n",
		accounts, cli.FormatNumber(int64(records)), rev)

	snap, err := st.Snapshot(ctx)
	if err != nil {
		return err
	}
	if latest := pipeline.LatestPeriod(snap.Records); !latest.IsZero() {
		fmt.Printf("  Latest month with spend: %s\n", latest)
		if ref := referenceMonth(); latest.Before(ref) {
			fmt.Printf("  %s\n", cli.Muted(fmt.Sprintf("No spend recorded for %s yet", ref)))
		}
	}
	return nil
}
