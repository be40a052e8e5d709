package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/theirongolddev/fincast/internal/cli"
	"github.com/theirongolddev/fincast/internal/model"
	"github.com/theirongolddev/fincast/internal/pipeline"

	"github.com/spf13/cobra"
)

var flagAccount string

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Per-account spend predictions for the coming months",
	RunE:  runForecast,
}

func init() {
	forecastCmd.Flags().StringVarP(&flagAccount, "account", "a", "", "Only show accounts whose ID or name contains this text")
	rootCmd.AddCommand(forecastCmd)
}

func runForecast(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	sess, err := openSession(ctx, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	res := sess.compute(ctx)
	snap, err := sess.st.Snapshot(ctx)
	if err != nil {
		return err
	}
	if flagAccount != "" {
		snap = pipeline.FilterByAccount(snap, flagAccount)
	}

	keep := make(map[string]bool, len(snap.Accounts))
	names := make(map[string]string, len(snap.Accounts))
	for _, a := range snap.Accounts {
		keep[a.ID] = true
		names[a.ID] = a.DisplayName()
	}
	preds := make([]model.Prediction, 0, len(res.Predictions))
	for _, p := range res.Predictions {
		if keep[p.AccountID] {
			preds = append(preds, p)
		}
	}
	sort.SliceStable(preds, func(i, j int) bool {
		if preds[i].AccountID != preds[j].AccountID {
			return names[preds[i].AccountID] < names[preds[j].AccountID]
		}
		return preds[i].PeriodsAhead < preds[j].PeriodsAhead
	})

	if flagJSON {
		return printJSON(preds)
	}
	if len(preds) == 0 {
		fmt.Println("\n  No predictions. Each account needs at least 3 months of history.")
		return nil
	}

	ref := sess.eng.Reference()
	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("FORECAST  from %s", ref)))
	fmt.Println()

	rows := make([][]string, 0, len(preds)+len(snap.Accounts))
	last := ""
	for _, p := range preds {
		label := ""
		if p.AccountID != last {
			if last != "" {
				rows = append(rows, cli.Separator)
			}
			label = cli.Truncate(names[p.AccountID], 18)
			last = p.AccountID
		}
		rows = append(rows, []string{
			label,
			p.Period.String(),
			cli.FormatAmount(p.PredictedAmount),
			fmt.Sprintf("±%.0f%%", p.ExpectedVariationPct),
			cli.FormatPercent(p.Confidence),
			cli.TrendArrow(p.Trend),
			strings.Join(p.Algorithms, "+"),
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers:   []string{"Account", "Month", "Predicted", "Range", "Confidence", "Trend", "Method"},
		Rows:      rows,
		LeftAlign: map[int]bool{1: true, 5: true, 6: true},
	}))

	// History sparkline per account, reference month included.
	fmt.Println()
	for _, as := range pipeline.Aggregate(snap, ref) {
		vals := as.Series.Tail(12).Values()
		if len(vals) == 0 {
			continue
		}
		fmt.Printf("  %-18s %s\n", cli.Truncate(as.Account.DisplayName(), 18), cli.RenderSparkline(vals))
	}
	if len(res.Skipped) > 0 {
		fmt.Printf("\n  %s\n", cli.Muted("Skipped (too little history): "+strings.Join(res.Skipped, ", ")))
	}
	return nil
}
