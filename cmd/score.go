package cmd

import (
	"fmt"

	"github.com/theirongolddev/fincast/internal/cli"

	"github.com/spf13/cobra"
)

var flagHistory int

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Financial health score with factor breakdown and history",
	RunE:  runScore,
}

func init() {
	scoreCmd.Flags().IntVar(&flagHistory, "history", 12, "Months of score history to show")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	sess, err := openSession(ctx, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	sc := sess.compute(ctx).Score
	history, err := sess.st.ScoreHistory(ctx, flagHistory)
	if err != nil {
		logger.Warn().Err(err).Msg("reading score history")
	}

	if flagJSON {
		return printJSON(map[string]any{"score": sc, "history": history})
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("FINANCIAL SCORE  %s", sc.Period)))
	fmt.Println()

	headline := cli.BandStyle(sc.Band).Render(fmt.Sprintf("%s / 1000  %s", cli.FormatScore(sc.Total), sc.Band))
	fmt.Printf("  %s\n", headline)
	if sc.Fallback {
		fmt.Printf("  %s\n", cli.Muted("Neutral fallback score: spend data could not be read."))
	} else if cmp := sc.ComparedToPreviousMonth; cmp.Total > 0 {
		fmt.Printf("  %s vs %s last month (%s, %s)\n",
			cli.FormatSignedPercent(cmp.PctChange), cli.FormatScore(cmp.Total),
			fmt.Sprintf("%+.0f", cmp.Delta), sc.Trend)
	}
	fmt.Println()

	rows := make([][]string, 0, len(sc.Factors))
	for _, f := range sc.Factors {
		rows = append(rows, []string{
			f.Name,
			fmt.Sprintf("%.0f", f.Value),
			cli.FormatPercent(f.Weight * 100),
			cli.BandStyle(f.Band).Render(string(f.Band)),
			cli.Truncate(f.Description, 44),
		})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers:   []string{"Factor", "Value", "Weight", "Band", "Detail"},
		Rows:      rows,
		LeftAlign: map[int]bool{3: true, 4: true},
	}))

	if len(sc.ImprovementTips) > 0 {
		fmt.Println()
		fmt.Println("  How to improve:")
		for _, tip := range sc.ImprovementTips {
			fmt.Printf("  • %s\n", tip)
		}
	}

	if len(history) > 1 {
		// History comes newest first; the sparkline reads left to right.
		vals := make([]float64, len(history))
		for i, h := range history {
			vals[len(history)-1-i] = h.Total
		}
		oldest := history[len(history)-1].Period
		fmt.Printf("\n  History %s..%s  %s\n", oldest, history[0].Period, cli.RenderSparkline(vals))
	}
	return nil
}
