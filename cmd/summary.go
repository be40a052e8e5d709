package cmd

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/fincast/internal/cli"
	"github.com/theirongolddev/fincast/internal/pipeline"

	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Month overview: utilization, score, alerts and next-month forecast",
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, _ []string) error {
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
	if flagJSON {
		return printJSON(res)
	}

	if len(snap.Accounts) == 0 {
		fmt.Println("\n  No accounts found.")
		fmt.Printf("  Drop JSONL feeds into %s, then come back!\n", pipeline.FeedDir(appCfg.General.DataDir))
		return nil
	}

	ref := sess.eng.Reference()
	series := pipeline.Aggregate(snap, ref)
	month := pipeline.Summarize(snap.Records, ref)
	prev := pipeline.Summarize(snap.Records, ref.AddMonths(-1))

	fmt.Println()
	fmt.Println(cli.RenderTitle("FINCAST  " + ref.String()))
	fmt.Println()

	next := make(map[string]float64)
	for _, p := range res.Predictions {
		if p.PeriodsAhead == 1 {
			next[p.AccountID] = p.PredictedAmount
		}
	}

	rows := make([][]string, 0, len(series)+2)
	var totalLimit, totalNext float64
	for _, as := range series {
		totalLimit += as.Account.Limit()
		totalNext += next[as.Account.ID]
		nextStr := cli.Muted("n/a")
		if v, ok := next[as.Account.ID]; ok {
			nextStr = cli.FormatAmount(v)
		}
		rows = append(rows, []string{
			cli.Truncate(as.Account.DisplayName(), 18),
			cli.FormatAmount(as.Current),
			cli.FormatAmount(as.Account.Limit()),
			cli.RenderGauge(as.Utilization(), 12),
			nextStr,
		})
	}
	totalUtil := 0.0
	if totalLimit > 0 {
		totalUtil = month.Total / totalLimit
	}
	rows = append(rows, cli.Separator, []string{
		"Total",
		cli.FormatAmount(month.Total),
		cli.FormatAmount(totalLimit),
		cli.RenderGauge(totalUtil, 12),
		cli.FormatAmount(totalNext),
	})

	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "Accounts",
		Headers: []string{"Account", "Spent", "Limit", "Utilization", "Next month"},
		Rows:    rows,
	}))
	fmt.Println()

	vsPrev := cli.Muted("no prior month")
	if prev.Total > 0 {
		vsPrev = fmt.Sprintf("%s (%s)", cli.FormatDelta(month.Total, prev.Total),
			cli.FormatSignedPercent((month.Total-prev.Total)/prev.Total*100))
	}
	sc := res.Score
	scoreStr := cli.BandStyle(sc.Band).Render(fmt.Sprintf("%s  %s", cli.FormatScore(sc.Total), sc.Band))
	if sc.Fallback {
		scoreStr += cli.Muted("  (fallback)")
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Spend vs last month", vsPrev},
			{"Installments", cli.FormatAmount(month.InstallmentTotal)},
			{"Shared", cli.FormatAmount(month.SharedTotal)},
			cli.Separator,
			{"Financial score", scoreStr},
			{"Unread alerts", fmt.Sprintf("%d of %d", res.UnreadAlerts(), len(res.Alerts))},
			{"Active tips", fmt.Sprint(len(sess.eng.ActiveRecommendations(res.ComputedAt)))},
		},
	}))

	if len(res.Skipped) > 0 {
		fmt.Printf("\n  %s\n", cli.Muted("Not enough history to forecast: "+strings.Join(res.Skipped, ", ")))
	}
	return nil
}
