package cmd

import (
	"fmt"

	"github.com/theirongolddev/fincast/internal/cli"
	"github.com/theirongolddev/fincast/internal/pipeline"

	"github.com/spf13/cobra"
)

var flagMonths int

var monthsCmd = &cobra.Command{
	Use:   "months",
	Short: "Monthly spend table across all accounts",
	RunE:  runMonths,
}

func init() {
	monthsCmd.Flags().IntVarP(&flagMonths, "count", "n", 12, "Number of months ending at the reference month")
	rootCmd.AddCommand(monthsCmd)
}

func runMonths(cmd *cobra.Command, _ []string) error {
	snap, err := loadSnapshot(cmd.Context())
	if err != nil {
		return err
	}
	if len(snap.Records) == 0 {
		fmt.Println("\n  No spend records found.")
		return nil
	}

	ref := referenceMonth()
	from := ref.AddMonths(-max(flagMonths, 1) + 1)
	series := pipeline.MonthlyTotals(snap.Records, from, ref)

	var limit float64
	for _, a := range snap.Accounts {
		limit += a.Limit()
	}

	if flagJSON {
		return printJSON(series)
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("MONTHLY SPEND  %s..%s", from, ref)))
	fmt.Println()

	rows := make([][]string, 0, len(series))
	for i, pt := range series {
		ms := pipeline.Summarize(snap.Records, pt.Period)
		delta := ""
		if i > 0 && series[i-1].Value > 0 {
			delta = cli.FormatDelta(pt.Value, series[i-1].Value)
		}
		util := "n/a"
		if limit > 0 {
			util = cli.FormatRatio(pt.Value / limit)
		}
		rows = append(rows, []string{
			pt.Period.String(),
			cli.FormatAmount(pt.Value),
			delta,
			cli.FormatAmount(ms.InstallmentTotal),
			cli.FormatAmount(ms.SharedTotal),
			fmt.Sprint(pipeline.CountCategories(snap.Records, pt.Period)),
			util,
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Month", "Spent", "Change", "Installments", "Shared", "Categories", "Of limit"},
		Rows:    rows,
	}))
	fmt.Printf("\n  %s\n", cli.RenderSparkline(series.Values()))
	return nil
}
