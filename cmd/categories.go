package cmd

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/fincast/internal/cli"
	"github.com/theirongolddev/fincast/internal/pipeline"

	"github.com/spf13/cobra"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Spend by category for the reference month",
	RunE:  runCategories,
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
}

func runCategories(cmd *cobra.Command, _ []string) error {
	snap, err := loadSnapshot(cmd.Context())
	if err != nil {
		return err
	}
	if len(snap.Records) == 0 {
		fmt.Println("\n  No spend records found.")
		return nil
	}

	ref := referenceMonth()
	cats := pipeline.AggregateCategories(snap.Records, ref)
	prev := make(map[string]float64)
	for _, c := range pipeline.AggregateCategories(snap.Records, ref.AddMonths(-1)) {
		prev[c.Category] = c.Total
	}

	if flagJSON {
		return printJSON(cats)
	}
	if len(cats) == 0 {
		fmt.Printf("\n  No spend in %s.\n", ref)
		return nil
	}

	names := make(map[string]string, len(snap.Accounts))
	for _, a := range snap.Accounts {
		names[a.ID] = a.DisplayName()
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("CATEGORIES  %s", ref)))
	fmt.Println()

	rows := make([][]string, 0, len(cats))
	for _, cs := range cats {
		accts := make([]string, 0, len(cs.Accounts))
		for _, id := range cs.Accounts {
			accts = append(accts, nameOf(names, id))
		}
		vsPrev := cli.Muted("new")
		if p := prev[cs.Category]; p > 0 {
			vsPrev = cli.FormatSignedPercent((cs.Total - p) / p * 100)
		}
		rows = append(rows, []string{
			cli.Truncate(cs.Category, 18),
			cli.FormatAmount(cs.Total),
			cli.FormatPercent(cs.SharePercent),
			vsPrev,
			cli.Truncate(strings.Join(accts, ", "), 28),
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers:   []string{"Category", "Spent", "Share", "vs prev", "Accounts"},
		Rows:      rows,
		LeftAlign: map[int]bool{4: true},
	}))

	fmt.Println()
	top := cats[0].Total
	for _, cs := range cats[:min(len(cats), 8)] {
		fmt.Println(cli.RenderHorizontalBar(cs.Category, cs.Total, top, 30))
	}
	return nil
}
