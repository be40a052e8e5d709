package cmd

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/fincast/internal/cli"
	"github.com/theirongolddev/fincast/internal/model"

	"github.com/spf13/cobra"
)

var flagAllTips bool

var recommendCmd = &cobra.Command{
	Use:     "recommend",
	Aliases: []string{"tips"},
	Short:   "Savings recommendations ranked by impact",
	RunE:    runRecommend,
}

var recommendApplyCmd = &cobra.Command{
	Use:   "apply ID...",
	Short: "Mark recommendations as applied",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRecommendApply,
}

func init() {
	recommendCmd.Flags().BoolVar(&flagAllTips, "all", false, "Include expired and applied recommendations")
	recommendCmd.AddCommand(recommendApplyCmd)
	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	sess, err := openSession(ctx, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	res := sess.compute(ctx)
	recs := sess.eng.ActiveRecommendations(res.ComputedAt)
	if flagAllTips {
		recs = res.Recommendations
	} else {
		pending := recs[:0]
		for _, r := range recs {
			if !r.Applied {
				pending = append(pending, r)
			}
		}
		recs = pending
	}

	if flagJSON {
		return printJSON(recs)
	}
	if len(recs) == 0 {
		fmt.Println("\n  No recommendations right now.")
		return nil
	}

	names := accountNames(ctx, sess.st)
	fmt.Println()
	fmt.Println(cli.RenderTitle("RECOMMENDATIONS"))
	fmt.Println()

	rows := make([][]string, 0, len(recs))
	var potential float64
	for _, r := range recs {
		state := ""
		switch {
		case r.Applied:
			state = cli.Muted("applied")
		case !r.Valid(res.ComputedAt):
			state = cli.Muted("expired")
		default:
			potential += r.EstimatedImpact
		}
		rows = append(rows, []string{
			shortID(r.ID),
			cli.Truncate(r.Title, 40),
			r.Category,
			string(r.Difficulty),
			cli.FormatAmount(r.EstimatedImpact),
			r.ExpiresAt().Format("2006-01-02"),
			state,
		})
	}
	rows = append(rows, cli.Separator, []string{"", "Potential monthly savings", "", "", cli.FormatAmount(potential), "", ""})

	fmt.Print(cli.RenderTable(cli.Table{
		Headers:   []string{"ID", "Recommendation", "Category", "Effort", "Impact", "Valid until", ""},
		Rows:      rows,
		LeftAlign: map[int]bool{1: true, 2: true, 3: true},
	}))

	for _, r := range recs {
		if r.Applied {
			continue
		}
		fmt.Printf("\n  %s %s\n", shortID(r.ID), r.Description)
		if accts := accountList(names, r); accts != "" {
			fmt.Printf("  %s\n", cli.Muted("Accounts: "+accts))
		}
		for i, step := range r.Steps {
			fmt.Printf("    %d. %s\n", i+1, step)
		}
	}
	fmt.Printf("\n  %s\n", cli.Muted("Mark as applied: fincast recommend apply <ID>"))
	return nil
}

func accountList(names map[string]string, r model.Recommendation) string {
	out := make([]string, 0, len(r.AffectedAccounts))
	for _, id := range r.AffectedAccounts {
		out = append(out, nameOf(names, id))
	}
	return strings.Join(out, ", ")
}

func runRecommendApply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sess, err := openSession(ctx, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	ids := make([]string, 0)
	for _, r := range sess.eng.Results().Recommendations {
		ids = append(ids, r.ID)
	}
	for _, arg := range args {
		id, err := resolveID(arg, ids)
		if err != nil {
			return fmt.Errorf("recommendation %s: %w", arg, err)
		}
		if err := sess.eng.MarkRecommendationApplied(ctx, id); err != nil {
			return err
		}
		if !flagQuiet {
			fmt.Printf("  Marked %s as applied\n", shortID(id))
		}
	}
	return nil
}
