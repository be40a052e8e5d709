package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/theirongolddev/fincast/internal/cli"
	"github.com/theirongolddev/fincast/internal/model"

	"github.com/spf13/cobra"
)

var flagUnread bool

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Limit, unusual-spend and forecast-risk alerts",
	RunE:  runAlerts,
}

var alertsReadCmd = &cobra.Command{
	Use:   "read ID...",
	Short: "Mark alerts as read (an unambiguous ID prefix is enough)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAlertsRead,
}

func init() {
	alertsCmd.Flags().BoolVarP(&flagUnread, "unread", "u", false, "Only show unread alerts")
	alertsCmd.AddCommand(alertsReadCmd)
	rootCmd.AddCommand(alertsCmd)
}

func runAlerts(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	sess, err := openSession(ctx, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	res := sess.compute(ctx)
	alerts := make([]model.Alert, 0, len(res.Alerts))
	for _, a := range res.Alerts {
		if !flagUnread || !a.Read {
			alerts = append(alerts, a)
		}
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Read != alerts[j].Read {
			return !alerts[i].Read
		}
		if r1, r2 := alerts[i].Priority.Rank(), alerts[j].Priority.Rank(); r1 != r2 {
			return r1 > r2
		}
		return alerts[i].GeneratedAt.After(alerts[j].GeneratedAt)
	})

	if flagJSON {
		return printJSON(alerts)
	}
	if len(alerts) == 0 {
		fmt.Println("\n  No alerts. All accounts look healthy.")
		return nil
	}

	names := accountNames(ctx, sess.st)
	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("ALERTS  %d unread", res.UnreadAlerts())))
	fmt.Println()

	rows := make([][]string, 0, len(alerts))
	for _, a := range alerts {
		status := "●"
		if a.Read {
			status = cli.Muted("○")
		}
		amount := ""
		if a.AmountInvolved != nil {
			amount = cli.FormatAmount(*a.AmountInvolved)
		}
		rows = append(rows, []string{
			shortID(a.ID),
			status,
			cli.PriorityLabel(a.Priority),
			cli.Truncate(nameOf(names, a.AccountID), 14),
			a.Period.String(),
			cli.Truncate(a.Title, 36),
			amount,
		})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers:   []string{"ID", "", "Priority", "Account", "Month", "Alert", "Amount"},
		Rows:      rows,
		LeftAlign: map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true},
	}))

	// Details for unread alerts only; read ones are already acknowledged.
	for _, a := range alerts {
		if a.Read {
			continue
		}
		fmt.Printf("\n  %s %s\n", shortID(a.ID), a.Message)
		if a.RecommendedAction != "" {
			fmt.Printf("  %s\n", cli.Muted("→ "+a.RecommendedAction))
		}
	}
	fmt.Printf("\n  %s\n", cli.Muted("Mark as read: fincast alerts read <ID>"))
	return nil
}

func runAlertsRead(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sess, err := openSession(ctx, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	ids := make([]string, 0)
	for _, a := range sess.eng.Results().Alerts {
		ids = append(ids, a.ID)
	}
	for _, arg := range args {
		id, err := resolveID(arg, ids)
		if err != nil {
			return fmt.Errorf("alert %s: %w", arg, err)
		}
		if err := sess.eng.MarkAlertRead(ctx, id); err != nil {
			return err
		}
		if !flagQuiet {
			fmt.Printf("  Marked %s as read\n", shortID(id))
		}
	}
	return nil
}

// shortID is the display form of a UUID.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// resolveID expands an ID prefix against known IDs.
func resolveID(prefix string, ids []string) (string, error) {
	var match string
	for _, id := range ids {
		if id == prefix {
			return id, nil
		}
		if strings.HasPrefix(id, prefix) {
			if match != "" {
				return "", fmt.Errorf("ambiguous prefix %q", prefix)
			}
			match = id
		}
	}
	if match == "" {
		return "", fmt.Errorf("no match for %q", prefix)
	}
	return match, nil
}
