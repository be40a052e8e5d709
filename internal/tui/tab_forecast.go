package tui

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/fincast/internal/cli"
	"github.com/theirongolddev/fincast/internal/model"
	"github.com/theirongolddev/fincast/internal/tui/components"
	"github.com/theirongolddev/fincast/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

const chartActualMonths = 9

func (a App) renderForecastTab(cw, h int) string {
	t := theme.Active
	if len(a.series) == 0 {
		body := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface).
			Render("No accounts yet. Drop feed files into " + a.loader.feedDir + " and press r.")
		return components.ContentCard("Forecast", body, cw)
	}

	var total, spent, next float64
	for _, as := range a.series {
		total += as.Account.Limit()
		spent += as.Current
	}
	for _, p := range a.results.Predictions {
		if p.PeriodsAhead == 1 {
			next += p.PredictedAmount
		}
	}
	util := 0.0
	if total > 0 {
		util = spent / total
	}

	metrics := components.MetricRow([]components.Metric{
		{Label: "Spent " + a.reference.String(), Value: cli.FormatAmount(spent)},
		{Label: "Total limit", Value: cli.FormatAmount(total)},
		{Label: "Utilization", Value: cli.FormatRatio(util), Color: t.UtilizationColor(util)},
		{Label: "Next month", Value: cli.FormatAmount(next), Note: "predicted, all accounts"},
	}, cw)

	leftW := max(cw/3, 34)
	rightW := cw - leftW
	bodyH := max(h-lipgloss.Height(metrics), 8)

	left := components.FocusedCard("Accounts", a.renderAccountList(leftW), leftW)
	right := components.ContentCard(a.selectedAccountTitle(), a.renderAccountDetail(rightW, bodyH-2), rightW)

	return lipgloss.JoinVertical(lipgloss.Left, metrics, components.CardRow([]string{left, right}))
}

func (a App) renderAccountList(outerW int) string {
	t := theme.Active
	inner := components.CardInnerWidth(outerW)
	cursor := a.cursor[tabForecast]

	marker := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	blank := lipgloss.NewStyle().Background(t.Surface)
	labelW := min(14, max(inner/3, 6))
	barW := max(inner-labelW-9, 4)

	lines := make([]string, 0, len(a.series)+2)
	for i, as := range a.series {
		prefix := blank.Render("  ")
		if i == cursor {
			prefix = marker.Render("▸ ")
		}
		lines = append(lines, prefix+components.UtilizationBar(as.Account.DisplayName(), as.Utilization(), labelW, barW))
	}
	if len(a.results.Skipped) > 0 {
		lines = append(lines, "", lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface).
			Render(fmt.Sprintf("%d skipped: too little history", len(a.results.Skipped))))
	}
	return strings.Join(lines, "\n")
}

func (a App) selectedAccount() (int, bool) {
	i := a.cursor[tabForecast]
	return i, i >= 0 && i < len(a.series)
}

func (a App) selectedAccountTitle() string {
	i, ok := a.selectedAccount()
	if !ok {
		return "Account"
	}
	return a.series[i].Account.DisplayName()
}

func (a App) accountPredictions(id string) []model.Prediction {
	var out []model.Prediction
	for _, p := range a.results.Predictions {
		if p.AccountID == id {
			out = append(out, p)
		}
	}
	return out
}

func (a App) renderAccountDetail(outerW, h int) string {
	t := theme.Active
	i, ok := a.selectedAccount()
	if !ok {
		return ""
	}
	as := a.series[i]
	inner := components.CardInnerWidth(outerW)
	preds := a.accountPredictions(as.Account.ID)

	bars := make([]components.Bar, 0, chartActualMonths+len(preds))
	for _, pt := range as.Series.Until(a.reference).Tail(chartActualMonths) {
		bars = append(bars, components.Bar{Label: pt.Period.Start().Format("Jan"), Value: pt.Value})
	}
	for _, p := range preds {
		bars = append(bars, components.Bar{Label: p.Period.Start().Format("Jan"), Value: p.PredictedAmount, Projected: true})
	}

	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	value := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	header := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s   %s %s   %s %s\n\n",
		muted.Render("limit"), value.Render(cli.FormatAmount(as.Account.Limit())),
		muted.Render("installments"), value.Render(cli.FormatRatio(as.InstallmentRatio)),
		muted.Render("shared"), value.Render(cli.FormatRatio(as.SharedRatio)))

	tableH := len(preds) + 2
	chartH := max(h-tableH-6, 3)
	b.WriteString(components.BarChart(bars, inner, chartH))

	if len(preds) == 0 {
		b.WriteString("\n\n")
		b.WriteString(muted.Render("Not enough history to forecast this account."))
		return b.String()
	}

	b.WriteString("\n\n")
	b.WriteString(header.Render(fmt.Sprintf("%-9s %12s %8s %6s  %-8s %s", "Month", "Predicted", "±", "Conf", "Trend", "Method")))
	for _, p := range preds {
		b.WriteString("\n")
		row := fmt.Sprintf("%-9s %12s %7.1f%% %5.0f%%  ",
			p.Period.String(), cli.FormatAmount(p.PredictedAmount), p.ExpectedVariationPct, p.Confidence)
		b.WriteString(value.Render(row))
		b.WriteString(lipgloss.NewStyle().Foreground(t.TrendColor(p.Trend)).Background(t.Surface).
			Render(fmt.Sprintf("%-8s", p.Trend)))
		b.WriteString(muted.Render(" " + p.Algorithm))
	}
	return b.String()
}
