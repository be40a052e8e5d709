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

func (a App) renderScoreTab(cw int) string {
	t := theme.Active
	sc := a.results.Score

	note := string(sc.Band)
	if sc.Fallback {
		note = "fallback: not enough data"
	}
	cmp := sc.ComparedToPreviousMonth
	trendColor := t.TextPrimary
	switch sc.Trend {
	case model.ScoreImproving:
		trendColor = t.Green
	case model.ScoreWorsening:
		trendColor = t.Red
	}

	metrics := components.MetricRow([]components.Metric{
		{Label: "Financial score " + sc.Period.String(), Value: cli.FormatScore(sc.Total) + " / 1000", Note: note, Color: t.BandColor(sc.Band)},
		{Label: "vs previous month", Value: fmt.Sprintf("%+.0f", cmp.Delta), Note: cli.FormatSignedPercent(cmp.PctChange), Color: trendColor},
		{Label: "Trend", Value: string(sc.Trend), Color: trendColor},
	}, cw)

	leftW := cw / 2
	rightW := cw - leftW
	factors := components.ContentCard("Factors", a.renderFactors(sc.Factors, leftW), leftW)
	tips := components.ContentCard("How to improve", a.renderScoreTips(sc, rightW), rightW)

	rows := []string{metrics, components.CardRow([]string{factors, tips})}
	if len(a.history) > 1 {
		rows = append(rows, components.ContentCard("History", a.renderScoreHistory(cw), cw))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (a App) renderFactors(factors []model.ScoreFactor, outerW int) string {
	t := theme.Active
	inner := components.CardInnerWidth(outerW)
	labelW := 18
	barW := max(inner-labelW-5, 4)
	weight := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	lines := make([]string, 0, len(factors)*2)
	for _, f := range factors {
		lines = append(lines, components.FactorBar(f.Name, f.Value, t.BandColor(f.Band), labelW, barW))
		lines = append(lines, weight.Render(fmt.Sprintf("  weight %.0f%% · %s", f.Weight*100, cli.Truncate(f.Description, inner-16))))
	}
	return strings.Join(lines, "\n")
}

func (a App) renderScoreTips(sc model.FinancialScore, outerW int) string {
	t := theme.Active
	inner := components.CardInnerWidth(outerW)
	if len(sc.ImprovementTips) == 0 {
		return lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface).Render("Keep it up.")
	}
	bullet := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Render("• ")
	text := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface).Width(inner - 2)

	lines := make([]string, len(sc.ImprovementTips))
	for i, tip := range sc.ImprovementTips {
		lines[i] = lipgloss.JoinHorizontal(lipgloss.Top, bullet, text.Render(tip))
	}
	return strings.Join(lines, "\n")
}

// renderScoreHistory draws stored monthly scores, oldest first.
func (a App) renderScoreHistory(cw int) string {
	inner := components.CardInnerWidth(cw)
	n := len(a.history)
	bars := make([]components.Bar, n)
	for i, s := range a.history {
		// history is newest first
		bars[n-1-i] = components.Bar{Label: s.Period.Start().Format("Jan"), Value: s.Total}
	}
	return components.BarChart(bars, inner, 5)
}
