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

func (a App) renderTipsTab(cw, h int) string {
	t := theme.Active
	list := a.tipList()

	if len(list) == 0 {
		body := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface).Render("No recommendations right now.")
		return components.ContentCard("Tips", body, cw)
	}

	var savings float64
	pending := 0
	for _, r := range list {
		if !r.Applied {
			pending++
			savings += r.EstimatedImpact
		}
	}

	leftW := max(cw*2/5, 36)
	rightW := cw - leftW
	title := fmt.Sprintf("Tips · %d pending · save up to %s", pending, cli.FormatCompactAmount(savings))
	left := components.FocusedCard(title, a.renderTipList(list, leftW, h-2), leftW)
	right := components.ContentCard("Detail", a.renderTipDetail(list[a.cursor[tabTips]], rightW), rightW)
	return components.CardRow([]string{left, right})
}

func (a App) renderTipList(list []model.Recommendation, outerW, h int) string {
	t := theme.Active
	inner := components.CardInnerWidth(outerW)
	cursor := a.cursor[tabTips]

	visible := max(h-2, 3)
	offset := 0
	if cursor >= visible {
		offset = cursor - visible + 1
	}

	var lines []string
	for i := offset; i < len(list) && i < offset+visible; i++ {
		r := list[i]
		bg := t.Surface
		if i == cursor {
			bg = t.SurfaceHover
		}
		mark := lipgloss.NewStyle().Foreground(t.Accent).Background(bg).Render("◆ ")
		fg := t.TextPrimary
		if r.Applied {
			mark = lipgloss.NewStyle().Foreground(t.Green).Background(bg).Render("✓ ")
			fg = t.TextDim
		}
		impact := cli.FormatCompactAmount(r.EstimatedImpact)
		titleW := max(inner-2-len(impact)-1, 4)
		row := fmt.Sprintf("%-*s %s", titleW, cli.Truncate(r.Title, titleW), impact)
		lines = append(lines, mark+lipgloss.NewStyle().Foreground(fg).Background(bg).Render(row))
	}
	lines = append(lines, "", lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface).
		Render("[enter] mark applied"))
	return strings.Join(lines, "\n")
}

func (a App) renderTipDetail(r model.Recommendation, outerW int) string {
	t := theme.Active
	inner := components.CardInnerWidth(outerW)

	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	text := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface).Width(inner)
	heading := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	impact := lipgloss.NewStyle().Foreground(t.Green).Background(t.Surface).Bold(true)

	var b strings.Builder
	b.WriteString(heading.Render(r.Title))
	b.WriteString("\n")
	b.WriteString(impact.Render(cli.FormatAmount(r.EstimatedImpact)))
	b.WriteString(muted.Render(fmt.Sprintf("  %s · %s · score %.0f", r.Category, r.Difficulty, r.Score)))
	b.WriteString("\n\n")
	b.WriteString(text.Render(r.Description))

	if len(r.Steps) > 0 {
		b.WriteString("\n\n")
		b.WriteString(muted.Render("Steps"))
		for i, s := range r.Steps {
			b.WriteString("\n")
			b.WriteString(text.Render(fmt.Sprintf("%d. %s", i+1, s)))
		}
	}
	if len(r.AffectedAccounts) > 0 {
		names := make([]string, len(r.AffectedAccounts))
		for i, id := range r.AffectedAccounts {
			names[i] = a.accountName(id)
		}
		b.WriteString("\n\n")
		b.WriteString(muted.Render("Accounts: " + strings.Join(names, ", ")))
	}

	b.WriteString("\n\n")
	status := "pending"
	if r.Applied {
		status = "applied"
	}
	b.WriteString(muted.Render(fmt.Sprintf("%s · expires %s · id %s", status, r.ExpiresAt().Local().Format("Jan 2"), shortID(r.ID))))
	return b.String()
}
