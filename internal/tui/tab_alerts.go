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

func (a App) renderAlertsTab(cw, h int) string {
	t := theme.Active
	list := a.alertList()
	title := fmt.Sprintf("Alerts · %d unread", a.results.UnreadAlerts())
	if a.unreadOnly {
		title += " · unread only"
	}

	if len(list) == 0 {
		body := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface).Render("Nothing to report.")
		return components.ContentCard(title, body, cw)
	}

	leftW := max(cw*2/5, 36)
	rightW := cw - leftW
	left := components.FocusedCard(title, a.renderAlertList(list, leftW, h-2), leftW)
	right := components.ContentCard("Detail", a.renderAlertDetail(list[a.cursor[tabAlerts]], rightW), rightW)
	return components.CardRow([]string{left, right})
}

func (a App) renderAlertList(list []model.Alert, outerW, h int) string {
	t := theme.Active
	inner := components.CardInnerWidth(outerW)
	cursor := a.cursor[tabAlerts]

	visible := max(h-2, 3)
	offset := 0
	if cursor >= visible {
		offset = cursor - visible + 1
	}

	var lines []string
	for i := offset; i < len(list) && i < offset+visible; i++ {
		al := list[i]
		fg := t.TextPrimary
		if al.Read {
			fg = t.TextDim
		}
		bg := t.Surface
		if i == cursor {
			bg = t.SurfaceHover
		}
		dot := lipgloss.NewStyle().Foreground(t.PriorityColor(al.Priority)).Background(bg).Render("● ")
		if al.Read {
			dot = lipgloss.NewStyle().Foreground(t.TextDim).Background(bg).Render("○ ")
		}
		text := cli.Truncate(al.Title, inner-2)
		lines = append(lines, dot+lipgloss.NewStyle().Foreground(fg).Background(bg).Width(inner-2).Render(text))
	}
	lines = append(lines, "", lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface).
		Render("[enter] mark read  [u] unread only"))
	return strings.Join(lines, "\n")
}

func (a App) renderAlertDetail(al model.Alert, outerW int) string {
	t := theme.Active
	inner := components.CardInnerWidth(outerW)

	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	text := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface).Width(inner)
	heading := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	prio := lipgloss.NewStyle().Foreground(t.PriorityColor(al.Priority)).Background(t.Surface).Bold(true)

	var b strings.Builder
	b.WriteString(heading.Render(al.Title))
	b.WriteString("\n")
	b.WriteString(prio.Render(strings.ToUpper(string(al.Priority))))
	b.WriteString(muted.Render(fmt.Sprintf("  %s · %s", al.Kind, al.Period)))
	if al.AccountID != "" {
		b.WriteString(muted.Render(" · " + a.accountName(al.AccountID)))
	}
	if al.AmountInvolved != nil {
		b.WriteString(muted.Render(" · " + cli.FormatAmount(*al.AmountInvolved)))
	}
	b.WriteString("\n\n")
	b.WriteString(text.Render(al.Message))
	if al.RecommendedAction != "" {
		b.WriteString("\n\n")
		b.WriteString(muted.Render("Suggested action"))
		b.WriteString("\n")
		b.WriteString(text.Render(al.RecommendedAction))
	}
	b.WriteString("\n\n")
	status := "unread"
	if al.Read {
		status = "read"
	}
	b.WriteString(muted.Render(fmt.Sprintf("%s · raised %s · id %s", status, al.GeneratedAt.Local().Format("Jan 2 15:04"), shortID(al.ID))))
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
