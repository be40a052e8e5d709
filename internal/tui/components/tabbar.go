package components

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/fincast/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// Tab represents a single tab in the tab bar.
type Tab struct {
	Name string
	Key  rune
}

// Tabs defines all available tabs. Each shortcut is the first letter.
var Tabs = []Tab{
	{Name: "Forecast", Key: 'f'},
	{Name: "Alerts", Key: 'a'},
	{Name: "Tips", Key: 't'},
	{Name: "Score", Key: 's'},
}

// tabLabel renders one tab. badge (e.g. unread count) is shown after the name.
func tabLabel(tab Tab, active bool, badge int) string {
	t := theme.Active
	name := tab.Name
	if badge > 0 {
		name += fmt.Sprintf(" (%d)", badge)
	}

	if active {
		return lipgloss.NewStyle().
			Foreground(t.AccentBright).
			Background(t.SurfaceHover).
			Bold(true).
			Padding(0, 1).
			Render(name)
	}

	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	key := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	pad := lipgloss.NewStyle().Background(t.Surface).Render(" ")
	return pad + key.Render(name[:1]) + muted.Render(name[1:]) + pad
}

// TabVisualWidth returns the rendered width of a tab for mouse hit testing.
func TabVisualWidth(tab Tab, active bool, badge int) int {
	return lipgloss.Width(tabLabel(tab, active, badge))
}

// RenderTabBar renders the single-row tab bar. badges is indexed like Tabs
// and may be nil.
func RenderTabBar(activeIdx int, badges []int, width int) string {
	t := theme.Active
	sep := lipgloss.NewStyle().Foreground(t.Border).Background(t.Surface).Render("│")

	parts := make([]string, len(Tabs))
	for i, tab := range Tabs {
		parts[i] = tabLabel(tab, i == activeIdx, badgeAt(badges, i))
	}
	row := strings.Join(parts, sep)

	title := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true).Render(" ◈ fincast ")
	gap := max(width-lipgloss.Width(row)-lipgloss.Width(title), 0)
	return row + lipgloss.NewStyle().Background(t.Surface).Render(strings.Repeat(" ", gap)) + title
}

func badgeAt(badges []int, i int) int {
	if i < len(badges) {
		return badges[i]
	}
	return 0
}

// TabIdxByKey returns the tab index for a given key press, or -1.
func TabIdxByKey(key rune) int {
	for i, tab := range Tabs {
		if tab.Key == key {
			return i
		}
	}
	return -1
}
