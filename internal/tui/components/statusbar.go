package components

import (
	"fmt"
	"time"

	"github.com/theirongolddev/fincast/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// Status is what the bottom bar reports about the data.
type Status struct {
	Reference  string
	ComputedAt time.Time
	Refreshing bool
	Fallback   bool
	Message    string // transient notice, e.g. "marked as read"
}

// RenderStatusBar renders the bottom status bar.
func RenderStatusBar(width int, st Status) string {
	t := theme.Active

	left := " [?]help  [r]efresh  [q]uit"
	if st.Message != "" {
		left += "   " + st.Message
	}

	right := ""
	switch {
	case st.Refreshing:
		right = "refreshing… "
	case !st.ComputedAt.IsZero():
		right = fmt.Sprintf("%s · computed %s ", st.Reference, st.ComputedAt.Local().Format("15:04:05"))
	}
	if st.Fallback {
		right = "fallback score · " + right
	}

	padding := max(width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	bar := left + fmt.Sprintf("%*s", padding, "") + right

	return lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.Surface).
		Width(width).
		MaxWidth(width).
		Render(bar)
}
