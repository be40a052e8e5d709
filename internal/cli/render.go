package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/theirongolddev/fincast/internal/model"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme colors (Flexoki Dark)
var (
	ColorBorder    = lipgloss.Color("#282726")
	ColorTextDim   = lipgloss.Color("#575653")
	ColorTextMuted = lipgloss.Color("#6F6E69")
	ColorText      = lipgloss.Color("#FFFCF0")
	ColorAccent    = lipgloss.Color("#3AA99F")
	ColorGreen     = lipgloss.Color("#879A39")
	ColorOrange    = lipgloss.Color("#DA702C")
	ColorRed       = lipgloss.Color("#D14D41")
	ColorBlue      = lipgloss.Color("#4385BE")
	ColorYellow    = lipgloss.Color("#D0A215")
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorText).Align(lipgloss.Center)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	valueStyle  = lipgloss.NewStyle().Foreground(ColorText)
	mutedStyle  = lipgloss.NewStyle().Foreground(ColorTextMuted)
	dimStyle    = lipgloss.NewStyle().Foreground(ColorTextDim)
)

// ConfigureColor picks the color profile for w. NO_COLOR, a non-terminal
// writer or plain=true all fall back to uncolored ASCII output.
func ConfigureColor(w io.Writer, plain bool) {
	if plain {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	f, ok := w.(*os.File)
	if !ok {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	lipgloss.SetColorProfile(termenv.NewOutput(f).EnvColorProfile())
}

// Table represents a bordered text table for CLI output. The first column
// is left-aligned and the rest right-aligned unless LeftAlign marks them.
type Table struct {
	Title     string
	Headers   []string
	Rows      [][]string
	LeftAlign map[int]bool
}

// Separator is a row value that renders as a horizontal rule.
var Separator = []string{"---"}

// RenderTitle renders a centered title bar in a bordered box.
func RenderTitle(title string) string {
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Width(55).
		Align(lipgloss.Center).
		Padding(0, 1)

	return border.Render(titleStyle.Render(title))
}

// RenderTable renders a bordered table with headers and rows. Cell widths
// are measured with lipgloss so pre-styled cells line up.
func RenderTable(t Table) string {
	cols := len(t.Headers)
	if cols == 0 && len(t.Rows) > 0 {
		cols = len(t.Rows[0])
	}
	if cols == 0 {
		return ""
	}

	widths := make([]int, cols)
	measure := func(row []string) {
		for i := 0; i < cols && i < len(row); i++ {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}
	measure(t.Headers)
	for _, row := range t.Rows {
		if !isSeparator(row) {
			measure(row)
		}
	}

	rule := func(left, mid, right string) string {
		parts := make([]string, cols)
		for i, w := range widths {
			parts[i] = strings.Repeat("─", w+2)
		}
		return dimStyle.Render(left+strings.Join(parts, mid)+right) + "\n"
	}
	line := func(row []string, style lipgloss.Style) string {
		var b strings.Builder
		bar := dimStyle.Render("│")
		b.WriteString(bar)
		for i := 0; i < cols; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			pad := strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
			if i == 0 || t.LeftAlign[i] {
				cell += pad
			} else {
				cell = pad + cell
			}
			b.WriteString(style.Render(" " + cell + " "))
			b.WriteString(bar)
		}
		b.WriteString("\n")
		return b.String()
	}

	var b strings.Builder
	if t.Title != "" {
		b.WriteString("  " + headerStyle.Render(t.Title) + "\n")
	}
	b.WriteString(rule("╭", "┬", "╮"))
	if len(t.Headers) > 0 {
		b.WriteString(line(t.Headers, headerStyle))
		b.WriteString(rule("├", "┼", "┤"))
	}
	for _, row := range t.Rows {
		if isSeparator(row) {
			b.WriteString(rule("├", "┼", "┤"))
			continue
		}
		b.WriteString(line(row, valueStyle))
	}
	b.WriteString(rule("╰", "┴", "╯"))
	return b.String()
}

func isSeparator(row []string) bool {
	return len(row) == 1 && row[0] == Separator[0]
}

// RenderGauge renders a utilization bar for a 0-1 ratio, colored by how
// close it runs to the limit.
func RenderGauge(ratio float64, width int) string {
	clamped := min(max(ratio, 0), 1)
	filled := int(clamped * float64(width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	color := ColorGreen
	switch {
	case ratio >= 0.95:
		color = ColorRed
	case ratio >= 0.80:
		color = ColorOrange
	}
	return lipgloss.NewStyle().Foreground(color).Render(bar) + " " + FormatRatio(ratio)
}

// RenderSparkline generates a unicode block sparkline from a series of values.
func RenderSparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}

	blocks := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	peak := values[0]
	for _, v := range values[1:] {
		peak = max(peak, v)
	}
	if peak <= 0 {
		peak = 1
	}

	var b strings.Builder
	for _, v := range values {
		idx := int(v / peak * float64(len(blocks)-1))
		b.WriteRune(blocks[min(max(idx, 0), len(blocks)-1)])
	}
	return b.String()
}

// RenderHorizontalBar renders a labeled bar scaled against maxValue.
func RenderHorizontalBar(label string, value, maxValue float64, maxWidth int) string {
	n := 0
	if maxValue > 0 {
		n = max(int(value/maxValue*float64(maxWidth)), 0)
	}
	return fmt.Sprintf("  %-16s %s %s", Truncate(label, 16),
		lipgloss.NewStyle().Foreground(ColorBlue).Render(strings.Repeat("█", n)),
		mutedStyle.Render(FormatAmount(value)))
}

// BandStyle colors a score band.
func BandStyle(b model.Band) lipgloss.Style {
	var c lipgloss.Color
	switch b {
	case model.BandExcellent:
		c = ColorAccent
	case model.BandVeryGood, model.BandGood:
		c = ColorGreen
	case model.BandRegular:
		c = ColorYellow
	default:
		c = ColorRed
	}
	return lipgloss.NewStyle().Bold(true).Foreground(c)
}

// PriorityLabel renders an alert priority with its color.
func PriorityLabel(p model.Priority) string {
	c := ColorTextMuted
	switch p {
	case model.PriorityHigh:
		c = ColorRed
	case model.PriorityMedium:
		c = ColorOrange
	}
	return lipgloss.NewStyle().Foreground(c).Render(string(p))
}

// TrendArrow renders a forecast trend as a colored arrow.
func TrendArrow(t model.Trend) string {
	switch t {
	case model.TrendRising:
		return lipgloss.NewStyle().Foreground(ColorRed).Render("▲ rising")
	case model.TrendFalling:
		return lipgloss.NewStyle().Foreground(ColorGreen).Render("▼ falling")
	default:
		return mutedStyle.Render("● stable")
	}
}

// Muted renders secondary text.
func Muted(s string) string { return mutedStyle.Render(s) }
