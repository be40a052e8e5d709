package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/theirongolddev/fincast/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders a unicode sparkline from values.
func Sparkline(values []float64, color lipgloss.Color) string {
	if len(values) == 0 {
		return ""
	}
	peak := values[0]
	for _, v := range values[1:] {
		peak = max(peak, v)
	}
	if peak <= 0 {
		peak = 1
	}

	var buf strings.Builder
	for _, v := range values {
		idx := int(v / peak * float64(len(sparkBlocks)-1))
		buf.WriteRune(sparkBlocks[min(max(idx, 0), len(sparkBlocks)-1)])
	}
	return lipgloss.NewStyle().Foreground(color).Background(theme.Active.Surface).Render(buf.String())
}

// Bar is one column of a BarChart. Projected bars are drawn in the
// forecast color so actuals and predictions read apart.
type Bar struct {
	Label     string
	Value     float64
	Projected bool
}

// BarChart renders a vertical bar chart with a labeled y axis.
func BarChart(bars []Bar, width, height int) string {
	t := theme.Active
	if len(bars) == 0 {
		return ""
	}
	if width < 15 || height < 3 {
		vals := make([]float64, len(bars))
		for i, b := range bars {
			vals[i] = b.Value
		}
		return Sparkline(vals, t.Blue)
	}

	peak := 0.0
	for _, b := range bars {
		peak = max(peak, b.Value)
	}
	if peak == 0 {
		peak = 1
	}

	step := chartTickStep(peak)
	for int(math.Ceil(peak/step)) > max(height/2, 2) {
		step *= 2
	}
	ceiling := math.Ceil(peak/step) * step
	intervals := max(int(math.Round(ceiling/step)), 1)
	rowsPerTick := max(height/intervals, 2)
	chartH := rowsPerTick * intervals

	labelW := max(len(formatChartLabel(ceiling))+1, 4)
	ticks := make(map[int]string, intervals)
	for i := 1; i <= intervals; i++ {
		ticks[i*rowsPerTick] = formatChartLabel(step * float64(i))
	}

	n := len(bars)
	chartW := max(width-labelW-1, 5)
	barW := min(max((chartW-(n-1))/n, 1), 6)
	axisLen := n*barW + (n - 1)

	surface := lipgloss.NewStyle().Background(t.Surface)
	axis := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	actual := lipgloss.NewStyle().Foreground(t.Blue).Background(t.Surface)
	projected := lipgloss.NewStyle().Foreground(t.Cyan).Background(t.Surface)
	partial := []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	var b strings.Builder
	for row := chartH; row >= 1; row-- {
		top := ceiling * float64(row) / float64(chartH)
		bottom := ceiling * float64(row-1) / float64(chartH)

		b.WriteString(axis.Render(fmt.Sprintf("%*s│", labelW, ticks[row])))
		for i, bar := range bars {
			if i > 0 {
				b.WriteString(surface.Render(" "))
			}
			style := actual
			if bar.Projected {
				style = projected
			}
			switch {
			case bar.Value >= top:
				b.WriteString(style.Render(strings.Repeat("█", barW)))
			case bar.Value > bottom:
				idx := min(max(int((bar.Value-bottom)/(top-bottom)*8), 1), 8)
				b.WriteString(style.Render(strings.Repeat(string(partial[idx]), barW)))
			default:
				b.WriteString(surface.Render(strings.Repeat(" ", barW)))
			}
		}
		b.WriteString("\n")
	}
	b.WriteString(axis.Render(fmt.Sprintf("%*s└%s", labelW, "0", strings.Repeat("─", axisLen))))

	// Month labels, skipping any that would collide with the previous one.
	buf := []rune(strings.Repeat(" ", axisLen))
	lastEnd := -1
	for i, bar := range bars {
		pos := i * (barW + 1)
		lbl := []rune(bar.Label)
		if pos <= lastEnd || pos+len(lbl) > axisLen {
			continue
		}
		copy(buf[pos:], lbl)
		lastEnd = pos + len(lbl)
	}
	b.WriteString("\n")
	b.WriteString(surface.Render(strings.Repeat(" ", labelW+1)))
	b.WriteString(axis.Render(strings.TrimRight(string(buf), " ")))
	return b.String()
}

// chartTickStep computes a round tick interval targeting ~5 ticks.
func chartTickStep(peak float64) float64 {
	if peak <= 0 {
		return 1
	}
	rough := peak / 5
	base := math.Pow(10, math.Floor(math.Log10(rough)))
	switch frac := rough / base; {
	case frac < 1.5:
		return base
	case frac < 3.5:
		return 2 * base
	default:
		return 5 * base
	}
}

func formatChartLabel(v float64) string {
	unit := func(div float64, suffix string) string {
		if v == math.Trunc(v/div)*div {
			return fmt.Sprintf("%.0f%s", v/div, suffix)
		}
		return fmt.Sprintf("%.1f%s", v/div, suffix)
	}
	switch {
	case v >= 1e6:
		return unit(1e6, "M")
	case v >= 1e3:
		return unit(1e3, "k")
	case v >= 1:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
