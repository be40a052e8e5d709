package components

import (
	"strings"
	"testing"

	"github.com/theirongolddev/fincast/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func init() {
	// TrueColor so background styling produces ANSI codes in tests.
	lipgloss.SetColorProfile(termenv.TrueColor)
}

func TestLayoutRow(t *testing.T) {
	widths := LayoutRow(100, 3)
	if len(widths) != 3 {
		t.Fatalf("len = %d, want 3", len(widths))
	}
	sum := 0
	for _, w := range widths {
		sum += w
	}
	if sum != 100 {
		t.Errorf("sum = %d, want 100", sum)
	}
	if widths[0] != 34 || widths[2] != 33 {
		t.Errorf("widths = %v, want [34 33 33]", widths)
	}
	if LayoutRow(10, 0) != nil {
		t.Error("n=0 should return nil")
	}
}

func TestCardRow_PadsToTallestCard(t *testing.T) {
	theme.SetActive("flexoki-dark")

	short := ContentCard("Short", "Content", 22)
	tall := ContentCard("Tall", "Line 1\nLine 2\nLine 3\nLine 4\nLine 5", 22)
	shortLines := lipgloss.Height(short)
	tallLines := lipgloss.Height(tall)
	if shortLines >= tallLines {
		t.Fatalf("setup: short card (%d) should be shorter than tall card (%d)", shortLines, tallLines)
	}

	lines := strings.Split(CardRow([]string{tall, short}), "\n")
	if len(lines) != tallLines {
		t.Fatalf("joined height = %d, want %d", len(lines), tallLines)
	}
	width := lipgloss.Width(lines[0])
	for i, line := range lines {
		if lipgloss.Width(line) != width {
			t.Errorf("line %d width = %d, want %d", i, lipgloss.Width(line), width)
		}
		if i >= shortLines && !strings.Contains(line, "\x1b[") {
			t.Errorf("padding line %d has no styling: %q", i, line)
		}
	}
}

func TestMetricRow_Width(t *testing.T) {
	row := MetricRow([]Metric{
		{Label: "Score", Value: "712"},
		{Label: "Unread", Value: "3", Note: "alerts"},
	}, 60)
	for i, line := range strings.Split(row, "\n") {
		if w := lipgloss.Width(line); w != 60 {
			t.Errorf("line %d width = %d, want 60", i, w)
		}
	}
}

func TestTabIdxByKey(t *testing.T) {
	tests := map[rune]int{'f': 0, 'a': 1, 't': 2, 's': 3, 'x': -1}
	for key, want := range tests {
		if got := TabIdxByKey(key); got != want {
			t.Errorf("TabIdxByKey(%q) = %d, want %d", key, got, want)
		}
	}
}

func TestTabVisualWidth_MatchesRenderedBar(t *testing.T) {
	badges := []int{0, 4, 0, 0}
	for active := range Tabs {
		want := 0
		for i, tab := range Tabs {
			want += TabVisualWidth(tab, i == active, badges[i])
		}
		want += len(Tabs) - 1 // separators

		bar := RenderTabBar(active, badges, want)
		// With width == tab row width there is no gap, only the title.
		title := lipgloss.Width(" ◈ fincast ")
		if got := lipgloss.Width(bar) - title; got != want {
			t.Errorf("active=%d: tab row width = %d, want %d", active, got, want)
		}
	}
}

func TestBarChart_Dimensions(t *testing.T) {
	bars := []Bar{
		{Label: "Jan", Value: 300},
		{Label: "Feb", Value: 450},
		{Label: "Mar", Value: 380},
		{Label: "Apr", Value: 500, Projected: true},
	}
	out := BarChart(bars, 40, 8)
	lines := strings.Split(out, "\n")
	if len(lines) < 4 {
		t.Fatalf("chart too short:\n%s", out)
	}
	if !strings.Contains(lines[len(lines)-1], "Jan") {
		t.Errorf("missing x labels: %q", lines[len(lines)-1])
	}
	for i, line := range lines[:len(lines)-1] {
		if lipgloss.Width(line) > 40 {
			t.Errorf("line %d overflows: width %d", i, lipgloss.Width(line))
		}
	}
}

func TestBarChart_NarrowFallsBackToSparkline(t *testing.T) {
	out := BarChart([]Bar{{Value: 1}, {Value: 2}}, 10, 8)
	if strings.Contains(out, "\n") {
		t.Errorf("narrow chart should be a single-line sparkline, got %q", out)
	}
}

func TestFormatChartLabel(t *testing.T) {
	tests := map[float64]string{2000: "2k", 2500: "2.5k", 3_000_000: "3M", 40: "40", 0.5: "0.50"}
	for in, want := range tests {
		if got := formatChartLabel(in); got != want {
			t.Errorf("formatChartLabel(%v) = %q, want %q", in, got, want)
		}
	}
}
