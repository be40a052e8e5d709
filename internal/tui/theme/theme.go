// Package theme defines color themes for the fincast dashboard and maps
// domain states (score bands, alert priority, utilization) onto them.
package theme

import (
	"github.com/theirongolddev/fincast/internal/model"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color roles used throughout the TUI.
type Theme struct {
	Name         string
	Background   lipgloss.Color // main app background
	Surface      lipgloss.Color // cards and panels
	SurfaceHover lipgloss.Color // selected row, active tab
	Border       lipgloss.Color
	BorderAccent lipgloss.Color // focused card
	TextDim      lipgloss.Color // hints, disabled
	TextMuted    lipgloss.Color // labels, metadata
	TextPrimary  lipgloss.Color
	Accent       lipgloss.Color
	AccentBright lipgloss.Color
	Green        lipgloss.Color
	Yellow       lipgloss.Color
	Orange       lipgloss.Color
	Red          lipgloss.Color
	Blue         lipgloss.Color // history bars
	Cyan         lipgloss.Color // forecast bars
}

// FlexokiDark is the default theme.
var FlexokiDark = Theme{
	Name:         "flexoki-dark",
	Background:   "#100F0F",
	Surface:      "#1C1B1A",
	SurfaceHover: "#282726",
	Border:       "#403E3C",
	BorderAccent: "#3AA99F",
	TextDim:      "#575653",
	TextMuted:    "#878580",
	TextPrimary:  "#FFFCF0",
	Accent:       "#3AA99F",
	AccentBright: "#5BC8BE",
	Green:        "#879A39",
	Yellow:       "#D0A215",
	Orange:       "#DA702C",
	Red:          "#D14D41",
	Blue:         "#4385BE",
	Cyan:         "#24837B",
}

// CatppuccinMocha is a soft pastel theme.
var CatppuccinMocha = Theme{
	Name:         "catppuccin-mocha",
	Background:   "#1E1E2E",
	Surface:      "#313244",
	SurfaceHover: "#45475A",
	Border:       "#585B70",
	BorderAccent: "#89B4FA",
	TextDim:      "#6C7086",
	TextMuted:    "#A6ADC8",
	TextPrimary:  "#CDD6F4",
	Accent:       "#89B4FA",
	AccentBright: "#B4D0FB",
	Green:        "#A6E3A1",
	Yellow:       "#F9E2AF",
	Orange:       "#FAB387",
	Red:          "#F38BA8",
	Blue:         "#74C7EC",
	Cyan:         "#94E2D5",
}

// TokyoNight is a cool blue theme.
var TokyoNight = Theme{
	Name:         "tokyo-night",
	Background:   "#1A1B26",
	Surface:      "#24283B",
	SurfaceHover: "#343A52",
	Border:       "#565F89",
	BorderAccent: "#7AA2F7",
	TextDim:      "#565F89",
	TextMuted:    "#A9B1D6",
	TextPrimary:  "#C0CAF5",
	Accent:       "#7AA2F7",
	AccentBright: "#A9C1FF",
	Green:        "#9ECE6A",
	Yellow:       "#E0AF68",
	Orange:       "#FF9E64",
	Red:          "#F7768E",
	Blue:         "#7AA2F7",
	Cyan:         "#7DCFFF",
}

// Terminal uses the ANSI 16 palette only.
var Terminal = Theme{
	Name:         "terminal",
	Background:   "0",
	Surface:      "0",
	SurfaceHover: "8",
	Border:       "8",
	BorderAccent: "6",
	TextDim:      "8",
	TextMuted:    "7",
	TextPrimary:  "15",
	Accent:       "6",
	AccentBright: "14",
	Green:        "2",
	Yellow:       "3",
	Orange:       "11",
	Red:          "1",
	Blue:         "4",
	Cyan:         "6",
}

// All available themes.
var All = []Theme{FlexokiDark, CatppuccinMocha, TokyoNight, Terminal}

// Active is the currently selected theme.
var Active = FlexokiDark

// ByName returns a theme by its name, defaulting to FlexokiDark.
func ByName(name string) Theme {
	for _, t := range All {
		if t.Name == name {
			return t
		}
	}
	return FlexokiDark
}

// SetActive sets the active theme by name.
func SetActive(name string) {
	Active = ByName(name)
}

// BandColor is the color of a score band.
func (t Theme) BandColor(b model.Band) lipgloss.Color {
	switch b {
	case model.BandExcellent:
		return t.AccentBright
	case model.BandVeryGood, model.BandGood:
		return t.Green
	case model.BandRegular:
		return t.Yellow
	default:
		return t.Red
	}
}

// PriorityColor is the color of an alert priority.
func (t Theme) PriorityColor(p model.Priority) lipgloss.Color {
	switch p {
	case model.PriorityHigh:
		return t.Red
	case model.PriorityMedium:
		return t.Orange
	default:
		return t.TextMuted
	}
}

// UtilizationColor grades a spend/limit ratio.
func (t Theme) UtilizationColor(ratio float64) lipgloss.Color {
	switch {
	case ratio >= 0.95:
		return t.Red
	case ratio >= 0.80:
		return t.Orange
	case ratio >= 0.50:
		return t.Yellow
	default:
		return t.Green
	}
}

// TrendColor colors a spend trend; rising spend is bad news.
func (t Theme) TrendColor(tr model.Trend) lipgloss.Color {
	switch tr {
	case model.TrendRising:
		return t.Red
	case model.TrendFalling:
		return t.Green
	default:
		return t.TextMuted
	}
}
