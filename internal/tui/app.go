// Package tui provides the interactive Bubble Tea dashboard for fincast.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/theirongolddev/fincast/internal/cli"
	"github.com/theirongolddev/fincast/internal/config"
	"github.com/theirongolddev/fincast/internal/engine"
	"github.com/theirongolddev/fincast/internal/model"
	"github.com/theirongolddev/fincast/internal/pipeline"
	"github.com/theirongolddev/fincast/internal/store"
	"github.com/theirongolddev/fincast/internal/timeseries"
	"github.com/theirongolddev/fincast/internal/tui/components"
	"github.com/theirongolddev/fincast/internal/tui/theme"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// DataLoadedMsg is sent when ingestion and recomputation finish.
type DataLoadedMsg struct {
	Results   model.Results
	Snapshot  model.Snapshot
	History   []model.FinancialScore
	Reference timeseries.Period
	LoadTime  time.Duration
	Err       error
	Refresh   bool // background refresh rather than the initial load
}

// ProgressMsg reports feed ingestion progress.
type ProgressMsg struct {
	Current int
	Total   int
}

type flagMarkedMsg struct {
	notice string
	err    error
}

type autoRefreshMsg struct{}

const (
	tabForecast = iota
	tabAlerts
	tabTips
	tabScore
)

const (
	minTerminalWidth = 80
	maxContentWidth  = 160
	minContentHeight = 5
	historyMonths    = 12
)

// Options configures the dashboard.
type Options struct {
	Config       config.Config // pre-fills the setup form
	FeedDir      string // ingested on load and refresh; empty skips ingestion
	Workers      int
	RefreshEvery time.Duration // zero disables auto-refresh
	NeedSetup    bool
}

// loader runs one ingest + recompute cycle off the UI goroutine.
type loader struct {
	st      *store.Store
	eng     *engine.Engine
	feedDir string
	workers int
}

func (l loader) load(ctx context.Context, progressFn pipeline.ProgressFunc) DataLoadedMsg {
	start := time.Now()
	var msg DataLoadedMsg

	if l.feedDir != "" {
		if _, err := pipeline.IngestDir(l.feedDir, l.st, l.workers, progressFn); err != nil {
			msg.Err = err
		}
	}

	res, err := l.eng.Recompute(ctx)
	if err != nil && msg.Err == nil {
		msg.Err = err
	}
	msg.Results = res
	msg.Reference = l.eng.Reference()
	if snap, err := l.st.Snapshot(ctx); err == nil {
		msg.Snapshot = snap
	}
	if hist, err := l.st.ScoreHistory(ctx, historyMonths); err == nil {
		msg.History = hist
	}
	msg.LoadTime = time.Since(start)
	return msg
}

// App is the root Bubble Tea model.
type App struct {
	loader loader
	eng    *engine.Engine

	// Data
	results   model.Results
	snap      model.Snapshot
	series    []pipeline.AccountSeries
	history   []model.FinancialScore
	reference timeseries.Period
	loaded    bool
	loadErr   error
	loadTime  time.Duration

	// Refresh state
	refreshEvery time.Duration
	refreshing   bool
	notice       string

	// UI state
	width      int
	height     int
	activeTab  int
	showHelp   bool
	cursor     [4]int
	unreadOnly bool

	// First-run setup (huh form)
	cfg       config.Config
	setupForm *huh.Form
	setupVals SetupValues
	needSetup bool

	// Loading: channel-based progress subscription
	spinner     spinner.Model
	progress    int
	progressMax int
	loadSub     chan tea.Msg
}

// NewApp creates the dashboard over an open store and engine.
func NewApp(st *store.Store, eng *engine.Engine, opts Options) App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent).Background(theme.Active.Surface)

	return App{
		loader:       loader{st: st, eng: eng, feedDir: opts.FeedDir, workers: opts.Workers},
		eng:          eng,
		refreshEvery: opts.RefreshEvery,
		cfg:          opts.Config,
		needSetup:    opts.NeedSetup,
		spinner:      sp,
		loadSub:      make(chan tea.Msg, 1),
	}
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnableMouseCellMotion,
		loadDataCmd(a.loader, a.loadSub),
		a.spinner.Tick,
	)
}

func (a *App) apply(msg DataLoadedMsg) {
	a.results = msg.Results
	a.snap = msg.Snapshot
	a.history = msg.History
	a.reference = msg.Reference
	a.series = pipeline.Aggregate(msg.Snapshot, msg.Reference)
	a.loadErr = msg.Err
	a.loadTime = msg.LoadTime
	a.clampCursors()
}

func (a *App) clampCursors() {
	sizes := [4]int{len(a.series), len(a.alertList()), len(a.tipList()), 0}
	for i, n := range sizes {
		a.cursor[i] = min(max(a.cursor[i], 0), max(n-1, 0))
	}
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.setupForm != nil {
			a.setupForm = a.setupForm.WithWidth(msg.Width).WithHeight(msg.Height)
		}
		return a, nil

	case tea.MouseMsg:
		if !a.loaded || a.showHelp || a.setupForm != nil {
			return a, nil
		}
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			a.moveCursor(-1)
		case tea.MouseButtonWheelDown:
			a.moveCursor(1)
		case tea.MouseButtonLeft:
			if msg.Action == tea.MouseActionPress && msg.Y == 0 {
				if tab := a.tabAtX(msg.X); tab >= 0 {
					a.activeTab = tab
				}
			}
		}
		return a, nil

	case tea.KeyMsg:
		return a.updateKey(msg)

	case DataLoadedMsg:
		first := !a.loaded
		a.loaded = true
		a.refreshing = false
		a.apply(msg)

		var cmds []tea.Cmd
		if first && a.refreshEvery > 0 {
			cmds = append(cmds, autoRefreshCmd(a.refreshEvery))
		}
		if first && a.needSetup {
			a.setupVals = SetupValuesFrom(a.cfg)
			a.setupForm = NewSetupForm(len(a.snap.Accounts), a.loader.feedDir, &a.setupVals)
			if a.width > 0 {
				a.setupForm = a.setupForm.WithWidth(a.width).WithHeight(a.height)
			}
			cmds = append(cmds, a.setupForm.Init())
		}
		return a, tea.Batch(cmds...)

	case ProgressMsg:
		a.progress = msg.Current
		a.progressMax = msg.Total
		return a, waitForLoadMsg(a.loadSub)

	case flagMarkedMsg:
		if msg.err != nil {
			a.notice = "error: " + msg.err.Error()
		} else {
			a.notice = msg.notice
		}
		a.results = a.eng.Results()
		a.clampCursors()
		return a, nil

	case autoRefreshMsg:
		cmds := []tea.Cmd{autoRefreshCmd(a.refreshEvery)}
		if !a.refreshing {
			a.refreshing = true
			cmds = append(cmds, refreshDataCmd(a.loader))
		}
		return a, tea.Batch(cmds...)

	case spinner.TickMsg:
		if !a.loaded {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil
	}

	// Forward unhandled messages to the setup form (cursor blinks, etc.)
	if a.setupForm != nil {
		return a.updateSetupForm(msg)
	}
	return a, nil
}

func (a App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return a, tea.Quit
	}
	if !a.loaded {
		return a, nil
	}
	if a.setupForm != nil {
		return a.updateSetupForm(msg)
	}

	if key == "?" {
		a.showHelp = !a.showHelp
		return a, nil
	}
	if a.showHelp {
		a.showHelp = false
		return a, nil
	}
	a.notice = ""

	switch key {
	case "q":
		return a, tea.Quit
	case "r":
		if !a.refreshing {
			a.refreshing = true
			return a, refreshDataCmd(a.loader)
		}
		return a, nil
	case "j", "down":
		a.moveCursor(1)
	case "k", "up":
		a.moveCursor(-1)
	case "g":
		a.cursor[a.activeTab] = 0
	case "G":
		a.cursor[a.activeTab] = a.listLen() - 1
		a.clampCursors()
	case "u":
		if a.activeTab == tabAlerts {
			a.unreadOnly = !a.unreadOnly
			a.clampCursors()
		}
	case "enter", " ":
		return a, a.markSelected()
	case "left", "shift+tab":
		a.activeTab = (a.activeTab - 1 + len(components.Tabs)) % len(components.Tabs)
	case "right", "tab":
		a.activeTab = (a.activeTab + 1) % len(components.Tabs)
	default:
		if r := []rune(key); len(r) == 1 {
			if idx := components.TabIdxByKey(r[0]); idx >= 0 {
				a.activeTab = idx
			}
		}
	}
	return a, nil
}

func (a App) updateSetupForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := a.setupForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.setupForm = f
	}

	switch a.setupForm.State {
	case huh.StateCompleted:
		if _, err := saveSetup(a.setupVals); err != nil {
			a.notice = "setup not saved: " + err.Error()
		} else {
			a.notice = "settings saved"
		}
		a.needSetup = false
		a.setupForm = nil
		return a, nil
	case huh.StateAborted:
		a.needSetup = false
		a.setupForm = nil
		return a, nil
	}
	return a, cmd
}

func (a App) listLen() int {
	switch a.activeTab {
	case tabForecast:
		return len(a.series)
	case tabAlerts:
		return len(a.alertList())
	case tabTips:
		return len(a.tipList())
	}
	return 0
}

func (a *App) moveCursor(delta int) {
	n := a.listLen()
	if n == 0 {
		return
	}
	a.cursor[a.activeTab] = min(max(a.cursor[a.activeTab]+delta, 0), n-1)
}

// markSelected flags the selected alert as read or tip as applied.
func (a App) markSelected() tea.Cmd {
	eng := a.eng
	switch a.activeTab {
	case tabAlerts:
		list := a.alertList()
		if len(list) == 0 || list[a.cursor[tabAlerts]].Read {
			return nil
		}
		al := list[a.cursor[tabAlerts]]
		return func() tea.Msg {
			err := eng.MarkAlertRead(context.Background(), al.ID)
			return flagMarkedMsg{notice: "marked as read: " + al.Title, err: err}
		}
	case tabTips:
		list := a.tipList()
		if len(list) == 0 || list[a.cursor[tabTips]].Applied {
			return nil
		}
		rec := list[a.cursor[tabTips]]
		return func() tea.Msg {
			err := eng.MarkRecommendationApplied(context.Background(), rec.ID)
			return flagMarkedMsg{notice: "applied: " + rec.Title, err: err}
		}
	}
	return nil
}

// alertList is the alerts tab order: unread first, then priority, newest first.
func (a App) alertList() []model.Alert {
	out := make([]model.Alert, 0, len(a.results.Alerts))
	for _, al := range a.results.Alerts {
		if !a.unreadOnly || !al.Read {
			out = append(out, al)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Read != out[j].Read {
			return !out[i].Read
		}
		if ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank(); ri != rj {
			return ri > rj
		}
		return out[i].GeneratedAt.After(out[j].GeneratedAt)
	})
	return out
}

// tipList is the still-valid recommendations, pending before applied.
func (a App) tipList() []model.Recommendation {
	var out []model.Recommendation
	for _, r := range a.results.Recommendations {
		if r.Valid(a.results.ComputedAt) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Applied != out[j].Applied {
			return !out[i].Applied
		}
		return out[i].Score > out[j].Score
	})
	return out
}

func (a App) tabBadges() []int {
	pending := 0
	for _, r := range a.tipList() {
		if !r.Applied {
			pending++
		}
	}
	return []int{0, a.results.UnreadAlerts(), pending, 0}
}

func (a App) accountName(id string) string {
	for _, acc := range a.snap.Accounts {
		if acc.ID == id {
			return acc.DisplayName()
		}
	}
	return id
}

func (a App) contentWidth() int {
	return min(a.width, maxContentWidth)
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return a.viewTooNarrow()
	}
	if !a.loaded {
		return a.viewLoading()
	}
	if a.setupForm != nil {
		return a.setupForm.View()
	}
	if a.showHelp {
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewTooNarrow() string {
	h := max(a.height, 5)
	msg := fmt.Sprintf("\n  Terminal too narrow (%d cols)\n\n  fincast needs at least %d columns.\n",
		a.width, minTerminalWidth)
	return padHeight(truncateHeight(msg, h), h)
}

func (a App) viewLoading() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(2, 4)
	logo := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	muted := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	count := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)

	var b strings.Builder
	b.WriteString(logo.Render("◈ fincast"))
	b.WriteString(muted.Render(" · spend forecast & financial score"))
	b.WriteString("\n\n")
	b.WriteString(a.spinner.View())

	if a.progressMax > 0 {
		barW := min(max(a.width-30, 20), 40)
		b.WriteString(muted.Render(" Ingesting feeds\n\n"))
		b.WriteString(components.ProgressBar(float64(a.progress)/float64(a.progressMax), barW))
		b.WriteString("\n")
		b.WriteString(count.Render(cli.FormatNumber(int64(a.progress))))
		b.WriteString(muted.Render(" / "))
		b.WriteString(count.Render(cli.FormatNumber(int64(a.progressMax))))
		b.WriteString(muted.Render(" files"))
	} else {
		b.WriteString(muted.Render(" Computing forecasts…"))
	}

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()),
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewHelp() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(1, 3)
	title := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	section := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(t.Cyan).Background(t.Surface).Bold(true)
	desc := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	dim := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	groups := []struct {
		name     string
		bindings [][2]string
	}{
		{"Navigation", [][2]string{
			{"f a t s", "Jump to tab"},
			{"← → tab", "Previous / next tab"},
			{"j k", "Move selection"},
			{"g G", "First / last item"},
		}},
		{"Actions", [][2]string{
			{"Enter", "Mark alert read / tip applied"},
			{"u", "Alerts: toggle unread only"},
			{"r", "Re-ingest feeds and recompute"},
			{"?", "Toggle help"},
			{"q", "Quit"},
		}},
	}

	var b strings.Builder
	b.WriteString(title.Render("◈ Keyboard Shortcuts"))
	for _, g := range groups {
		b.WriteString("\n\n")
		b.WriteString(section.Render(g.name))
		for _, kb := range g.bindings {
			fmt.Fprintf(&b, "\n  %s  %s", keyStyle.Render(fmt.Sprintf("%-10s", kb[0])), desc.Render(kb[1]))
		}
	}
	b.WriteString("\n\n")
	b.WriteString(dim.Render("Press any key to close"))

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()),
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewMain() string {
	t := theme.Active
	w, h, cw := a.width, a.height, a.contentWidth()

	header := components.RenderTabBar(a.activeTab, a.tabBadges(), w)

	notice := a.notice
	if a.loadErr != nil && notice == "" {
		notice = "error: " + a.loadErr.Error()
	}
	statusBar := components.RenderStatusBar(w, components.Status{
		Reference:  a.reference.String(),
		ComputedAt: a.results.ComputedAt,
		Refreshing: a.refreshing,
		Fallback:   a.results.Score.Fallback,
		Message:    notice,
	})

	contentH := max(h-lipgloss.Height(header)-lipgloss.Height(statusBar), minContentHeight)

	var content string
	switch a.activeTab {
	case tabForecast:
		content = a.renderForecastTab(cw, contentH)
	case tabAlerts:
		content = a.renderAlertsTab(cw, contentH)
	case tabTips:
		content = a.renderTipsTab(cw, contentH)
	case tabScore:
		content = a.renderScoreTab(cw)
	}

	content = padHeight(truncateHeight(content, contentH), contentH)
	content = fillLinesWithBackground(content, cw, t.Background)
	content = lipgloss.Place(w, contentH, lipgloss.Center, lipgloss.Top, content,
		lipgloss.WithWhitespaceBackground(t.Background))

	output := lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
	return lipgloss.Place(w, h, lipgloss.Left, lipgloss.Top, output,
		lipgloss.WithWhitespaceBackground(t.Background))
}

// ─── Commands ───────────────────────────────────────────────────

// loadDataCmd starts ingestion + recomputation in a background goroutine.
// It streams ProgressMsg updates and a final DataLoadedMsg through sub.
func loadDataCmd(l loader, sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		go func() {
			// Non-blocking send so ingest workers are never stalled by the UI.
			progressFn := func(current, total int) {
				select {
				case sub <- ProgressMsg{Current: current, Total: total}:
				default:
				}
			}
			sub <- l.load(context.Background(), progressFn)
		}()
		return <-sub
	}
}

// waitForLoadMsg blocks until the next message arrives from the loader goroutine.
func waitForLoadMsg(sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-sub
	}
}

func refreshDataCmd(l loader) tea.Cmd {
	return func() tea.Msg {
		msg := l.load(context.Background(), nil)
		msg.Refresh = true
		return msg
	}
}

func autoRefreshCmd(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(time.Time) tea.Msg { return autoRefreshMsg{} })
}

// ─── Layout helpers ─────────────────────────────────────────────

func truncateHeight(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func padHeight(s string, h int) string {
	n := strings.Count(s, "\n") + 1
	if n >= h {
		return s
	}
	return s + strings.Repeat("\n", h-n)
}

// fillLinesWithBackground pads each line to width w with the background
// color so gaps between cards are not left unstyled.
func fillLinesWithBackground(s string, w int, bg lipgloss.Color) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = lipgloss.PlaceHorizontal(w, lipgloss.Left, line, lipgloss.WithWhitespaceBackground(bg))
	}
	return strings.Join(lines, "\n")
}

// tabAtX returns the tab index at the given X coordinate, or -1 if none.
// Hitboxes use the same widths RenderTabBar draws.
func (a App) tabAtX(x int) int {
	badges := a.tabBadges()
	pos := 0
	for i, tab := range components.Tabs {
		tabW := components.TabVisualWidth(tab, i == a.activeTab, badges[i])
		if x >= pos && x < pos+tabW {
			return i
		}
		pos += tabW + 1 // separator
	}
	return -1
}
