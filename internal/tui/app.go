package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/chatnav/internal/applog"
	"github.com/lotas/chatnav/internal/config"
	"github.com/lotas/chatnav/internal/engine"
	"github.com/lotas/chatnav/internal/export"
	"github.com/lotas/chatnav/internal/live"
	"github.com/lotas/chatnav/internal/server"
	"github.com/lotas/chatnav/internal/session"
	"github.com/lotas/chatnav/internal/source"
	"github.com/lotas/chatnav/internal/storage"
	"github.com/lotas/chatnav/internal/transcript"
	"github.com/lotas/chatnav/internal/types"
	"github.com/lotas/chatnav/internal/watch"
)

// --- Messages ---

type updateMsg struct{ gen int }

type fileChangedMsg struct{ gen int }

type conversationLoadedMsg struct {
	conv   *source.Conversation
	path   string
	reload bool
	err    error
}

type summaryDoneMsg struct{ err error }

type exportDoneMsg struct {
	path string
	err  error
}

type liveTickMsg struct{}

type serverStoppedMsg struct{ err error }

// Mode distinguishes live vs offline.
type Mode int

const (
	ModeOffline Mode = iota
	ModeLive
)

const wheelRows = 3

// Options configures the TUI.
type Options struct {
	Config        *config.Config
	Store         *storage.Store // optional
	Summarizer    engine.Summarizer
	Conversations []types.Conversation // picker entries
	ExportDir     string
	Server        *server.Server // required for live mode

	// Offline start: a parsed conversation and the file it came from.
	Conversation *source.Conversation
	Path         string
	// Live start.
	Live bool
}

// runtime holds what every copy of the Model shares.
type runtime struct {
	ctx    context.Context
	cancel context.CancelFunc

	gen     int
	sctx    context.Context
	scancel context.CancelFunc
	sess    *session.Session
	eng     *engine.Engine
	unsub   func()
	file    *transcript.File
	changes chan struct{}
	bridge  *live.Bridge
	serving bool
}

func (rt *runtime) engine() *engine.Engine {
	if rt.sess == nil {
		return nil
	}
	return rt.sess.Engine()
}

func (rt *runtime) stopSession() {
	if rt.sess != nil {
		rt.sess.Stop()
		rt.sess = nil
	}
	if rt.scancel != nil {
		rt.scancel()
		rt.scancel = nil
	}
	if rt.unsub != nil {
		rt.unsub()
		rt.unsub = nil
	}
	rt.eng = nil
	rt.file = nil
	rt.bridge = nil
}

// --- Model ---

type Model struct {
	opts     Options
	rt       *runtime
	theme    Theme
	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	timeline *Timeline
	pane     Pane

	picker      SourcePicker
	showPicker  bool
	preview     Preview
	showPreview bool
	mode        Mode
	loading     bool
	status      string
	err         error
	width       int
	height      int

	snap        engine.Snapshot
	state       session.State
	route       types.Route
	summarizing bool

	// Pointer state over the timeline column.
	hover    bool
	overRail bool
	dragging bool
	pressing int
}

func NewModel(opts Options) Model {
	if opts.Config == nil {
		cfg := config.Default()
		opts.Config = &cfg
	}
	ctx, cancel := context.WithCancel(context.Background())
	theme := NewTheme(opts.Config.Theme)
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	m := Model{
		opts:     opts,
		rt:       &runtime{ctx: ctx, cancel: cancel},
		theme:    theme,
		keys:     defaultKeys(),
		help:     help.New(),
		spinner:  sp,
		timeline: NewTimeline(),
		pane:     NewPane(theme),
		pressing: -1,
	}
	switch {
	case opts.Live:
		m.mode = ModeLive
	case opts.Conversation != nil:
		m.mode = ModeOffline
	default:
		m.showPicker = true
		m.picker = NewSourcePicker(opts.Conversations)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	switch {
	case m.opts.Live:
		return m.startLive()
	case m.opts.Conversation != nil:
		return m.openConversation(m.opts.Conversation, m.opts.Path)
	}
	return nil
}

// Shutdown stops the session and every background goroutine.
func (m Model) Shutdown() {
	m.rt.stopSession()
	m.rt.cancel()
}

func (m Model) sessionOptions() session.Options {
	cfg := m.opts.Config
	opts := session.Options{
		Engine:           cfg.EngineOptions(),
		RouteSettle:      cfg.Timing.RouteSettle,
		BootstrapTimeout: cfg.Timing.BootstrapTimeout,
	}
	opts.Engine.Summarizer = m.opts.Summarizer
	if m.opts.Store != nil {
		opts.Store = m.opts.Store
		ch, unsub := m.opts.Store.Subscribe()
		opts.Changes = ch
		m.rt.unsub = unsub
	}
	return opts
}

func (m Model) startSession(nav session.Navigator, binder session.Binder) (*session.Session, tea.Cmd) {
	rt := m.rt
	rt.gen++
	rt.sctx, rt.scancel = context.WithCancel(rt.ctx)
	s := session.New(nav, binder, m.sessionOptions())
	rt.sess = s
	s.Start(rt.sctx)
	return s, waitForUpdates(rt.sctx, rt.gen, s)
}

func (m Model) openConversation(c *source.Conversation, path string) tea.Cmd {
	m.rt.stopSession()
	f := transcript.NewFile(c, path, m.timeline, m.timeline.TrackHeight)
	if m.width > 0 {
		f.Resize(m.textWidth(), m.bodyHeight())
	}
	m.rt.file = f
	_, cmd := m.startSession(f, f)
	if path == "" {
		return cmd
	}

	rt := m.rt
	rt.changes = make(chan struct{}, 1)
	changes, ctx := rt.changes, rt.sctx
	go func() {
		err := watch.File(ctx, path, m.opts.Config.Timing.Watch, func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		})
		if err != nil {
			applog.Error("tui.watch", err, "path", path)
		}
	}()
	return tea.Batch(cmd, waitForFileChange(ctx, rt.gen, changes))
}

func (m Model) startLive() tea.Cmd {
	m.rt.stopSession()
	rt := m.rt
	b := live.New(m.opts.Server, m.timeline, m.timeline.TrackHeight)
	rt.bridge = b
	s, cmd := m.startSession(b, b)
	b.Follow(s.Engine)
	go b.Run(rt.sctx)

	cmds := []tea.Cmd{cmd, liveTick()}
	if !rt.serving {
		rt.serving = true
		cmds = append(cmds, serve(rt.ctx, m.opts.Server))
	}
	return tea.Batch(cmds...)
}

func serve(ctx context.Context, srv *server.Server) tea.Cmd {
	return func() tea.Msg {
		return serverStoppedMsg{err: srv.ListenAndServe(ctx)}
	}
}

func liveTick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return liveTickMsg{} })
}

func waitForUpdates(ctx context.Context, gen int, s *session.Session) tea.Cmd {
	eng := s.Engine()
	return func() tea.Msg {
		var engUpdates <-chan struct{}
		if eng != nil {
			engUpdates = eng.Updates()
		}
		select {
		case <-ctx.Done():
			return nil
		case <-s.Updates():
		case <-engUpdates:
		}
		return updateMsg{gen: gen}
	}
}

func waitForFileChange(ctx context.Context, gen int, changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			return fileChangedMsg{gen: gen}
		}
	}
}

func loadFile(path string) tea.Cmd {
	return func() tea.Msg {
		c, err := source.ParseFile(path, "")
		return conversationLoadedMsg{conv: c, path: path, reload: true, err: err}
	}
}

func fetchConversation(ctx context.Context, url string) tea.Cmd {
	return func() tea.Msg {
		c, err := source.Fetch(ctx, url)
		return conversationLoadedMsg{conv: c, err: err}
	}
}

func exportTimeline(t *export.Timeline, dir string) tea.Cmd {
	return func() tea.Msg {
		name := fmt.Sprintf("chatnav-%s-%s.md", t.Route.Provider, t.Route.ConversationID)
		path := filepath.Join(dir, name)
		err := os.WriteFile(path, []byte(export.Markdown(t)), 0o644)
		return exportDoneMsg{path: path, err: err}
	}
}

// --- Layout ---

func (m Model) timelineWidth() int {
	return max(8, min(m.opts.Config.Geometry.Width, m.width/2))
}

func (m Model) paneWidth() int {
	return max(0, m.width-m.timelineWidth()-TimelineGap)
}

// textWidth leaves room for header decorations.
func (m Model) textWidth() int {
	return max(1, m.paneWidth()-2)
}

func (m Model) bodyHeight() int {
	return max(1, m.height-2)
}

func (m *Model) layout() {
	h := m.bodyHeight()
	m.timeline.SetSize(m.timelineWidth(), h)
	m.pane.SetSize(m.paneWidth(), h)
	m.picker.Width, m.picker.Height = m.width, m.height
	m.help.Width = m.width

	relaid := false
	if m.rt.file != nil {
		relaid = m.rt.file.Resize(m.textWidth(), h)
	}
	if eng := m.rt.engine(); eng != nil {
		eng.Resize(float64(h))
		if relaid {
			eng.ContentChanged()
		}
		m.scrolled()
	}
}

// scrolled tells the engine the transcript moved.
func (m Model) scrolled() {
	eng := m.rt.engine()
	if eng == nil {
		return
	}
	if m.rt.file != nil {
		eng.SetVisible(m.rt.file.VisibleIDs())
		return
	}
	eng.Scrolled()
}

func (m Model) title() string {
	switch {
	case m.rt.file != nil:
		return m.rt.file.Conversation().Title
	case m.rt.bridge != nil:
		return m.rt.bridge.Title()
	}
	return ""
}

// refresh pulls session and engine state into the model.
func (m *Model) refresh() {
	s := m.rt.sess
	if s == nil {
		return
	}
	m.state, m.route = s.State()
	eng := s.Engine()
	if eng != m.rt.eng {
		m.rt.eng = eng
		if eng != nil {
			m.attached(eng)
		}
	}
	if eng != nil {
		m.snap = eng.Snapshot()
	} else {
		m.snap = engine.Snapshot{Active: -1}
	}
	if m.rt.file != nil {
		m.pane.Refresh(m.rt.file.Source().Document(), m.snap.Markers)
	}
}

func (m *Model) attached(eng *engine.Engine) {
	eng.Resize(float64(m.bodyHeight()))
	m.scrolled()
	if m.opts.Store == nil {
		return
	}
	conv := types.Conversation{Route: m.route, Title: m.title(), LastAccessed: time.Now()}
	if err := m.opts.Store.RecordConversation(conv, len(eng.Snapshot().Markers)); err != nil {
		applog.Error("tui.record_conversation", err, "conversation", m.route.StoreKey())
	}
}

// --- Update ---

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if m.showPicker {
			return m.updatePicker(msg)
		}
		if m.showPreview {
			switch msg.String() {
			case "esc", "q", "v":
				m.showPreview = false
				return m, nil
			}
			var cmd tea.Cmd
			m.preview, cmd = m.preview.Update(msg)
			return m, cmd
		}
		return m.updateKeys(msg)

	case tea.MouseMsg:
		if m.showPicker {
			return m, nil
		}
		return m.updateMouse(msg)

	case updateMsg:
		if msg.gen != m.rt.gen {
			return m, nil
		}
		m.refresh()
		return m, waitForUpdates(m.rt.sctx, m.rt.gen, m.rt.sess)

	case fileChangedMsg:
		if msg.gen != m.rt.gen || m.rt.file == nil {
			return m, nil
		}
		return m, tea.Batch(loadFile(m.rt.file.Path()), waitForFileChange(m.rt.sctx, m.rt.gen, m.rt.changes))

	case conversationLoadedMsg:
		m.loading = false
		if msg.err != nil {
			if msg.reload {
				// Editors save in steps; the next write brings a full page.
				applog.Error("tui.reload", msg.err, "path", msg.path)
				return m, nil
			}
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		if msg.reload && m.rt.file != nil && m.rt.file.Path() == msg.path {
			m.rt.file.Reload(msg.conv)
			if eng := m.rt.engine(); eng != nil {
				eng.ContentChanged()
			}
			m.refresh()
			return m, nil
		}
		m.mode = ModeOffline
		cmd := m.openConversation(msg.conv, msg.path)
		m.refresh()
		return m, cmd

	case summaryDoneMsg:
		m.summarizing = false
		if msg.err != nil {
			m.status = "AI labels: " + msg.err.Error()
		}
		m.refresh()
		return m, nil

	case exportDoneMsg:
		if msg.err != nil {
			m.status = "Export failed: " + msg.err.Error()
		} else {
			m.status = "Exported to " + msg.path
		}
		return m, nil

	case spinner.TickMsg:
		if !m.summarizing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case liveTickMsg:
		if m.mode != ModeLive {
			return m, nil
		}
		return m, liveTick()

	case serverStoppedMsg:
		m.rt.serving = false
		if msg.err != nil {
			m.err = msg.err
		}
		return m, nil
	}

	return m, nil
}

func (m Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.picker.MoveUp()
	case "down", "j":
		m.picker.MoveDown()
	case "enter":
		return m.selectSource(m.picker.Selected())
	case "esc":
		if m.rt.sess != nil {
			m.showPicker = false
		}
	case "q", "ctrl+c":
		m.Shutdown()
		return m, tea.Quit
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		n := int(msg.String()[0] - '0')
		if m.picker.SelectByNumber(n) {
			return m.selectSource(m.picker.Selected())
		}
	}
	return m, nil
}

func (m Model) selectSource(src Source) (tea.Model, tea.Cmd) {
	m.showPicker = false
	m.status = ""
	m.err = nil
	if src.IsLive {
		if m.opts.Server == nil {
			m.err = fmt.Errorf("live mode is not available")
			return m, nil
		}
		m.mode = ModeLive
		cmd := m.startLive()
		m.refresh()
		return m, cmd
	}
	m.loading = true
	return m, fetchConversation(m.rt.ctx, src.URL)
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""
	eng := m.rt.engine()
	offline := m.mode == ModeOffline && m.rt.file != nil

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Shutdown()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Picker):
		m.showPicker = true
		m.picker = NewSourcePicker(m.opts.Conversations)
		m.picker.Width, m.picker.Height = m.width, m.height
	case offline && key.Matches(msg, m.keys.Up):
		m.scrollBy(-1)
	case offline && key.Matches(msg, m.keys.Down):
		m.scrollBy(1)
	case offline && key.Matches(msg, m.keys.PageUp):
		m.scrollBy(-float64(m.bodyHeight()))
	case offline && key.Matches(msg, m.keys.PageDown):
		m.scrollBy(float64(m.bodyHeight()))
	case offline && key.Matches(msg, m.keys.Top):
		if m.rt.file.Host().ScrollTo(0) {
			m.scrolled()
		}
	case offline && key.Matches(msg, m.keys.Bottom):
		h := m.rt.file.Host()
		if h.ScrollTo(h.TotalScrollable()) {
			m.scrolled()
		}
	case eng == nil:
		return m, nil
	case key.Matches(msg, m.keys.Next):
		eng.JumpRelative(1)
	case key.Matches(msg, m.keys.Prev):
		eng.JumpRelative(-1)
	case key.Matches(msg, m.keys.Star):
		if m.snap.Active >= 0 {
			eng.ToggleStar(m.snap.Active)
		}
	case key.Matches(msg, m.keys.Summarize):
		if m.summarizing {
			return m, nil
		}
		m.summarizing = true
		ctx := m.rt.sctx
		return m, tea.Batch(func() tea.Msg {
			return summaryDoneMsg{err: eng.ToggleSummaries(ctx)}
		}, m.spinner.Tick)
	case key.Matches(msg, m.keys.Clear):
		eng.ClearSummaries()
	case key.Matches(msg, m.keys.Export):
		dir := m.opts.ExportDir
		if dir == "" {
			dir = "."
		}
		return m, exportTimeline(export.FromSnapshot(m.route, m.title(), eng.Snapshot()), dir)
	case key.Matches(msg, m.keys.Preview):
		md := export.Markdown(export.FromSnapshot(m.route, m.title(), eng.Snapshot()))
		m.preview = NewPreview(md, m.width, m.height)
		m.showPreview = true
	}
	return m, nil
}

func (m Model) scrollBy(rows float64) {
	if m.rt.file.Host().ScrollBy(rows) {
		m.scrolled()
	}
}

func (m Model) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	eng := m.rt.engine()
	x0 := m.paneWidth() + TimelineGap
	x, y := msg.X-x0, msg.Y-1
	overTimeline := x >= 0 && y >= 0 && y < m.bodyHeight()
	overRail := overTimeline && m.timeline.OnRail(x)

	if eng == nil {
		return m, nil
	}

	if overTimeline != m.hover {
		m.hover = overTimeline
		if overTimeline {
			eng.PointerEnter(engine.PartBar)
		} else {
			eng.PointerLeave(engine.PartBar)
		}
	}
	if overRail != m.overRail {
		m.overRail = overRail
		if overRail {
			eng.PointerEnter(engine.PartSlider)
		} else {
			eng.PointerLeave(engine.PartSlider)
		}
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp, tea.MouseButtonWheelDown:
		if msg.Action != tea.MouseActionPress {
			return m, nil
		}
		rows := float64(wheelRows)
		if msg.Button == tea.MouseButtonWheelUp {
			rows = -rows
		}
		switch {
		case overTimeline:
			eng.Wheel(rows)
		case m.mode == ModeOffline && m.rt.file != nil:
			m.scrollBy(rows)
		}
		return m, nil
	}

	snap := eng.Snapshot()
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft || !overTimeline {
			return m, nil
		}
		if overRail && snap.Rail.Length > 0 {
			m.dragging = true
			eng.BeginDrag()
			eng.DragTo(m.handleTop(y, snap))
			return m, nil
		}
		if i, ok := m.timeline.MarkerAt(y, snap.TrackScroll); ok {
			m.pressing = i
			eng.PressStart(i, float64(x), float64(y))
		}
	case tea.MouseActionMotion:
		switch {
		case m.dragging:
			eng.DragTo(m.handleTop(y, snap))
		case m.pressing >= 0:
			eng.PressMove(float64(x), float64(y))
		}
	case tea.MouseActionRelease:
		switch {
		case m.dragging:
			m.dragging = false
			eng.EndDrag()
		case m.pressing >= 0:
			i := m.pressing
			m.pressing = -1
			eng.PressEnd()
			if overTimeline {
				eng.JumpTo(i)
			}
		}
	}
	return m, nil
}

// handleTop centers the slider handle on row y.
func (m Model) handleTop(y int, snap engine.Snapshot) float64 {
	return float64(y-m.timeline.RailTop(snap.Rail)) - snap.Rail.Handle/2
}

// --- View ---

func (m Model) View() string {
	if m.showPicker {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.picker.View())
	}
	if m.showPreview {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.preview.View())
	}
	if m.loading {
		return "\n  Loading conversation...\n"
	}
	if m.err != nil && m.rt.sess == nil {
		return fmt.Sprintf("\n  Error: %v\n\n  Press 'o' to open another conversation, 'q' to quit.\n", m.err)
	}

	bar := navbar{
		Mode:    m.mode,
		State:   m.state,
		Route:   m.route,
		Title:   m.title(),
		Snap:    m.snap,
		Spinner: m.spinner.View(),
	}
	if m.opts.Server != nil {
		bar.Connected = m.opts.Server.Connected()
		bar.Port = m.opts.Server.Port()
	}
	top := renderNavbar(bar, m.theme, m.width)

	h := m.bodyHeight()
	var left string
	if m.rt.file != nil {
		left = m.pane.View(m.rt.file.Host().ScrollTop())
	} else {
		left = m.liveView()
	}
	left = lipgloss.NewStyle().Width(m.paneWidth()).MaxWidth(m.paneWidth()).Height(h).MaxHeight(h).Render(left)
	gap := lipgloss.NewStyle().Foreground(m.theme.Border).Render(strings.TrimSuffix(strings.Repeat("│\n", h), "\n"))
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, gap, m.timeline.View(m.snap, m.theme))

	var bottom string
	switch {
	case m.status != "":
		bottom = " " + m.theme.Star.Render(m.status)
	case m.err != nil:
		bottom = " " + m.theme.Star.Render("Error: "+m.err.Error())
	default:
		bottom = " " + m.help.View(m.keys)
	}

	return lipgloss.JoinVertical(lipgloss.Left, top, body, bottom)
}

// liveView lists the page's messages in place of a transcript.
func (m Model) liveView() string {
	var b strings.Builder
	if m.rt.bridge != nil && m.rt.bridge.URL() != "" {
		b.WriteString(m.theme.Muted.Render(m.rt.bridge.URL()) + "\n\n")
	} else {
		b.WriteString(m.theme.Muted.Render("Open a ChatGPT, DeepSeek or Gemini conversation in the browser.") + "\n\n")
	}

	h := m.bodyHeight() - 2
	start := 0
	if m.snap.Active >= h {
		start = m.snap.Active - h/2
	}
	for i := start; i < len(m.snap.Markers) && i < start+h; i++ {
		mk := m.snap.Markers[i]
		line := fmt.Sprintf("%3d  %s", mk.Index+1, oneLine(mk.Label))
		if mk.Starred {
			line += " " + glyphStar
		}
		line = padCells(line, m.paneWidth())
		if mk.Active {
			line = m.theme.Selected.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
