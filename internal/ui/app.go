package ui

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lumipallolabs/qrlens/internal/capture"
	"github.com/lumipallolabs/qrlens/internal/core"
	"github.com/lumipallolabs/qrlens/internal/logging"
	"github.com/lumipallolabs/qrlens/internal/session"
)

// Message types for Bubble Tea
type (
	ctrlEventMsg    struct{ event core.Event }
	spinnerTickMsg  struct{}
	frameTickMsg    struct{}
	statusExpireMsg struct{ version int }
)

// Spinner frames - modern braille dots spinner
var spinnerFrames = []string{
	"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏",
}

// Timing constants
const (
	spinnerTickInterval = 80 * time.Millisecond
	frameTickInterval   = 100 * time.Millisecond
	statusLinger        = 3 * time.Second
)

// App is the main TUI application model
type App struct {
	// Core controller (business logic)
	ctrl *core.Controller

	// UI Components
	header         Header
	viewfinder     ViewfinderPanel
	history        HistoryPanel
	help           HelpOverlay
	deviceSelector DeviceSelector
	keys           KeyMap
	version        string

	// UI state (TUI-specific)
	state         core.AppState
	status        string
	statusVersion int
	spinner       int
	spinnerArmed  bool

	// Event channel (for continuing to listen after each event)
	eventCh <-chan core.Event

	// Dimensions
	width  int
	height int
}

// NewApp creates a new application instance. device pins the camera for
// this run by id or label; empty means the remembered preference.
func NewApp(version, device string) App {
	ctrl := core.NewController(core.Config{
		Backend: capture.NewBackend(),
		Profile: capture.DetectProfile(),
		Device:  device,
	})

	app := App{
		ctrl:           ctrl,
		header:         NewHeader(version),
		viewfinder:     NewViewfinderPanel(ctrl.Surface()),
		history:        NewHistoryPanel(),
		help:           NewHelpOverlay(version),
		deviceSelector: NewDeviceSelector(nil),
		keys:           DefaultKeyMap(),
		version:        version,
		eventCh:        ctrl.Events(),
	}
	app.state = ctrl.State()
	app.header.SetState(app.state)
	app.spinnerArmed = true // Init starts the first tick chain
	return app
}

// Init implements tea.Model
func (a App) Init() tea.Cmd {
	ctrl := a.ctrl
	mount := func() tea.Msg {
		ctrl.Mount(context.Background())
		return nil
	}
	return tea.Batch(mount, a.listenForEvents(), spinnerTick())
}

func spinnerTick() tea.Cmd {
	return tea.Tick(spinnerTickInterval, func(t time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

func frameTick() tea.Cmd {
	return tea.Tick(frameTickInterval, func(t time.Time) tea.Msg {
		return frameTickMsg{}
	})
}

// listenForEvents creates a command that listens for controller events
func (a App) listenForEvents() tea.Cmd {
	eventCh := a.eventCh
	return func() tea.Msg {
		event, ok := <-eventCh
		if !ok {
			return nil // Channel closed
		}
		return ctrlEventMsg{event: event}
	}
}

// Update implements tea.Model
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.updateLayout()
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case ctrlEventMsg:
		return a.handleEvent(msg.event)

	case frameTickMsg:
		if a.state.Session == session.StateScanning || a.state.Session == session.StateStarting {
			return a, frameTick()
		}
		return a, nil

	case spinnerTickMsg:
		if a.spinnerVisible() {
			a.spinner++
			return a, spinnerTick()
		}
		a.spinnerArmed = false
		return a, nil

	case statusExpireMsg:
		if msg.version == a.statusVersion {
			a.status = ""
		}
		return a, nil
	}

	return a, nil
}

// handleEvent refreshes the snapshot, applies per-event side effects and
// always continues listening
func (a App) handleEvent(event core.Event) (tea.Model, tea.Cmd) {
	a.state = a.ctrl.State()
	a.header.SetState(a.state)

	cmds := []tea.Cmd{a.listenForEvents()}

	switch e := event.(type) {
	case core.PermissionChangedEvent:
		if e.State == capture.PermissionChecking {
			cmds = append(cmds, a.armSpinner())
		}

	case core.DevicesChangedEvent:
		a.deviceSelector.SetDevices(e.Devices)
		a.deviceSelector.SetSelected(e.Selected)

	case core.SessionChangedEvent:
		if e.State == session.StateScanning || e.State == session.StateStarting {
			cmds = append(cmds, frameTick(), a.armSpinner())
		}

	case core.ScanCapturedEvent:
		a.history.SetRecords(a.state.Records)
		cmds = append(cmds, a.setStatus(fmt.Sprintf("scanned: %s", Truncate(e.Record.Payload, 60))))

	case core.ScanFaultEvent:
		cmds = append(cmds, a.setStatus("camera fault: "+capture.Remediation(e.Code)))

	case core.HistoryChangedEvent:
		a.history.SetRecords(e.Records)

	case core.ErrorEvent:
		logging.Debug.Printf("[TUI] controller error: %v", e.Err)
		cmds = append(cmds, a.setStatus(fmt.Sprintf("error: %v", e.Err)))
	}

	return a, tea.Batch(cmds...)
}

// setStatus shows a transient status line message
func (a *App) setStatus(s string) tea.Cmd {
	a.status = s
	a.statusVersion++
	version := a.statusVersion
	return tea.Tick(statusLinger, func(t time.Time) tea.Msg {
		return statusExpireMsg{version: version}
	})
}

// handleKey handles keyboard input
func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Help overlay - any key closes it
	if a.help.IsVisible() {
		a.help.SetVisible(false)
		return a, nil
	}

	// Device selector overlay
	if a.deviceSelector.IsVisible() {
		switch {
		case key.Matches(msg, a.keys.Back):
			a.deviceSelector.SetVisible(false)
			return a, nil
		case key.Matches(msg, a.keys.Up):
			a.deviceSelector.MoveUp()
			return a, nil
		case key.Matches(msg, a.keys.Down):
			a.deviceSelector.MoveDown()
			return a, nil
		case key.Matches(msg, a.keys.Enter):
			a.deviceSelector.SetVisible(false)
			idx := a.deviceSelector.Selected()
			ctrl := a.ctrl
			return a, func() tea.Msg {
				ctrl.SelectDevice(context.Background(), idx)
				return nil
			}
		}
		return a, nil
	}

	ctrl := a.ctrl

	switch {
	case key.Matches(msg, a.keys.Quit):
		ctrl.Shutdown()
		return a, tea.Quit

	case key.Matches(msg, a.keys.Help):
		a.help.Toggle()
		return a, nil

	case key.Matches(msg, a.keys.SelectCamera):
		if len(a.state.Devices) > 0 {
			a.deviceSelector.SetVisible(true)
		}
		return a, nil

	case key.Matches(msg, a.keys.NextCamera):
		return a, func() tea.Msg {
			ctrl.NextDevice(context.Background())
			return nil
		}

	case key.Matches(msg, a.keys.Scan):
		if !a.state.CanScan() {
			return a, nil
		}
		return a, func() tea.Msg {
			ctrl.StartScan(context.Background())
			return nil
		}

	case key.Matches(msg, a.keys.Stop):
		return a, func() tea.Msg {
			ctrl.StopScan()
			return nil
		}

	case key.Matches(msg, a.keys.Retry):
		if a.state.Permission != capture.PermissionDenied && a.state.Permission != capture.PermissionError {
			return a, nil
		}
		return a, func() tea.Msg {
			ctrl.RetryAccess(context.Background())
			return nil
		}

	case key.Matches(msg, a.keys.Up):
		a.history.MoveUp()
		return a, nil

	case key.Matches(msg, a.keys.Down):
		a.history.MoveDown()
		return a, nil

	case key.Matches(msg, a.keys.Copy):
		return a.copySelected()

	case key.Matches(msg, a.keys.Open):
		return a.openSelected()

	case key.Matches(msg, a.keys.Clear):
		ctrl.ClearHistory()
		return a, a.setStatus("history cleared")
	}

	return a, nil
}

// copySelected copies the selected record's payload to the clipboard
func (a App) copySelected() (tea.Model, tea.Cmd) {
	rec, ok := a.history.Selected()
	if !ok {
		return a, nil
	}
	if err := copyToClipboard(rec.Payload); err != nil {
		logging.Debug.Printf("copy failed: %v", err)
		return a, a.setStatus("copy failed")
	}
	return a, a.setStatus("copied to clipboard")
}

// openSelected opens the selected payload as a URL when it is one
func (a App) openSelected() (tea.Model, tea.Cmd) {
	rec, ok := a.history.Selected()
	if !ok {
		return a, nil
	}
	u, err := url.Parse(rec.Payload)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return a, a.setStatus("payload is not an http(s) URL")
	}
	logging.Debug.Printf("opening %s", rec.Payload)
	if err := openInBrowser(rec.Payload); err != nil {
		logging.Debug.Printf("open failed: %v", err)
		return a, a.setStatus("open failed")
	}
	return a, a.setStatus("opened in browser")
}

// updateLayout calculates component sizes
func (a *App) updateLayout() {
	headerHeight := 2
	statusHeight := 1
	helpBarHeight := 1

	panelHeight := a.height - headerHeight - statusHeight - helpBarHeight
	if panelHeight < 1 {
		panelHeight = 1
	}

	historyWidth := a.width / 3
	if historyWidth < 28 {
		historyWidth = 28
	}
	if historyWidth > 48 {
		historyWidth = 48
	}
	if historyWidth > a.width {
		historyWidth = a.width
	}

	a.header.SetWidth(a.width)
	a.viewfinder.SetSize(a.width-historyWidth, panelHeight)
	a.history.SetSize(historyWidth, panelHeight)
	a.help.SetSize(a.width, a.height)
	a.deviceSelector.SetSize(a.width, a.height)
}

// View implements tea.Model
func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "Loading..."
	}

	var sections []string
	sections = append(sections, a.header.View())

	main := lipgloss.JoinHorizontal(lipgloss.Top,
		a.viewfinder.View(a.state.Session == session.StateScanning, a.placeholder()),
		a.history.View(),
	)
	sections = append(sections, main)

	sections = append(sections, a.statusLine())
	sections = append(sections, HelpBar(a.width))
	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	// Overlays
	if a.help.IsVisible() {
		return a.renderOverlay(a.help.View())
	}
	if a.deviceSelector.IsVisible() {
		return a.renderOverlay(a.deviceSelector.View())
	}

	return content
}

// spinnerVisible reports whether any placeholder currently animates, so
// the spinner tick keeps re-arming.
func (a App) spinnerVisible() bool {
	return a.state.Permission == capture.PermissionChecking ||
		a.state.Session == session.StateStarting ||
		a.state.Session == session.StateScanning
}

// armSpinner starts a tick chain unless one is already running; the
// chain retires itself once nothing animates.
func (a *App) armSpinner() tea.Cmd {
	if a.spinnerArmed {
		return nil
	}
	a.spinnerArmed = true
	return spinnerTick()
}

// placeholder is the viewfinder text shown while no frame is available
func (a App) placeholder() string {
	spinner := spinnerFrames[a.spinner%len(spinnerFrames)]

	switch {
	case a.state.Permission == capture.PermissionChecking:
		return spinner + " Requesting camera access…"
	case a.state.Permission == capture.PermissionDenied,
		a.state.Permission == capture.PermissionError:
		return capture.Remediation(a.state.PermissionCode) + "\n\nPress r to retry"
	case a.state.Session == session.StateStarting:
		return spinner + " Starting camera…"
	case a.state.Session == session.StateScanning:
		return spinner + " Waiting for frames…"
	case a.state.CanScan():
		return "Press s to scan"
	default:
		return "No camera available"
	}
}

// statusLine renders the transient message line above the help bar
func (a App) statusLine() string {
	if a.status == "" {
		return ""
	}
	return lipgloss.NewStyle().
		Foreground(ColorCyan).
		Padding(0, 1).
		MaxHeight(1).
		Render(a.status)
}

// renderOverlay renders an overlay centered on screen
func (a App) renderOverlay(overlay string) string {
	return lipgloss.Place(
		a.width, a.height,
		lipgloss.Center, lipgloss.Center,
		overlay,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(ColorBackground),
	)
}
