package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lumipallolabs/qrlens/internal/capture"
	"github.com/lumipallolabs/qrlens/internal/decode"
	"github.com/lumipallolabs/qrlens/internal/history"
	"github.com/lumipallolabs/qrlens/internal/logging"
	"github.com/lumipallolabs/qrlens/internal/model"
	"github.com/lumipallolabs/qrlens/internal/session"
	"github.com/lumipallolabs/qrlens/internal/settings"
	"github.com/lumipallolabs/qrlens/internal/watcher"
)

// Config assembles a Controller. Backend and Profile are required;
// everything else has working defaults.
type Config struct {
	Backend  capture.Backend
	Profile  capture.Profile
	Decoder  decode.Decoder
	Settings *settings.Manager
	// Device pins device selection to an id or label for this run,
	// overriding the remembered preference.
	Device string
	// Interval and Settle override session timing, mainly for tests.
	Interval time.Duration
	Settle   time.Duration
}

// Controller manages the core application logic without UI dependencies.
// Operations may block on the device; callers run them off the UI loop
// and follow along through the event channel.
type Controller struct {
	mu sync.RWMutex

	// State
	devices      []model.Device
	selected     int
	activeDevice string
	lastCode     capture.Code
	pinned       string

	// Internal services
	backend    capture.Backend
	profile    capture.Profile
	negotiator *capture.Negotiator
	sess       *session.Session
	surface    *session.Surface
	ledger     *history.Ledger
	settings   *settings.Manager
	watcher    *watcher.Watcher

	// Event handling
	eventCh chan Event
}

// NewController creates a new application controller
func NewController(cfg Config) *Controller {
	if cfg.Decoder == nil {
		cfg.Decoder = decode.NewQR()
	}
	if cfg.Settings == nil {
		cfg.Settings = settings.NewManager()
		if err := cfg.Settings.Load(); err != nil {
			logging.Debug.Printf("Failed to load settings: %v", err)
		}
	}

	surface := session.NewSurface()
	c := &Controller{
		backend:    cfg.Backend,
		profile:    cfg.Profile,
		negotiator: capture.NewNegotiator(cfg.Backend, cfg.Profile),
		surface:    surface,
		ledger:     history.NewLedger(history.DefaultLimit),
		settings:   cfg.Settings,
		pinned:     cfg.Device,
		selected:   -1,
		eventCh:    make(chan Event, 100),
	}
	c.sess = session.New(session.Config{
		Backend:  cfg.Backend,
		Decoder:  cfg.Decoder,
		Surface:  surface,
		Stream:   cfg.Profile.IdealConfig(),
		Interval: cfg.Interval,
		Settle:   cfg.Settle,
		OnDecode: c.onDecode,
		OnFault:  c.onFault,
	})
	return c
}

// Events returns the controller's event stream. Events are dropped
// rather than blocking when the consumer falls behind.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// Surface returns the frame sink the UI renders the viewfinder from.
// It is created once and never replaced while sessions run against it.
func (c *Controller) Surface() *session.Surface {
	return c.surface
}

// State returns a read-only snapshot of the current state
func (c *Controller) State() AppState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return AppState{
		Permission:     c.negotiator.State(),
		PermissionCode: c.lastCode,
		Devices:        c.devices,
		Selected:       c.selected,
		Session:        c.sess.State(),
		ActiveDevice:   c.activeDevice,
		Records:        c.ledger.Records(),
		ScansLifetime:  c.settings.ScansLifetime(),
		Profile:        c.profile,
	}
}

// Devices returns the enumerated capture devices
func (c *Controller) Devices() []model.Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Device, len(c.devices))
	copy(out, c.devices)
	return out
}

// Records returns the ledger contents, newest first
func (c *Controller) Records() []model.ScanRecord {
	return c.ledger.Records()
}

// LastRecord returns the most recent scan record, if any
func (c *Controller) LastRecord() (model.ScanRecord, bool) {
	records := c.ledger.Records()
	if len(records) == 0 {
		return model.ScanRecord{}, false
	}
	return records[0], true
}

// Mount negotiates camera access, enumerates devices, starts the hotplug
// watcher and auto-starts scanning on the default device. It blocks until
// the session is running or negotiation failed; run it off the UI loop
// and follow the events.
func (c *Controller) Mount(ctx context.Context) {
	c.emit(PermissionChangedEvent{State: capture.PermissionChecking})

	devices, err := c.negotiator.RequestAccess(ctx)
	if err != nil {
		code := capture.CodeOf(err)
		c.mu.Lock()
		c.lastCode = code
		c.mu.Unlock()
		logging.Session.Printf("access request failed: %v", err)
		c.emit(PermissionChangedEvent{State: c.negotiator.State(), Code: code})
		return
	}
	c.emit(PermissionChangedEvent{State: capture.PermissionGranted})

	selected := c.chooseDevice(devices)
	c.mu.Lock()
	c.devices = devices
	c.selected = selected
	c.mu.Unlock()
	c.emit(DevicesChangedEvent{Devices: devices, Selected: selected})

	c.startWatching()

	if selected >= 0 {
		c.startSession(ctx, devices[selected].ID)
	}
}

// RetryAccess re-runs negotiation after a denial or error
func (c *Controller) RetryAccess(ctx context.Context) {
	c.Mount(ctx)
}

// chooseDevice prefers the pinned device, then the remembered camera,
// else the first back-facing one, else the first
func (c *Controller) chooseDevice(devices []model.Device) int {
	if c.pinned != "" {
		for i, d := range devices {
			if d.ID == c.pinned || d.Label == c.pinned {
				return i
			}
		}
		logging.Debug.Printf("pinned device %q not found", c.pinned)
	}
	if pref := c.settings.PreferredDevice(); pref != "" {
		for i, d := range devices {
			if d.Label == pref {
				return i
			}
		}
	}
	return model.DefaultDevice(devices)
}

// StartScan starts a session on the selected device. Used both for the
// first scan and for "scan again" after a capture.
func (c *Controller) StartScan(ctx context.Context) {
	c.mu.RLock()
	var deviceID string
	if c.selected >= 0 && c.selected < len(c.devices) {
		deviceID = c.devices[c.selected].ID
	}
	c.mu.RUnlock()

	if deviceID == "" {
		c.emit(ErrorEvent{Err: &capture.Failure{Code: capture.CodeNoDeviceFound}})
		return
	}
	c.startSession(ctx, deviceID)
}

func (c *Controller) startSession(ctx context.Context, deviceID string) {
	c.emit(SessionChangedEvent{State: session.StateStarting, Device: deviceID})

	err := c.sess.Start(ctx, deviceID)
	switch {
	case err == nil:
		c.mu.Lock()
		c.activeDevice = deviceID
		c.mu.Unlock()
		c.emit(SessionChangedEvent{State: session.StateScanning, Device: deviceID})
	case errors.Is(err, session.ErrTornDown):
		// Superseded by unmount; never surfaced.
		logging.Session.Printf("start discarded: %v", err)
	case errors.Is(err, session.ErrAlreadyScanning):
		logging.Session.Printf("start rejected: %v", err)
	default:
		c.failSession(capture.CodeOf(err), err)
	}
}

// failSession routes a start/switch failure into the permission surface:
// the session is back at idle and the user decides what to retry.
func (c *Controller) failSession(code capture.Code, err error) {
	c.mu.Lock()
	c.lastCode = code
	c.activeDevice = ""
	c.mu.Unlock()
	logging.Session.Printf("session failed: %v", err)
	c.negotiator.MarkError()
	c.emit(SessionChangedEvent{State: session.StateIdle})
	c.emit(PermissionChangedEvent{State: capture.PermissionError, Code: code})
}

// StopScan stops the active session. Safe to call at any time.
func (c *Controller) StopScan() {
	c.sess.Stop()
	c.mu.Lock()
	c.activeDevice = ""
	c.mu.Unlock()
	c.emit(SessionChangedEvent{State: session.StateIdle})
}

// SelectDevice makes the device at idx current, remembering it as
// preferred. While a session is active this performs a camera switch;
// when idle it only moves the selection.
func (c *Controller) SelectDevice(ctx context.Context, idx int) {
	c.mu.Lock()
	if idx < 0 || idx >= len(c.devices) || idx == c.selected {
		c.mu.Unlock()
		return
	}
	c.selected = idx
	dev := c.devices[idx]
	active := c.activeDevice != ""
	c.mu.Unlock()

	if dev.Label != "" {
		c.settings.SetPreferredDevice(dev.Label)
	}
	c.emit(DevicesChangedEvent{Devices: c.Devices(), Selected: idx})

	if !active {
		return
	}
	c.emit(SessionChangedEvent{State: session.StateStarting, Device: dev.ID})
	if err := c.sess.SwitchCamera(ctx, dev.ID); err != nil {
		if errors.Is(err, session.ErrTornDown) {
			logging.Session.Printf("switch discarded: %v", err)
			return
		}
		c.failSession(capture.CodeOf(err), err)
		return
	}
	c.mu.Lock()
	c.activeDevice = dev.ID
	c.mu.Unlock()
	c.emit(SessionChangedEvent{State: session.StateScanning, Device: dev.ID})
}

// NextDevice cycles to the next enumerated device
func (c *Controller) NextDevice(ctx context.Context) {
	c.mu.RLock()
	n := len(c.devices)
	cur := c.selected
	c.mu.RUnlock()
	if n < 2 {
		return
	}
	c.SelectDevice(ctx, (cur+1)%n)
}

// ClearHistory empties the scan ledger
func (c *Controller) ClearHistory() {
	c.ledger.Clear()
	c.emit(HistoryChangedEvent{Records: nil})
}

// onDecode runs on the session's poll goroutine for each capture. The
// session stops itself right after; rescanning is an explicit StartScan.
func (c *Controller) onDecode(res decode.Result) {
	rec := c.ledger.Record(res.Payload, res.Symbology)
	c.settings.AddScan()
	c.mu.Lock()
	c.activeDevice = ""
	c.mu.Unlock()
	logging.Session.Printf("decoded %s (%s)", rec.ID, rec.Symbology)
	c.emit(ScanCapturedEvent{Record: rec})
	c.emit(SessionChangedEvent{State: session.StateIdle})
}

// onFault runs after a mid-scan stream death, once the session is idle
func (c *Controller) onFault(err error) {
	code := capture.CodeOf(err)
	c.mu.Lock()
	c.lastCode = code
	c.activeDevice = ""
	c.mu.Unlock()
	c.negotiator.MarkError()
	c.emit(ScanFaultEvent{Code: code, Err: err})
	c.emit(SessionChangedEvent{State: session.StateIdle})
	c.emit(PermissionChangedEvent{State: capture.PermissionError, Code: code})
}

// startWatching begins hotplug monitoring of the device directory
func (c *Controller) startWatching() {
	c.mu.Lock()
	if c.watcher != nil {
		c.mu.Unlock()
		return
	}
	w, err := watcher.New()
	if err != nil {
		c.mu.Unlock()
		logging.Debug.Printf("device watcher unavailable: %v", err)
		return
	}
	c.watcher = w
	c.mu.Unlock()

	if err := w.Watch("/dev"); err != nil {
		logging.Debug.Printf("watching /dev: %v", err)
	}
	w.Start()
	go c.watchLoop(w)
}

// watchLoop re-enumerates whenever a video node comes or goes. Removal
// of the active device is not handled here: the dying stream already
// faults the session on its own.
func (c *Controller) watchLoop(w *watcher.Watcher) {
	for ev := range w.Events() {
		logging.Debug.Printf("device node %s changed (%d)", ev.Path, ev.Type)
		c.refreshDevices(context.Background())
	}
}

// refreshDevices re-enumerates after hotplug. IDs are only stable within
// a grant, so the selection re-anchors by id, falling back to the
// default rule.
func (c *Controller) refreshDevices(ctx context.Context) {
	if c.negotiator.State() != capture.PermissionGranted {
		return
	}
	devices, err := c.backend.Devices(ctx)
	if err != nil {
		logging.Debug.Printf("re-enumeration failed: %v", err)
		return
	}

	c.mu.Lock()
	prevID := ""
	if c.selected >= 0 && c.selected < len(c.devices) {
		prevID = c.devices[c.selected].ID
	}
	c.devices = devices
	c.selected = -1
	for i, d := range devices {
		if d.ID == prevID {
			c.selected = i
			break
		}
	}
	if c.selected == -1 {
		c.selected = model.DefaultDevice(devices)
	}
	selected := c.selected
	c.mu.Unlock()

	c.emit(DevicesChangedEvent{Devices: devices, Selected: selected})
}

// Shutdown tears the session down and releases everything. The surface
// clear is deferred and best-effort: an acquisition resolving after
// unmount rolls itself back, the clear only drops the last frame shown.
func (c *Controller) Shutdown() {
	c.sess.Teardown()

	c.mu.Lock()
	w := c.watcher
	c.watcher = nil
	c.mu.Unlock()
	if w != nil {
		_ = w.Stop()
	}

	if err := c.settings.Close(); err != nil {
		logging.Debug.Printf("saving settings: %v", err)
	}

	go c.surface.Clear()
	logging.Session.Printf("controller shut down")
}

// emit sends an event to the UI without ever blocking an operation
func (c *Controller) emit(event Event) {
	select {
	case c.eventCh <- event:
	default:
		// Channel full, drop event
	}
}
