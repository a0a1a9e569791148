package core

import (
	"context"
	"image"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/lumipallolabs/qrlens/internal/capture"
	"github.com/lumipallolabs/qrlens/internal/capture/capturetest"
	"github.com/lumipallolabs/qrlens/internal/decode"
	"github.com/lumipallolabs/qrlens/internal/model"
	"github.com/lumipallolabs/qrlens/internal/session"
	"github.com/lumipallolabs/qrlens/internal/settings"
)

// stubDecoder returns queued results in order and misses once the queue
// is empty.
type stubDecoder struct {
	mu      sync.Mutex
	results []decode.Result
}

func (d *stubDecoder) queue(payload string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results = append(d.results, decode.Result{Payload: payload, Symbology: "QR_CODE"})
}

func (d *stubDecoder) Decode(image.Image) (decode.Result, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.results) == 0 {
		return decode.Result{}, false, nil
	}
	res := d.results[0]
	d.results = d.results[1:]
	return res, true, nil
}

func twoCameras() *capturetest.Backend {
	return capturetest.NewBackend(
		model.Device{ID: "/dev/video0", Label: "Front Camera", Index: 0, Facing: model.FacingFront},
		model.Device{ID: "/dev/video2", Label: "Back Camera", Index: 1, Facing: model.FacingBack},
	)
}

func newTestController(t *testing.T, backend *capturetest.Backend, dec decode.Decoder) *Controller {
	t.Helper()
	return NewController(Config{
		Backend:  backend,
		Profile:  capture.Profile{Class: capture.ClassDesktop, Supported: true, DeviceAccess: true},
		Decoder:  dec,
		Settings: settings.NewManagerAt(filepath.Join(t.TempDir(), "settings.json")),
		Interval: 2 * time.Millisecond,
		Settle:   5 * time.Millisecond,
	})
}

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", desc)
		}
		time.Sleep(time.Millisecond)
	}
}

// waitForEvent drains the controller's event stream until match accepts
// an event.
func waitForEvent(t *testing.T, ch <-chan Event, desc string, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event: %s", desc)
			return nil
		}
	}
}

func TestMountScansDefaultBackCamera(t *testing.T) {
	backend := twoCameras()
	ctrl := newTestController(t, backend, &stubDecoder{})

	ctrl.Mount(context.Background())

	state := ctrl.State()
	if state.Permission != capture.PermissionGranted {
		t.Fatalf("permission = %v, want granted", state.Permission)
	}
	if state.Session != session.StateScanning {
		t.Fatalf("session = %v, want scanning", state.Session)
	}
	if state.ActiveDevice != "/dev/video2" {
		t.Errorf("active device = %q, want the back camera", state.ActiveDevice)
	}
	if dev, ok := state.SelectedDevice(); !ok || dev.Label != "Back Camera" {
		t.Errorf("selected device = %+v, want Back Camera", dev)
	}
	// The probe stream must already be released; only the session holds
	// a handle.
	if live := backend.LiveStreams(); live != 1 {
		t.Errorf("live streams = %d, want 1", live)
	}

	waitForEvent(t, ctrl.Events(), "permission granted", func(ev Event) bool {
		e, ok := ev.(PermissionChangedEvent)
		return ok && e.State == capture.PermissionGranted
	})
	waitForEvent(t, ctrl.Events(), "session scanning", func(ev Event) bool {
		e, ok := ev.(SessionChangedEvent)
		return ok && e.State == session.StateScanning
	})

	ctrl.Shutdown()
}

func TestMountDeniedThenRetry(t *testing.T) {
	backend := twoCameras()
	// Both probe attempts (preferred constraints, then unconstrained)
	// fail with an access error.
	backend.FailNextOpen(syscall.EACCES)
	backend.FailNextOpen(syscall.EACCES)
	ctrl := newTestController(t, backend, &stubDecoder{})

	ctrl.Mount(context.Background())

	state := ctrl.State()
	if state.Permission != capture.PermissionDenied {
		t.Fatalf("permission = %v, want denied", state.Permission)
	}
	if state.PermissionCode != capture.CodePermissionDenied {
		t.Errorf("code = %v, want permission denied", state.PermissionCode)
	}
	if state.Session != session.StateIdle {
		t.Errorf("session = %v, want idle", state.Session)
	}
	if live := backend.LiveStreams(); live != 0 {
		t.Errorf("live streams after denial = %d, want 0", live)
	}

	// The user fixed the permission; a retry succeeds end to end.
	ctrl.RetryAccess(context.Background())

	state = ctrl.State()
	if state.Permission != capture.PermissionGranted {
		t.Fatalf("permission after retry = %v, want granted", state.Permission)
	}
	if len(state.Devices) == 0 {
		t.Error("no devices enumerated after retry")
	}
	if state.Session != session.StateScanning {
		t.Errorf("session after retry = %v, want scanning", state.Session)
	}

	ctrl.Shutdown()
}

func TestScanCaptureThenScanAgain(t *testing.T) {
	backend := twoCameras()
	dec := &stubDecoder{}
	ctrl := newTestController(t, backend, dec)

	ctrl.Mount(context.Background())

	dec.queue("https://example.com/ticket/42")
	backend.LastStream().Push(image.NewGray(image.Rect(0, 0, 8, 8)))

	waitForEvent(t, ctrl.Events(), "scan captured", func(ev Event) bool {
		_, ok := ev.(ScanCapturedEvent)
		return ok
	})
	waitFor(t, "auto-stop after capture", func() bool {
		return ctrl.State().Session == session.StateIdle
	})

	state := ctrl.State()
	if len(state.Records) != 1 {
		t.Fatalf("ledger holds %d records, want 1", len(state.Records))
	}
	if state.Records[0].Payload != "https://example.com/ticket/42" {
		t.Errorf("payload = %q", state.Records[0].Payload)
	}
	if state.ScansLifetime != 1 {
		t.Errorf("lifetime scans = %d, want 1", state.ScansLifetime)
	}
	if live := backend.LiveStreams(); live != 0 {
		t.Errorf("live streams after scan-once = %d, want 0", live)
	}

	// "Scan again" is an explicit new start.
	ctrl.StartScan(context.Background())
	if got := ctrl.State().Session; got != session.StateScanning {
		t.Errorf("session after scan again = %v, want scanning", got)
	}

	ctrl.Shutdown()
}

func TestSelectDeviceSwitchesWhileScanning(t *testing.T) {
	backend := twoCameras()
	ctrl := newTestController(t, backend, &stubDecoder{})

	ctrl.Mount(context.Background())
	first := backend.LastStream()

	ctrl.SelectDevice(context.Background(), 0)

	state := ctrl.State()
	if state.ActiveDevice != "/dev/video0" {
		t.Errorf("active device = %q, want /dev/video0", state.ActiveDevice)
	}
	if state.Session != session.StateScanning {
		t.Errorf("session = %v, want scanning", state.Session)
	}
	if !first.Stopped() {
		t.Error("previous stream not released by the switch")
	}
	if live := backend.LiveStreams(); live != 1 {
		t.Errorf("live streams = %d, want 1", live)
	}
	if got := backend.LastStream().Device(); got != "/dev/video0" {
		t.Errorf("scanning %s, want /dev/video0", got)
	}

	ctrl.Shutdown()
}

func TestFaultForcesPermissionError(t *testing.T) {
	backend := twoCameras()
	ctrl := newTestController(t, backend, &stubDecoder{})

	ctrl.Mount(context.Background())

	backend.LastStream().Fail(&capture.Failure{Code: capture.CodeNoDeviceFound})

	waitForEvent(t, ctrl.Events(), "scan fault", func(ev Event) bool {
		e, ok := ev.(ScanFaultEvent)
		return ok && e.Code == capture.CodeNoDeviceFound
	})
	waitFor(t, "idle after fault", func() bool {
		return ctrl.State().Session == session.StateIdle
	})
	if got := ctrl.State().Permission; got != capture.PermissionError {
		t.Errorf("permission after fault = %v, want error", got)
	}

	ctrl.Shutdown()
}

func TestShutdownReleasesEverything(t *testing.T) {
	backend := twoCameras()
	ctrl := newTestController(t, backend, &stubDecoder{})

	ctrl.Mount(context.Background())
	ctrl.Shutdown()

	if got := ctrl.State().Session; got != session.StateIdle {
		t.Errorf("session after shutdown = %v, want idle", got)
	}
	if live := backend.LiveStreams(); live != 0 {
		t.Errorf("live streams after shutdown = %d, want 0", live)
	}
	// The surface clear is deferred; it must land shortly after.
	waitFor(t, "surface cleared", func() bool {
		return !ctrl.Surface().Attached()
	})
}

func TestPinnedDeviceWins(t *testing.T) {
	backend := twoCameras()
	ctrl := NewController(Config{
		Backend:  backend,
		Profile:  capture.Profile{Class: capture.ClassDesktop, Supported: true, DeviceAccess: true},
		Decoder:  &stubDecoder{},
		Settings: settings.NewManagerAt(filepath.Join(t.TempDir(), "settings.json")),
		Device:   "Front Camera",
		Interval: 2 * time.Millisecond,
		Settle:   5 * time.Millisecond,
	})

	ctrl.Mount(context.Background())

	if got := ctrl.State().ActiveDevice; got != "/dev/video0" {
		t.Errorf("active device = %q, want the pinned front camera", got)
	}

	ctrl.Shutdown()
}
