package capture_test

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/lumipallolabs/qrlens/internal/capture"
	"github.com/lumipallolabs/qrlens/internal/capture/capturetest"
	"github.com/lumipallolabs/qrlens/internal/model"
)

func testProfile() capture.Profile {
	return capture.Profile{Class: capture.ClassDesktop, Supported: true, DeviceAccess: true}
}

func backCamera() model.Device {
	return model.Device{ID: "/dev/video0", Label: "Back Camera", Index: 0, Facing: model.FacingBack}
}

func TestRequestAccessGrantReleasesProbe(t *testing.T) {
	backend := capturetest.NewBackend(backCamera())
	n := capture.NewNegotiator(backend, testProfile())

	devices, err := n.RequestAccess(context.Background())
	if err != nil {
		t.Fatalf("RequestAccess: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("got %d devices, want 1", len(devices))
	}
	if got := n.State(); got != capture.PermissionGranted {
		t.Errorf("state = %v, want granted", got)
	}
	if live := backend.LiveStreams(); live != 0 {
		t.Errorf("probe left %d live streams, want 0", live)
	}
}

func TestRequestAccessFallsBackOnce(t *testing.T) {
	backend := capturetest.NewBackend(backCamera())
	backend.FailNextOpen(errors.New("constraints rejected"))
	n := capture.NewNegotiator(backend, testProfile())

	if _, err := n.RequestAccess(context.Background()); err != nil {
		t.Fatalf("RequestAccess after fallback: %v", err)
	}
	if opens := backend.Opens(); opens != 2 {
		t.Errorf("opens = %d, want 2 (constrained then unconstrained)", opens)
	}
	if got := n.State(); got != capture.PermissionGranted {
		t.Errorf("state = %v, want granted", got)
	}
}

func TestRequestAccessDeniedThenRetry(t *testing.T) {
	backend := capturetest.NewBackend(backCamera())
	// Both probe steps refused.
	backend.FailNextOpen(syscall.EACCES)
	backend.FailNextOpen(syscall.EACCES)
	n := capture.NewNegotiator(backend, testProfile())

	_, err := n.RequestAccess(context.Background())
	if capture.CodeOf(err) != capture.CodePermissionDenied {
		t.Fatalf("err = %v, want permission denied", err)
	}
	if got := n.State(); got != capture.PermissionDenied {
		t.Fatalf("state = %v, want denied", got)
	}

	// The user grants access and retries.
	devices, err := n.RequestAccess(context.Background())
	if err != nil {
		t.Fatalf("retry after grant: %v", err)
	}
	if len(devices) == 0 {
		t.Error("retry returned no devices")
	}
	if got := n.State(); got != capture.PermissionGranted {
		t.Errorf("state after retry = %v, want granted", got)
	}
}

func TestRequestAccessSingleFlight(t *testing.T) {
	backend := capturetest.NewBackend(backCamera())
	release := backend.HoldOpens()
	n := capture.NewNegotiator(backend, testProfile())

	var wg sync.WaitGroup
	errs := make([]error, 2)
	counts := make([]int, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		devices, err := n.RequestAccess(context.Background())
		counts[0], errs[0] = len(devices), err
	}()

	waitForState(t, n, capture.PermissionChecking)

	// Second caller arrives mid-negotiation and must join, not re-probe.
	wg.Add(1)
	go func() {
		defer wg.Done()
		devices, err := n.RequestAccess(context.Background())
		counts[1], errs[1] = len(devices), err
	}()

	time.Sleep(10 * time.Millisecond)
	release()
	wg.Wait()

	for i := range errs {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if counts[i] != 1 {
			t.Errorf("caller %d saw %d devices, want 1", i, counts[i])
		}
	}
	if opens := backend.Opens(); opens != 1 {
		t.Errorf("opens = %d, want 1 (joined callers share one probe)", opens)
	}
}

func TestRequestAccessWithoutBackendSupport(t *testing.T) {
	backend := capturetest.NewBackend(backCamera())
	n := capture.NewNegotiator(backend, capture.Profile{Class: capture.ClassDesktop})

	_, err := n.RequestAccess(context.Background())
	if capture.CodeOf(err) != capture.CodeUnsupported {
		t.Errorf("err = %v, want unsupported", err)
	}

	n = capture.NewNegotiator(backend, capture.Profile{Class: capture.ClassDesktop, Supported: true})
	_, err = n.RequestAccess(context.Background())
	if capture.CodeOf(err) != capture.CodeInsecureContext {
		t.Errorf("err = %v, want insecure context", err)
	}
	if got := n.State(); got != capture.PermissionError {
		t.Errorf("state = %v, want error", got)
	}
}

func waitForState(t *testing.T, n *capture.Negotiator, want capture.PermissionState) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for n.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("negotiator never reached %v (state %v)", want, n.State())
		}
		time.Sleep(time.Millisecond)
	}
}
