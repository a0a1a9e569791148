package session

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/lumipallolabs/qrlens/internal/capture"
	"github.com/lumipallolabs/qrlens/internal/capture/capturetest"
	"github.com/lumipallolabs/qrlens/internal/decode"
	"github.com/lumipallolabs/qrlens/internal/model"
)

// stubDecoder returns queued results in order and misses once the queue
// is empty. panicNext and errNext poison the next call.
type stubDecoder struct {
	mu        sync.Mutex
	results   []decode.Result
	panicNext bool
	errNext   error
}

func (d *stubDecoder) queue(payload string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results = append(d.results, decode.Result{Payload: payload, Symbology: "QR_CODE"})
}

func (d *stubDecoder) Decode(image.Image) (decode.Result, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.panicNext {
		d.panicNext = false
		panic("decoder exploded")
	}
	if d.errNext != nil {
		err := d.errNext
		d.errNext = nil
		return decode.Result{}, false, err
	}
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

func newTestSession(backend *capturetest.Backend, dec decode.Decoder, onDecode func(decode.Result), onFault func(error)) *Session {
	return New(Config{
		Backend:  backend,
		Decoder:  dec,
		Interval: 2 * time.Millisecond,
		Settle:   5 * time.Millisecond,
		OnDecode: onDecode,
		OnFault:  onFault,
	})
}

func testFrame() image.Image {
	return image.NewGray(image.Rect(0, 0, 8, 8))
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

func TestStartStopLifecycle(t *testing.T) {
	backend := twoCameras()
	sess := newTestSession(backend, &stubDecoder{}, nil, nil)

	if err := sess.Start(context.Background(), "/dev/video0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := sess.State(); got != StateScanning {
		t.Fatalf("state = %v, want scanning", got)
	}
	if live := backend.LiveStreams(); live != 1 {
		t.Fatalf("live streams while scanning = %d, want 1", live)
	}
	if !sess.Surface().Attached() {
		t.Error("surface not attached while scanning")
	}

	sess.Stop()
	if got := sess.State(); got != StateIdle {
		t.Errorf("state after stop = %v, want idle", got)
	}
	if live := backend.LiveStreams(); live != 0 {
		t.Errorf("live streams after stop = %d, want 0", live)
	}
	if sess.Surface().Attached() {
		t.Error("surface still attached after stop")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	backend := twoCameras()
	sess := newTestSession(backend, &stubDecoder{}, nil, nil)

	if err := sess.Start(context.Background(), "/dev/video0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	stream := backend.LastStream()

	sess.Stop()
	sess.Stop()

	if stops := stream.Stops(); stops != 1 {
		t.Errorf("hardware released %d times, want exactly 1", stops)
	}
	if got := sess.State(); got != StateIdle {
		t.Errorf("state = %v, want idle", got)
	}
}

func TestStopWithoutStart(t *testing.T) {
	sess := newTestSession(twoCameras(), &stubDecoder{}, nil, nil)
	sess.Stop()
	if got := sess.State(); got != StateIdle {
		t.Errorf("state = %v, want idle", got)
	}
}

func TestStartWhileScanning(t *testing.T) {
	backend := twoCameras()
	sess := newTestSession(backend, &stubDecoder{}, nil, nil)

	if err := sess.Start(context.Background(), "/dev/video0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	err := sess.Start(context.Background(), "/dev/video2")
	if !errors.Is(err, ErrAlreadyScanning) {
		t.Errorf("second Start = %v, want ErrAlreadyScanning", err)
	}
	// The rejected start must not have touched the running stream.
	if live := backend.LiveStreams(); live != 1 {
		t.Errorf("live streams = %d, want 1", live)
	}
}

func TestScanOnce(t *testing.T) {
	backend := twoCameras()
	dec := &stubDecoder{}
	dec.queue("https://example.com/badge/7")

	var mu sync.Mutex
	var got []decode.Result
	sess := newTestSession(backend, dec, func(res decode.Result) {
		mu.Lock()
		got = append(got, res)
		mu.Unlock()
	}, nil)

	if err := sess.Start(context.Background(), "/dev/video0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	backend.LastStream().Push(testFrame())

	waitFor(t, "auto-stop after first decode", func() bool {
		return sess.State() == StateIdle
	})

	// Give any stray poll activity time to surface, then assert exactly
	// one delivery and a fully released device.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("decode callback fired %d times, want 1", len(got))
	}
	if got[0].Payload != "https://example.com/badge/7" {
		t.Errorf("payload = %q", got[0].Payload)
	}
	if live := backend.LiveStreams(); live != 0 {
		t.Errorf("live streams after scan-once = %d, want 0", live)
	}
}

func TestTeardownDuringStart(t *testing.T) {
	backend := twoCameras()
	release := backend.HoldOpens()
	sess := newTestSession(backend, &stubDecoder{}, nil, nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- sess.Start(context.Background(), "/dev/video0")
	}()

	waitFor(t, "session entering starting", func() bool {
		return sess.State() == StateStarting
	})

	// Unmount races the pending acquisition.
	sess.Teardown()
	release()

	if err := <-errCh; !errors.Is(err, ErrTornDown) {
		t.Errorf("Start = %v, want ErrTornDown", err)
	}
	if got := sess.State(); got != StateIdle {
		t.Errorf("state = %v, want idle", got)
	}
	if live := backend.LiveStreams(); live != 0 {
		t.Errorf("live streams = %d, want 0 (deferred start must release its acquisition)", live)
	}
}

func TestTeardownAfterStartTail(t *testing.T) {
	backend := twoCameras()
	sess := newTestSession(backend, &stubDecoder{}, nil, nil)

	// Reproduce the narrowest interleaving: the start has acquired its
	// stream and passed its last teardown check but still holds the
	// operation lock, so Teardown cannot stop anything itself.
	sess.opMu.Lock()
	if err := sess.start(context.Background(), "/dev/video0"); err != nil {
		sess.opMu.Unlock()
		t.Fatalf("start: %v", err)
	}
	sess.Teardown()
	sess.opMu.Unlock()

	waitFor(t, "poll loop releasing the orphaned session", func() bool {
		return sess.State() == StateIdle
	})
	if live := backend.LiveStreams(); live != 0 {
		t.Errorf("live streams after teardown = %d, want 0", live)
	}
	if sess.Surface().Attached() {
		t.Error("surface still attached after teardown")
	}
}

func TestStartAfterTeardown(t *testing.T) {
	sess := newTestSession(twoCameras(), &stubDecoder{}, nil, nil)
	sess.Teardown()
	if err := sess.Start(context.Background(), "/dev/video0"); !errors.Is(err, ErrTornDown) {
		t.Errorf("Start after teardown = %v, want ErrTornDown", err)
	}
}

func TestSwitchCamera(t *testing.T) {
	backend := twoCameras()
	sess := newTestSession(backend, &stubDecoder{}, nil, nil)

	if err := sess.Start(context.Background(), "/dev/video0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first := backend.LastStream()

	if err := sess.SwitchCamera(context.Background(), "/dev/video2"); err != nil {
		t.Fatalf("SwitchCamera: %v", err)
	}
	if got := sess.State(); got != StateScanning {
		t.Fatalf("state = %v, want scanning", got)
	}
	if !first.Stopped() {
		t.Error("previous stream not released by switch")
	}
	if live := backend.LiveStreams(); live != 1 {
		t.Errorf("live streams = %d, want 1", live)
	}
	if got := backend.LastStream().Device(); got != "/dev/video2" {
		t.Errorf("scanning %s, want /dev/video2", got)
	}
}

func TestFaultOnStreamDeath(t *testing.T) {
	backend := twoCameras()
	faults := make(chan error, 1)
	sess := newTestSession(backend, &stubDecoder{}, nil, func(err error) {
		faults <- err
	})

	if err := sess.Start(context.Background(), "/dev/video0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	backend.LastStream().Fail(&capture.Failure{Code: capture.CodeNoDeviceFound, Err: errors.New("unplugged")})

	select {
	case err := <-faults:
		if capture.CodeOf(err) != capture.CodeNoDeviceFound {
			t.Errorf("fault code = %v, want no device found", capture.CodeOf(err))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no fault reported after stream death")
	}
	waitFor(t, "idle after fault", func() bool { return sess.State() == StateIdle })
}

func TestDecoderPanicDoesNotKillPoll(t *testing.T) {
	backend := twoCameras()
	dec := &stubDecoder{panicNext: true}
	done := make(chan decode.Result, 1)
	sess := newTestSession(backend, dec, func(res decode.Result) {
		done <- res
	}, nil)

	if err := sess.Start(context.Background(), "/dev/video0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	stream := backend.LastStream()

	// First frame trips the panic; the loop must survive to decode the
	// second.
	stream.Push(testFrame())
	time.Sleep(10 * time.Millisecond)
	dec.queue("survived")
	stream.Push(testFrame())

	select {
	case res := <-done:
		if res.Payload != "survived" {
			t.Errorf("payload = %q, want %q", res.Payload, "survived")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poll loop died after decoder panic")
	}
}

func TestCallbackPanicStillStops(t *testing.T) {
	backend := twoCameras()
	dec := &stubDecoder{}
	dec.queue("boom-target")
	sess := newTestSession(backend, dec, func(decode.Result) {
		panic("callback exploded")
	}, nil)

	if err := sess.Start(context.Background(), "/dev/video0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	backend.LastStream().Push(testFrame())

	waitFor(t, "auto-stop despite callback panic", func() bool {
		return sess.State() == StateIdle
	})
	if live := backend.LiveStreams(); live != 0 {
		t.Errorf("live streams = %d, want 0", live)
	}
}
