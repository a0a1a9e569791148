// Package capturetest provides a scriptable in-memory capture backend for
// exercising session machinery without hardware. Tests inject frames,
// failures and open latency; the backend keeps per-stream release
// accounting so lifecycle invariants can be asserted exactly.
package capturetest

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/lumipallolabs/qrlens/internal/capture"
	"github.com/lumipallolabs/qrlens/internal/model"
)

// Backend implements capture.Backend in memory.
type Backend struct {
	mu       sync.Mutex
	devices  []model.Device
	openErrs []error
	gate     chan struct{}
	opens    int
	streams  []*Stream
}

var _ capture.Backend = (*Backend)(nil)

func NewBackend(devices ...model.Device) *Backend {
	return &Backend{devices: devices}
}

// SetDevices replaces the device list returned by Devices.
func (b *Backend) SetDevices(devices ...model.Device) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices = devices
}

// FailNextOpen queues an error for the next Open call. Queued errors are
// consumed in order before any succeed.
func (b *Backend) FailNextOpen(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openErrs = append(b.openErrs, err)
}

// HoldOpens makes subsequent Open calls block until the returned release
// function is invoked, for racing teardown against acquisition.
func (b *Backend) HoldOpens() (release func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	gate := make(chan struct{})
	b.gate = gate
	var once sync.Once
	return func() {
		once.Do(func() {
			close(gate)
			b.mu.Lock()
			if b.gate == gate {
				b.gate = nil
			}
			b.mu.Unlock()
		})
	}
}

// Opens reports how many Open calls were made.
func (b *Backend) Opens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens
}

// LiveStreams counts streams opened and not yet stopped. The lifecycle
// invariant is that this is 1 exactly while a session is scanning.
func (b *Backend) LiveStreams() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, s := range b.streams {
		if !s.Stopped() {
			n++
		}
	}
	return n
}

// LastStream returns the most recently opened stream, nil when none.
func (b *Backend) LastStream() *Stream {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.streams) == 0 {
		return nil
	}
	return b.streams[len(b.streams)-1]
}

func (b *Backend) Devices(ctx context.Context) ([]model.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, capture.Classify(err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Device, len(b.devices))
	copy(out, b.devices)
	return out, nil
}

func (b *Backend) Open(ctx context.Context, id string, cfg capture.StreamConfig) (capture.Stream, error) {
	b.mu.Lock()
	b.opens++
	gate := b.gate
	var err error
	if len(b.openErrs) > 0 {
		err, b.openErrs = b.openErrs[0], b.openErrs[1:]
	}
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, capture.Classify(ctx.Err())
		}
	}
	if err != nil {
		return nil, capture.Classify(err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if id == "" {
		if len(b.devices) == 0 {
			return nil, &capture.Failure{Code: capture.CodeNoDeviceFound, Err: errors.New("no fake devices")}
		}
		pick := 0
		if cfg.FacingHint != model.FacingUnknown {
			for i, d := range b.devices {
				if d.Facing == cfg.FacingHint {
					pick = i
					break
				}
			}
		}
		id = b.devices[pick].ID
	} else {
		found := false
		for _, d := range b.devices {
			if d.ID == id {
				found = true
				break
			}
		}
		if !found {
			return nil, &capture.Failure{Code: capture.CodeNoDeviceFound, Err: errors.New("unknown fake device " + id)}
		}
	}
	s := &Stream{id: id, done: make(chan struct{})}
	b.streams = append(b.streams, s)
	return s, nil
}

// Stream implements capture.Stream with test-injected frames.
type Stream struct {
	id string

	mu      sync.Mutex
	frame   capture.Frame
	has     bool
	seq     uint64
	stops   int
	stopped bool
	err     error
	done    chan struct{}
}

var _ capture.Stream = (*Stream)(nil)

func (s *Stream) Device() string { return s.id }

// Push injects a frame as if the device delivered it.
func (s *Stream) Push(img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.seq++
	s.frame = capture.Frame{Image: img, Seq: s.seq, At: time.Now()}
	s.has = true
}

// Fail simulates the device dying out from under the stream.
func (s *Stream) Fail(err error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.err = err
	s.mu.Unlock()
	close(s.done)
}

func (s *Stream) Latest() (capture.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame, s.has
}

func (s *Stream) Done() <-chan struct{} { return s.done }

func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) Stop() {
	s.mu.Lock()
	s.stops++
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()
	close(s.done)
}

// Stopped reports whether the stream has been released or has died.
func (s *Stream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Stops reports how many times Stop was called, for idempotence checks.
func (s *Stream) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}
