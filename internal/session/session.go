// Package session owns the camera scan lifecycle: a state machine that
// acquires a stream, polls it for decodable frames, and guarantees the
// stream is released exactly once no matter how the session ends.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lumipallolabs/qrlens/internal/capture"
	"github.com/lumipallolabs/qrlens/internal/decode"
	"github.com/lumipallolabs/qrlens/internal/logging"
)

var (
	// ErrAlreadyScanning rejects a Start while the session is not idle.
	ErrAlreadyScanning = errors.New("session already scanning")
	// ErrTornDown reports an operation arriving after (or overlapping)
	// Teardown. Callers log it; it never reaches the user.
	ErrTornDown = errors.New("session torn down")
)

const (
	// DefaultInterval polls the stream at 10 Hz. QR scanning gains
	// nothing from decoding every frame the camera delivers.
	DefaultInterval = 100 * time.Millisecond
	// DefaultSettle is the pause between release and reacquire on a
	// camera switch; drivers reject back-to-back opens of a just-closed
	// device.
	DefaultSettle = 250 * time.Millisecond
)

// Config wires a Session's collaborators.
type Config struct {
	Backend capture.Backend
	Decoder decode.Decoder
	Surface *Surface
	// Stream carries the acquisition constraints used for every Start.
	Stream capture.StreamConfig
	// Interval and Settle fall back to the package defaults when zero.
	Interval time.Duration
	Settle   time.Duration
	// OnDecode fires at most once per successful decode, right before
	// the session auto-stops. A panic inside it is logged, never
	// propagated into the poll loop.
	OnDecode func(decode.Result)
	// OnFault fires after a mid-scan stream death, once the session is
	// already back to idle.
	OnFault func(error)
}

// Session is the scan lifecycle state machine. Operations are
// serialized: a Start waits for an in-flight Stop to reach its terminal
// state and vice versa, however quickly callers fire them. Poll
// completions carry an epoch token so a completion that lost a race to
// a newer operation quietly drops itself.
type Session struct {
	cfg Config

	// opMu serializes Start/Stop/SwitchCamera bodies.
	opMu sync.Mutex

	mu     sync.Mutex
	state  State
	epoch  uint64
	stream capture.Stream

	torn atomic.Bool
}

func New(cfg Config) *Session {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Settle <= 0 {
		cfg.Settle = DefaultSettle
	}
	if cfg.Surface == nil {
		cfg.Surface = NewSurface()
	}
	return &Session{cfg: cfg}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Surface returns the frame sink this session attaches streams to.
func (s *Session) Surface() *Surface { return s.cfg.Surface }

// Start acquires the device and begins polling for codes. Only an idle
// session may start.
func (s *Session) Start(ctx context.Context, deviceID string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.start(ctx, deviceID)
}

func (s *Session) start(ctx context.Context, deviceID string) error {
	if s.torn.Load() {
		return ErrTornDown
	}
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyScanning
	}
	s.state = StateStarting
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()

	stream, err := s.cfg.Backend.Open(ctx, deviceID, s.cfg.Stream)
	if err != nil {
		s.rollback(epoch)
		return capture.Classify(err)
	}
	// Acquisition suspended us; the session may have been torn down
	// underneath. Release what was just acquired and report upward.
	if s.torn.Load() {
		stream.Stop()
		s.rollback(epoch)
		logging.Session.Printf("start superseded by teardown, released %s", stream.Device())
		return ErrTornDown
	}

	s.mu.Lock()
	s.stream = stream
	s.state = StateScanning
	s.mu.Unlock()
	s.cfg.Surface.attach(stream)
	go s.poll(epoch, stream)
	logging.Session.Printf("scanning %s", stream.Device())
	return nil
}

// rollback returns a failed or abandoned Starting epoch to Idle.
func (s *Session) rollback(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch == epoch && s.state == StateStarting {
		s.state = StateIdle
	}
}

// Stop releases the device and returns the session to idle. Stopping an
// idle session is a no-op: nothing is released twice.
func (s *Session) Stop() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.stop()
}

func (s *Session) stop() {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	stream := s.stream
	s.stream = nil
	s.epoch++ // orphan in-flight poll completions
	if stream == nil {
		// Nothing was actually acquired; a driver-level stop here would
		// hang or lie. Reset directly.
		s.state = StateIdle
		s.mu.Unlock()
		return
	}
	s.state = StateStopping
	s.mu.Unlock()

	stream.Stop()
	s.cfg.Surface.detach(stream)

	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
	logging.Session.Printf("stopped %s", stream.Device())
}

// SwitchCamera stops the current stream, lets the driver settle, and
// starts on the requested device.
func (s *Session) SwitchCamera(ctx context.Context, deviceID string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.torn.Load() {
		return ErrTornDown
	}
	s.stop()

	timer := time.NewTimer(s.cfg.Settle)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
		return capture.Classify(ctx.Err())
	}
	if s.torn.Load() {
		return ErrTornDown
	}
	return s.start(ctx, deviceID)
}

// Teardown permanently retires the session. It stops synchronously when
// no operation is in flight; otherwise the in-flight operation observes
// the flag at its next liveness check and rolls back its own
// acquisition, or the poll loop releases the stream at its next tick.
// Safe to call more than once.
func (s *Session) Teardown() {
	s.torn.Store(true)
	if s.opMu.TryLock() {
		defer s.opMu.Unlock()
		s.stop()
		return
	}
	logging.Session.Printf("teardown deferred to in-flight operation")
}

// poll wakes at the configured interval, decodes the newest frame, and
// stops the session on the first hit. It exits when its epoch is
// superseded or its stream dies.
func (s *Session) poll(epoch uint64, stream capture.Stream) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-stream.Done():
			if err := stream.Err(); err != nil {
				s.fault(epoch, err)
			}
			return
		case <-ticker.C:
			// A teardown that arrived while the starting operation still
			// held the operation lock could not stop anything itself; the
			// poll loop finishes the release on its behalf.
			if s.torn.Load() {
				s.stopEpoch(epoch)
				return
			}
			if !s.live(epoch) {
				return
			}
			frame, ok := stream.Latest()
			if !ok || frame.Seq == lastSeq {
				continue
			}
			lastSeq = frame.Seq
			res, found := s.decodeFrame(frame)
			if !found {
				// Expected per-frame outcome, deliberately unlogged.
				continue
			}
			s.complete(epoch, res)
			return
		}
	}
}

// live reports whether epoch is still the scanning epoch.
func (s *Session) live(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch == epoch && s.state == StateScanning
}

// decodeFrame guards the decoder: a panic or engine error is logged and
// treated as a miss so the poll loop outlives it.
func (s *Session) decodeFrame(frame capture.Frame) (res decode.Result, found bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.Session.Printf("decoder panicked: %v", r)
			found = false
		}
	}()
	res, found, err := s.cfg.Decoder.Decode(frame.Image)
	if err != nil {
		logging.Session.Printf("decode failed: %v", err)
		return decode.Result{}, false
	}
	return res, found
}

// complete delivers the first decode of this epoch, then auto-stops.
// Scan-once is deliberate: rescanning is an explicit new Start.
func (s *Session) complete(epoch uint64, res decode.Result) {
	if !s.live(epoch) {
		return
	}
	if cb := s.cfg.OnDecode; cb != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logging.Session.Printf("decode callback panicked: %v", r)
				}
			}()
			cb(res)
		}()
	}
	s.stopEpoch(epoch)
}

// stopEpoch stops only while epoch is still scanning, so a completion
// that lost a race to a newer operation cannot kill its stream.
func (s *Session) stopEpoch(epoch uint64) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.live(epoch) {
		s.stop()
	}
}

// fault force-stops after a mid-scan stream death and reports upward.
// Deaths belonging to superseded epochs are swallowed.
func (s *Session) fault(epoch uint64, cause error) {
	s.opMu.Lock()
	wasLive := s.live(epoch)
	if wasLive {
		logging.Session.Printf("stream died mid-scan: %v", cause)
		s.stop()
	}
	s.opMu.Unlock()
	if wasLive && s.cfg.OnFault != nil {
		s.cfg.OnFault(capture.Classify(cause))
	}
}
