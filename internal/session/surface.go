package session

import (
	"sync"

	"github.com/lumipallolabs/qrlens/internal/capture"
)

// Surface is the identity-stable frame sink the UI renders from. The
// view binding creates exactly one per run and keeps it for as long as
// sessions may be starting, scanning or stopping against it: streams
// attach and detach, the surface itself is never replaced.
type Surface struct {
	mu     sync.Mutex
	stream capture.Stream
}

func NewSurface() *Surface { return &Surface{} }

func (s *Surface) attach(st capture.Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream = st
}

// detach removes st if it is still the attached stream. A stale detach,
// superseded by a newer attach, is a no-op.
func (s *Surface) detach(st capture.Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == st {
		s.stream = nil
	}
}

// Frame returns the newest frame of the attached stream for rendering.
func (s *Surface) Frame() (capture.Frame, bool) {
	s.mu.Lock()
	st := s.stream
	s.mu.Unlock()
	if st == nil {
		return capture.Frame{}, false
	}
	return st.Latest()
}

// Attached reports whether a stream currently feeds the surface.
func (s *Surface) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

// Clear drops whatever is attached without touching the stream itself.
// Teardown schedules it as the best-effort cleanup for streams that
// resolve after their session is gone.
func (s *Surface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream = nil
}
