package capture

import (
	"context"
	"sync"

	"github.com/lumipallolabs/qrlens/internal/logging"
	"github.com/lumipallolabs/qrlens/internal/model"
)

// Negotiator mediates camera access. It owns the permission state and
// allows a single in-flight access attempt: a RequestAccess call made
// while another is Checking joins it and shares its outcome instead of
// probing the hardware twice.
type Negotiator struct {
	backend Backend
	profile Profile

	mu      sync.Mutex
	state   PermissionState
	pending *accessAttempt
	devices []model.Device
}

type accessAttempt struct {
	done    chan struct{}
	devices []model.Device
	err     error
}

func NewNegotiator(backend Backend, profile Profile) *Negotiator {
	return &Negotiator{backend: backend, profile: profile, state: PermissionUnknown}
}

// State returns the current permission state.
func (n *Negotiator) State() PermissionState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Devices returns the devices enumerated by the most recent grant.
func (n *Negotiator) Devices() []model.Device {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]model.Device, len(n.devices))
	copy(out, n.devices)
	return out
}

// MarkError forces the permission state to Error. Used when an active
// stream dies out from under a session and any recovery needs the user to
// retry from scratch. A no-op while an access attempt is in flight.
func (n *Negotiator) MarkError() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pending == nil {
		n.state = PermissionError
	}
}

// RequestAccess probes the default camera to elicit the platform access
// check, releases the probe stream, and enumerates devices. The probe
// first asks for the environment-facing camera at the profile's ideal
// resolution and falls back once to an unconstrained open. Callers that
// arrive while a request is in flight wait for it and share its result.
func (n *Negotiator) RequestAccess(ctx context.Context) ([]model.Device, error) {
	n.mu.Lock()
	if p := n.pending; p != nil {
		n.mu.Unlock()
		select {
		case <-p.done:
			return p.devices, p.err
		case <-ctx.Done():
			return nil, &Failure{Code: CodeInterrupted, Err: ctx.Err()}
		}
	}
	if !n.profile.Supported {
		n.state = PermissionError
		n.mu.Unlock()
		return nil, &Failure{Code: CodeUnsupported}
	}
	if !n.profile.DeviceAccess {
		n.state = PermissionError
		n.mu.Unlock()
		return nil, &Failure{Code: CodeInsecureContext}
	}
	attempt := &accessAttempt{done: make(chan struct{})}
	n.pending = attempt
	if n.state != PermissionGranted {
		// Re-requests while granted re-enumerate without leaving Granted.
		n.state = PermissionChecking
	}
	n.mu.Unlock()

	devices, err := n.probe(ctx)

	n.mu.Lock()
	n.pending = nil
	attempt.devices, attempt.err = devices, err
	switch {
	case err == nil:
		n.state = PermissionGranted
		n.devices = devices
	case CodeOf(err) == CodePermissionDenied:
		n.state = PermissionDenied
	default:
		n.state = PermissionError
	}
	n.mu.Unlock()
	close(attempt.done)
	return devices, err
}

func (n *Negotiator) probe(ctx context.Context) ([]model.Device, error) {
	cfg := n.profile.IdealConfig()
	cfg.FacingHint = model.FacingBack
	stream, err := n.backend.Open(ctx, "", cfg)
	if err != nil {
		logging.Session.Printf("probe with preferred constraints failed, retrying unconstrained: %v", err)
		stream, err = n.backend.Open(ctx, "", StreamConfig{})
	}
	if err != nil {
		return nil, Classify(err)
	}
	// The probe exists only to elicit the access check. Never hold the
	// device past this point.
	stream.Stop()

	devices, err := n.backend.Devices(ctx)
	if err != nil {
		return nil, Classify(err)
	}
	return devices, nil
}
