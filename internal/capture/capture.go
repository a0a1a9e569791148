// Package capture is the camera access boundary: platform backends that
// enumerate and open devices, streams that surface frames, and the
// permission negotiator that mediates first access. Decoding and session
// lifecycle live elsewhere; this package only moves frames and errors.
package capture

import (
	"context"
	"image"
	"time"

	"github.com/lumipallolabs/qrlens/internal/model"
)

// Frame is one captured image. Seq increases with every frame the device
// delivers, so consumers can tell a fresh frame from one already seen.
type Frame struct {
	Image image.Image
	Seq   uint64
	At    time.Time
}

// StreamConfig carries acquisition constraints. The zero value means
// "whatever the device offers".
type StreamConfig struct {
	Width  int
	Height int
	FPS    int
	// FacingHint prefers devices pointing this way when Open is called
	// without a device id. It never rejects a device outright.
	FacingHint model.Facing
}

// Stream is one live acquisition from a device.
//
// Latest never blocks: it returns the most recent frame and drops older
// ones, so a slow consumer sees fresh frames rather than a backlog. Done
// is closed when the stream is stopped or the device dies; Err reports
// the cause after Done, nil for a deliberate Stop. Stop is idempotent.
type Stream interface {
	Device() string
	Latest() (Frame, bool)
	Done() <-chan struct{}
	Err() error
	Stop()
}

// Backend abstracts platform capture.
type Backend interface {
	// Devices enumerates capture devices in platform order. Labels may be
	// empty when the platform withholds them.
	Devices(ctx context.Context) ([]model.Device, error)
	// Open acquires a stream from the device with the given id, or from a
	// default device chosen per cfg.FacingHint when id is empty.
	Open(ctx context.Context, id string, cfg StreamConfig) (Stream, error)
}

// NewBackend returns the capture backend for this platform.
func NewBackend() Backend {
	return newPlatformBackend()
}

// PermissionState tracks where camera access negotiation stands.
// Transitions are monotonic except Denied/Error, which may re-enter
// Checking on an explicit retry. A re-request while Granted re-enumerates
// without leaving Granted.
type PermissionState int

const (
	PermissionUnknown PermissionState = iota
	PermissionChecking
	PermissionGranted
	PermissionDenied
	PermissionError
)

func (s PermissionState) String() string {
	switch s {
	case PermissionUnknown:
		return "unknown"
	case PermissionChecking:
		return "checking"
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	case PermissionError:
		return "error"
	default:
		return "invalid"
	}
}
