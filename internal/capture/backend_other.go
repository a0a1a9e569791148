//go:build !linux || !cgo

package capture

import (
	"context"
	"errors"

	"github.com/lumipallolabs/qrlens/internal/model"
)

func newPlatformBackend() Backend { return unsupportedBackend{} }

func platformProfile() (supported, deviceAccess bool) { return false, false }

var errUnsupported = errors.New("camera capture not supported on this platform")

// unsupportedBackend keeps non-Linux builds compiling; every call reports
// the platform gap through the normal taxonomy.
type unsupportedBackend struct{}

func (unsupportedBackend) Devices(context.Context) ([]model.Device, error) {
	return nil, &Failure{Code: CodeUnsupported, Err: errUnsupported}
}

func (unsupportedBackend) Open(context.Context, string, StreamConfig) (Stream, error) {
	return nil, &Failure{Code: CodeUnsupported, Err: errUnsupported}
}
