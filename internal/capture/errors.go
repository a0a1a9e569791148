package capture

import (
	"context"
	"errors"
	"fmt"
	"syscall"
)

// Code identifies why camera access or streaming failed. The set is
// closed: every error this package returns carries exactly one Code, and
// each Code maps to its own remediation message.
type Code int

const (
	CodeUnknown Code = iota
	CodePermissionDenied
	CodeNoDeviceFound
	CodeDeviceBusy
	CodeInsecureContext
	CodeUnsupported
	CodeInterrupted
)

func (c Code) String() string {
	switch c {
	case CodePermissionDenied:
		return "permission denied"
	case CodeNoDeviceFound:
		return "no device found"
	case CodeDeviceBusy:
		return "device busy"
	case CodeInsecureContext:
		return "insecure context"
	case CodeUnsupported:
		return "unsupported"
	case CodeInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Failure wraps a platform error with its taxonomy code.
type Failure struct {
	Code Code
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return "capture: " + f.Code.String()
	}
	return fmt.Sprintf("capture: %s: %v", f.Code, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// CodeOf extracts the taxonomy code from any error, CodeUnknown when none
// is attached.
func CodeOf(err error) Code {
	var f *Failure
	if errors.As(err, &f) {
		return f.Code
	}
	return CodeUnknown
}

// Classify maps a raw platform error onto the taxonomy. Errors already
// carrying a code pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Failure{Code: CodeInterrupted, Err: err}
	case errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM):
		return &Failure{Code: CodePermissionDenied, Err: err}
	case errors.Is(err, syscall.EBUSY):
		return &Failure{Code: CodeDeviceBusy, Err: err}
	case errors.Is(err, syscall.ENOENT), errors.Is(err, syscall.ENODEV), errors.Is(err, syscall.ENXIO):
		return &Failure{Code: CodeNoDeviceFound, Err: err}
	}
	return &Failure{Code: CodeUnknown, Err: err}
}

// Remediation returns the user-facing next step for a failure code. Every
// code has a distinct message; callers may prepend platform hints but the
// mapping itself is stable.
func Remediation(c Code) string {
	switch c {
	case CodePermissionDenied:
		return "Camera access was denied. Add your user to the video group or fix the device permissions, then retry."
	case CodeNoDeviceFound:
		return "No camera was found. Connect one and retry."
	case CodeDeviceBusy:
		return "The camera is in use by another application. Close it and retry."
	case CodeInsecureContext:
		return "This environment does not expose capture devices. Run qrlens somewhere /dev is available."
	case CodeUnsupported:
		return "Camera capture is not supported on this platform."
	case CodeInterrupted:
		return "Camera setup was interrupted. Retry when ready."
	default:
		return "Camera setup failed unexpectedly. Retry, or restart qrlens."
	}
}
