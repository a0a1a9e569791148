package model

import (
	"fmt"
	"strings"
)

// Facing describes which way a capture device points.
type Facing int

const (
	FacingUnknown Facing = iota
	FacingBack
	FacingFront
)

func (f Facing) String() string {
	switch f {
	case FacingBack:
		return "back"
	case FacingFront:
		return "front"
	default:
		return "unknown"
	}
}

// Device represents an enumerated capture device. IDs are stable for the
// lifetime of a permission grant (on Linux, the /dev node path). Labels may
// be empty when the platform withholds them; that is degraded, not an error.
type Device struct {
	ID     string // e.g., "/dev/video0"
	Label  string // e.g., "Integrated Camera: Integrated C"
	Index  int    // position in platform enumeration order
	Facing Facing
}

// DisplayName returns the label, or a positional fallback when the
// platform withheld it.
func (d Device) DisplayName() string {
	if d.Label != "" {
		return d.Label
	}
	return fmt.Sprintf("Camera %d", d.Index+1)
}

// ClassifyFacing guesses a device's facing from its label. Labels containing
// "back", "rear" or "environment" are back-facing; "front" or "user" are
// front-facing. Explicit words win over the positional rule: a label whose
// trailing token is the index 0 counts as back-facing only when no facing
// word matched, so "Front Camera 0" stays front.
func ClassifyFacing(label string) Facing {
	l := strings.ToLower(label)
	for _, w := range []string{"back", "rear", "environment"} {
		if strings.Contains(l, w) {
			return FacingBack
		}
	}
	for _, w := range []string{"front", "user"} {
		if strings.Contains(l, w) {
			return FacingFront
		}
	}
	fields := strings.Fields(l)
	if len(fields) > 0 && fields[len(fields)-1] == "0" {
		return FacingBack
	}
	return FacingUnknown
}

// DefaultDevice picks the index of the device to select when none is
// remembered: the first back-facing one, else the first. Returns -1 when
// the list is empty.
func DefaultDevice(devices []Device) int {
	if len(devices) == 0 {
		return -1
	}
	for i, d := range devices {
		if d.Facing == FacingBack {
			return i
		}
	}
	return 0
}
