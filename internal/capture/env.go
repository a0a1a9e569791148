package capture

import "runtime"

// Class is a coarse host classification used only to pick constraint
// defaults and messaging. Capture behavior never branches on it.
type Class int

const (
	ClassDesktop Class = iota
	ClassEmbedded
)

func (c Class) String() string {
	if c == ClassEmbedded {
		return "embedded"
	}
	return "desktop"
}

// Profile describes what the host can do before any device is touched.
type Profile struct {
	Class Class
	// Supported reports whether this build carries a capture backend.
	Supported bool
	// DeviceAccess reports whether the device namespace is visible at all.
	// False on a supported platform means a sandboxed or stripped-down
	// environment rather than a missing camera.
	DeviceAccess bool
}

// DetectProfile inspects the host. Small ARM boards get the embedded
// profile and a lower default resolution; everything else is desktop.
func DetectProfile() Profile {
	class := ClassDesktop
	if runtime.GOOS == "linux" {
		switch runtime.GOARCH {
		case "arm", "arm64", "riscv64":
			class = ClassEmbedded
		}
	}
	supported, access := platformProfile()
	return Profile{Class: class, Supported: supported, DeviceAccess: access}
}

// IdealConfig returns the preferred acquisition constraints for this host.
// These are hints: if the device refuses them the caller falls back to an
// unconstrained open.
func (p Profile) IdealConfig() StreamConfig {
	if p.Class == ClassEmbedded {
		return StreamConfig{Width: 640, Height: 480, FPS: 30}
	}
	return StreamConfig{Width: 1280, Height: 720, FPS: 30}
}
