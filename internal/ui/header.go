package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lumipallolabs/qrlens/internal/capture"
	"github.com/lumipallolabs/qrlens/internal/core"
	"github.com/lumipallolabs/qrlens/internal/session"
)

// Header displays camera and session status (2 lines)
type Header struct {
	state   core.AppState
	width   int
	version string
}

// NewHeader creates a new header component
func NewHeader(version string) Header {
	return Header{version: version}
}

// SetState updates the snapshot the header renders from
func (h *Header) SetState(state core.AppState) {
	h.state = state
}

// SetWidth sets the header width
func (h *Header) SetWidth(w int) {
	h.width = w
}

// View renders the header (2 lines)
// Line 1: QRLens 0.3.1                  [granted] [scanning]
// Line 2: Camera: Integrated Camera  e change        Scans: 42 lifetime
func (h Header) View() string {
	nameStyle := lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true)
	versionStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#9CA3AF"))
	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#9CA3AF"))
	dimStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#9CA3AF"))

	// === LINE 1: App name (left) | status badges (right) ===
	appName := nameStyle.Render("QRLens") + versionStyle.Render(" "+h.version)
	badges := h.permissionBadge() + " " + h.sessionBadge()

	gap1 := h.width - lipgloss.Width(appName) - lipgloss.Width(badges)
	if gap1 < 2 {
		gap1 = 2
	}
	line1 := appName + strings.Repeat(" ", gap1) + badges

	// === LINE 2: Camera (left) | lifetime scans (right) ===
	var camera string
	if dev, ok := h.state.SelectedDevice(); ok {
		cameraStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true)
		camera = labelStyle.Render("Camera: ") + cameraStyle.Render(dev.DisplayName())
		if len(h.state.Devices) > 1 {
			hint := dimStyle.Render("  ") + KeyHint.Render("e") + dimStyle.Render(" change")
			camera += hint
		}
	} else {
		camera = labelStyle.Render("Camera: ") + dimStyle.Render("none")
	}

	var scans string
	if h.state.ScansLifetime > 0 {
		scans = labelStyle.Render("Scans: ") +
			StatsStyle.Render(fmt.Sprintf("%d", h.state.ScansLifetime)) +
			dimStyle.Render(" lifetime")
	}

	gap2 := h.width - lipgloss.Width(camera) - lipgloss.Width(scans)
	if gap2 < 2 {
		gap2 = 2
	}
	line2 := camera + strings.Repeat(" ", gap2) + scans

	return lipgloss.JoinVertical(lipgloss.Left, line1, line2)
}

func (h Header) permissionBadge() string {
	switch h.state.Permission {
	case capture.PermissionGranted:
		return BadgeGranted.Render("camera ok")
	case capture.PermissionChecking:
		return BadgeChecking.Render("checking")
	case capture.PermissionDenied:
		return BadgeDenied.Render("denied")
	case capture.PermissionError:
		return BadgeDenied.Render(h.state.PermissionCode.String())
	default:
		return BadgeIdle.Render("camera")
	}
}

func (h Header) sessionBadge() string {
	switch h.state.Session {
	case session.StateScanning:
		return BadgeScanning.Render("scanning")
	case session.StateStarting:
		return BadgeChecking.Render("starting")
	case session.StateStopping:
		return BadgeChecking.Render("stopping")
	default:
		return BadgeIdle.Render("idle")
	}
}
