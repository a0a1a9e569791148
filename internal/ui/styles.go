package ui

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Colors - cyberpunk/neon palette
var (
	ColorPrimary    = lipgloss.Color("#C084FC") // soft violet
	ColorSuccess    = lipgloss.Color("#39FF14") // neon green
	ColorDanger     = lipgloss.Color("#FF5555") // red
	ColorWarning    = lipgloss.Color("#FBBF24") // amber
	ColorMuted      = lipgloss.Color("#4A5568") // darker muted
	ColorBorder     = lipgloss.Color("#4A5568") // border
	ColorBackground = lipgloss.Color("#1F1F23") // dark background
	ColorCyan       = lipgloss.Color("#00FFFF") // neon cyan
	ColorText       = lipgloss.Color("#E4E4E7") // default text
)

// Styles
var (
	StatsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	// History panel
	HistoryPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorBorder).
				Padding(0, 1)

	HistoryItemStyle = lipgloss.NewStyle().
				Foreground(ColorText)

	HistoryItemSelected = lipgloss.NewStyle().
				Background(ColorPrimary).
				Foreground(lipgloss.Color("#FFFFFF")).
				Bold(true)

	// Viewfinder
	ViewfinderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	ViewfinderActiveStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorCyan)

	// Help bar - dimmer with bright key highlights
	HelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3D4555")). // very dim
			Padding(0, 1)

	HelpKey = lipgloss.NewStyle().
			Foreground(ColorCyan).
			Background(lipgloss.Color("#1E3A4C")). // subtle dark cyan bg
			Padding(0, 1)

	// Inline key hint (for use in text)
	KeyHint = lipgloss.NewStyle().
			Foreground(ColorCyan).
			Background(lipgloss.Color("#1E3A4C")).
			Padding(0, 1)

	// Help overlay key style (no background for cleaner look)
	HelpOverlayKey = lipgloss.NewStyle().
			Foreground(ColorCyan).
			Padding(0, 1)

	// Status badges
	BadgeGranted = lipgloss.NewStyle().
			Background(lipgloss.Color("#14532D")).
			Foreground(ColorSuccess).
			Padding(0, 1)

	BadgeChecking = lipgloss.NewStyle().
			Background(lipgloss.Color("#44371A")).
			Foreground(ColorWarning).
			Padding(0, 1)

	BadgeDenied = lipgloss.NewStyle().
			Background(lipgloss.Color("#4C1D1D")).
			Foreground(ColorDanger).
			Padding(0, 1)

	BadgeScanning = lipgloss.NewStyle().
			Background(lipgloss.Color("#1E3A4C")).
			Foreground(ColorCyan).
			Padding(0, 1).
			Bold(true)

	BadgeIdle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(lipgloss.Color("#9CA3AF")).
			Padding(0, 1)
)

// FormatTime formats a time for display, using shorter format for current year
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if t.Year() == time.Now().Year() {
		return t.Format("Jan 2 15:04")
	}
	return t.Format("Jan 2, 2006 15:04")
}

// Truncate shortens s to max cells, appending an ellipsis when cut
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}
