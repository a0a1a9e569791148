package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const helpKeyColumnWidth = 14 // Width for key column in help text (includes padding)

// HelpOverlay displays keyboard shortcuts in a centered overlay
type HelpOverlay struct {
	visible bool
	width   int
	height  int
	version string
}

// NewHelpOverlay creates a new help overlay component
func NewHelpOverlay(version string) HelpOverlay {
	return HelpOverlay{
		visible: false,
		version: version,
	}
}

// Toggle toggles the visibility of the help overlay
func (h *HelpOverlay) Toggle() {
	h.visible = !h.visible
}

// SetVisible sets the visibility of the help overlay
func (h *HelpOverlay) SetVisible(visible bool) {
	h.visible = visible
}

// IsVisible returns whether the help overlay is visible
func (h HelpOverlay) IsVisible() bool {
	return h.visible
}

// SetSize sets the dimensions of the help overlay
func (ho *HelpOverlay) SetSize(w, h int) {
	ho.width = w
	ho.height = h
}

// View renders the help overlay
func (h HelpOverlay) View() string {
	if !h.visible {
		return ""
	}

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorPrimary).
		Padding(1, 3)

	sectionStyle := lipgloss.NewStyle().
		Foreground(ColorMuted).
		MarginTop(1)

	keyStyle := HelpOverlayKey
	descStyle := lipgloss.NewStyle().Foreground(ColorText)
	dimStyle := lipgloss.NewStyle().Foreground(ColorMuted)

	var content strings.Builder

	nameStyle := lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true)
	versionStyle := lipgloss.NewStyle().
		Foreground(ColorMuted)

	content.WriteString(nameStyle.Render("QRLens"))
	if h.version != "" {
		content.WriteString(versionStyle.Render(" " + h.version))
	}
	content.WriteString("\n")

	// Scanning section
	content.WriteString(sectionStyle.Render("Scanning"))
	content.WriteString("\n")
	content.WriteString(formatHelpLine(keyStyle, descStyle, "s", "Scan again"))
	content.WriteString(formatHelpLine(keyStyle, descStyle, "x", "Stop scan"))
	content.WriteString(formatHelpLine(keyStyle, descStyle, "r", "Retry camera access"))
	content.WriteString(formatHelpLine(keyStyle, descStyle, "e", "Select camera"))
	content.WriteString(formatHelpLine(keyStyle, descStyle, "Tab", "Next camera"))

	// History section
	content.WriteString(sectionStyle.Render("History"))
	content.WriteString("\n")
	content.WriteString(formatHelpLine(keyStyle, descStyle, "↑↓ / jk", "Select record"))
	content.WriteString(formatHelpLine(keyStyle, descStyle, "c", "Copy payload"))
	content.WriteString(formatHelpLine(keyStyle, descStyle, "o", "Open payload URL"))
	content.WriteString(formatHelpLine(keyStyle, descStyle, "D", "Clear history"))

	// General section
	content.WriteString(sectionStyle.Render("General"))
	content.WriteString("\n")
	content.WriteString(formatHelpLine(keyStyle, descStyle, "?", "Toggle help"))
	content.WriteString(formatHelpLine(keyStyle, descStyle, "q", "Quit"))

	// Footer
	content.WriteString("\n")
	content.WriteString(dimStyle.Render("Press any key to close"))

	box := boxStyle.Render(content.String())

	return lipgloss.Place(h.width, h.height, lipgloss.Center, lipgloss.Center, box)
}

// formatHelpLine formats a single help line with key and description
func formatHelpLine(keyStyle, descStyle lipgloss.Style, key, desc string) string {
	return keyStyle.Width(helpKeyColumnWidth).Render(key) + descStyle.Render(desc) + "\n"
}

// HelpBar renders a bottom help bar with key hints
func HelpBar(width int) string {
	descStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))

	type hint struct {
		key  string
		desc string
	}

	fullHints := []hint{
		{"s", "scan"},
		{"x", "stop"},
		{"e", "camera"},
		{"↑↓", "history"},
		{"c", "copy"},
		{"o", "open"},
		{"?", "help"},
		{"q", "quit"},
	}

	compactHints := []hint{
		{"s", "scan"},
		{"c", "copy"},
		{"?", "help"},
		{"q", "quit"},
	}

	minimalHints := []hint{
		{"?", "help"},
		{"q", "quit"},
	}

	var hints []hint
	if width >= 90 {
		hints = fullHints
	} else if width >= 55 {
		hints = compactHints
	} else {
		hints = minimalHints
	}

	var parts []string
	for _, h := range hints {
		parts = append(parts, HelpKey.Render(h.key)+" "+descStyle.Render(h.desc))
	}

	separator := "   "
	if width < 80 {
		separator = "  "
	}

	bar := strings.Join(parts, separator)

	return HelpStyle.Width(width).MaxHeight(1).Render(bar)
}
