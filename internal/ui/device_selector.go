package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lumipallolabs/qrlens/internal/model"
)

// DeviceSelector displays a list of capture devices for selection
type DeviceSelector struct {
	devices  []model.Device
	selected int
	visible  bool
	width    int
	height   int
}

// NewDeviceSelector creates a new device selector component
func NewDeviceSelector(devices []model.Device) DeviceSelector {
	return DeviceSelector{
		devices:  devices,
		selected: 0,
		visible:  false,
	}
}

// SetDevices updates the available devices
func (d *DeviceSelector) SetDevices(devices []model.Device) {
	d.devices = devices
	if d.selected >= len(devices) {
		d.selected = 0
	}
}

// SetSelected sets the currently highlighted device
func (d *DeviceSelector) SetSelected(idx int) {
	if idx >= 0 && idx < len(d.devices) {
		d.selected = idx
	}
}

// Selected returns the index of the currently highlighted device
func (d DeviceSelector) Selected() int {
	return d.selected
}

// SetVisible sets visibility of the selector
func (d *DeviceSelector) SetVisible(visible bool) {
	d.visible = visible
}

// IsVisible returns whether the selector is visible
func (d DeviceSelector) IsVisible() bool {
	return d.visible
}

// SetSize sets the dimensions for centering
func (d *DeviceSelector) SetSize(w, h int) {
	d.width = w
	d.height = h
}

// MoveUp moves selection up
func (d *DeviceSelector) MoveUp() {
	if d.selected > 0 {
		d.selected--
	}
}

// MoveDown moves selection down
func (d *DeviceSelector) MoveDown() {
	if d.selected < len(d.devices)-1 {
		d.selected++
	}
}

// View renders the device selector overlay
func (d DeviceSelector) View() string {
	if !d.visible || len(d.devices) == 0 {
		return ""
	}

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorPrimary).
		Padding(1, 2).
		Background(ColorBackground)

	titleStyle := lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true).
		MarginBottom(1)

	normalStyle := lipgloss.NewStyle().
		Foreground(ColorText).
		PaddingLeft(1).
		PaddingRight(1)

	selectedStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(ColorPrimary).
		Bold(true).
		PaddingLeft(1).
		PaddingRight(1)

	hintStyle := lipgloss.NewStyle().
		Foreground(ColorMuted).
		MarginTop(1)

	var content strings.Builder

	content.WriteString(titleStyle.Render("Select Camera"))
	content.WriteString("\n")

	for i, dev := range d.devices {
		line := dev.DisplayName()
		if dev.Facing != model.FacingUnknown {
			line = fmt.Sprintf("%s (%s)", line, dev.Facing)
		}
		line = fmt.Sprintf("%s  %s", line, dev.ID)

		if i == d.selected {
			content.WriteString(selectedStyle.Render(line))
		} else {
			content.WriteString(normalStyle.Render(line))
		}
		content.WriteString("\n")
	}

	content.WriteString(hintStyle.Render("↑/↓ select  Enter confirm  Esc cancel"))

	box := boxStyle.Render(strings.TrimSuffix(content.String(), "\n"))

	return lipgloss.Place(d.width, d.height, lipgloss.Center, lipgloss.Center, box)
}
