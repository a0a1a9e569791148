package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lumipallolabs/qrlens/internal/model"
)

// HistoryPanel displays the scan ledger, newest first
type HistoryPanel struct {
	records []model.ScanRecord
	cursor  int
	width   int
	height  int
}

// NewHistoryPanel creates a new history panel
func NewHistoryPanel() HistoryPanel {
	return HistoryPanel{}
}

// SetRecords replaces the displayed records. The cursor sticks to the
// newest record while it sits at the top, otherwise it follows the
// record it was on.
func (p *HistoryPanel) SetRecords(records []model.ScanRecord) {
	if p.cursor > 0 && p.cursor < len(p.records) {
		prev := p.records[p.cursor].ID
		p.cursor = 0
		for i, r := range records {
			if r.ID == prev {
				p.cursor = i
				break
			}
		}
	}
	p.records = records
	p.clamp()
}

// SetSize sets the panel dimensions
func (p *HistoryPanel) SetSize(w, h int) {
	p.width = w
	p.height = h
}

// Selected returns the record under the cursor
func (p HistoryPanel) Selected() (model.ScanRecord, bool) {
	if p.cursor < 0 || p.cursor >= len(p.records) {
		return model.ScanRecord{}, false
	}
	return p.records[p.cursor], true
}

// MoveUp moves the cursor toward newer records
func (p *HistoryPanel) MoveUp() {
	if p.cursor > 0 {
		p.cursor--
	}
}

// MoveDown moves the cursor toward older records
func (p *HistoryPanel) MoveDown() {
	if p.cursor < len(p.records)-1 {
		p.cursor++
	}
}

func (p *HistoryPanel) clamp() {
	if p.cursor >= len(p.records) {
		p.cursor = len(p.records) - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}
}

// View renders the history list
func (p HistoryPanel) View() string {
	innerW := p.width - 4 // border + padding
	innerH := p.height - 2
	if innerW < 4 || innerH < 2 {
		return ""
	}

	titleStyle := lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(ColorMuted)
	timeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))

	var lines []string
	lines = append(lines, titleStyle.Render(fmt.Sprintf("History (%d)", len(p.records))))

	if len(p.records) == 0 {
		lines = append(lines, dimStyle.Render("nothing scanned yet"))
	}

	for i, rec := range p.records {
		if len(lines) >= innerH {
			break
		}
		stamp := rec.DecodedAt.Format("15:04:05")
		payload := Truncate(rec.Payload, innerW-len(stamp)-1)
		line := fmt.Sprintf("%s %s", stamp, payload)

		if i == p.cursor {
			lines = append(lines, HistoryItemSelected.Render(padRight(line, innerW)))
		} else {
			lines = append(lines, timeStyle.Render(stamp)+" "+HistoryItemStyle.Render(payload))
		}
	}

	body := strings.Join(lines, "\n")
	return HistoryPanelStyle.Width(innerW + 2).Height(innerH).Render(body)
}

func padRight(s string, w int) string {
	if n := w - lipgloss.Width(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}
