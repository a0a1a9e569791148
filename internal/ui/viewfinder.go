package ui

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lumipallolabs/qrlens/internal/session"
)

// ViewfinderPanel renders the live camera feed as colored half-block
// cells. It reads frames from the session surface and never touches the
// stream itself, so it stays valid across session restarts.
type ViewfinderPanel struct {
	surface *session.Surface
	width   int
	height  int
}

// NewViewfinderPanel creates a viewfinder bound to the given surface
func NewViewfinderPanel(surface *session.Surface) ViewfinderPanel {
	return ViewfinderPanel{surface: surface}
}

// SetSize sets the panel dimensions including the border
func (v *ViewfinderPanel) SetSize(w, h int) {
	v.width = w
	v.height = h
}

// View renders the current frame, or the given placeholder text when no
// frame is available
func (v ViewfinderPanel) View(active bool, placeholder string) string {
	innerW := v.width - 2
	innerH := v.height - 2
	if innerW < 1 || innerH < 1 {
		return ""
	}

	style := ViewfinderStyle
	if active {
		style = ViewfinderActiveStyle
	}
	style = style.Width(innerW).Height(innerH)

	frame, ok := v.surface.Frame()
	if !ok || frame.Image == nil {
		dim := lipgloss.NewStyle().Foreground(ColorMuted)
		body := lipgloss.Place(innerW, innerH, lipgloss.Center, lipgloss.Center, dim.Render(placeholder))
		return style.Render(body)
	}

	body := renderFrame(frame.Image, innerW, innerH)
	return style.Render(body)
}

// renderFrame paints an image into a cols x rows cell area. Each
// terminal cell holds two vertically stacked samples via the upper
// half-block, which keeps the subcells roughly square.
func renderFrame(img image.Image, maxCols, maxRows int) string {
	cols, rows := fitGrid(img.Bounds().Dx(), img.Bounds().Dy(), maxCols, maxRows*2)
	cells := downsample(img, cols, rows)

	var b strings.Builder
	for y := 0; y < rows; y += 2 {
		if y > 0 {
			b.WriteByte('\n')
		}
		for x := 0; x < cols; x++ {
			top := cells[y][x]
			bottom := top
			if y+1 < rows {
				bottom = cells[y+1][x]
			}
			st := lipgloss.NewStyle().
				Foreground(hexColor(top)).
				Background(hexColor(bottom))
			b.WriteString(st.Render("▀"))
		}
	}
	return b.String()
}

// fitGrid scales imgW x imgH into maxCols x maxRows preserving aspect
// ratio. Both results are at least 1.
func fitGrid(imgW, imgH, maxCols, maxRows int) (cols, rows int) {
	if imgW < 1 || imgH < 1 || maxCols < 1 || maxRows < 1 {
		return 1, 1
	}
	sx := float64(maxCols) / float64(imgW)
	sy := float64(maxRows) / float64(imgH)
	s := sx
	if sy < s {
		s = sy
	}
	cols = int(float64(imgW) * s)
	rows = int(float64(imgH) * s)
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return cols, rows
}

// downsample box-averages img into a cols x rows grid, sampling at most
// a few pixels per cell so huge frames stay cheap to paint.
func downsample(img image.Image, cols, rows int) [][]color.RGBA {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	cells := make([][]color.RGBA, rows)
	for cy := 0; cy < rows; cy++ {
		cells[cy] = make([]color.RGBA, cols)
		y0 := bounds.Min.Y + cy*h/rows
		y1 := bounds.Min.Y + (cy+1)*h/rows
		if y1 <= y0 {
			y1 = y0 + 1
		}
		for cx := 0; cx < cols; cx++ {
			x0 := bounds.Min.X + cx*w/cols
			x1 := bounds.Min.X + (cx+1)*w/cols
			if x1 <= x0 {
				x1 = x0 + 1
			}
			cells[cy][cx] = averageBlock(img, x0, y0, x1, y1)
		}
	}
	return cells
}

// averageBlock averages up to 4x4 samples inside the block
func averageBlock(img image.Image, x0, y0, x1, y1 int) color.RGBA {
	stepX := (x1 - x0 + 3) / 4
	stepY := (y1 - y0 + 3) / 4
	if stepX < 1 {
		stepX = 1
	}
	if stepY < 1 {
		stepY = 1
	}

	var r, g, b, n uint32
	for y := y0; y < y1; y += stepY {
		for x := x0; x < x1; x += stepX {
			pr, pg, pb, _ := img.At(x, y).RGBA()
			r += pr >> 8
			g += pg >> 8
			b += pb >> 8
			n++
		}
	}
	if n == 0 {
		return color.RGBA{}
	}
	return color.RGBA{R: uint8(r / n), G: uint8(g / n), B: uint8(b / n), A: 0xFF}
}

func hexColor(c color.RGBA) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}
