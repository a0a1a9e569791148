package ui

import (
	"image"
	"image/color"
	"strings"
	"testing"
)

func TestFitGrid(t *testing.T) {
	tests := []struct {
		name               string
		imgW, imgH         int
		maxCols, maxRows   int
		wantCols, wantRows int
	}{
		{"wide image limited by cols", 1280, 720, 80, 100, 80, 45},
		{"tall terminal limited by rows", 1280, 720, 200, 40, 71, 40},
		{"exact fit", 80, 40, 80, 40, 80, 40},
		{"tiny image upscales", 4, 2, 80, 40, 80, 40},
		{"never below one", 1000, 1, 10, 10, 10, 1},
		{"degenerate input", 0, 0, 80, 40, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols, rows := fitGrid(tt.imgW, tt.imgH, tt.maxCols, tt.maxRows)
			if cols != tt.wantCols || rows != tt.wantRows {
				t.Errorf("fitGrid(%d, %d, %d, %d) = %d, %d; want %d, %d",
					tt.imgW, tt.imgH, tt.maxCols, tt.maxRows, cols, rows, tt.wantCols, tt.wantRows)
			}
			if cols > tt.maxCols || rows > tt.maxRows {
				t.Errorf("grid %dx%d exceeds bounds %dx%d", cols, rows, tt.maxCols, tt.maxRows)
			}
		})
	}
}

func TestDownsampleSplitImage(t *testing.T) {
	// Left half black, right half white
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 64; x++ {
			c := color.RGBA{A: 0xFF}
			if x >= 32 {
				c = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
			}
			img.SetRGBA(x, y, c)
		}
	}

	cells := downsample(img, 8, 4)
	if len(cells) != 4 || len(cells[0]) != 8 {
		t.Fatalf("got %dx%d grid, want 4x8", len(cells), len(cells[0]))
	}

	for cy := 0; cy < 4; cy++ {
		for cx := 0; cx < 8; cx++ {
			c := cells[cy][cx]
			if cx < 4 && c.R > 0x20 {
				t.Errorf("cell (%d,%d) = %v, want dark", cx, cy, c)
			}
			if cx >= 4 && c.R < 0xDF {
				t.Errorf("cell (%d,%d) = %v, want bright", cx, cy, c)
			}
		}
	}
}

func TestDownsampleOffsetBounds(t *testing.T) {
	// Sub-images carry non-zero bounds; sampling must respect them.
	base := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for y := 10; y < 20; y++ {
		for x := 10; x < 20; x++ {
			base.SetRGBA(x, y, color.RGBA{R: 0xFF, A: 0xFF})
		}
	}
	sub := base.SubImage(image.Rect(10, 10, 20, 20))

	cells := downsample(sub, 2, 2)
	for cy := range cells {
		for cx, c := range cells[cy] {
			if c.R != 0xFF {
				t.Errorf("cell (%d,%d) = %v, want red", cx, cy, c)
			}
		}
	}
}

func TestRenderFrameLineCount(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	out := renderFrame(img, 20, 10)

	lines := strings.Split(out, "\n")
	// 40x30 into 20x20 subcells -> 20 cols, 14 sample rows after aspect
	// fit, packed two per line.
	if len(lines) > 10 {
		t.Errorf("got %d lines, want at most 10", len(lines))
	}
	for i, line := range lines {
		if !strings.Contains(line, "▀") {
			t.Errorf("line %d has no half-block cells", i)
		}
	}
}
