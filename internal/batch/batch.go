// Package batch sweeps a directory tree for QR codes inside image files.
// It shares the decode boundary with the live scanner but needs no
// camera, no permission flow and no session machine.
package batch

import (
	"context"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"

	"github.com/lumipallolabs/qrlens/internal/decode"
	"github.com/lumipallolabs/qrlens/internal/logging"
)

// Progress reports sweep progress
type Progress struct {
	FilesScanned int64
	ImagesTried  int64
	CodesFound   int64
	CurrentPath  string
}

// Finding is one decoded code and where it was found
type Finding struct {
	Path      string
	Payload   string
	Symbology string
}

// ErrAlreadySwept rejects a second Scan on the same scanner.
var ErrAlreadySwept = errors.New("scanner already swept")

// Scanner defines the interface for sweeping a tree for codes. A
// Scanner is single-use: the progress channel is closed when Scan
// returns, and a second Scan fails with ErrAlreadySwept.
type Scanner interface {
	// Scan walks the given root and returns every decoded code, sorted
	// by path
	Scan(ctx context.Context, root string) ([]Finding, error)

	// Progress returns a channel that receives progress updates
	Progress() <-chan Progress
}

// Walker implements a parallel sweep using fastwalk
type Walker struct {
	workers    int
	newDecoder func() decode.Decoder
	progressCh chan Progress
	progress   Progress
	swept      atomic.Bool
}

// NewWalker creates a parallel sweep. Decoders are not concurrency-safe,
// so the walker builds one per worker through newDecoder.
func NewWalker(workers int, newDecoder func() decode.Decoder) *Walker {
	if workers < 1 {
		workers = 8
	}
	return &Walker{
		workers:    workers,
		newDecoder: newDecoder,
		progressCh: make(chan Progress, 100),
	}
}

// Progress returns the progress channel
func (w *Walker) Progress() <-chan Progress {
	return w.progressCh
}

// Scan walks the tree rooted at root, sniffing file types and decoding
// anything that looks like an image
func (w *Walker) Scan(ctx context.Context, root string) ([]Finding, error) {
	if !w.swept.CompareAndSwap(false, true) {
		return nil, ErrAlreadySwept
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	// Collect findings lock-free off the walker goroutines
	findingChan := make(chan Finding, 256)
	var findings []Finding
	var collectWg sync.WaitGroup
	collectWg.Add(1)
	go func() {
		defer collectWg.Done()
		for f := range findingChan {
			findings = append(findings, f)
		}
	}()

	decoders := sync.Pool{New: func() any { return w.newDecoder() }}

	conf := &fastwalk.Config{
		Follow:     false, // Don't follow symlinks
		NumWorkers: w.workers,
	}

	walkErr := fastwalk.Walk(conf, absRoot, func(path string, d fs.DirEntry, err error) error {
		// Check context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil || d.IsDir() {
			return nil // Skip entries with errors
		}

		if n := atomic.AddInt64(&w.progress.FilesScanned, 1); n%64 == 0 {
			w.emitProgress(path)
		}

		mime, err := mimetype.DetectFile(path)
		if err != nil || !isDecodableImage(mime) {
			return nil
		}
		atomic.AddInt64(&w.progress.ImagesTried, 1)

		img, err := loadImage(path)
		if err != nil {
			logging.Debug.Printf("batch: %s: %v", path, err)
			return nil
		}

		dec := decoders.Get().(decode.Decoder)
		res, ok, err := dec.Decode(img)
		decoders.Put(dec)
		if err != nil {
			logging.Debug.Printf("batch: decoding %s: %v", path, err)
			return nil
		}
		if !ok {
			return nil
		}

		atomic.AddInt64(&w.progress.CodesFound, 1)
		findingChan <- Finding{Path: path, Payload: res.Payload, Symbology: res.Symbology}
		return nil
	})

	// Close channel and wait for the collector to finish
	close(findingChan)
	collectWg.Wait()
	w.emitProgress("")
	close(w.progressCh)

	if walkErr != nil && walkErr != ctx.Err() {
		return nil, walkErr
	}

	sort.Slice(findings, func(i, j int) bool { return findings[i].Path < findings[j].Path })
	return findings, ctx.Err()
}

func (w *Walker) emitProgress(path string) {
	p := Progress{
		FilesScanned: atomic.LoadInt64(&w.progress.FilesScanned),
		ImagesTried:  atomic.LoadInt64(&w.progress.ImagesTried),
		CodesFound:   atomic.LoadInt64(&w.progress.CodesFound),
		CurrentPath:  path,
	}
	select {
	case w.progressCh <- p:
	default:
	}
}

// isDecodableImage accepts the formats the stdlib image decoders
// registered above can load
func isDecodableImage(m *mimetype.MIME) bool {
	for _, t := range []string{"image/png", "image/jpeg", "image/gif"} {
		if m.Is(t) {
			return true
		}
	}
	return false
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// Ensure Walker implements Scanner
var _ Scanner = (*Walker)(nil)
