//go:build linux && cgo

package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"
	"golang.org/x/sys/unix"

	"github.com/lumipallolabs/qrlens/internal/logging"
	"github.com/lumipallolabs/qrlens/internal/model"
)

// videoMajor is the Linux character-device major number for V4L nodes.
const videoMajor = 81

func newPlatformBackend() Backend { return &v4l2Backend{} }

func platformProfile() (supported, deviceAccess bool) {
	info, err := os.Stat("/dev")
	return true, err == nil && info.IsDir()
}

type v4l2Backend struct{}

var _ Backend = (*v4l2Backend)(nil)

// Devices lists V4L capture nodes in numeric order. Sibling metadata
// nodes (sysfs index != 0) are skipped so one physical camera shows up
// once, and labels come from sysfs without opening the device.
func (b *v4l2Backend) Devices(ctx context.Context) ([]model.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, Classify(err)
	}
	matches, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, Classify(err)
	}
	type node struct {
		path string
		num  int
	}
	var nodes []node
	for _, path := range matches {
		num, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(path), "video"))
		if err != nil {
			continue
		}
		if !isVideoChardev(path) || !isCaptureNode(filepath.Base(path)) {
			continue
		}
		nodes = append(nodes, node{path: path, num: num})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].num < nodes[j].num })

	devices := make([]model.Device, 0, len(nodes))
	for i, nd := range nodes {
		label := sysfsLabel(filepath.Base(nd.path))
		devices = append(devices, model.Device{
			ID:     nd.path,
			Label:  label,
			Index:  i,
			Facing: model.ClassifyFacing(label),
		})
	}
	return devices, nil
}

func (b *v4l2Backend) Open(ctx context.Context, id string, cfg StreamConfig) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, Classify(err)
	}
	path := id
	if path == "" {
		devices, err := b.Devices(ctx)
		if err != nil {
			return nil, err
		}
		if len(devices) == 0 {
			return nil, &Failure{Code: CodeNoDeviceFound, Err: errors.New("no video capture nodes in /dev")}
		}
		pick := 0
		if cfg.FacingHint != model.FacingUnknown {
			for i, d := range devices {
				if d.Facing == cfg.FacingHint {
					pick = i
					break
				}
			}
		}
		path = devices[pick].ID
	}

	// MJPEG keeps the kernel copy small and every UVC camera speaks it.
	// Without explicit dimensions the driver picks its nearest mode.
	pix := v4l2.PixFormat{PixelFormat: v4l2.PixelFmtMJPEG}
	if cfg.Width > 0 && cfg.Height > 0 {
		pix.Width = uint32(cfg.Width)
		pix.Height = uint32(cfg.Height)
	}
	opts := []device.Option{device.WithPixFormat(pix)}
	if cfg.FPS > 0 {
		opts = append(opts, device.WithFPS(uint32(cfg.FPS)))
	}

	dev, err := device.Open(path, opts...)
	if err != nil {
		return nil, Classify(err)
	}

	// The stream outlives the Open call; its lifetime is governed by
	// Stop, not by the caller's context.
	sctx, cancel := context.WithCancel(context.Background())
	if err := dev.Start(sctx); err != nil {
		cancel()
		dev.Close()
		return nil, Classify(err)
	}

	s := &v4l2Stream{
		path:   path,
		dev:    dev,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.pump(dev.GetOutput())
	logging.Session.Printf("opened %s (%dx%d @%dfps)", path, cfg.Width, cfg.Height, cfg.FPS)
	return s, nil
}

func isVideoChardev(path string) bool {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false
	}
	if st.Mode&unix.S_IFMT != unix.S_IFCHR {
		return false
	}
	return unix.Major(uint64(st.Rdev)) == videoMajor
}

// isCaptureNode filters out the metadata companion nodes modern UVC
// cameras expose alongside the capture node.
func isCaptureNode(name string) bool {
	data, err := os.ReadFile("/sys/class/video4linux/" + name + "/index")
	if err != nil {
		// sysfs unavailable (containers); assume a capture node
		return true
	}
	return strings.TrimSpace(string(data)) == "0"
}

func sysfsLabel(name string) string {
	data, err := os.ReadFile("/sys/class/video4linux/" + name + "/name")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

type v4l2Stream struct {
	path   string
	dev    *device.Device
	cancel context.CancelFunc

	mu      sync.Mutex
	raw     []byte
	seq     uint64
	at      time.Time
	decoded Frame
	decSeq  uint64
	decOK   bool
	stopped bool
	err     error

	stopOnce sync.Once
	done     chan struct{}
}

var _ Stream = (*v4l2Stream)(nil)

func (s *v4l2Stream) Device() string { return s.path }

func (s *v4l2Stream) pump(frames <-chan []byte) {
	for buf := range frames {
		if len(buf) == 0 {
			continue
		}
		// go4vl reuses the buffer for the next frame; keep a copy.
		cp := make([]byte, len(buf))
		copy(cp, buf)
		s.mu.Lock()
		s.raw = cp
		s.seq++
		s.at = time.Now()
		s.mu.Unlock()
	}
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}
	// Frame channel closed without a Stop: the device went away.
	s.shutdown(&Failure{Code: CodeNoDeviceFound, Err: fmt.Errorf("%s: stream ended unexpectedly", s.path)})
}

// Latest decodes the most recent MJPEG frame, memoized per sequence
// number so repeated calls between frames stay cheap.
func (s *v4l2Stream) Latest() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raw == nil {
		return Frame{}, false
	}
	if s.decSeq == s.seq {
		return s.decoded, s.decOK
	}
	img, err := jpeg.Decode(bytes.NewReader(s.raw))
	s.decSeq = s.seq
	if err != nil {
		s.decOK = false
		return Frame{}, false
	}
	s.decoded = Frame{Image: img, Seq: s.seq, At: s.at}
	s.decOK = true
	return s.decoded, true
}

func (s *v4l2Stream) Done() <-chan struct{} { return s.done }

func (s *v4l2Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *v4l2Stream) Stop() { s.shutdown(nil) }

func (s *v4l2Stream) shutdown(cause error) {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.err = cause
		s.mu.Unlock()
		s.cancel()
		if err := s.dev.Close(); err != nil && cause == nil {
			logging.Session.Printf("close %s: %v", s.path, err)
		}
		close(s.done)
	})
}
