//go:build linux

package watcher

import (
	"path/filepath"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// EventType represents the type of device event
type EventType int

const (
	EventAdded EventType = iota
	EventRemoved
)

// Event represents a capture device node appearing or disappearing
type Event struct {
	Type EventType
	Path string // e.g. /dev/video2
}

var videoNode = regexp.MustCompile(`^video[0-9]+$`)

// Watcher notices video nodes coming and going under /dev using inotify,
// so the device list refreshes without restarting the app
type Watcher struct {
	fsw     *fsnotify.Watcher
	eventCh chan Event
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
}

func New() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw:     fsw,
		eventCh: make(chan Event, 100),
		done:    make(chan struct{}),
	}, nil
}

func (w *Watcher) Events() <-chan Event {
	return w.eventCh
}

// Watch registers the directory holding device nodes, normally /dev
func (w *Watcher) Watch(dir string) error {
	return w.fsw.Add(dir)
}

// Start begins delivering device events
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.run()
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// inotify overflow or similar; the next enumeration heals it
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !videoNode.MatchString(filepath.Base(ev.Name)) {
		return
	}

	var out Event
	switch {
	case ev.Op.Has(fsnotify.Create):
		out = Event{Type: EventAdded, Path: ev.Name}
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		out = Event{Type: EventRemoved, Path: ev.Name}
	default:
		return
	}

	select {
	case w.eventCh <- out:
	default:
	}
}

func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()
	close(w.eventCh)
	return err
}
