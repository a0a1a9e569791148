//go:build !linux

package watcher

// EventType represents the type of device event
type EventType int

const (
	EventAdded EventType = iota
	EventRemoved
)

// Event represents a capture device node appearing or disappearing
type Event struct {
	Type EventType
	Path string
}

// Watcher is a stub on platforms without a capture backend; hotplug
// refresh only matters where scanning works in the first place
type Watcher struct {
	eventCh chan Event
}

// New creates a new device watcher (stub)
func New() (*Watcher, error) {
	return &Watcher{
		eventCh: make(chan Event, 100),
	}, nil
}

// Events returns the channel for receiving device events
func (w *Watcher) Events() <-chan Event {
	return w.eventCh
}

// Watch registers a device directory (stub - does nothing)
func (w *Watcher) Watch(dir string) error {
	return nil
}

// Start begins watching for events (stub - does nothing)
func (w *Watcher) Start() {
}

// Stop stops the watcher (stub)
func (w *Watcher) Stop() error {
	close(w.eventCh)
	return nil
}
