package session

// State tracks where the scan session stands. The only paths are
// Idle → Starting → Scanning → Stopping → Idle, with Starting falling
// straight back to Idle when acquisition fails.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateScanning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateScanning:
		return "scanning"
	case StateStopping:
		return "stopping"
	default:
		return "invalid"
	}
}
