package core

import (
	"github.com/lumipallolabs/qrlens/internal/capture"
	"github.com/lumipallolabs/qrlens/internal/model"
	"github.com/lumipallolabs/qrlens/internal/session"
)

// AppState holds the complete application state (read-only view)
type AppState struct {
	Permission     capture.PermissionState
	PermissionCode capture.Code // last failure code, when Denied/Error
	Devices        []model.Device
	Selected       int
	Session        session.State
	ActiveDevice   string // device id feeding the session, empty when idle
	Records        []model.ScanRecord
	ScansLifetime  int64
	Profile        capture.Profile
}

// SelectedDevice returns the currently selected device, if any
func (s AppState) SelectedDevice() (model.Device, bool) {
	if s.Selected < 0 || s.Selected >= len(s.Devices) {
		return model.Device{}, false
	}
	return s.Devices[s.Selected], true
}

// CanScan reports whether a scan could be started right now
func (s AppState) CanScan() bool {
	return s.Permission == capture.PermissionGranted &&
		s.Session == session.StateIdle &&
		len(s.Devices) > 0
}
