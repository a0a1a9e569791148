package core

import (
	"github.com/lumipallolabs/qrlens/internal/capture"
	"github.com/lumipallolabs/qrlens/internal/model"
	"github.com/lumipallolabs/qrlens/internal/session"
)

// Event represents a state change from the controller
type Event interface {
	isEvent()
}

// PermissionChangedEvent is emitted when access negotiation moves
type PermissionChangedEvent struct {
	State capture.PermissionState
	Code  capture.Code // meaningful when State is Denied or Error
}

func (PermissionChangedEvent) isEvent() {}

// DevicesChangedEvent is emitted after every (re-)enumeration
type DevicesChangedEvent struct {
	Devices  []model.Device
	Selected int
}

func (DevicesChangedEvent) isEvent() {}

// SessionChangedEvent is emitted when the scan lifecycle moves
type SessionChangedEvent struct {
	State session.State
	// Device is the id of the device involved, empty on a plain stop
	Device string
}

func (SessionChangedEvent) isEvent() {}

// ScanCapturedEvent is emitted when a code is decoded and recorded
type ScanCapturedEvent struct {
	Record model.ScanRecord
}

func (ScanCapturedEvent) isEvent() {}

// ScanFaultEvent is emitted when an active stream dies mid-scan
type ScanFaultEvent struct {
	Code capture.Code
	Err  error
}

func (ScanFaultEvent) isEvent() {}

// HistoryChangedEvent is emitted when the ledger is cleared
type HistoryChangedEvent struct {
	Records []model.ScanRecord
}

func (HistoryChangedEvent) isEvent() {}

// ErrorEvent is emitted when a background operation fails
type ErrorEvent struct {
	Err error
}

func (ErrorEvent) isEvent() {}
