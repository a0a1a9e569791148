package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// ScanRecord is one decoded code. Records live in the in-memory ledger only;
// restarting the process forgets them.
type ScanRecord struct {
	ID        ulid.ULID
	Payload   string
	Symbology string // as reported by the decode engine, e.g. "QR_CODE"
	DecodedAt time.Time
}

// NewScanRecord stamps a record with a fresh ULID and the current time.
func NewScanRecord(payload, symbology string) ScanRecord {
	return ScanRecord{
		ID:        ulid.Make(),
		Payload:   payload,
		Symbology: symbology,
		DecodedAt: time.Now(),
	}
}
