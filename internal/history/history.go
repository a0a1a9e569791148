// Package history keeps the in-memory ledger of decoded codes.
package history

import (
	"sync"

	"github.com/lumipallolabs/qrlens/internal/model"
)

// DefaultLimit matches the ten-row history panel.
const DefaultLimit = 10

// Ledger is a bounded, newest-first list of scan records. It lives in
// memory only: a process restart forgets it, stopping and restarting the
// scan session does not.
type Ledger struct {
	mu      sync.Mutex
	limit   int
	records []model.ScanRecord
}

// NewLedger returns a ledger retaining the most recent limit records.
// limit <= 0 uses DefaultLimit.
func NewLedger(limit int) *Ledger {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Ledger{limit: limit}
}

// Record stamps a new record, prepends it, evicts anything beyond the
// limit and returns the stored record.
func (l *Ledger) Record(payload, symbology string) model.ScanRecord {
	rec := model.NewScanRecord(payload, symbology)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append([]model.ScanRecord{rec}, l.records...)
	if len(l.records) > l.limit {
		l.records = l.records[:l.limit]
	}
	return rec
}

// Records returns a newest-first snapshot.
func (l *Ledger) Records() []model.ScanRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.ScanRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len reports how many records are retained.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Clear empties the ledger.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
}
