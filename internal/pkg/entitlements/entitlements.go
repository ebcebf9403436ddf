package entitlements

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when removing a subject the ledger does not track.
var ErrNotFound = errors.New("entitlement not found")

// Record is the ledger value for one subject. A stored record always has
// Paid set; absence from the ledger means "not tracked", not "unpaid".
type Record struct {
	SubjectID string    `json:"subject_id"`
	Paid      bool      `json:"paid"`
	GrantedAt time.Time `json:"granted_at"`
	PaymentID string    `json:"payment_id,omitempty"`
}

// Ledger is the process-wide, in-memory map of active entitlements. It is
// safe for concurrent use and is not persisted.
type Ledger struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewLedger() *Ledger {
	return &Ledger{records: make(map[string]Record)}
}


// Upsert stores rec under subjectID, last write wins. Subjects are keyed
// verbatim: "Alice@Example.com" and "alice@example.com" are distinct. A repeated write for
// the same payment keeps the original record, so redelivery of a payment
// never changes the ledger. It reports whether the ledger changed.
func (l *Ledger) Upsert(subjectID string, rec Record) bool {
	if strings.TrimSpace(subjectID) == "" {
		return false
	}
	key := subjectID
	rec.SubjectID = key
	rec.Paid = true

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.records[key]; ok && rec.PaymentID != "" && existing.PaymentID == rec.PaymentID {
		return false
	}
	l.records[key] = rec
	return true
}

// Remove deletes exactly one subject, failing with ErrNotFound when absent.
func (l *Ledger) Remove(subjectID string) error {
	key := subjectID

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.records[key]; !ok {
		return ErrNotFound
	}
	delete(l.records, key)
	return nil
}

func (l *Ledger) Contains(subjectID string) bool {
	key := subjectID

	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.records[key]
	return ok
}

func (l *Ledger) Get(subjectID string) (Record, bool) {
	key := subjectID

	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[key]
	return rec, ok
}

// List returns a copy of all records ordered by subject.
func (l *Ledger) List() []Record {
	l.mu.RLock()
	out := make([]Record, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, rec)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SubjectID < out[j].SubjectID })
	return out
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
