// Package audit keeps a bounded in-memory trail of controller operations.
// The durable audit record is the structured log; this trail backs the
// status query surface.
package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity is the number of records the trail retains.
const DefaultCapacity = 256

// Record is one audited controller operation.
type Record struct {
	// ID is a unique identifier for the record.
	ID string `json:"id"`
	// Time is when the operation completed.
	Time time.Time `json:"time"`
	// Actor is the account that performed the operation.
	Actor string `json:"actor"`
	// Action names the operation.
	Action string `json:"action"`
	// Details carries operation-specific fields.
	Details map[string]string `json:"details,omitempty"`
	// Error is the failure message, empty on success.
	Error string `json:"error,omitempty"`
}

// Trail is a fixed-capacity record buffer; the oldest records are dropped
// once capacity is reached.
type Trail struct {
	mu       sync.Mutex
	records  []Record
	capacity int
}

// NewTrail creates a trail retaining up to capacity records.
// A non-positive capacity falls back to DefaultCapacity.
func NewTrail(capacity int) *Trail {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Trail{
		capacity: capacity,
	}
}

// Append records an operation outcome and returns the stored record.
func (t *Trail) Append(actor, action string, details map[string]string, opErr error) Record {
	record := Record{
		ID:      uuid.NewString(),
		Time:    time.Now(),
		Actor:   actor,
		Action:  action,
		Details: details,
	}

	if opErr != nil {
		record.Error = opErr.Error()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.records = append(t.records, record)
	if len(t.records) > t.capacity {
		t.records = t.records[len(t.records)-t.capacity:]
	}

	return record
}

// Recent returns up to n records, newest first.
func (t *Trail) Recent(n int) []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n <= 0 || n > len(t.records) {
		n = len(t.records)
	}

	out := make([]Record, n)
	for i := range n {
		out[i] = t.records[len(t.records)-1-i]
	}

	return out
}
