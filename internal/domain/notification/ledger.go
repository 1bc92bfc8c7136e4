// Package notification tracks which modules were already told about which
// threat level, so broadcasts cannot be replayed inside the cooldown window.
package notification

import (
	"errors"
	"sort"
	"time"

	"github.com/quorumgate/breaker/internal/domain/threat"
)

// ErrAlreadyProcessed is returned when a (module, level) pair was already
// notified inside the cooldown window.
var ErrAlreadyProcessed = errors.New("notification already processed")

// DefaultCooldown is the minimum time between repeat notifications for the
// same (module, level) pair.
const DefaultCooldown = 24 * time.Hour

// key identifies one ledger entry.
type key struct {
	module string
	level  threat.Level
}

// Ledger is the per (module, level) idempotency record store.
type Ledger struct {
	cooldown time.Duration
	entries  map[key]threat.NotificationRecord
}

// New creates a ledger with the given cooldown window.
// A non-positive cooldown falls back to DefaultCooldown.
func New(cooldown time.Duration) *Ledger {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}

	return &Ledger{
		cooldown: cooldown,
		entries:  make(map[key]threat.NotificationRecord),
	}
}

// Check returns ErrAlreadyProcessed when the pair was notified within the
// cooldown window. Entries older than the window no longer block.
func (l *Ledger) Check(module string, level threat.Level, now time.Time) error {
	record, ok := l.entries[key{module: module, level: level}]
	if ok && record.Processed && now.Sub(record.At) < l.cooldown {
		return ErrAlreadyProcessed
	}

	return nil
}

// Mark records a successfully processed notification.
// It must only be called after the module's shutdown hook succeeded.
func (l *Ledger) Mark(module string, level threat.Level, now time.Time) {
	l.entries[key{module: module, level: level}] = threat.NotificationRecord{
		Module:    module,
		Level:     level,
		Processed: true,
		At:        now,
	}
}

// Records exports the ledger entries in a stable order for persistence.
func (l *Ledger) Records() []threat.NotificationRecord {
	out := make([]threat.NotificationRecord, 0, len(l.entries))
	for _, record := range l.entries {
		out = append(out, record)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Module != out[j].Module {
			return out[i].Module < out[j].Module
		}

		return out[i].Level < out[j].Level
	})

	return out
}

// Restore replaces the ledger contents with persisted records.
func (l *Ledger) Restore(records []threat.NotificationRecord) {
	l.entries = make(map[key]threat.NotificationRecord, len(records))

	for _, record := range records {
		l.entries[key{module: record.Module, level: record.Level}] = record
	}
}
