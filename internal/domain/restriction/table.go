// Package restriction holds the table mapping operation identifiers to the
// minimum threat level at which they become disallowed.
package restriction

import "github.com/quorumgate/breaker/internal/domain/threat"

// Table maps operation identifiers to their minimum restricted level.
// An operation without an entry (or with Normal) is unrestricted.
type Table struct {
	min map[string]threat.Level
}

// New creates an empty table.
func New() *Table {
	return &Table{
		min: make(map[string]threat.Level),
	}
}

// Set configures the minimum level for an operation.
// Setting Normal clears the restriction.
func (t *Table) Set(operation string, minimum threat.Level) {
	if minimum == threat.Normal {
		delete(t.min, operation)

		return
	}

	t.min[operation] = minimum
}

// Min returns the configured minimum restricted level, Normal if unset.
func (t *Table) Min(operation string) threat.Level {
	return t.min[operation]
}

// IsRestricted reports whether the operation is disallowed at the current level.
func (t *Table) IsRestricted(operation string, current threat.Level) bool {
	minimum, ok := t.min[operation]

	return ok && current >= minimum
}

// Snapshot exports the table for persistence.
func (t *Table) Snapshot() map[string]threat.Level {
	out := make(map[string]threat.Level, len(t.min))
	for operation, minimum := range t.min {
		out[operation] = minimum
	}

	return out
}

// Restore replaces the table contents with a persisted snapshot.
func (t *Table) Restore(entries map[string]threat.Level) {
	t.min = make(map[string]threat.Level, len(entries))

	for operation, minimum := range entries {
		if minimum != threat.Normal {
			t.min[operation] = minimum
		}
	}
}
