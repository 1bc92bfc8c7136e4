package threat

import (
	"fmt"
	"strconv"
	"strings"
)

// Level is the ordinal severity state of the protected system.
type Level uint8

const (
	// Normal means no restrictions are in effect.
	Normal Level = iota
	// Caution is the first elevated level; selected operations may be restricted.
	Caution
	// Alert restricts most value-moving operations and force-enables emergency withdrawal.
	Alert
	// Critical is the full shutdown level, reachable only through the escalation workflow.
	Critical
)

// levelNames maps levels to their canonical lowercase names.
//
//nolint:gochecknoglobals // Lookup table shared by String and ParseLevel.
var levelNames = map[Level]string{
	Normal:   "normal",
	Caution:  "caution",
	Alert:    "alert",
	Critical: "critical",
}

// Valid reports whether the level is one of the defined ordinals.
func (l Level) Valid() bool {
	return l <= Critical
}

// String returns the canonical name of the level.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}

	return fmt.Sprintf("level(%d)", uint8(l))
}

// ParseLevel accepts a level name or its ordinal digit.
func ParseLevel(s string) (Level, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	for level, name := range levelNames {
		if normalized == name {
			return level, nil
		}
	}

	if n, err := strconv.ParseUint(normalized, 10, 8); err == nil {
		level := Level(n)
		if level.Valid() {
			return level, nil
		}
	}

	return Normal, fmt.Errorf("unknown threat level %q: %w", s, ErrInvalidLevel)
}
