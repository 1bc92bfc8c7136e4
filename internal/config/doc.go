// Package config defines the settings used by the breaker binaries and
// provides helpers to load, validate and save them in YAML format.
//
// Validation fills defaults for every optional field, so the rest of the
// code can rely on the escalation, cooldown and timeout knobs being set.
package config
