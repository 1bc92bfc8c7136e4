// Package state persists the controller snapshot as a JSON document.
//
// The whole state is written in one atomic replace, keeping the on-disk
// registry, ledger and escalation data mutually consistent across crashes.
package state
