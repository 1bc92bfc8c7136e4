// Package controller implements the emergency-control root service.
//
// It composes the escalation workflow, the aware-module registry, the
// restriction table and the notification ledger behind a single mutex,
// authorizes every mutating operation through the role store, and persists
// a full snapshot after each change. Notifications are fail-closed: the
// ledger records a (module, level) pair only after the module's shutdown
// hook succeeded. Read queries (restriction checks, listings, status) are
// fail-open and lock-friendly.
package controller
