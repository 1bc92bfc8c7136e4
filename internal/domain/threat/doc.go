// Package threat contains the core domain types for the emergency controller.
//
// It defines the ThreatLevel ordinal, the Actor performing operations, the
// persisted controller State with Clone helpers, and the sentinel errors the
// controller raises. Other domain packages build on these types.
package threat
