// Package escalation implements the quorum-and-timelock workflow that gates
// the transition to the Critical threat level.
//
// Votes are generation-stamped: the workflow keeps a monotonically increasing
// proposal ID and records each vote against it, so invalidating all votes is
// a single counter increment rather than a scan of the vote map.
package escalation
