package escalation

import (
	"errors"
	"fmt"
	"time"

	"github.com/quorumgate/breaker/internal/domain/threat"
)

var (
	// ErrNoEscalationInProgress is returned when cancel or execute is called
	// with no votes recorded and no timelock running.
	ErrNoEscalationInProgress = errors.New("no escalation in progress")
	// ErrTimelockNotExpired is returned when execute is called before the
	// timelock delay has elapsed.
	ErrTimelockNotExpired = errors.New("timelock has not expired")
)

// Status describes the escalation workflow at a point in time.
type Status struct {
	// ProposalID is the current vote generation.
	ProposalID uint64
	// Approvals is the number of valid votes for the current proposal.
	Approvals int
	// Required is the quorum target.
	Required int
	// TimelockActive reports whether the timelock is running.
	TimelockActive bool
	// TimelockStart is when the quorum was reached.
	TimelockStart time.Time
	// ExecutableAt is the earliest time execute can succeed; zero when no
	// timelock is running.
	ExecutableAt time.Time
}

// Workflow is the quorum-and-timelock state machine gating the Critical level.
//
// Votes are stamped with the current proposal generation instead of being
// stored per proposal; advancing the generation invalidates every prior vote
// without touching the map.
type Workflow struct {
	required int
	delay    time.Duration

	proposalID     uint64
	votes          map[string]uint64
	count          int
	timelockStart  time.Time
	timelockActive bool
}

// New creates a workflow requiring the given number of distinct approvals
// before a timelock of the given duration starts.
// A quorum below one is raised to one.
func New(required int, delay time.Duration) *Workflow {
	if required < 1 {
		required = 1
	}

	return &Workflow{
		required:   required,
		delay:      delay,
		proposalID: 1,
		votes:      make(map[string]uint64),
	}
}

// Submit records an approval vote for the current proposal.
// It is idempotent per account per proposal. When the quorum is reached and
// no timelock is running yet, the timelock starts at now; later approvals
// never restart it.
func (w *Workflow) Submit(account string, now time.Time) Status {
	if w.votes[account] != w.proposalID {
		w.votes[account] = w.proposalID
		w.count++
	}

	if w.count >= w.required && !w.timelockActive {
		w.timelockActive = true
		w.timelockStart = now
	}

	return w.Status()
}

// Cancel aborts the escalation and invalidates all recorded votes.
func (w *Workflow) Cancel() error {
	if !w.InProgress() {
		return ErrNoEscalationInProgress
	}

	w.reset()

	return nil
}

// Execute completes the escalation once the timelock has expired.
// On success the workflow is reset; the caller applies the Critical-level
// side effects.
func (w *Workflow) Execute(now time.Time) error {
	if !w.timelockActive {
		return ErrNoEscalationInProgress
	}

	executableAt := w.timelockStart.Add(w.delay)
	if now.Before(executableAt) {
		return fmt.Errorf("executable at %s: %w", executableAt.Format(time.RFC3339), ErrTimelockNotExpired)
	}

	w.reset()

	return nil
}

// Discard resets the workflow if an escalation is in progress and is a no-op
// otherwise. It is used when the system returns to the Normal level.
func (w *Workflow) Discard() {
	if w.InProgress() {
		w.reset()
	}
}

// InProgress reports whether any vote is recorded or a timelock is running.
func (w *Workflow) InProgress() bool {
	return w.count > 0 || w.timelockActive
}

// Status returns the current workflow status.
func (w *Workflow) Status() Status {
	status := Status{
		ProposalID:     w.proposalID,
		Approvals:      w.count,
		Required:       w.required,
		TimelockActive: w.timelockActive,
		TimelockStart:  w.timelockStart,
	}

	if w.timelockActive {
		status.ExecutableAt = w.timelockStart.Add(w.delay)
	}

	return status
}

// Snapshot exports the workflow state for persistence.
// Stale vote stamps are dropped; only votes for the current proposal matter.
func (w *Workflow) Snapshot() threat.EscalationState {
	votes := make(map[string]uint64, w.count)

	for account, generation := range w.votes {
		if generation == w.proposalID {
			votes[account] = generation
		}
	}

	return threat.EscalationState{
		ProposalID:     w.proposalID,
		Votes:          votes,
		ApprovalCount:  w.count,
		TimelockStart:  w.timelockStart,
		TimelockActive: w.timelockActive,
	}
}

// Restore replaces the workflow state with a persisted snapshot.
func (w *Workflow) Restore(state threat.EscalationState) {
	w.proposalID = state.ProposalID
	if w.proposalID == 0 {
		w.proposalID = 1
	}

	w.votes = make(map[string]uint64, len(state.Votes))
	for account, generation := range state.Votes {
		w.votes[account] = generation
	}

	w.count = state.ApprovalCount
	w.timelockStart = state.TimelockStart
	w.timelockActive = state.TimelockActive
}

// reset invalidates every vote by advancing the proposal generation.
// The generation wraps to 1 on overflow; 0 is reserved for "never voted".
func (w *Workflow) reset() {
	w.proposalID++
	if w.proposalID == 0 {
		w.proposalID = 1
	}

	w.count = 0
	w.timelockActive = false
	w.timelockStart = time.Time{}
}
