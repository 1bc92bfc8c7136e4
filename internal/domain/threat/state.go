package threat

import "time"

// Actor identifies who performed an action in the system.
type Actor struct {
	// Hostname is the machine name where the action was performed.
	Hostname string `json:"hostname"`
	// Username is the account the role store knows the caller by.
	Username string `json:"username"`
}

// Clone returns a deep copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// Account returns the identifier used for role lookups.
func (a *Actor) Account() string {
	if a == nil {
		return ""
	}

	return a.Username
}

// EscalationState is the serializable state of the escalation workflow.
type EscalationState struct {
	// ProposalID is the current vote generation; votes stamped with an older
	// generation are stale.
	ProposalID uint64 `json:"proposal_id"`
	// Votes maps approver accounts to the generation they last voted in.
	Votes map[string]uint64 `json:"votes,omitempty"`
	// ApprovalCount is the number of valid votes for the current proposal.
	ApprovalCount int `json:"approval_count"`
	// TimelockStart is when the quorum was reached and the timelock began.
	TimelockStart time.Time `json:"timelock_start,omitzero"`
	// TimelockActive reports whether the timelock is currently running.
	TimelockActive bool `json:"timelock_active"`
}

// NotificationRecord is one ledger entry for a (module, level) broadcast.
type NotificationRecord struct {
	// Module is the notified module's address.
	Module string `json:"module"`
	// Level is the threat level the module was notified about.
	Level Level `json:"level"`
	// Processed reports whether the module's shutdown hook succeeded.
	Processed bool `json:"processed"`
	// At is when the notification was processed.
	At time.Time `json:"at"`
}

// State is the complete persisted controller state.
// It is written as one document so a crash can only ever leave the previous
// or the next consistent snapshot on disk.
type State struct {
	// Timestamp is when the state was last changed.
	Timestamp time.Time `json:"timestamp"`
	// LastActor is who last changed the state.
	LastActor *Actor `json:"last_actor,omitempty"`
	// Level is the current threat level.
	Level Level `json:"level"`
	// SystemPaused reports whether the system is paused.
	SystemPaused bool `json:"system_paused"`
	// WithdrawalEnabled reports whether emergency withdrawal is enabled.
	WithdrawalEnabled bool `json:"withdrawal_enabled"`
	// WithdrawalPenaltyBps is the emergency withdrawal penalty in basis points.
	WithdrawalPenaltyBps uint32 `json:"withdrawal_penalty_bps"`
	// Escalation is the escalation workflow state.
	Escalation EscalationState `json:"escalation"`
	// Modules are the registered aware-module addresses, in registry order.
	Modules []string `json:"modules,omitempty"`
	// Restrictions maps operation identifiers to their minimum restricted level.
	Restrictions map[string]Level `json:"restrictions,omitempty"`
	// Notifications are the ledger records of processed broadcasts.
	Notifications []NotificationRecord `json:"notifications,omitempty"`
	// Holdings are the asset balances held by the controller.
	Holdings map[string]uint64 `json:"holdings,omitempty"`
	// CriticalReachedAt is when the system last entered Critical.
	CriticalReachedAt time.Time `json:"critical_reached_at,omitzero"`
}

// Clone returns a deep copy of the state to avoid leaking internal references.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}

	cloned := *s
	cloned.LastActor = s.LastActor.Clone()

	if s.Escalation.Votes != nil {
		votes := make(map[string]uint64, len(s.Escalation.Votes))
		for account, generation := range s.Escalation.Votes {
			votes[account] = generation
		}

		cloned.Escalation.Votes = votes
	}

	if s.Modules != nil {
		cloned.Modules = append([]string(nil), s.Modules...)
	}

	if s.Restrictions != nil {
		restrictions := make(map[string]Level, len(s.Restrictions))
		for operation, level := range s.Restrictions {
			restrictions[operation] = level
		}

		cloned.Restrictions = restrictions
	}

	if s.Notifications != nil {
		cloned.Notifications = append([]NotificationRecord(nil), s.Notifications...)
	}

	if s.Holdings != nil {
		holdings := make(map[string]uint64, len(s.Holdings))
		for asset, amount := range s.Holdings {
			holdings[asset] = amount
		}

		cloned.Holdings = holdings
	}

	return &cloned
}
