package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/quorumgate/breaker/internal/domain/audit"
	"github.com/quorumgate/breaker/internal/domain/threat"
)

// Request type names carried in the message envelope.
const (
	TypeSubmitApproval    = "SubmitApproval"
	TypeCancelEscalation  = "CancelEscalation"
	TypeExecuteEscalation = "ExecuteEscalation"
	TypeSetLevel          = "SetLevel"
	TypePause             = "Pause"
	TypeUnpause           = "Unpause"
	TypeSetWithdrawal     = "SetWithdrawal"
	TypeRegisterModule    = "RegisterModule"
	TypeRemoveModule      = "RemoveModule"
	TypeListModules       = "ListModules"
	TypeSetRestriction    = "SetRestriction"
	TypeIsRestricted      = "IsRestricted"
	TypeNotify            = "Notify"
	TypeBroadcast         = "Broadcast"
	TypeStatus            = "Status"
	TypeCreditHolding     = "CreditHolding"
	TypeRecoverTokens     = "RecoverTokens"
	TypeShutdownCommand   = "ShutdownCommand"
)

// Message is the envelope for every request on the wire.
type Message struct {
	// Type names the request so the receiver can pick the payload shape.
	Type string `json:"type"`
	// Data is the type-specific payload.
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMessage wraps a payload into an envelope of the given type.
func NewMessage(msgType string, payload any) (*Message, error) {
	if payload == nil {
		return &Message{Type: msgType}, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}

	return &Message{Type: msgType, Data: data}, nil
}

// ActorInfo identifies the caller on the wire.
type ActorInfo struct {
	// Hostname is the machine the call originated from.
	Hostname string `json:"hostname"`
	// Username is the account the role store knows the caller by.
	Username string `json:"username"`
}

// ActorFromDomain converts a domain actor to its wire form.
func ActorFromDomain(a *threat.Actor) *ActorInfo {
	if a == nil {
		return nil
	}

	return &ActorInfo{
		Hostname: a.Hostname,
		Username: a.Username,
	}
}

// Domain converts the wire actor back to the domain form.
func (a *ActorInfo) Domain() *threat.Actor {
	if a == nil {
		return nil
	}

	return &threat.Actor{
		Hostname: a.Hostname,
		Username: a.Username,
	}
}

// ActorRequest is the payload for operations that carry only the caller.
type ActorRequest struct {
	Actor *ActorInfo `json:"actor"`
}

// SetLevelRequest asks for a direct, non-Critical level change.
type SetLevelRequest struct {
	Actor *ActorInfo `json:"actor"`
	Level uint8      `json:"level"`
}

// SetWithdrawalRequest configures emergency withdrawal.
type SetWithdrawalRequest struct {
	Actor      *ActorInfo `json:"actor"`
	Enabled    bool       `json:"enabled"`
	PenaltyBps uint32     `json:"penalty_bps"`
}

// ModuleRequest names a module for registration or removal.
type ModuleRequest struct {
	Actor  *ActorInfo `json:"actor"`
	Module string     `json:"module"`
}

// ListModulesRequest asks for one page of the aware registry.
type ListModulesRequest struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

// SetRestrictionRequest configures an operation's minimum restricted level.
type SetRestrictionRequest struct {
	Actor     *ActorInfo `json:"actor"`
	Operation string     `json:"operation"`
	Minimum   uint8      `json:"minimum"`
}

// IsRestrictedRequest asks whether an operation is currently disallowed.
type IsRestrictedRequest struct {
	Operation string `json:"operation"`
}

// NotifyRequest asks the controller to deliver a shutdown command.
type NotifyRequest struct {
	Actor  *ActorInfo `json:"actor"`
	Module string     `json:"module"`
	Level  uint8      `json:"level"`
}

// BroadcastRequest asks the controller to notify every registered module.
type BroadcastRequest struct {
	Actor *ActorInfo `json:"actor"`
	Level uint8      `json:"level"`
}

// HoldingRequest credits or recovers controller-held assets.
type HoldingRequest struct {
	Actor  *ActorInfo `json:"actor"`
	Asset  string     `json:"asset"`
	Amount uint64     `json:"amount"`
}

// ShutdownCommand is the outbound hook payload sent to a module agent.
type ShutdownCommand struct {
	// Level is the threat level the module must react to.
	Level uint8 `json:"level"`
	// IssuedAt is when the controller issued the command.
	IssuedAt time.Time `json:"issued_at"`
	// Token authenticates the controller to the agent.
	Token string `json:"token,omitempty"`
}

// EscalationInfo is the wire form of the escalation workflow status.
type EscalationInfo struct {
	ProposalID     uint64    `json:"proposal_id"`
	Approvals      int       `json:"approvals"`
	Required       int       `json:"required"`
	TimelockActive bool      `json:"timelock_active"`
	TimelockStart  time.Time `json:"timelock_start,omitzero"`
	ExecutableAt   time.Time `json:"executable_at,omitzero"`
}

// ListModulesResponse is one page of the aware registry.
type ListModulesResponse struct {
	Modules []string `json:"modules"`
	Total   uint64   `json:"total"`
}

// IsRestrictedResponse answers a restriction query.
type IsRestrictedResponse struct {
	Restricted bool `json:"restricted"`
}

// BroadcastInfo is the wire form of a broadcast report.
type BroadcastInfo struct {
	Level    uint8             `json:"level"`
	Notified []string          `json:"notified,omitempty"`
	Skipped  []string          `json:"skipped,omitempty"`
	Failed   map[string]string `json:"failed,omitempty"`
}

// StatusResponse is the controller's full status view.
type StatusResponse struct {
	State      *threat.State  `json:"state"`
	Escalation EscalationInfo `json:"escalation"`
	Audit      []audit.Record `json:"audit,omitempty"`
}
