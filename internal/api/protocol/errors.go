package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/quorumgate/breaker/internal/domain/escalation"
	"github.com/quorumgate/breaker/internal/domain/notification"
	"github.com/quorumgate/breaker/internal/domain/registry"
	"github.com/quorumgate/breaker/internal/domain/threat"
)

// Stable error codes carried in responses.
const (
	CodeAlreadyCritical      = "ALREADY_CRITICAL"
	CodeNoEscalation         = "NO_ESCALATION"
	CodeTimelockNotExpired   = "TIMELOCK_NOT_EXPIRED"
	CodeUseEscalation        = "USE_ESCALATION"
	CodeCannotUnpause        = "CANNOT_UNPAUSE"
	CodeInvalidLevel         = "INVALID_LEVEL"
	CodeLevelNotActive       = "LEVEL_NOT_ACTIVE"
	CodeAlreadyProcessed     = "ALREADY_PROCESSED"
	CodeNotRegistered        = "NOT_REGISTERED"
	CodeEmptyAddress         = "EMPTY_ADDRESS"
	CodeLimitZero            = "LIMIT_ZERO"
	CodePenaltyTooHigh       = "PENALTY_TOO_HIGH"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeRoleStoreUnavailable = "ROLE_STORE_UNAVAILABLE"
	CodeRecoveryUnset        = "RECOVERY_UNSET"
	CodeAmountZero           = "AMOUNT_ZERO"
	CodeInsufficientFunds    = "INSUFFICIENT_FUNDS"
	CodeModuleUnreachable    = "MODULE_UNREACHABLE"
	CodeBadRequest           = "BAD_REQUEST"
	CodeInternal             = "INTERNAL"
)

// codeTable pairs sentinel errors with their wire codes.
// Order matters: the first match wins.
//
//nolint:gochecknoglobals // Lookup table shared by both mapping directions.
var codeTable = []struct {
	err  error
	code string
}{
	{threat.ErrAlreadyCritical, CodeAlreadyCritical},
	{escalation.ErrNoEscalationInProgress, CodeNoEscalation},
	{escalation.ErrTimelockNotExpired, CodeTimelockNotExpired},
	{threat.ErrUseEscalationForCritical, CodeUseEscalation},
	{threat.ErrCannotUnpauseAtCritical, CodeCannotUnpause},
	{threat.ErrLevelNotActive, CodeLevelNotActive},
	{threat.ErrInvalidLevel, CodeInvalidLevel},
	{notification.ErrAlreadyProcessed, CodeAlreadyProcessed},
	{registry.ErrNotRegistered, CodeNotRegistered},
	{registry.ErrEmptyAddress, CodeEmptyAddress},
	{registry.ErrLimitIsZero, CodeLimitZero},
	{threat.ErrPenaltyTooHigh, CodePenaltyTooHigh},
	{threat.ErrRoleStoreUnavailable, CodeRoleStoreUnavailable},
	{threat.ErrUnauthorized, CodeUnauthorized},
	{threat.ErrRecoveryAccountUnset, CodeRecoveryUnset},
	{threat.ErrAmountZero, CodeAmountZero},
	{threat.ErrInsufficientHoldings, CodeInsufficientFunds},
	{threat.ErrShutdownHookFailed, CodeModuleUnreachable},
}

// Response is the single reply shape for every request.
type Response struct {
	// OK reports whether the operation succeeded.
	OK bool `json:"ok"`
	// ErrorCode is the stable code for failed operations.
	ErrorCode string `json:"error_code,omitempty"`
	// Error is the human-readable failure message.
	Error string `json:"error,omitempty"`
	// Data is the type-specific result payload.
	Data json.RawMessage `json:"data,omitempty"`
}

// OKResponse builds a success response around an optional payload.
func OKResponse(payload any) (*Response, error) {
	if payload == nil {
		return &Response{OK: true}, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal response payload: %w", err)
	}

	return &Response{OK: true, Data: data}, nil
}

// ErrorResponse builds a failure response carrying the error's code.
func ErrorResponse(err error) *Response {
	return &Response{
		OK:        false,
		ErrorCode: CodeForError(err),
		Error:     err.Error(),
	}
}

// CodeForError maps an error to its stable wire code.
func CodeForError(err error) string {
	for _, entry := range codeTable {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}

	return CodeInternal
}

// Err reconstructs a matchable error from a failed response.
// Known codes map back to the sentinel, so errors.Is works across the wire.
func (r *Response) Err() error {
	if r.OK {
		return nil
	}

	for _, entry := range codeTable {
		if r.ErrorCode == entry.code {
			return fmt.Errorf("%s: %w", r.Error, entry.err)
		}
	}

	if r.Error == "" {
		return fmt.Errorf("request failed with code %s", r.ErrorCode)
	}

	return errors.New(r.Error)
}
