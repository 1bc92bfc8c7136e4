package threat

import "errors"

var (
	// ErrInvalidLevel is returned when a level outside the defined ordinals is supplied.
	ErrInvalidLevel = errors.New("invalid threat level")
	// ErrAlreadyCritical is returned when an approval is submitted while the system is already at Critical.
	ErrAlreadyCritical = errors.New("threat level is already critical")
	// ErrUseEscalationForCritical is returned when a caller tries to set Critical directly.
	ErrUseEscalationForCritical = errors.New("critical level requires the escalation workflow")
	// ErrCannotUnpauseAtCritical is returned when unpause is requested while the level is Critical.
	ErrCannotUnpauseAtCritical = errors.New("cannot unpause while threat level is critical")
	// ErrLevelNotActive is returned when a notification targets a level above the current one.
	ErrLevelNotActive = errors.New("requested level is not active")
	// ErrPenaltyTooHigh is returned when a withdrawal penalty exceeds the configured maximum.
	ErrPenaltyTooHigh = errors.New("withdrawal penalty exceeds maximum")
	// ErrUnauthorized is returned when the caller does not hold the required role.
	ErrUnauthorized = errors.New("caller does not hold the required role")
	// ErrRoleStoreUnavailable is returned when the role store cannot answer; callers are blocked, never allowed through.
	ErrRoleStoreUnavailable = errors.New("role store unavailable")
	// ErrRecoveryAccountUnset is returned when token recovery is requested without a configured recovery account.
	ErrRecoveryAccountUnset = errors.New("recovery account is not configured")
	// ErrAmountZero is returned when a token recovery specifies a zero amount.
	ErrAmountZero = errors.New("amount must be positive")
	// ErrInsufficientHoldings is returned when the controller holds less than the requested recovery amount.
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	// ErrShutdownHookFailed is returned when a module's shutdown hook errors or times out.
	ErrShutdownHookFailed = errors.New("module shutdown hook failed")
)
