package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/quorumgate/breaker/internal/domain/audit"
	"github.com/quorumgate/breaker/internal/domain/escalation"
	"github.com/quorumgate/breaker/internal/domain/notification"
	"github.com/quorumgate/breaker/internal/domain/registry"
	"github.com/quorumgate/breaker/internal/domain/restriction"
	"github.com/quorumgate/breaker/internal/domain/threat"
	"github.com/quorumgate/breaker/internal/logger"
	repo "github.com/quorumgate/breaker/internal/repository/state"
)

// Role names the controller checks against the role store.
const (
	// RoleOperator may change levels, pause, manage modules and broadcast.
	RoleOperator = "operator"
	// RoleGuardian may submit, cancel and execute escalation approvals.
	RoleGuardian = "guardian"
	// RoleAdmin may do everything, including token recovery.
	RoleAdmin = "admin"
)

// RoleStore answers whether an account holds a role.
// An error blocks the caller; it is never interpreted as an allow.
type RoleStore interface {
	HasRole(ctx context.Context, role, account string) (bool, error)
}

// Notifier delivers a shutdown command to one module.
// Implementations must bound the call in time.
type Notifier interface {
	Shutdown(ctx context.Context, module string, level threat.Level) error
}

// Config carries the controller's operating parameters.
type Config struct {
	// RequiredApprovals is the quorum target for the Critical escalation.
	RequiredApprovals int
	// TimelockDuration is the wait between quorum and permitted execution.
	TimelockDuration time.Duration
	// NotificationCooldown is the repeat-notification window.
	NotificationCooldown time.Duration
	// MaxWithdrawalPenaltyBps caps the emergency withdrawal penalty.
	MaxWithdrawalPenaltyBps uint32
	// RecoveryAccount receives recovered assets; empty disables recovery.
	RecoveryAccount string
	// BroadcastConcurrency bounds the broadcast fan-out; zero means 8.
	BroadcastConcurrency int
}

// Status is the read-only view of the controller returned to clients.
type Status struct {
	// State is a snapshot of the persisted controller state.
	State *threat.State
	// Escalation is the live escalation workflow status.
	Escalation escalation.Status
	// Audit holds the most recent operation records, newest first.
	Audit []audit.Record
}

// Controller is the emergency-control root: it owns the threat level, the
// pause and withdrawal flags, the escalation workflow, the aware-module
// registry, the restriction table and the notification ledger.
//
// All mutating operations take the write lock, so invariants that require
// atomic read-modify-write (vote generations, registry indexes, ledger
// cooldowns) hold without further coordination. Read queries take the read
// lock and return copies.
type Controller struct {
	cfg      Config
	roles    RoleStore
	notifier Notifier
	repo     repo.Repository
	trail    *audit.Trail

	mu                   sync.RWMutex
	level                threat.Level
	paused               bool
	withdrawalEnabled    bool
	withdrawalPenaltyBps uint32
	workflow             *escalation.Workflow
	modules              *registry.Registry
	restrictions         *restriction.Table
	ledger               *notification.Ledger
	holdings             map[string]uint64
	lastActor            *threat.Actor
	timestamp            time.Time
	criticalReachedAt    time.Time
}

// New creates a controller, restoring persisted state when available.
func New(ctx context.Context, cfg Config, roles RoleStore, notifier Notifier, repository repo.Repository) (*Controller, error) {
	c := &Controller{
		cfg:          cfg,
		roles:        roles,
		notifier:     notifier,
		repo:         repository,
		trail:        audit.NewTrail(0),
		workflow:     escalation.New(cfg.RequiredApprovals, cfg.TimelockDuration),
		modules:      registry.New(),
		restrictions: restriction.New(),
		ledger:       notification.New(cfg.NotificationCooldown),
		holdings:     make(map[string]uint64),
		timestamp:    time.Now(),
	}

	if repository == nil {
		return c, nil
	}

	state, err := repository.Load(ctx)
	switch {
	case err == nil:
		c.restore(state)
	case errors.Is(err, repo.ErrNotFound):
		// Keep default state.
	default:
		return nil, fmt.Errorf("load state: %w", err)
	}

	return c, nil
}

// restore replaces in-memory state with a persisted snapshot.
func (c *Controller) restore(state *threat.State) {
	if state == nil {
		return
	}

	c.level = state.Level
	c.paused = state.SystemPaused
	c.withdrawalEnabled = state.WithdrawalEnabled
	c.withdrawalPenaltyBps = state.WithdrawalPenaltyBps
	c.workflow.Restore(state.Escalation)
	c.modules.Restore(state.Modules)
	c.restrictions.Restore(state.Restrictions)
	c.ledger.Restore(state.Notifications)
	c.lastActor = state.LastActor.Clone()
	c.timestamp = state.Timestamp
	c.criticalReachedAt = state.CriticalReachedAt

	c.holdings = make(map[string]uint64, len(state.Holdings))
	for asset, amount := range state.Holdings {
		c.holdings[asset] = amount
	}
}

// snapshotLocked assembles the persisted state form. Callers hold the lock.
func (c *Controller) snapshotLocked() *threat.State {
	holdings := make(map[string]uint64, len(c.holdings))
	for asset, amount := range c.holdings {
		holdings[asset] = amount
	}

	return &threat.State{
		Timestamp:            c.timestamp,
		LastActor:            c.lastActor.Clone(),
		Level:                c.level,
		SystemPaused:         c.paused,
		WithdrawalEnabled:    c.withdrawalEnabled,
		WithdrawalPenaltyBps: c.withdrawalPenaltyBps,
		Escalation:           c.workflow.Snapshot(),
		Modules:              c.modules.Addresses(),
		Restrictions:         c.restrictions.Snapshot(),
		Notifications:        c.ledger.Records(),
		Holdings:             holdings,
		CriticalReachedAt:    c.criticalReachedAt,
	}
}

// persistLocked saves the current state. Callers hold the write lock.
func (c *Controller) persistLocked(ctx context.Context, actor *threat.Actor) error {
	c.timestamp = time.Now()
	c.lastActor = actor.Clone()

	if c.repo == nil {
		return nil
	}

	if err := c.repo.Save(ctx, c.snapshotLocked()); err != nil {
		logger.Errorf(ctx, "Failed to persist controller state: %v", err)

		return fmt.Errorf("persist state: %w", err)
	}

	return nil
}

// authorize checks that the actor holds the role (or admin).
// Role-store failures block the call.
func (c *Controller) authorize(ctx context.Context, actor *threat.Actor, role string) error {
	if actor == nil || actor.Account() == "" {
		return threat.ErrUnauthorized
	}

	ok, err := c.roles.HasRole(ctx, role, actor.Account())
	if err != nil {
		return fmt.Errorf("role lookup: %w", threat.ErrRoleStoreUnavailable)
	}

	if ok {
		return nil
	}

	if role != RoleAdmin {
		ok, err = c.roles.HasRole(ctx, RoleAdmin, actor.Account())
		if err != nil {
			return fmt.Errorf("role lookup: %w", threat.ErrRoleStoreUnavailable)
		}

		if ok {
			return nil
		}
	}

	return fmt.Errorf("account %q lacks role %q: %w", actor.Account(), role, threat.ErrUnauthorized)
}

// record appends an audit record and mirrors it to the log.
func (c *Controller) record(ctx context.Context, actor *threat.Actor, action string, details map[string]string, err error) {
	entry := c.trail.Append(actor.Account(), action, details, err)

	if err != nil {
		logger.WarnKV(ctx, "Operation failed",
			"audit_id", entry.ID, "action", action, "actor", entry.Actor, "error", entry.Error)

		return
	}

	logger.InfoKV(ctx, "Operation applied",
		"audit_id", entry.ID, "action", action, "actor", entry.Actor, "details", details)
}

// SetLevel changes the threat level along the direct, non-Critical path.
// Reaching Alert or above force-enables emergency withdrawal; returning to
// Normal clears withdrawal and pause and discards any pending escalation.
func (c *Controller) SetLevel(ctx context.Context, actor *threat.Actor, level threat.Level) (err error) {
	defer func() {
		c.record(ctx, actor, "set_level", map[string]string{"level": level.String()}, err)
	}()

	if err = c.authorize(ctx, actor, RoleOperator); err != nil {
		return err
	}

	if !level.Valid() {
		return threat.ErrInvalidLevel
	}

	if level == threat.Critical {
		return threat.ErrUseEscalationForCritical
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.level = level

	switch {
	case level >= threat.Alert:
		if !c.withdrawalEnabled {
			c.withdrawalEnabled = true
		}
	case level == threat.Normal:
		c.withdrawalEnabled = false
		c.paused = false
		c.workflow.Discard()
	}

	return c.persistLocked(ctx, actor)
}

// Pause halts the system independently of the threat level.
func (c *Controller) Pause(ctx context.Context, actor *threat.Actor) (err error) {
	defer func() {
		c.record(ctx, actor, "pause", nil, err)
	}()

	if err = c.authorize(ctx, actor, RoleOperator); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.paused = true

	return c.persistLocked(ctx, actor)
}

// Unpause resumes the system; it is refused while the level is Critical.
func (c *Controller) Unpause(ctx context.Context, actor *threat.Actor) (err error) {
	defer func() {
		c.record(ctx, actor, "unpause", nil, err)
	}()

	if err = c.authorize(ctx, actor, RoleOperator); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.level == threat.Critical {
		return threat.ErrCannotUnpauseAtCritical
	}

	c.paused = false

	return c.persistLocked(ctx, actor)
}

// SetWithdrawal configures emergency withdrawal and its penalty.
func (c *Controller) SetWithdrawal(ctx context.Context, actor *threat.Actor, enabled bool, penaltyBps uint32) (err error) {
	defer func() {
		c.record(ctx, actor, "set_withdrawal", map[string]string{
			"enabled": fmt.Sprintf("%t", enabled),
			"penalty": fmt.Sprintf("%d", penaltyBps),
		}, err)
	}()

	if err = c.authorize(ctx, actor, RoleOperator); err != nil {
		return err
	}

	if penaltyBps > c.cfg.MaxWithdrawalPenaltyBps {
		return fmt.Errorf("penalty %d exceeds %d: %w", penaltyBps, c.cfg.MaxWithdrawalPenaltyBps, threat.ErrPenaltyTooHigh)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.withdrawalEnabled = enabled
	c.withdrawalPenaltyBps = penaltyBps

	return c.persistLocked(ctx, actor)
}

// CurrentLevel returns the current threat level.
func (c *Controller) CurrentLevel(_ context.Context) threat.Level {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.level
}

// IsRestricted reports whether the operation is disallowed at the current
// level. It is a read query and never fails: unknown operations and internal
// trouble both read as "not restricted".
func (c *Controller) IsRestricted(_ context.Context, operation string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.restrictions.IsRestricted(operation, c.level)
}

// Status returns a consistent snapshot of the controller for display.
func (c *Controller) Status(_ context.Context) *Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return &Status{
		State:      c.snapshotLocked(),
		Escalation: c.workflow.Status(),
		Audit:      c.trail.Recent(20),
	}
}
