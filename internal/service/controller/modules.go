package controller

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quorumgate/breaker/internal/domain/registry"
	"github.com/quorumgate/breaker/internal/domain/threat"
	"github.com/quorumgate/breaker/internal/logger"
)

// defaultBroadcastConcurrency bounds the broadcast fan-out when the
// configuration does not say otherwise.
const defaultBroadcastConcurrency = 8

// BroadcastReport summarizes one broadcast operation.
type BroadcastReport struct {
	// Level is the threat level that was broadcast.
	Level threat.Level `json:"level"`
	// Notified lists modules whose shutdown hook succeeded.
	Notified []string `json:"notified,omitempty"`
	// Skipped lists modules inside their cooldown window.
	Skipped []string `json:"skipped,omitempty"`
	// Failed maps modules to the failure message of their shutdown hook.
	Failed map[string]string `json:"failed,omitempty"`
}

// RegisterModule adds a module address to the aware registry.
// Re-registering an existing module is a no-op.
func (c *Controller) RegisterModule(ctx context.Context, actor *threat.Actor, module string) (err error) {
	defer func() {
		c.record(ctx, actor, "register_module", map[string]string{"module": module}, err)
	}()

	if err = c.authorize(ctx, actor, RoleOperator); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	added, err := c.modules.Register(module)
	if err != nil {
		return err
	}

	if !added {
		return nil
	}

	return c.persistLocked(ctx, actor)
}

// RemoveModule deletes a module address from the aware registry.
func (c *Controller) RemoveModule(ctx context.Context, actor *threat.Actor, module string) (err error) {
	defer func() {
		c.record(ctx, actor, "remove_module", map[string]string{"module": module}, err)
	}()

	if err = c.authorize(ctx, actor, RoleOperator); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err = c.modules.Remove(module); err != nil {
		return err
	}

	return c.persistLocked(ctx, actor)
}

// ListModules returns one page of registered module addresses plus the total
// count. An offset past the end yields an empty page, never an error.
func (c *Controller) ListModules(_ context.Context, offset, limit uint64) ([]string, uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.modules.Page(offset, limit)
}

// SetRestriction configures the minimum threat level at which an operation
// becomes disallowed; Normal clears the restriction.
func (c *Controller) SetRestriction(ctx context.Context, actor *threat.Actor, operation string, minimum threat.Level) (err error) {
	defer func() {
		c.record(ctx, actor, "set_restriction", map[string]string{
			"operation": operation,
			"minimum":   minimum.String(),
		}, err)
	}()

	if err = c.authorize(ctx, actor, RoleOperator); err != nil {
		return err
	}

	if !minimum.Valid() {
		return threat.ErrInvalidLevel
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.restrictions.Set(operation, minimum)

	return c.persistLocked(ctx, actor)
}

// Notify delivers a shutdown command to one registered module.
// The ledger entry is only written after the module's hook succeeded, so a
// failed broadcast stays visible and retryable.
func (c *Controller) Notify(ctx context.Context, actor *threat.Actor, module string, level threat.Level) (err error) {
	defer func() {
		c.record(ctx, actor, "notify", map[string]string{
			"module": module,
			"level":  level.String(),
		}, err)
	}()

	if err = c.authorize(ctx, actor, RoleOperator); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err = c.checkNotifyLocked(module, level, time.Now()); err != nil {
		return err
	}

	if err = c.notifier.Shutdown(ctx, module, level); err != nil {
		return fmt.Errorf("module %s: %w: %w", module, threat.ErrShutdownHookFailed, err)
	}

	c.ledger.Mark(module, level, time.Now())

	return c.persistLocked(ctx, actor)
}

// checkNotifyLocked validates a notification target. Callers hold the lock.
func (c *Controller) checkNotifyLocked(module string, level threat.Level, now time.Time) error {
	if !level.Valid() {
		return threat.ErrInvalidLevel
	}

	if c.level < level {
		return fmt.Errorf("current level %s below %s: %w", c.level, level, threat.ErrLevelNotActive)
	}

	if err := c.ledger.Check(module, level, now); err != nil {
		return err
	}

	if !c.modules.Contains(module) {
		return fmt.Errorf("module %s: %w", module, registry.ErrNotRegistered)
	}

	return nil
}

// Broadcast notifies every registered module about the given level.
// Modules inside their cooldown window are skipped; hook failures are
// reported per module and leave their ledger entries unmarked.
func (c *Controller) Broadcast(ctx context.Context, actor *threat.Actor, level threat.Level) (report *BroadcastReport, err error) {
	defer func() {
		c.record(ctx, actor, "broadcast", map[string]string{"level": level.String()}, err)
	}()

	if err = c.authorize(ctx, actor, RoleOperator); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !level.Valid() {
		return nil, threat.ErrInvalidLevel
	}

	if c.level < level {
		return nil, fmt.Errorf("current level %s below %s: %w", c.level, level, threat.ErrLevelNotActive)
	}

	now := time.Now()
	report = &BroadcastReport{
		Level:  level,
		Failed: make(map[string]string),
	}

	var (
		pending []string
		mu      sync.Mutex
	)

	for _, module := range c.modules.Addresses() {
		if c.ledger.Check(module, level, now) != nil {
			report.Skipped = append(report.Skipped, module)

			continue
		}

		pending = append(pending, module)
	}

	concurrency := c.cfg.BroadcastConcurrency
	if concurrency <= 0 {
		concurrency = defaultBroadcastConcurrency
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)

	for _, module := range pending {
		group.Go(func() error {
			hookErr := c.notifier.Shutdown(groupCtx, module, level)

			mu.Lock()
			defer mu.Unlock()

			if hookErr != nil {
				report.Failed[module] = hookErr.Error()
			} else {
				report.Notified = append(report.Notified, module)
			}

			// Per-module failures are reported, not propagated, so the
			// remaining modules still get their notification.
			return nil
		})
	}

	_ = group.Wait()

	sort.Strings(report.Notified)

	for _, module := range report.Notified {
		c.ledger.Mark(module, level, now)
	}

	if len(report.Failed) > 0 {
		logger.WarnKV(ctx, "Broadcast incomplete",
			"level", level.String(),
			"notified", len(report.Notified),
			"failed", len(report.Failed))
	}

	if persistErr := c.persistLocked(ctx, actor); persistErr != nil {
		return nil, persistErr
	}

	return report, nil
}

// CreditHolding records assets transferred to the controller.
func (c *Controller) CreditHolding(ctx context.Context, actor *threat.Actor, asset string, amount uint64) (err error) {
	defer func() {
		c.record(ctx, actor, "credit_holding", map[string]string{
			"asset":  asset,
			"amount": fmt.Sprintf("%d", amount),
		}, err)
	}()

	if err = c.authorize(ctx, actor, RoleAdmin); err != nil {
		return err
	}

	if amount == 0 {
		return threat.ErrAmountZero
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.holdings[asset] += amount

	return c.persistLocked(ctx, actor)
}

// RecoverTokens transfers controller-held assets to the configured recovery
// account.
func (c *Controller) RecoverTokens(ctx context.Context, actor *threat.Actor, asset string, amount uint64) (err error) {
	defer func() {
		c.record(ctx, actor, "recover_tokens", map[string]string{
			"asset":     asset,
			"amount":    fmt.Sprintf("%d", amount),
			"recipient": c.cfg.RecoveryAccount,
		}, err)
	}()

	if err = c.authorize(ctx, actor, RoleAdmin); err != nil {
		return err
	}

	if c.cfg.RecoveryAccount == "" {
		return threat.ErrRecoveryAccountUnset
	}

	if amount == 0 {
		return threat.ErrAmountZero
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	held := c.holdings[asset]
	if held < amount {
		return fmt.Errorf("asset %s holds %d, want %d: %w", asset, held, amount, threat.ErrInsufficientHoldings)
	}

	if held == amount {
		delete(c.holdings, asset)
	} else {
		c.holdings[asset] = held - amount
	}

	return c.persistLocked(ctx, actor)
}
