package controller

import (
	"context"
	"time"

	"github.com/quorumgate/breaker/internal/domain/escalation"
	"github.com/quorumgate/breaker/internal/domain/threat"
	"github.com/quorumgate/breaker/internal/logger"
)

// SubmitApproval records a guardian's vote for escalating to Critical.
// It is idempotent per guardian per proposal; the timelock starts when the
// quorum is reached and never restarts on later votes.
func (c *Controller) SubmitApproval(ctx context.Context, actor *threat.Actor) (status escalation.Status, err error) {
	defer func() {
		c.record(ctx, actor, "submit_approval", nil, err)
	}()

	if err = c.authorize(ctx, actor, RoleGuardian); err != nil {
		return escalation.Status{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.level == threat.Critical {
		return escalation.Status{}, threat.ErrAlreadyCritical
	}

	status = c.workflow.Submit(actor.Account(), time.Now())

	if persistErr := c.persistLocked(ctx, actor); persistErr != nil {
		return escalation.Status{}, persistErr
	}

	if status.TimelockActive {
		logger.InfoKV(ctx, "Escalation timelock running",
			"proposal_id", status.ProposalID,
			"approvals", status.Approvals,
			"executable_at", status.ExecutableAt)
	}

	return status, nil
}

// CancelEscalation aborts the pending escalation and invalidates all votes.
func (c *Controller) CancelEscalation(ctx context.Context, actor *threat.Actor) (err error) {
	defer func() {
		c.record(ctx, actor, "cancel_escalation", nil, err)
	}()

	if err = c.authorize(ctx, actor, RoleGuardian); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err = c.workflow.Cancel(); err != nil {
		return err
	}

	return c.persistLocked(ctx, actor)
}

// ExecuteEscalation completes the escalation after the timelock expires:
// the level becomes Critical, emergency withdrawal is force-enabled and the
// system is paused.
func (c *Controller) ExecuteEscalation(ctx context.Context, actor *threat.Actor) (err error) {
	defer func() {
		c.record(ctx, actor, "execute_escalation", nil, err)
	}()

	if err = c.authorize(ctx, actor, RoleGuardian); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if err = c.workflow.Execute(now); err != nil {
		return err
	}

	c.level = threat.Critical
	c.withdrawalEnabled = true
	c.paused = true
	c.criticalReachedAt = now

	return c.persistLocked(ctx, actor)
}
