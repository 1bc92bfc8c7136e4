// Package operator implements the breaker-operator control commands.
//
// Each command connects to the breaker server, runs one control
// operation as the detected actor, and reports the result.
package operator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quorumgate/breaker/internal/api/protocol"
	"github.com/quorumgate/breaker/internal/config"
	"github.com/quorumgate/breaker/internal/domain/threat"
	"github.com/quorumgate/breaker/internal/logger"
	"github.com/quorumgate/breaker/internal/service/common"
)

// Options configures operator commands.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string

	// ServerAddress overrides server address from config when specified.
	ServerAddress string
}

// operation is one control call executed with a connected client and actor.
type operation func(ctx context.Context, client *common.Client, actor *threat.Actor) error

// run loads settings, detects the actor, and executes the operation.
func run(ctx context.Context, opts *Options, name string, op operation) error {
	ctx = logger.WithName(ctx, "breaker-operator")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	actor, err := common.DetectActor()
	if err != nil {
		return err
	}

	client, err := common.NewClient(serverAddress, common.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Running control operation",
		"operation", name,
		"server_address", serverAddress,
		"actor", actor.Account())

	return op(ctx, client, actor)
}

// SubmitApproval casts the caller's escalation vote and reports quorum progress.
func SubmitApproval(ctx context.Context, opts *Options) error {
	return run(ctx, opts, "submit-approval", func(ctx context.Context, client *common.Client, actor *threat.Actor) error {
		info, err := client.SubmitApproval(ctx, actor)
		if err != nil {
			return err
		}

		logger.Infof(ctx, "Approval recorded: %s", formatEscalation(info))

		return nil
	})
}

// CancelEscalation withdraws the escalation currently in progress.
func CancelEscalation(ctx context.Context, opts *Options) error {
	return run(ctx, opts, "cancel-escalation", func(ctx context.Context, client *common.Client, actor *threat.Actor) error {
		if err := client.CancelEscalation(ctx, actor); err != nil {
			return err
		}

		logger.Info(ctx, "Escalation canceled")

		return nil
	})
}

// ExecuteEscalation moves the system to Critical after the timelock.
func ExecuteEscalation(ctx context.Context, opts *Options) error {
	return run(ctx, opts, "execute-escalation", func(ctx context.Context, client *common.Client, actor *threat.Actor) error {
		if err := client.ExecuteEscalation(ctx, actor); err != nil {
			return err
		}

		logger.Info(ctx, "System escalated to Critical")

		return nil
	})
}

// SetLevel sets a direct, non-Critical threat level by name or number.
func SetLevel(ctx context.Context, opts *Options, levelName string) error {
	level, err := threat.ParseLevel(levelName)
	if err != nil {
		return err
	}

	return run(ctx, opts, "set-level", func(ctx context.Context, client *common.Client, actor *threat.Actor) error {
		if err := client.SetLevel(ctx, actor, level); err != nil {
			return err
		}

		logger.Infof(ctx, "Threat level set to %s", level)

		return nil
	})
}

// Pause halts all protected operations.
func Pause(ctx context.Context, opts *Options) error {
	return run(ctx, opts, "pause", func(ctx context.Context, client *common.Client, actor *threat.Actor) error {
		if err := client.Pause(ctx, actor); err != nil {
			return err
		}

		logger.Info(ctx, "System paused")

		return nil
	})
}

// Unpause resumes protected operations.
func Unpause(ctx context.Context, opts *Options) error {
	return run(ctx, opts, "unpause", func(ctx context.Context, client *common.Client, actor *threat.Actor) error {
		if err := client.Unpause(ctx, actor); err != nil {
			return err
		}

		logger.Info(ctx, "System unpaused")

		return nil
	})
}

// SetWithdrawal configures the emergency withdrawal switch and penalty.
func SetWithdrawal(ctx context.Context, opts *Options, enabled bool, penaltyBps uint32) error {
	return run(ctx, opts, "set-withdrawal", func(ctx context.Context, client *common.Client, actor *threat.Actor) error {
		if err := client.SetWithdrawal(ctx, actor, enabled, penaltyBps); err != nil {
			return err
		}

		logger.InfoKV(ctx, "Emergency withdrawal configured",
			"enabled", enabled,
			"penalty_bps", penaltyBps)

		return nil
	})
}

// RegisterModule adds a module address to the aware registry.
func RegisterModule(ctx context.Context, opts *Options, module string) error {
	return run(ctx, opts, "register-module", func(ctx context.Context, client *common.Client, actor *threat.Actor) error {
		if err := client.RegisterModule(ctx, actor, module); err != nil {
			return err
		}

		logger.Infof(ctx, "Module %s registered", module)

		return nil
	})
}

// RemoveModule removes a module address from the aware registry.
func RemoveModule(ctx context.Context, opts *Options, module string) error {
	return run(ctx, opts, "remove-module", func(ctx context.Context, client *common.Client, actor *threat.Actor) error {
		if err := client.RemoveModule(ctx, actor, module); err != nil {
			return err
		}

		logger.Infof(ctx, "Module %s removed", module)

		return nil
	})
}

// ListModules prints one page of the aware registry.
func ListModules(ctx context.Context, opts *Options, offset, limit uint64) error {
	return run(ctx, opts, "list-modules", func(ctx context.Context, client *common.Client, _ *threat.Actor) error {
		page, err := client.ListModules(ctx, offset, limit)
		if err != nil {
			return err
		}

		logger.InfoKV(ctx, "Registered modules",
			"total", page.Total,
			"offset", offset,
			"modules", strings.Join(page.Modules, ", "))

		return nil
	})
}

// SetRestriction sets or clears an operation's minimum restricted level.
func SetRestriction(ctx context.Context, opts *Options, operation, levelName string) error {
	level, err := threat.ParseLevel(levelName)
	if err != nil {
		return err
	}

	return run(ctx, opts, "set-restriction", func(ctx context.Context, client *common.Client, actor *threat.Actor) error {
		if err := client.SetRestriction(ctx, actor, operation, level); err != nil {
			return err
		}

		if level == threat.Normal {
			logger.Infof(ctx, "Restriction on %s cleared", operation)
		} else {
			logger.Infof(ctx, "Operation %s restricted from level %s", operation, level)
		}

		return nil
	})
}

// IsRestricted reports whether an operation is disallowed right now.
func IsRestricted(ctx context.Context, opts *Options, operation string) error {
	return run(ctx, opts, "is-restricted", func(ctx context.Context, client *common.Client, _ *threat.Actor) error {
		restricted, err := client.IsRestricted(ctx, operation)
		if err != nil {
			return err
		}

		if restricted {
			logger.Infof(ctx, "Operation %s is RESTRICTED", operation)
		} else {
			logger.Infof(ctx, "Operation %s is allowed", operation)
		}

		return nil
	})
}

// Notify delivers the shutdown command for one module at one level.
func Notify(ctx context.Context, opts *Options, module, levelName string) error {
	level, err := threat.ParseLevel(levelName)
	if err != nil {
		return err
	}

	return run(ctx, opts, "notify", func(ctx context.Context, client *common.Client, actor *threat.Actor) error {
		if err := client.Notify(ctx, actor, module, level); err != nil {
			return err
		}

		logger.Infof(ctx, "Module %s notified at level %s", module, level)

		return nil
	})
}

// Broadcast notifies every registered module at the given level.
func Broadcast(ctx context.Context, opts *Options, levelName string) error {
	level, err := threat.ParseLevel(levelName)
	if err != nil {
		return err
	}

	return run(ctx, opts, "broadcast", func(ctx context.Context, client *common.Client, actor *threat.Actor) error {
		report, err := client.Broadcast(ctx, actor, level)
		if err != nil {
			return err
		}

		logger.InfoKV(ctx, "Broadcast finished",
			"level", threat.Level(report.Level).String(),
			"notified", len(report.Notified),
			"skipped", len(report.Skipped),
			"failed", len(report.Failed))

		for module, reason := range report.Failed {
			logger.WarnKV(ctx, "Module notification failed", "module", module, "reason", reason)
		}

		return nil
	})
}

// Status prints the controller's full state view.
func Status(ctx context.Context, opts *Options) error {
	return run(ctx, opts, "status", func(ctx context.Context, client *common.Client, _ *threat.Actor) error {
		status, err := client.Status(ctx)
		if err != nil {
			return err
		}

		logger.Infof(ctx, "Breaker status: %s", formatStatus(status))

		return nil
	})
}

// CreditHolding records controller-held funds for an asset.
func CreditHolding(ctx context.Context, opts *Options, asset string, amount uint64) error {
	return run(ctx, opts, "credit-holding", func(ctx context.Context, client *common.Client, actor *threat.Actor) error {
		if err := client.CreditHolding(ctx, actor, asset, amount); err != nil {
			return err
		}

		logger.InfoKV(ctx, "Holding credited", "asset", asset, "amount", amount)

		return nil
	})
}

// RecoverTokens moves held funds to the configured recovery account.
func RecoverTokens(ctx context.Context, opts *Options, asset string, amount uint64) error {
	return run(ctx, opts, "recover-tokens", func(ctx context.Context, client *common.Client, actor *threat.Actor) error {
		if err := client.RecoverTokens(ctx, actor, asset, amount); err != nil {
			return err
		}

		logger.InfoKV(ctx, "Tokens recovered", "asset", asset, "amount", amount)

		return nil
	})
}

// formatEscalation converts escalation progress to a readable log message.
func formatEscalation(info *protocol.EscalationInfo) string {
	if info == nil {
		return "<no escalation>"
	}

	if info.TimelockActive {
		return fmt.Sprintf("proposal %d at quorum (%d/%d), executable at %s",
			info.ProposalID, info.Approvals, info.Required,
			info.ExecutableAt.Format(time.RFC3339))
	}

	return fmt.Sprintf("proposal %d has %d of %d approvals",
		info.ProposalID, info.Approvals, info.Required)
}

// formatStatus converts the controller state view to a readable log message.
func formatStatus(status *protocol.StatusResponse) string {
	if status == nil || status.State == nil {
		return "<nil state>"
	}

	state := status.State

	actor := "<unknown>"
	if state.LastActor != nil {
		actor = fmt.Sprintf("%s@%s", state.LastActor.Username, state.LastActor.Hostname)
	}

	timestamp := "<unknown>"
	if !state.Timestamp.IsZero() {
		timestamp = state.Timestamp.Format(time.RFC3339)
	}

	paused := "running"
	if state.SystemPaused {
		paused = "paused"
	}

	return fmt.Sprintf("level %s, %s, last change by %s (%s)",
		state.Level, paused, actor, timestamp)
}
