package cmd

import (
	"github.com/spf13/cobra"

	"github.com/quorumgate/breaker/internal/service/operator"
)

// submitApprovalCmd casts a guardian's escalation vote.
var submitApprovalCmd = &cobra.Command{
	Use:   "submit-approval",
	Short: "Vote for escalating the system to Critical.",
	Long: `Casts the caller's approval for moving the system to Critical.

Each guardian account counts once per proposal. When approvals reach
the configured quorum, a timelock starts; after it expires, the
escalation can be executed.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := commandContext()
		defer stop()

		return operator.SubmitApproval(ctx, options())
	},
}

// cancelEscalationCmd withdraws the escalation in progress.
var cancelEscalationCmd = &cobra.Command{
	Use:   "cancel-escalation",
	Short: "Cancel the escalation currently in progress.",
	Long: `Cancels the pending Critical escalation and invalidates all of its
approvals. A later escalation starts from zero.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := commandContext()
		defer stop()

		return operator.CancelEscalation(ctx, options())
	},
}

// executeEscalationCmd completes the escalation after the timelock.
var executeEscalationCmd = &cobra.Command{
	Use:   "execute-escalation",
	Short: "Move the system to Critical after the timelock expires.",
	Long: `Executes the approved escalation: the system enters Critical, all
protected operations pause, and emergency withdrawal turns on.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := commandContext()
		defer stop()

		return operator.ExecuteEscalation(ctx, options())
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(submitApprovalCmd, cancelEscalationCmd, executeEscalationCmd)
}
