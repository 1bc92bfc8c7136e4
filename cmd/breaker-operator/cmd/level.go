package cmd

import (
	"github.com/spf13/cobra"

	"github.com/quorumgate/breaker/internal/service/operator"
)

var withdrawalPenaltyBps uint32

// setLevelCmd sets a direct, non-Critical threat level.
var setLevelCmd = &cobra.Command{
	Use:   "set-level <normal|caution|alert>",
	Short: "Set the system threat level.",
	Long: `Sets the threat level directly. Critical cannot be set this way;
it is reachable only through the escalation workflow.

Moving to Alert enables emergency withdrawal. Returning to Normal
lifts the pause, disables emergency withdrawal, and discards any
escalation in progress.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx, stop := commandContext()
		defer stop()

		return operator.SetLevel(ctx, options(), args[0])
	},
}

// pauseCmd halts protected operations.
var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause all protected operations.",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := commandContext()
		defer stop()

		return operator.Pause(ctx, options())
	},
}

// unpauseCmd resumes protected operations.
var unpauseCmd = &cobra.Command{
	Use:   "unpause",
	Short: "Resume protected operations.",
	Long: `Resumes protected operations. At Critical the pause cannot be
lifted; de-escalate through the governance path first.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := commandContext()
		defer stop()

		return operator.Unpause(ctx, options())
	},
}

// enableWithdrawalCmd turns emergency withdrawal on.
var enableWithdrawalCmd = &cobra.Command{
	Use:   "enable-withdrawal",
	Short: "Enable emergency withdrawal with an optional penalty.",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := commandContext()
		defer stop()

		return operator.SetWithdrawal(ctx, options(), true, withdrawalPenaltyBps)
	},
}

// disableWithdrawalCmd turns emergency withdrawal off.
var disableWithdrawalCmd = &cobra.Command{
	Use:   "disable-withdrawal",
	Short: "Disable emergency withdrawal.",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := commandContext()
		defer stop()

		return operator.SetWithdrawal(ctx, options(), false, 0)
	},
}

// statusCmd prints the controller's state view.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the breaker status.",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := commandContext()
		defer stop()

		return operator.Status(ctx, options())
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	enableWithdrawalCmd.Flags().
		Uint32Var(&withdrawalPenaltyBps, "penalty-bps", 0, "withdrawal penalty in basis points")

	rootCmd.AddCommand(setLevelCmd, pauseCmd, unpauseCmd, enableWithdrawalCmd, disableWithdrawalCmd, statusCmd)
}
