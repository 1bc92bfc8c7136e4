package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/quorumgate/breaker/internal/service/operator"
)

// creditHoldingCmd records controller-held funds for an asset.
var creditHoldingCmd = &cobra.Command{
	Use:   "credit-holding <asset> <amount>",
	Short: "Record controller-held funds for an asset.",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx, stop := commandContext()
		defer stop()

		amount, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return err
		}

		return operator.CreditHolding(ctx, options(), args[0], amount)
	},
}

// recoverTokensCmd moves held funds to the recovery account.
var recoverTokensCmd = &cobra.Command{
	Use:   "recover-tokens <asset> <amount>",
	Short: "Recover controller-held funds to the recovery account.",
	Long: `Moves funds held by the controller to the configured recovery
account. Requires the admin role and a recovery account in settings.`,
	Args: cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx, stop := commandContext()
		defer stop()

		amount, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return err
		}

		return operator.RecoverTokens(ctx, options(), args[0], amount)
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(creditHoldingCmd, recoverTokensCmd)
}
