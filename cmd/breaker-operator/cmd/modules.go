package cmd

import (
	"github.com/spf13/cobra"

	"github.com/quorumgate/breaker/internal/service/operator"
)

var (
	listOffset uint64
	listLimit  uint64
)

// registerModuleCmd adds a module to the aware registry.
var registerModuleCmd = &cobra.Command{
	Use:   "register-module <address>",
	Short: "Register a module in the aware registry.",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx, stop := commandContext()
		defer stop()

		return operator.RegisterModule(ctx, options(), args[0])
	},
}

// removeModuleCmd removes a module from the aware registry.
var removeModuleCmd = &cobra.Command{
	Use:   "remove-module <address>",
	Short: "Remove a module from the aware registry.",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx, stop := commandContext()
		defer stop()

		return operator.RemoveModule(ctx, options(), args[0])
	},
}

// listModulesCmd prints one page of the aware registry.
var listModulesCmd = &cobra.Command{
	Use:   "list-modules",
	Short: "List registered modules.",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := commandContext()
		defer stop()

		return operator.ListModules(ctx, options(), listOffset, listLimit)
	},
}

// setRestrictionCmd sets or clears an operation's minimum restricted level.
var setRestrictionCmd = &cobra.Command{
	Use:   "set-restriction <operation> <level>",
	Short: "Restrict an operation from a threat level onward.",
	Long: `Marks an operation as disallowed once the threat level reaches the
given minimum. Setting the level to normal clears the restriction.`,
	Args: cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx, stop := commandContext()
		defer stop()

		return operator.SetRestriction(ctx, options(), args[0], args[1])
	},
}

// isRestrictedCmd reports whether an operation is disallowed right now.
var isRestrictedCmd = &cobra.Command{
	Use:   "is-restricted <operation>",
	Short: "Check whether an operation is currently restricted.",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx, stop := commandContext()
		defer stop()

		return operator.IsRestricted(ctx, options(), args[0])
	},
}

// notifyCmd notifies one module at one level.
var notifyCmd = &cobra.Command{
	Use:   "notify <module> <level>",
	Short: "Deliver the shutdown command to one module.",
	Long: `Delivers the shutdown command for a registered module at the given
level. The level must be active, and each (module, level) pair is
subject to the repeat-notification cooldown.`,
	Args: cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx, stop := commandContext()
		defer stop()

		return operator.Notify(ctx, options(), args[0], args[1])
	},
}

// broadcastCmd notifies every registered module.
var broadcastCmd = &cobra.Command{
	Use:   "broadcast <level>",
	Short: "Notify every registered module at the given level.",
	Long: `Notifies all registered modules at the given level. Modules already
inside the cooldown window are skipped; per-module delivery failures
are reported without aborting the rest of the fan-out.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx, stop := commandContext()
		defer stop()

		return operator.Broadcast(ctx, options(), args[0])
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	listModulesCmd.Flags().Uint64Var(&listOffset, "offset", 0, "registry page offset")
	listModulesCmd.Flags().Uint64Var(&listLimit, "limit", 50, "registry page size")

	rootCmd.AddCommand(registerModuleCmd, removeModuleCmd, listModulesCmd,
		setRestrictionCmd, isRestrictedCmd, notifyCmd, broadcastCmd)
}
