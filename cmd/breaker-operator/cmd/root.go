package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quorumgate/breaker/internal/config"
	"github.com/quorumgate/breaker/internal/service/operator"
	"github.com/quorumgate/breaker/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// serverAddress overrides the breaker server address from config.
	serverAddress string

	// rootCmd represents the base command for breaker control operations.
	rootCmd = &cobra.Command{
		Use:   "breaker-operator",
		Short: "Control the circuit breaker from the command line.",
		Long: `Runs control operations against the breaker server: threat level
changes, the Critical escalation workflow, module registry management,
operation restrictions, module notifications, and token recovery.

Operations are authorized against the server's role store using the
current hostname and username as the acting identity.`,
	}
)

// commandContext builds the interruptible context shared by all subcommands.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

// options collects the shared flags for operator calls.
func options() *operator.Options {
	return &operator.Options{
		ConfigPath:    cfgPath,
		ServerAddress: serverAddress,
	}
}

// Execute runs the breaker-operator CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Shared flags apply to every control operation.
	rootCmd.PersistentFlags().
		StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&serverAddress, "server", "s", "", "breaker server address override")
}
