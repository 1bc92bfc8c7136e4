package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quorumgate/breaker/internal/config"
	"github.com/quorumgate/breaker/internal/service/agent"
	"github.com/quorumgate/breaker/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// serverAddress overrides the breaker server address from config.
	serverAddress string
	// advertiseAddress is registered with the controller instead of the
	// listener address, for agents behind NAT or port mappings.
	advertiseAddress string
	// quiesceCommand is the local command run when the module must stop.
	quiesceCommand []string
	// pollInterval between controller status checks.
	pollInterval time.Duration
	// debug prevents running the quiesce command for testing.
	debug bool

	// rootCmd represents the base command for running the module agent.
	rootCmd = &cobra.Command{
		Use:   "breaker-agent <listen-address>",
		Short: "Run the module-side breaker agent.",
		Long: `Runs alongside a protected module: registers the module with the
breaker server, acknowledges shutdown commands, and polls controller
status so a missed notification still quiesces the module once the
system goes Critical.

The listen address is where the agent accepts shutdown commands
(e.g., :9200, 0.0.0.0:9200).`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return agent.Run(ctx, &agent.Options{
				ConfigPath:       cfgPath,
				ServerAddress:    serverAddress,
				ListenAddress:    args[0],
				AdvertiseAddress: advertiseAddress,
				QuiesceCommand:   quiesceCommand,
				PollInterval:     pollInterval,
				Debug:            debug,
			})
		},
	}
)

// Execute runs the breaker-agent CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&serverAddress, "server", "s", "", "breaker server address override")
	rootCmd.Flags().
		StringVarP(&advertiseAddress, "advertise", "a", "", "module address registered with the controller")
	rootCmd.Flags().
		StringSliceVarP(&quiesceCommand, "quiesce-command", "q", nil, "local command run when the module must stop")
	rootCmd.Flags().
		DurationVarP(&pollInterval, "poll-interval", "p", agent.DefaultPollInterval, "interval between status checks")

	// Hidden debug flag to skip the quiesce command for debugging.
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "skip the quiesce command for debugging")

	err := rootCmd.Flags().MarkHidden("debug")
	if err != nil {
		panic(err)
	}
}
