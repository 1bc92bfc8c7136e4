package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quorumgate/breaker/internal/config"
	"github.com/quorumgate/breaker/internal/service/server"
	"github.com/quorumgate/breaker/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// stateFile path where controller state is persisted.
	stateFile string
	// rolesFile path to the role-to-accounts mapping.
	rolesFile string

	// rootCmd represents the base command for running the breaker server.
	rootCmd = &cobra.Command{
		Use:   "breaker-server [listen-address]",
		Short: "Run the circuit breaker controller.",
		Long: `Starts the breaker server that tracks the system threat level and
handles control requests from operators, guardians, and module agents.

The server listens on the specified address or uses settings from the
configuration file. Only the port from ServerAddress config is used for
listening (e.g., :8080). A listen address can be provided as argument to
override config (e.g., :9090, 0.0.0.0:8080).
Controller state is persisted to a JSON file for recovery across restarts.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				StateFile:     stateFile,
				RolesFile:     rolesFile,
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the breaker-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().
		StringVarP(&stateFile, "state-file", "s", config.DefaultStateFilename, "path to persist controller state")
	rootCmd.Flags().
		StringVarP(&rolesFile, "roles-file", "r", config.DefaultRolesFilename, "path to role-to-accounts mapping")
}
