// Package server runs the breaker controller process.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/quorumgate/breaker/internal/api/tcp"
	"github.com/quorumgate/breaker/internal/config"
	"github.com/quorumgate/breaker/internal/logger"
	rolesrepo "github.com/quorumgate/breaker/internal/repository/roles"
	staterepo "github.com/quorumgate/breaker/internal/repository/state"
	"github.com/quorumgate/breaker/internal/service/controller"
	"github.com/quorumgate/breaker/internal/service/notifier"
)

// Options controls the breaker-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override.
	ListenAddress string
	// StateFile specifies the path to persist controller state JSON.
	StateFile string
	// RolesFile specifies the path to the role-to-accounts YAML file.
	RolesFile string
}

var (
	// ErrNoServerAddress indicates missing server configuration.
	ErrNoServerAddress = errors.New("no server address configured")
	// ErrAlreadyRunning indicates another breaker-server process owns this host.
	ErrAlreadyRunning = errors.New("another breaker-server instance is already running")
)

// Run starts the controller and its TCP listener, blocking until the
// context is canceled or the server stops.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "breaker-server")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	running, err := anotherInstanceRunning()
	if err != nil {
		logger.Warnf(ctx, "Unable to inspect the process list: %v", err)
	} else if running {
		return ErrAlreadyRunning
	}

	stateFile := settings.StateFile
	if opts.StateFile != "" {
		stateFile = opts.StateFile
	}

	rolesFile := settings.RolesFile
	if opts.RolesFile != "" {
		rolesFile = opts.RolesFile
	}

	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	roles := rolesrepo.NewStore(rolesFile)
	if err = roles.Load(ctx); err != nil {
		// The store stays fail-closed until a successful load; the watcher
		// picks the file up once it appears.
		logger.Warnf(ctx, "Roles file not loaded yet: %v", err)
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()

	watchDone := make(chan error, 1)

	go func() {
		watchDone <- roles.Watch(watchCtx)
	}()

	repo := staterepo.NewFileRepository(stateFile)

	ctrl, err := controller.New(ctx, controller.Config{
		RequiredApprovals:       settings.RequiredApprovals,
		TimelockDuration:        settings.TimelockDuration,
		NotificationCooldown:    settings.NotificationCooldown,
		MaxWithdrawalPenaltyBps: settings.MaxWithdrawalPenaltyBps,
		RecoveryAccount:         settings.RecoveryAccount,
	}, roles, notifier.NewTCPNotifier(settings.SharedToken, notifier.WithTimeout(settings.HookTimeout)), repo)
	if err != nil {
		return fmt.Errorf("initialise controller: %w", err)
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	logger.InfoKV(ctx, "Breaker server listening",
		"listen_address", listenAddress,
		"state_file", stateFile,
		"roles_file", rolesFile)

	if err = tcp.NewServer(ctrl).Serve(ctx, lis); err != nil {
		return fmt.Errorf("serve control protocol: %w", err)
	}

	stopWatch()

	if err = <-watchDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Warnf(ctx, "Roles watcher stopped with error: %v", err)
	}

	logger.Info(ctx, "Breaker server stopped")

	return nil
}

// resolveListenAddress determines the listen address for the TCP server.
// If override is provided, uses it directly. Otherwise extracts the port
// from configAddr and binds on all interfaces.
func resolveListenAddress(configAddr, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	return ":" + port, nil
}
