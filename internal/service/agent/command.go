// Package agent runs alongside a protected module. It registers the
// module with the breaker server, answers shutdown commands, and polls
// controller status as a safety net for missed notifications.
package agent

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quorumgate/breaker/internal/config"
	"github.com/quorumgate/breaker/internal/domain/threat"
	"github.com/quorumgate/breaker/internal/logger"
	"github.com/quorumgate/breaker/internal/service/common"
	"github.com/quorumgate/breaker/internal/service/quiesce"
)

// Options controls the agent process and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ServerAddress provides an optional breaker server address override.
	ServerAddress string
	// ListenAddress is where the agent accepts shutdown commands.
	ListenAddress string
	// AdvertiseAddress is the address registered with the controller;
	// defaults to the listener's address.
	AdvertiseAddress string
	// QuiesceCommand is the local command run when the module must stop.
	QuiesceCommand []string
	// PollInterval defines the interval between controller status checks.
	PollInterval time.Duration
	// Debug prevents running the quiesce command for testing purposes.
	Debug bool
}

// DefaultPollInterval defines the polling interval for status checks.
const DefaultPollInterval = 5 * time.Second

// registerRetryInterval is the delay between registration attempts.
const registerRetryInterval = time.Second

// agent holds the running process state.
type agent struct {
	opts   *Options
	client *common.Client
	actor  *threat.Actor
	token  string

	mu sync.Mutex
	// quiesced is set once the local command has run; the command
	// fires at most once per process.
	quiesced bool
}

// Run starts the agent and blocks until the context is canceled.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "breaker-agent")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	actor, err := common.DetectActor()
	if err != nil {
		return fmt.Errorf("detect actor: %w", err)
	}

	client, err := common.NewClient(serverAddress, common.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return fmt.Errorf("connect to breaker server: %w", err)
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", opts.ListenAddress, err)
	}

	advertise := opts.AdvertiseAddress
	if advertise == "" {
		advertise = lis.Addr().String()
	}

	a := &agent{
		opts:   opts,
		client: client,
		actor:  actor,
		token:  cfg.SharedToken,
	}

	logger.InfoKV(ctx, "Breaker agent starting",
		"server_address", serverAddress,
		"listen_address", lis.Addr().String(),
		"module_address", advertise)

	if err = a.register(ctx, advertise); err != nil {
		_ = lis.Close()

		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return a.serveCommands(groupCtx, lis)
	})

	group.Go(func() error {
		return a.poll(groupCtx)
	})

	if err = group.Wait(); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info(ctx, "Breaker agent stopped")

	return nil
}

// register adds the module to the aware registry, retrying until the
// server accepts or the context ends.
func (a *agent) register(ctx context.Context, advertise string) error {
	attempt := func() bool {
		if err := a.client.RegisterModule(ctx, a.actor, advertise); err != nil {
			logger.ErrorKV(ctx, "Registration failed", "error", err)

			return false
		}

		logger.Infof(ctx, "Module %s registered", advertise)

		return true
	}

	if attempt() {
		return nil
	}

	ticker := time.NewTicker(registerRetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if attempt() {
				return nil
			}
		}
	}
}

// poll periodically checks controller status so a missed shutdown
// command still quiesces the module once the system goes Critical.
func (a *agent) poll(ctx context.Context) error {
	ticker := time.NewTicker(a.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")

			return ctx.Err()
		case <-ticker.C:
			if err := a.checkStatus(ctx); err != nil {
				logger.ErrorKV(ctx, "Status check failed", "error", err)
			}
		}
	}
}

// checkStatus fetches controller status and reacts to Critical.
func (a *agent) checkStatus(ctx context.Context) error {
	status, err := a.client.Status(ctx)
	if err != nil {
		return err
	}

	if status.State == nil {
		return nil
	}

	logger.Infof(ctx, "Controller status: level %s at %s",
		status.State.Level, status.State.Timestamp.Format(time.RFC3339))

	if status.State.Level == threat.Critical {
		a.applyLevel(ctx, threat.Critical)
	}

	return nil
}

// applyLevel runs the local quiesce command at Alert or above,
// at most once per process.
func (a *agent) applyLevel(ctx context.Context, level threat.Level) {
	if level < threat.Alert {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.quiesced {
		return
	}

	if a.opts.Debug {
		logger.Infof(ctx, "Level %s reached but debug mode prevents quiesce", level)

		return
	}

	logger.Infof(ctx, "Level %s reached, quiescing module", level)

	if err := quiesce.Run(ctx, a.opts.QuiesceCommand); err != nil {
		logger.ErrorKV(ctx, "Quiesce command failed", "error", err)

		return
	}

	a.quiesced = true
}
