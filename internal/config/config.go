package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the breaker binaries.
type Config struct {
	// ServerAddress is the controller's TCP address for control connections.
	ServerAddress string `yaml:"server_addr"`
	// StateFile is the path to the JSON file storing controller state.
	StateFile string `yaml:"state_file"`
	// RolesFile is the path to the YAML file mapping roles to accounts.
	RolesFile string `yaml:"roles_file"`
	// Timeout is the duration for control-plane calls.
	Timeout time.Duration `yaml:"timeout"`
	// HookTimeout bounds the outbound module shutdown call.
	HookTimeout time.Duration `yaml:"hook_timeout"`
	// RequiredApprovals is the quorum target for the Critical escalation.
	RequiredApprovals int `yaml:"required_approvals"`
	// TimelockDuration is the mandatory wait between quorum and execution.
	TimelockDuration time.Duration `yaml:"timelock_duration"`
	// NotificationCooldown is the minimum time between repeat notifications
	// to the same module for the same level.
	NotificationCooldown time.Duration `yaml:"notification_cooldown"`
	// MaxWithdrawalPenaltyBps caps the emergency withdrawal penalty.
	MaxWithdrawalPenaltyBps uint32 `yaml:"max_withdrawal_penalty_bps"`
	// RecoveryAccount receives assets recovered from the controller.
	RecoveryAccount string `yaml:"recovery_account"`
	// SharedToken authenticates shutdown commands to module agents.
	SharedToken string `yaml:"shared_token"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "breaker-settings.yaml"

	// DefaultStateFilename is the default filename for controller state JSON.
	DefaultStateFilename = "breaker-state.json"

	// DefaultRolesFilename is the default filename for the role store YAML.
	DefaultRolesFilename = "breaker-roles.yaml"

	// DefaultTimeout is the default duration for control-plane calls.
	DefaultTimeout = 5 * time.Second

	// DefaultHookTimeout is the default bound on the module shutdown call.
	DefaultHookTimeout = 5 * time.Second

	// DefaultRequiredApprovals is the default quorum target.
	DefaultRequiredApprovals = 2

	// DefaultTimelockDuration is the default quorum-to-execution wait.
	DefaultTimelockDuration = time.Hour

	// DefaultNotificationCooldown is the default repeat-notification window.
	DefaultNotificationCooldown = 24 * time.Hour

	// DefaultMaxWithdrawalPenaltyBps caps the penalty at 30%.
	DefaultMaxWithdrawalPenaltyBps uint32 = 3000

	// DefaultFilePermissions is the default file permission for written files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServerSocketRequired is returned when the server address is missing.
	errServerSocketRequired = errors.New("server address must be provided")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills defaults for optional ones.
func Validate(cfg *Config) error {
	if cfg.ServerAddress == "" {
		return errServerSocketRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	if cfg.StateFile == "" {
		cfg.StateFile = DefaultStateFilename
	}

	if cfg.RolesFile == "" {
		cfg.RolesFile = DefaultRolesFilename
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.HookTimeout <= 0 {
		cfg.HookTimeout = DefaultHookTimeout
	}

	if cfg.RequiredApprovals <= 0 {
		cfg.RequiredApprovals = DefaultRequiredApprovals
	}

	if cfg.TimelockDuration <= 0 {
		cfg.TimelockDuration = DefaultTimelockDuration
	}

	if cfg.NotificationCooldown <= 0 {
		cfg.NotificationCooldown = DefaultNotificationCooldown
	}

	if cfg.MaxWithdrawalPenaltyBps == 0 {
		cfg.MaxWithdrawalPenaltyBps = DefaultMaxWithdrawalPenaltyBps
	}

	return nil
}
