package integration

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quorumgate/breaker/internal/api/protocol"
	"github.com/quorumgate/breaker/internal/config"
	"github.com/quorumgate/breaker/internal/domain/escalation"
	"github.com/quorumgate/breaker/internal/domain/notification"
	"github.com/quorumgate/breaker/internal/domain/threat"
	"github.com/quorumgate/breaker/internal/service/common"
	"github.com/quorumgate/breaker/internal/service/server"
)

const sharedToken = "integration-token"

// reservePort grabs a free loopback port and releases it for the server.
func reservePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	_ = l.Close()

	return addr
}

// startBreaker starts a real breaker server with temporary config, roles,
// and state files. Returns a stop function for graceful shutdown.
func startBreaker(t *testing.T, addr, statePath string, timelock time.Duration) (stop func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "settings.yaml")
	rolesPath := filepath.Join(dir, "roles.yaml")

	rolesYAML := []byte(`guardian: ["alice", "bob"]
operator: ["olivia"]
admin: ["root"]
`)
	require.NoError(t, os.WriteFile(rolesPath, rolesYAML, 0o600))

	require.NoError(t, config.Save(cfgPath, &config.Config{
		ServerAddress:     addr,
		StateFile:         statePath,
		RolesFile:         rolesPath,
		Timeout:           5 * time.Second,
		HookTimeout:       2 * time.Second,
		RequiredApprovals: 2,
		TimelockDuration:  timelock,
		SharedToken:       sharedToken,
	}))

	go func() {
		options := &server.Options{
			ConfigPath: cfgPath,
		}

		_ = server.Run(ctx, options)
	}()

	// Wait briefly for the server to start listening.
	time.Sleep(150 * time.Millisecond)

	return func() {
		cancel()
		time.Sleep(100 * time.Millisecond)
	}
}

// fakeModule accepts shutdown commands and records the received levels.
func fakeModule(t *testing.T) (string, <-chan uint8) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	levels := make(chan uint8, 8)

	go func() {
		for {
			conn, acceptErr := lis.Accept()
			if acceptErr != nil {
				return
			}

			var msg protocol.Message
			if decodeErr := json.NewDecoder(conn).Decode(&msg); decodeErr == nil {
				var cmd protocol.ShutdownCommand
				if decodeErr = json.Unmarshal(msg.Data, &cmd); decodeErr == nil && cmd.Token == sharedToken {
					levels <- cmd.Level

					resp, _ := protocol.OKResponse(nil)
					_ = json.NewEncoder(conn).Encode(resp)
				}
			}

			_ = conn.Close()
		}
	}()

	t.Cleanup(func() {
		_ = lis.Close()
	})

	return lis.Addr().String(), levels
}

// TestBreaker_ControlPlaneRoundtrip starts the real server and exercises
// level changes, module notification, and on-disk persistence.
func TestBreaker_ControlPlaneRoundtrip(t *testing.T) {
	t.Parallel()

	addr := reservePort(t)
	statePath := filepath.Join(t.TempDir(), "state.json")

	stop := startBreaker(t, addr, statePath, time.Hour)
	defer stop()

	ctx := context.Background()

	c, err := common.NewClient(addr, common.WithCallTimeout(3*time.Second))
	require.NoError(t, err)

	operator := &threat.Actor{Hostname: "test-host", Username: "olivia"}

	status, err := c.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, threat.Normal, status.State.Level)

	moduleAddr, levels := fakeModule(t)
	require.NoError(t, c.RegisterModule(ctx, operator, moduleAddr))

	require.NoError(t, c.SetLevel(ctx, operator, threat.Caution))
	require.NoError(t, c.Notify(ctx, operator, moduleAddr, threat.Caution))

	select {
	case level := <-levels:
		require.Equal(t, uint8(threat.Caution), level)
	case <-time.After(3 * time.Second):
		t.Fatal("module never received the shutdown command")
	}

	// Repeat notification inside the cooldown window is rejected.
	err = c.Notify(ctx, operator, moduleAddr, threat.Caution)
	require.ErrorIs(t, err, notification.ErrAlreadyProcessed)

	// State was persisted to disk.
	_, err = os.Stat(statePath)
	require.NoError(t, err)
}

// TestBreaker_EscalationOverTheWire drives the quorum and timelock flow
// through real connections.
func TestBreaker_EscalationOverTheWire(t *testing.T) {
	t.Parallel()

	addr := reservePort(t)
	statePath := filepath.Join(t.TempDir(), "state.json")

	stop := startBreaker(t, addr, statePath, 300*time.Millisecond)
	defer stop()

	ctx := context.Background()

	c, err := common.NewClient(addr, common.WithCallTimeout(3*time.Second))
	require.NoError(t, err)

	alice := &threat.Actor{Hostname: "h1", Username: "alice"}
	bob := &threat.Actor{Hostname: "h2", Username: "bob"}

	info, err := c.SubmitApproval(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, 1, info.Approvals)
	require.False(t, info.TimelockActive)

	// Premature execution is rejected before quorum.
	err = c.ExecuteEscalation(ctx, alice)
	require.ErrorIs(t, err, escalation.ErrNoEscalationInProgress)

	info, err = c.SubmitApproval(ctx, bob)
	require.NoError(t, err)
	require.Equal(t, 2, info.Approvals)
	require.True(t, info.TimelockActive)

	// Still inside the timelock window.
	err = c.ExecuteEscalation(ctx, alice)
	require.ErrorIs(t, err, escalation.ErrTimelockNotExpired)

	time.Sleep(400 * time.Millisecond)

	require.NoError(t, c.ExecuteEscalation(ctx, alice))

	status, err := c.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, threat.Critical, status.State.Level)
	require.True(t, status.State.SystemPaused)
	require.True(t, status.State.WithdrawalEnabled)

	// The pause cannot be lifted at Critical.
	err = c.Unpause(ctx, alice)
	require.ErrorIs(t, err, threat.ErrCannotUnpauseAtCritical)
}

// TestBreaker_Authorization verifies role gating across the wire.
func TestBreaker_Authorization(t *testing.T) {
	t.Parallel()

	addr := reservePort(t)
	statePath := filepath.Join(t.TempDir(), "state.json")

	stop := startBreaker(t, addr, statePath, time.Hour)
	defer stop()

	ctx := context.Background()

	c, err := common.NewClient(addr, common.WithCallTimeout(3*time.Second))
	require.NoError(t, err)

	mallory := &threat.Actor{Hostname: "h3", Username: "mallory"}

	err = c.SetLevel(ctx, mallory, threat.Caution)
	require.ErrorIs(t, err, threat.ErrUnauthorized)

	// Operators cannot vote; guardians can.
	olivia := &threat.Actor{Hostname: "h4", Username: "olivia"}
	_, err = c.SubmitApproval(ctx, olivia)
	require.ErrorIs(t, err, threat.ErrUnauthorized)

	// Admin fallback covers operator-gated calls.
	root := &threat.Actor{Hostname: "h5", Username: "root"}
	require.NoError(t, c.SetLevel(ctx, root, threat.Caution))
}
