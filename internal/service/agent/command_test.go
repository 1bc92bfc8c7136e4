package agent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quorumgate/breaker/internal/api/protocol"
	"github.com/quorumgate/breaker/internal/domain/threat"
)

func testAgent(t *testing.T) *agent {
	t.Helper()

	return &agent{
		opts:  &Options{Debug: true},
		token: "secret",
	}
}

func command(t *testing.T, cmd *protocol.ShutdownCommand) *protocol.Message {
	t.Helper()

	msg, err := protocol.NewMessage(protocol.TypeShutdownCommand, cmd)
	require.NoError(t, err)

	return msg
}

func TestProcessCommand_Acknowledges(t *testing.T) {
	t.Parallel()

	a := testAgent(t)

	resp := a.processCommand(context.Background(), command(t, &protocol.ShutdownCommand{
		Level:    uint8(threat.Critical),
		IssuedAt: time.Now().UTC(),
		Token:    "secret",
	}))
	require.True(t, resp.OK)
}

func TestProcessCommand_BadToken(t *testing.T) {
	t.Parallel()

	a := testAgent(t)

	resp := a.processCommand(context.Background(), command(t, &protocol.ShutdownCommand{
		Level: uint8(threat.Critical),
		Token: "wrong",
	}))
	require.False(t, resp.OK)
}

func TestProcessCommand_InvalidLevel(t *testing.T) {
	t.Parallel()

	a := testAgent(t)

	resp := a.processCommand(context.Background(), command(t, &protocol.ShutdownCommand{
		Level: 42,
		Token: "secret",
	}))
	require.False(t, resp.OK)
	require.Equal(t, protocol.CodeInvalidLevel, resp.ErrorCode)
}

func TestProcessCommand_UnexpectedType(t *testing.T) {
	t.Parallel()

	a := testAgent(t)

	payload, err := json.Marshal(&protocol.ActorRequest{})
	require.NoError(t, err)

	resp := a.processCommand(context.Background(), &protocol.Message{
		Type: protocol.TypeStatus,
		Data: payload,
	})
	require.False(t, resp.OK)
}

func TestApplyLevel_BelowAlertIgnored(t *testing.T) {
	t.Parallel()

	a := &agent{
		opts:  &Options{QuiesceCommand: []string{"definitely-not-a-real-binary-1b2c"}},
		token: "secret",
	}

	// Caution never triggers the local command.
	a.applyLevel(context.Background(), threat.Caution)
	require.False(t, a.quiesced)
}

func TestApplyLevel_RunsOnce(t *testing.T) {
	t.Parallel()

	a := &agent{
		opts:  &Options{QuiesceCommand: []string{"true"}},
		token: "secret",
	}

	a.applyLevel(context.Background(), threat.Critical)
	require.True(t, a.quiesced)

	// Repeat applications are no-ops.
	a.applyLevel(context.Background(), threat.Critical)
	require.True(t, a.quiesced)
}
