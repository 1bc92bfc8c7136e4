//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quorumgate/breaker/internal/api/protocol"
	"github.com/quorumgate/breaker/internal/domain/threat"
)

// TestNewClient_ValidatesAddress verifies that NewClient rejects empty addresses.
func TestNewClient_ValidatesAddress(t *testing.T) {
	t.Parallel()

	c, err := NewClient("")
	require.Error(t, err)
	require.Nil(t, c)
}

// TestClient_callContext checks timeout vs cancel-only behavior of callContext.
func TestClient_callContext(t *testing.T) {
	t.Parallel()

	c := &Client{
		callTimeout: 0,
	}

	ctx, cancel := c.callContext(context.Background())
	cancel()

	require.NotNil(t, ctx)

	c.callTimeout = 10 * time.Millisecond

	ctx, cancel = c.callContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 30*time.Millisecond)
}

// TestClient_NilActor asserts that actor-bearing calls reject a nil actor.
func TestClient_NilActor(t *testing.T) {
	t.Parallel()

	c, err := NewClient("127.0.0.1:1")
	require.NoError(t, err)

	ctx := context.Background()

	require.Error(t, c.SetLevel(ctx, nil, threat.Alert))
	require.Error(t, c.Pause(ctx, nil))
	require.Error(t, c.RegisterModule(ctx, nil, "vault"))
	require.Error(t, c.Notify(ctx, nil, "vault", threat.Caution))

	_, err = c.SubmitApproval(ctx, nil)
	require.Error(t, err)

	_, err = c.Broadcast(ctx, nil, threat.Alert)
	require.Error(t, err)
}

// serveOnce accepts one connection, captures the request,
// and replies with the given response.
func serveOnce(t *testing.T, resp *protocol.Response) (string, <-chan protocol.Message) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	received := make(chan protocol.Message, 1)

	go func() {
		defer func() {
			_ = lis.Close()
		}()

		conn, acceptErr := lis.Accept()
		if acceptErr != nil {
			return
		}

		defer func() {
			_ = conn.Close()
		}()

		var msg protocol.Message
		if decodeErr := json.NewDecoder(conn).Decode(&msg); decodeErr != nil {
			return
		}

		received <- msg

		_ = json.NewEncoder(conn).Encode(resp)
	}()

	return lis.Addr().String(), received
}

// TestClient_RoundTrip exercises a full request/response exchange.
func TestClient_RoundTrip(t *testing.T) {
	t.Parallel()

	payload, err := json.Marshal(&protocol.IsRestrictedResponse{Restricted: true})
	require.NoError(t, err)

	address, received := serveOnce(t, &protocol.Response{OK: true, Data: payload})

	c, err := NewClient(address, WithCallTimeout(2*time.Second))
	require.NoError(t, err)

	restricted, err := c.IsRestricted(context.Background(), "withdraw")
	require.NoError(t, err)
	require.True(t, restricted)

	msg := <-received
	require.Equal(t, protocol.TypeIsRestricted, msg.Type)

	var req protocol.IsRestrictedRequest
	require.NoError(t, json.Unmarshal(msg.Data, &req))
	require.Equal(t, "withdraw", req.Operation)
}

// TestClient_ServerErrorSurfaced checks that wire error codes
// map back to sentinel errors.
func TestClient_ServerErrorSurfaced(t *testing.T) {
	t.Parallel()

	address, _ := serveOnce(t, protocol.ErrorResponse(threat.ErrUnauthorized))

	c, err := NewClient(address, WithCallTimeout(2*time.Second))
	require.NoError(t, err)

	actor := &threat.Actor{Hostname: "ops-1", Username: "mallory"}
	err = c.Pause(context.Background(), actor)
	require.ErrorIs(t, err, threat.ErrUnauthorized)
}
