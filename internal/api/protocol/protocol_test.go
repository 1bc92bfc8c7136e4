package protocol

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quorumgate/breaker/internal/domain/escalation"
	"github.com/quorumgate/breaker/internal/domain/threat"
)

// TestMessageEnvelope round-trips a typed request through the envelope.
func TestMessageEnvelope(t *testing.T) {
	t.Parallel()

	msg, err := NewMessage(TypeNotify, &NotifyRequest{
		Actor:  &ActorInfo{Hostname: "ops-01", Username: "olivia"},
		Module: "m:1",
		Level:  2,
	})
	require.NoError(t, err)
	require.Equal(t, TypeNotify, msg.Type)

	encoded, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	require.Equal(t, TypeNotify, decoded.Type)

	var req NotifyRequest
	require.NoError(t, json.Unmarshal(decoded.Data, &req))
	require.Equal(t, "m:1", req.Module)
	require.Equal(t, uint8(2), req.Level)
	require.Equal(t, "olivia", req.Actor.Username)
}

// TestActorConversion round-trips the actor between wire and domain forms.
func TestActorConversion(t *testing.T) {
	t.Parallel()

	require.Nil(t, ActorFromDomain(nil))
	require.Nil(t, (*ActorInfo)(nil).Domain())

	domain := &threat.Actor{Hostname: "ops-01", Username: "olivia"}
	require.Equal(t, domain, ActorFromDomain(domain).Domain())
}

// TestErrorCodeRoundtrip ensures sentinel errors survive the wire.
func TestErrorCodeRoundtrip(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("executable at noon: %w", escalation.ErrTimelockNotExpired)
	resp := ErrorResponse(wrapped)

	require.False(t, resp.OK)
	require.Equal(t, CodeTimelockNotExpired, resp.ErrorCode)

	require.ErrorIs(t, resp.Err(), escalation.ErrTimelockNotExpired)
	require.Contains(t, resp.Err().Error(), "executable at noon")
}

// TestCodeForError_Unknown maps unrecognized errors to INTERNAL.
func TestCodeForError_Unknown(t *testing.T) {
	t.Parallel()

	resp := ErrorResponse(fmt.Errorf("disk on fire"))
	require.Equal(t, CodeInternal, resp.ErrorCode)
	require.EqualError(t, resp.Err(), "disk on fire")
}

// TestOKResponse verifies payload embedding and the nil-payload shortcut.
func TestOKResponse(t *testing.T) {
	t.Parallel()

	resp, err := OKResponse(nil)
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.NoError(t, resp.Err())
	require.Empty(t, resp.Data)

	resp, err = OKResponse(&IsRestrictedResponse{Restricted: true})
	require.NoError(t, err)

	var payload IsRestrictedResponse
	require.NoError(t, json.Unmarshal(resp.Data, &payload))
	require.True(t, payload.Restricted)
}
