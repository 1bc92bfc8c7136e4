package operator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quorumgate/breaker/internal/api/protocol"
	"github.com/quorumgate/breaker/internal/domain/threat"
)

func TestFormatEscalation(t *testing.T) {
	t.Parallel()

	require.Equal(t, "<no escalation>", formatEscalation(nil))

	require.Equal(t, "proposal 4 has 1 of 2 approvals", formatEscalation(&protocol.EscalationInfo{
		ProposalID: 4,
		Approvals:  1,
		Required:   2,
	}))

	executable := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	got := formatEscalation(&protocol.EscalationInfo{
		ProposalID:     4,
		Approvals:      2,
		Required:       2,
		TimelockActive: true,
		ExecutableAt:   executable,
	})
	require.Equal(t, "proposal 4 at quorum (2/2), executable at 2026-03-01T12:00:00Z", got)
}

func TestFormatStatus(t *testing.T) {
	t.Parallel()

	require.Equal(t, "<nil state>", formatStatus(nil))
	require.Equal(t, "<nil state>", formatStatus(&protocol.StatusResponse{}))

	got := formatStatus(&protocol.StatusResponse{
		State: &threat.State{
			Level:        threat.Alert,
			SystemPaused: true,
			LastActor:    &threat.Actor{Hostname: "ops-1", Username: "alice"},
			Timestamp:    time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC),
		},
	})
	require.Equal(t, "level alert, paused, last change by alice@ops-1 (2026-03-01T12:00:00Z)", got)
}
