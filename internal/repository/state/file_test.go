package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quorumgate/breaker/internal/domain/threat"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for a missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()
	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.json"))
	s, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, s)
}

// TestFileRepository_SaveLoad_Roundtrip ensures Save followed by Load returns equal state.
func TestFileRepository_SaveLoad_Roundtrip(t *testing.T) {
	t.Parallel()
	file := filepath.Join(t.TempDir(), "state.json")
	repo := NewFileRepository(file)

	ts := time.Now().UTC().Truncate(time.Second)
	want := &threat.State{
		Timestamp: ts,
		LastActor: &threat.Actor{
			Hostname: "ops-01",
			Username: "g.keeper",
		},
		Level:                threat.Alert,
		WithdrawalEnabled:    true,
		WithdrawalPenaltyBps: 500,
		Escalation: threat.EscalationState{
			ProposalID:    4,
			Votes:         map[string]uint64{"g.keeper": 4},
			ApprovalCount: 1,
		},
		Modules:      []string{"10.0.0.5:7401", "10.0.0.6:7401"},
		Restrictions: map[string]threat.Level{"withdraw": threat.Alert},
		Notifications: []threat.NotificationRecord{
			{Module: "10.0.0.5:7401", Level: threat.Alert, Processed: true, At: ts},
		},
		Holdings: map[string]uint64{"USDQ": 100},
	}

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, want.Level, got.Level)
	require.Equal(t, want.LastActor, got.LastActor)
	require.Equal(t, want.Escalation, got.Escalation)
	require.Equal(t, want.Modules, got.Modules)
	require.Equal(t, want.Restrictions, got.Restrictions)
	require.Equal(t, want.Holdings, got.Holdings)
	require.Len(t, got.Notifications, 1)

	// No temporary file is left behind.
	_, err = os.Stat(file + ".tmp")
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestFileRepository_SaveOverwrites ensures a second save replaces the first snapshot.
func TestFileRepository_SaveOverwrites(t *testing.T) {
	t.Parallel()
	repo := NewFileRepository(filepath.Join(t.TempDir(), "state.json"))

	require.NoError(t, repo.Save(context.Background(), &threat.State{Level: threat.Caution}))
	require.NoError(t, repo.Save(context.Background(), &threat.State{Level: threat.Critical}))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, threat.Critical, got.Level)
}
