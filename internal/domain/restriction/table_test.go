package restriction

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quorumgate/breaker/internal/domain/threat"
)

// TestTable_IsRestricted verifies threshold comparison against the current level.
func TestTable_IsRestricted(t *testing.T) {
	t.Parallel()

	table := New()
	table.Set("withdraw", threat.Alert)
	table.Set("swap", threat.Caution)

	require.False(t, table.IsRestricted("withdraw", threat.Caution))
	require.True(t, table.IsRestricted("withdraw", threat.Alert))
	require.True(t, table.IsRestricted("withdraw", threat.Critical))

	require.True(t, table.IsRestricted("swap", threat.Caution))

	// Unconfigured operations are never restricted, whatever the level.
	require.False(t, table.IsRestricted("deposit", threat.Critical))
}

// TestTable_SetNormalClears ensures a Normal threshold removes the entry.
func TestTable_SetNormalClears(t *testing.T) {
	t.Parallel()

	table := New()
	table.Set("withdraw", threat.Alert)
	table.Set("withdraw", threat.Normal)

	require.Equal(t, threat.Normal, table.Min("withdraw"))
	require.False(t, table.IsRestricted("withdraw", threat.Critical))
	require.Empty(t, table.Snapshot())
}

// TestTable_SnapshotRestore round-trips the table through persistence form.
func TestTable_SnapshotRestore(t *testing.T) {
	t.Parallel()

	table := New()
	table.Set("withdraw", threat.Alert)
	table.Set("borrow", threat.Caution)

	restored := New()
	restored.Restore(table.Snapshot())

	require.Equal(t, threat.Alert, restored.Min("withdraw"))
	require.Equal(t, threat.Caution, restored.Min("borrow"))
}
