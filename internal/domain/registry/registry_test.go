package registry

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRegistry_RegisterRemove covers membership, idempotent registration and
// swap-with-last removal.
func TestRegistry_RegisterRemove(t *testing.T) {
	t.Parallel()

	r := New()

	_, err := r.Register("")
	require.ErrorIs(t, err, ErrEmptyAddress)

	added, err := r.Register("a:1")
	require.NoError(t, err)
	require.True(t, added)

	// Idempotent re-registration.
	added, err = r.Register("a:1")
	require.NoError(t, err)
	require.False(t, added)
	require.Equal(t, 1, r.Len())

	_, _ = r.Register("b:1")
	_, _ = r.Register("c:1")

	// Removing the middle element swaps the last one into its slot.
	require.NoError(t, r.Remove("b:1"))
	require.Equal(t, []string{"a:1", "c:1"}, r.Addresses())
	require.False(t, r.Contains("b:1"))

	require.ErrorIs(t, r.Remove("b:1"), ErrNotRegistered)
}

// TestRegistry_IndexConsistency churns the registry and verifies the listing
// always matches the live set with no duplicates or gaps.
func TestRegistry_IndexConsistency(t *testing.T) {
	t.Parallel()

	r := New()
	want := make(map[string]bool)

	for i := range 50 {
		address := fmt.Sprintf("module-%d:7401", i)
		_, err := r.Register(address)
		require.NoError(t, err)

		want[address] = true
	}

	// Remove every third module.
	for i := 0; i < 50; i += 3 {
		address := fmt.Sprintf("module-%d:7401", i)
		require.NoError(t, r.Remove(address))
		delete(want, address)
	}

	page, total, err := r.Page(0, uint64(r.Len()))
	require.NoError(t, err)
	require.Equal(t, uint64(len(want)), total)
	require.Len(t, page, len(want))

	seen := make(map[string]bool, len(page))
	for _, address := range page {
		require.True(t, want[address], address)
		require.False(t, seen[address], "duplicate %s", address)

		seen[address] = true
	}
}

// TestRegistry_Page covers the limit-zero error and out-of-range offsets.
func TestRegistry_Page(t *testing.T) {
	t.Parallel()

	r := New()
	_, _ = r.Register("a:1")
	_, _ = r.Register("b:1")
	_, _ = r.Register("c:1")

	_, _, err := r.Page(0, 0)
	require.ErrorIs(t, err, ErrLimitIsZero)

	page, total, err := r.Page(1, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(3), total)
	require.Equal(t, []string{"b:1", "c:1"}, page)

	// Offset past the end returns an empty page with the true total.
	page, total, err = r.Page(99, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(3), total)
	require.Empty(t, page)

	// A limit large enough to overflow offset+limit still clamps to the tail.
	page, total, err = r.Page(1, math.MaxUint64)
	require.NoError(t, err)
	require.Equal(t, uint64(3), total)
	require.Equal(t, []string{"b:1", "c:1"}, page)
}

// TestRegistry_Restore rebuilds the index from a persisted list.
func TestRegistry_Restore(t *testing.T) {
	t.Parallel()

	r := New()
	r.Restore([]string{"a:1", "b:1", "a:1", ""})

	require.Equal(t, 2, r.Len())
	require.True(t, r.Contains("a:1"))
	require.True(t, r.Contains("b:1"))

	require.NoError(t, r.Remove("a:1"))
	require.Equal(t, []string{"b:1"}, r.Addresses())
}
