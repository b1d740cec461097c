package snapshot

import (
	"context"
	"testing"

	"github.com/lakestore/tablecore/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkSnapshot(id int64) *core.Snapshot {
	return &core.Snapshot{ID: id, SchemaID: 1, CommitKind: core.CommitKindAppend}
}

func TestRegistry_EmptyState(t *testing.T) {
	r := NewRegistry(nil, nil)

	_, ok := r.EarliestID()
	assert.False(t, ok)
	_, ok = r.LatestID()
	assert.False(t, ok)
	assert.Nil(t, r.Latest())

	snap, err := r.TryGet(1)
	assert.NoError(t, err)
	assert.Nil(t, snap)
}

func TestRegistry_CommitAndGet(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()

	require.NoError(t, r.Commit(ctx, 0, mkSnapshot(1)))
	require.NoError(t, r.Commit(ctx, 1, mkSnapshot(2)))
	require.NoError(t, r.Commit(ctx, 2, mkSnapshot(3)))

	latestID, ok := r.LatestID()
	require.True(t, ok)
	assert.Equal(t, int64(3), latestID)

	earliestID, ok := r.EarliestID()
	require.True(t, ok)
	assert.Equal(t, int64(1), earliestID)

	snap, err := r.TryGet(2)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, int64(2), snap.ID)

	snap, err = r.TryGet(99)
	assert.NoError(t, err)
	assert.Nil(t, snap)
}

func TestRegistry_CommitConflict(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()

	require.NoError(t, r.Commit(ctx, 0, mkSnapshot(1)))

	err := r.Commit(ctx, 0, mkSnapshot(2))
	require.Error(t, err)
	assert.True(t, core.IsCommitConflict(err))

	latestID, _ := r.LatestID()
	assert.Equal(t, int64(1), latestID)
}

func TestRegistry_ExpireAndGone(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, r.Commit(ctx, i-1, mkSnapshot(i)))
	}

	removed := r.Expire(3)
	assert.Equal(t, []int64{1, 2}, removed)

	earliestID, _ := r.EarliestID()
	assert.Equal(t, int64(3), earliestID)

	_, err := r.TryGet(1)
	require.Error(t, err)
	assert.True(t, core.IsSnapshotGone(err))
}

func TestRegistry_ExpireNeverDropsLatest(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()
	require.NoError(t, r.Commit(ctx, 0, mkSnapshot(1)))

	removed := r.Expire(100)
	assert.Empty(t, removed)

	latestID, ok := r.LatestID()
	require.True(t, ok)
	assert.Equal(t, int64(1), latestID)
}

func TestRegistry_IterSnapshotsStopsEarly(t *testing.T) {
	r := NewRegistry(nil, nil)
	ctx := context.Background()
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, r.Commit(ctx, i-1, mkSnapshot(i)))
	}

	var seen []int64
	r.IterSnapshots(func(s *core.Snapshot) bool {
		seen = append(seen, s.ID)
		return s.ID < 3
	})
	assert.Equal(t, []int64{1, 2, 3}, seen)
}
