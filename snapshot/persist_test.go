package snapshot

import (
	"context"
	"testing"

	"github.com/lakestore/tablecore/compressors"
	"github.com/lakestore/tablecore/core"
	"github.com/lakestore/tablecore/localfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistSnapshot_RoundTripsUncompressed(t *testing.T) {
	fio, err := localfs.New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	snap := &core.Snapshot{ID: 7, CommitKind: core.CommitKindAppend, CommitIdentifier: 3, CommitUser: "writer-1"}
	require.NoError(t, PersistSnapshot(ctx, fio, "manifests", snap, nil))

	loaded, err := LoadSnapshot(ctx, fio, "manifests", 7, nil)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, loaded.ID)
	assert.Equal(t, snap.CommitIdentifier, loaded.CommitIdentifier)
	assert.Equal(t, snap.CommitUser, loaded.CommitUser)
}

func TestPersistSnapshot_RoundTripsWithCompressor(t *testing.T) {
	fio, err := localfs.New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	snap := &core.Snapshot{ID: 1, CommitKind: core.CommitKindOverwrite, DroppedPartitions: []core.Partition{
		{Fields: []string{"dt"}, Values: map[string]string{"dt": "20230101"}},
	}}
	compressor := compressors.NewZstdCompressor()
	require.NoError(t, PersistSnapshot(ctx, fio, "manifests", snap, compressor))

	loaded, err := LoadSnapshot(ctx, fio, "manifests", 1, compressor)
	require.NoError(t, err)
	assert.Equal(t, snap.CommitKind, loaded.CommitKind)
	require.Len(t, loaded.DroppedPartitions, 1)
	assert.Equal(t, "20230101", loaded.DroppedPartitions[0].Values["dt"])
}
