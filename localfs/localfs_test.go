package localfs

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIO_WriteThenReadRoundTrips(t *testing.T) {
	io_, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	w, err := io_.OpenOutput(ctx, "manifests/m1.bin")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := io_.OpenInput(ctx, "manifests/m1.bin")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestIO_ExistsReflectsWritesAndDeletes(t *testing.T) {
	io_, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	exists, err := io_.Exists(ctx, "absent.bin")
	require.NoError(t, err)
	assert.False(t, exists)

	w, err := io_.OpenOutput(ctx, "present.bin")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	exists, err = io_.Exists(ctx, "present.bin")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, io_.Delete(ctx, "present.bin"))
	exists, err = io_.Exists(ctx, "present.bin")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIO_DeleteOfMissingPathIsNotAnError(t *testing.T) {
	io_, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, io_.Delete(context.Background(), "never-existed.bin"))
}

func TestIO_RenamePublishesAtomically(t *testing.T) {
	io_, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	w, err := io_.OpenOutput(ctx, "staged.tmp")
	require.NoError(t, err)
	_, err = w.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, io_.Rename(ctx, "staged.tmp", "published.bin"))

	exists, err := io_.Exists(ctx, "staged.tmp")
	require.NoError(t, err)
	assert.False(t, exists, "old path must no longer exist after rename")

	r, err := io_.OpenInput(ctx, "published.bin")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestIO_ListReturnsRegularFilesUnderDir(t *testing.T) {
	io_, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, name := range []string{"a.bin", "b.bin"} {
		w, err := io_.OpenOutput(ctx, filepath.Join("manifests", name))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}
	w, err := io_.OpenOutput(ctx, filepath.Join("manifests", "nested", "c.bin"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	names, err := io_.List(ctx, "manifests")
	require.NoError(t, err)
	assert.Len(t, names, 2, "nested directories are not flattened into the listing")
}

func TestIO_ListOfMissingDirReturnsEmpty(t *testing.T) {
	io_, err := New(t.TempDir())
	require.NoError(t, err)
	names, err := io_.List(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Empty(t, names)
}
