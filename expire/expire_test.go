package expire

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/lakestore/tablecore/core"
	"github.com/lakestore/tablecore/partition"
	"github.com/lakestore/tablecore/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- in-memory fakes ---

type memFileIO struct {
	files map[string][]byte
}

func newMemFileIO() *memFileIO { return &memFileIO{files: map[string][]byte{}} }

type memWriter struct {
	io   *memFileIO
	path string
	buf  bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *memWriter) Close() error {
	w.io.files[w.path] = w.buf.Bytes()
	return nil
}

func (m *memFileIO) OpenInput(ctx context.Context, path string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.files[path])), nil
}
func (m *memFileIO) OpenOutput(ctx context.Context, path string) (io.WriteCloser, error) {
	return &memWriter{io: m, path: path}, nil
}
func (m *memFileIO) List(ctx context.Context, dir string) ([]string, error) { return nil, nil }
func (m *memFileIO) Delete(ctx context.Context, path string) error {
	delete(m.files, path)
	return nil
}
func (m *memFileIO) Exists(ctx context.Context, path string) (bool, error) {
	_, ok := m.files[path]
	return ok, nil
}
func (m *memFileIO) Rename(ctx context.Context, oldPath, newPath string) error {
	m.files[newPath] = m.files[oldPath]
	delete(m.files, oldPath)
	return nil
}

// fakeEnumerator lists a fixed set of partitions, minus any that handler has
// already dropped, the way a catalog stops listing a dropped partition.
type fakeEnumerator struct {
	partitions []core.Partition
	handler    *fakeHandler
}

func (f *fakeEnumerator) LivePartitions(ctx context.Context, snap *core.Snapshot) ([]core.Partition, error) {
	if f.handler == nil {
		return f.partitions, nil
	}
	dropped := make(map[string]struct{})
	for _, p := range f.handler.allDropped() {
		dropped[p.Key()] = struct{}{}
	}
	var live []core.Partition
	for _, p := range f.partitions {
		if _, ok := dropped[p.Key()]; !ok {
			live = append(live, p)
		}
	}
	return live, nil
}

type fakeHandler struct {
	dropped [][]core.Partition
}

func (f *fakeHandler) CreatePartitions(ctx context.Context, partitions []core.Partition) error {
	return nil
}
func (f *fakeHandler) DropPartitions(ctx context.Context, partitions []core.Partition) error {
	f.dropped = append(f.dropped, partitions)
	return nil
}
func (f *fakeHandler) AlterPartitions(ctx context.Context, stats []core.PartitionStatistics) error {
	return nil
}
func (f *fakeHandler) MarkDonePartitions(ctx context.Context, partitions []core.Partition) error {
	return nil
}
func (f *fakeHandler) Close() error { return nil }

func (f *fakeHandler) allDropped() []core.Partition {
	var out []core.Partition
	for _, chunk := range f.dropped {
		out = append(out, chunk...)
	}
	return out
}

type fakeCommitter struct {
	commits [][]core.Partition
}

func (f *fakeCommitter) CommitOverwrite(ctx context.Context, commitIdentifier int64, partitions []core.Partition) error {
	f.commits = append(f.commits, partitions)
	return nil
}

func partitionOf(value string) core.Partition {
	return core.Partition{Fields: []string{"f0"}, Values: map[string]string{"f0": value}}
}

func schema() partition.Schema {
	return partition.Schema{{Name: "f0", Type: partition.FieldString}}
}

// date mirrors the day(n) helper the reference test suite uses: midnight on
// 2023-01-n.
func date(day int) time.Time {
	return time.Date(2023, time.January, day, 0, 0, 0, 0, time.UTC)
}

type testController struct {
	*Controller
	handler   *fakeHandler
	committer *fakeCommitter
}

// newTestController builds a Controller over live with the standard S1
// knobs (expiration-time 2d, check-interval 1d, yyyyMMdd formatter),
// optionally seeding a persisted last_check_time (the equivalent of the
// reference suite's setLastCheck).
func newTestController(t *testing.T, live []core.Partition, seedLastCheck *time.Time, batchSize, maxExpires int) *testController {
	t.Helper()
	reg := snapshot.NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	require.NoError(t, reg.Commit(context.Background(), 0, &core.Snapshot{ID: 1, CommitKind: core.CommitKindAppend}))

	fileIO := newMemFileIO()
	if seedLastCheck != nil {
		require.NoError(t, writeLastCheckTime(context.Background(), fileIO, "state", *seedLastCheck))
	}

	handler := &fakeHandler{}
	committer := &fakeCommitter{}
	c, err := New(context.Background(), Options{
		FileIO:           fileIO,
		StateDir:         "state",
		Registry:         reg,
		Partitions:       &fakeEnumerator{partitions: live, handler: handler},
		Handler:          handler,
		Committer:        committer,
		PartitionSchema:  schema(),
		TimestampPattern: "20060102",
		CheckInterval:    24 * time.Hour,
		ExpirationTime:   48 * time.Hour,
		BatchSize:        batchSize,
		MaxExpires:       maxExpires,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return &testController{Controller: c, handler: handler, committer: committer}
}

func TestExpire_FirstCallOnFreshTableOnlyEstablishesCheckpoint(t *testing.T) {
	live := []core.Partition{partitionOf("20230101"), partitionOf("20230103"), partitionOf("20230105")}
	tc := newTestController(t, live, nil, 0, 0)

	ran, err := tc.Expire(context.Background(), date(3), 1)
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Empty(t, tc.handler.dropped)
}

// TestExpire_BasicScenario mirrors the reference PartitionExpireTest#test():
// setLastCheck(day 1), then expire calls at days 3, 5, 6, 8.
func TestExpire_BasicScenario(t *testing.T) {
	live := []core.Partition{partitionOf("20230101"), partitionOf("20230103"), partitionOf("20230105")}
	seed := date(1)
	tc := newTestController(t, live, &seed, 0, 0)

	ran, err := tc.Expire(context.Background(), date(3), 1)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Empty(t, tc.handler.dropped, "20230101+2d lands exactly on now(3); not yet expired")

	ran, err = tc.Expire(context.Background(), date(5), 2)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.ElementsMatch(t, []core.Partition{partitionOf("20230101")}, tc.handler.allDropped())

	ran, err = tc.Expire(context.Background(), date(6), 3)
	require.NoError(t, err)
	assert.False(t, ran, "check_interval (1d) has not been strictly exceeded since day 5")
	assert.ElementsMatch(t, []core.Partition{partitionOf("20230101")}, tc.handler.allDropped())

	ran, err = tc.Expire(context.Background(), date(8), 4)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.ElementsMatch(t,
		[]core.Partition{partitionOf("20230101"), partitionOf("20230103"), partitionOf("20230105")},
		tc.handler.allDropped())
}

func TestExpire_UnparseablePartitionsPreserved(t *testing.T) {
	live := []core.Partition{
		partitionOf("20230101"), partitionOf("abcd"), partitionOf("20230103"), partitionOf("20230105"),
	}
	seed := date(1)
	tc := newTestController(t, live, &seed, 0, 0)

	_, err := tc.Expire(context.Background(), date(8), 1)
	require.NoError(t, err)

	assert.NotContains(t, tc.handler.allDropped(), partitionOf("abcd"))
	assert.Len(t, tc.handler.allDropped(), 3)
}

func TestExpire_BatchedExpireProducesOneCommitPerChunk(t *testing.T) {
	live := []core.Partition{partitionOf("20230101"), partitionOf("20230103"), partitionOf("20230105")}
	seed := date(1)
	tc := newTestController(t, live, &seed, 1, 0)

	_, err := tc.Expire(context.Background(), date(8), 1)
	require.NoError(t, err)

	assert.Len(t, tc.committer.commits, 3)
	for _, chunk := range tc.committer.commits {
		assert.Len(t, chunk, 1)
	}
}

func TestExpire_IsExpiredTracksDroppedPartitionsUntilForgotten(t *testing.T) {
	live := []core.Partition{partitionOf("20230101")}
	seed := date(1)
	tc := newTestController(t, live, &seed, 0, 0)

	assert.False(t, tc.IsExpired(partitionOf("20230101")))

	_, err := tc.Expire(context.Background(), date(5), 1)
	require.NoError(t, err)
	assert.True(t, tc.IsExpired(partitionOf("20230101")))

	tc.Forget([]core.Partition{partitionOf("20230101")})
	assert.False(t, tc.IsExpired(partitionOf("20230101")))
}

func TestExpire_MaxExpiresCapsResult(t *testing.T) {
	live := []core.Partition{partitionOf("20230101"), partitionOf("20230103"), partitionOf("20230105")}
	seed := date(1)
	tc := newTestController(t, live, &seed, 0, 1)

	_, err := tc.Expire(context.Background(), date(8), 1)
	require.NoError(t, err)

	dropped := tc.handler.allDropped()
	require.Len(t, dropped, 1)
	assert.Equal(t, partitionOf("20230101"), dropped[0])
}
