package commit

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/lakestore/tablecore/core"
	"github.com/lakestore/tablecore/hooks"
	"github.com/lakestore/tablecore/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry() snapshot.Registry {
	return snapshot.NewRegistry(slog.Default(), nil)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func partitionOf(v string) core.Partition {
	return core.Partition{Fields: []string{"f0"}, Values: map[string]string{"f0": v}}
}

type fakeExpiredChecker struct {
	expired map[string]bool
}

func (f *fakeExpiredChecker) IsExpired(p core.Partition) bool {
	return f.expired[p.Key()]
}

func newAppendMessage(p core.Partition) Message {
	return Message{
		Partition: p,
		Bucket:    0,
		Data:      &DataIncrement{NewFiles: []core.DataFileMeta{{Path: "f1"}}},
	}
}

func TestCoordinator_CommitPublishesAppendSnapshot(t *testing.T) {
	reg := newRegistry()
	co := New(Options{Registry: reg, CommitUser: "writer-1", Clock: fixedClock(time.Unix(1000, 0))})

	snap, err := co.Commit(context.Background(), 0, []Message{newAppendMessage(partitionOf("20230101"))})
	require.NoError(t, err)
	assert.Equal(t, core.CommitKindAppend, snap.CommitKind)
	assert.Equal(t, int64(0), snap.CommitIdentifier)
	assert.Equal(t, "writer-1", snap.CommitUser)

	latest := reg.Latest()
	require.NotNil(t, latest)
	assert.Equal(t, snap.ID, latest.ID)
}

func TestCoordinator_CommitCompactOnlyMessagesPublishCompactKind(t *testing.T) {
	reg := newRegistry()
	co := New(Options{Registry: reg, CommitUser: "writer-1"})

	msg := Message{
		Partition: partitionOf("20230101"),
		Compact:   &CompactIncrement{CompactedFiles: []core.DataFileMeta{{Path: "f1"}}},
	}
	snap, err := co.Commit(context.Background(), 0, []Message{msg})
	require.NoError(t, err)
	assert.Equal(t, core.CommitKindCompact, snap.CommitKind)
}

func TestCoordinator_CommitOverwriteProducesOverwriteSnapshotWithDroppedPartitions(t *testing.T) {
	reg := newRegistry()
	co := New(Options{Registry: reg, CommitUser: "writer-1"})

	dropped := []core.Partition{partitionOf("20230101"), partitionOf("20230103")}
	err := co.CommitOverwrite(context.Background(), 1, dropped)
	require.NoError(t, err)

	latest := reg.Latest()
	require.NotNil(t, latest)
	assert.Equal(t, core.CommitKindOverwrite, latest.CommitKind)
	assert.ElementsMatch(t, dropped, latest.DroppedPartitions)
}

// conflictOnceRegistry forces the first Commit call to fail with a
// CommitConflictError regardless of the caller's expectedBase, then
// delegates normally; it stands in for a concurrent committer racing the
// coordinator on the first attempt.
type conflictOnceRegistry struct {
	snapshot.Registry
	failed bool
}

func (r *conflictOnceRegistry) Commit(ctx context.Context, expectedBase int64, snap *core.Snapshot) error {
	if !r.failed {
		r.failed = true
		return &core.CommitConflictError{ExpectedBase: expectedBase, ActualLatest: expectedBase + 1}
	}
	return r.Registry.Commit(ctx, expectedBase, snap)
}

// TestCoordinator_ConflictRetriesAgainstFreshBase mirrors S3's batched-commit
// spirit: a conflicted attempt is retried against a freshly-read base rather
// than surfaced to the caller.
func TestCoordinator_ConflictRetriesAgainstFreshBase(t *testing.T) {
	reg := &conflictOnceRegistry{Registry: newRegistry()}
	co := New(Options{Registry: reg, CommitUser: "writer-1", InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond})

	snap, err := co.Commit(context.Background(), 5, []Message{newAppendMessage(partitionOf("20230101"))})
	require.NoError(t, err)
	assert.True(t, reg.failed, "the stubbed conflict must have been exercised")
	assert.Equal(t, snap.ID, reg.Registry.Latest().ID)
}

func TestCoordinator_ConflictExhaustingRetriesSurfacesConflictError(t *testing.T) {
	reg := &alwaysConflictRegistry{Registry: newRegistry()}
	co := New(Options{Registry: reg, CommitUser: "writer-1", MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond})

	_, err := co.Commit(context.Background(), 0, []Message{newAppendMessage(partitionOf("20230101"))})
	require.Error(t, err)
	assert.True(t, core.IsCommitConflict(err))
}

type alwaysConflictRegistry struct {
	snapshot.Registry
}

func (r *alwaysConflictRegistry) Commit(ctx context.Context, expectedBase int64, snap *core.Snapshot) error {
	return &core.CommitConflictError{ExpectedBase: expectedBase, ActualLatest: expectedBase + 1}
}

func TestCoordinator_WriteGuardRejectsExpiredPartitionTarget(t *testing.T) {
	reg := newRegistry()
	checker := &fakeExpiredChecker{expired: map[string]bool{partitionOf("20230101").Key(): true}}
	co := New(Options{Registry: reg, CommitUser: "writer-1", Expired: checker})

	_, err := co.Commit(context.Background(), 0, []Message{newAppendMessage(partitionOf("20230101"))})
	require.Error(t, err)
	assert.True(t, core.IsWritingToExpiredPartition(err))
	assert.Nil(t, reg.Latest(), "rejected commit must not publish a snapshot")
}

func TestCoordinator_SetExpiredWiresGuardAfterConstruction(t *testing.T) {
	reg := newRegistry()
	co := New(Options{Registry: reg, CommitUser: "writer-1"})

	checker := &fakeExpiredChecker{expired: map[string]bool{partitionOf("20230101").Key(): true}}
	co.SetExpired(checker)

	_, err := co.Commit(context.Background(), 0, []Message{newAppendMessage(partitionOf("20230101"))})
	require.Error(t, err)
	assert.True(t, core.IsWritingToExpiredPartition(err))
}

func TestCoordinator_WriteGuardDoesNotApplyToCommitOverwrite(t *testing.T) {
	reg := newRegistry()
	checker := &fakeExpiredChecker{expired: map[string]bool{partitionOf("20230101").Key(): true}}
	co := New(Options{Registry: reg, CommitUser: "writer-1", Expired: checker})

	err := co.CommitOverwrite(context.Background(), 0, []core.Partition{partitionOf("20230101")})
	require.NoError(t, err)
}

func TestCoordinator_FilterAndCommitSkipsAlreadyCommittedIdentifiers(t *testing.T) {
	reg := newRegistry()
	co := New(Options{Registry: reg, CommitUser: "writer-1"})

	_, err := co.Commit(context.Background(), 0, []Message{newAppendMessage(partitionOf("20230101"))})
	require.NoError(t, err)
	firstLatest := reg.Latest().ID

	err = co.FilterAndCommit(context.Background(), map[int64][]Message{
		0: {newAppendMessage(partitionOf("20230101"))},
		1: {newAppendMessage(partitionOf("20230103"))},
	})
	require.NoError(t, err)

	assert.Equal(t, firstLatest+1, reg.Latest().ID, "identifier 0 must be skipped, only identifier 1 publishes a new snapshot")
}

// TestCoordinator_FilterAndCommitAppliesIdentifiersInOrder mirrors S4: after
// committing K of N prepared identifiers and then calling filter_and_commit
// with the full map, the final latest snapshot's identifier is N-1.
func TestCoordinator_FilterAndCommitAppliesIdentifiersInOrder(t *testing.T) {
	reg := newRegistry()
	co := New(Options{Registry: reg, CommitUser: "writer-1"})

	const n = 20
	const k = 7
	all := map[int64][]Message{}
	for i := int64(0); i < n; i++ {
		all[i] = []Message{newAppendMessage(partitionOf("20230101"))}
	}
	for i := int64(0); i < k; i++ {
		_, err := co.Commit(context.Background(), i, all[i])
		require.NoError(t, err)
	}

	require.NoError(t, co.FilterAndCommit(context.Background(), all))
	assert.Equal(t, int64(n-1), reg.Latest().CommitIdentifier)
}

func TestCoordinator_PreCommitHookCanCancelCommit(t *testing.T) {
	reg := newRegistry()
	hm := hooks.NewHookManager(nil)
	hm.Register(hooks.EventPreCommit, cancellingListener{})
	co := New(Options{Registry: reg, CommitUser: "writer-1", Hooks: hm})

	_, err := co.Commit(context.Background(), 0, []Message{newAppendMessage(partitionOf("20230101"))})
	require.Error(t, err)
	assert.Nil(t, reg.Latest())
}

type cancellingListener struct{}

func (cancellingListener) OnEvent(ctx context.Context, event hooks.HookEvent) error {
	return assert.AnError
}
func (cancellingListener) Priority() int { return 0 }
func (cancellingListener) IsAsync() bool { return false }
