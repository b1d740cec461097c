package snapshot

import (
	"context"
	"log/slog"
	"sync"

	"github.com/INLOpen/skiplist"
	"github.com/lakestore/tablecore/core"
	"go.opentelemetry.io/otel/trace"
)

func idComparator(a, b int64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// skiplistRegistry is the default Registry implementation: an ordered index
// of snapshot id -> *core.Snapshot kept in a skip list so EarliestID,
// LatestID and range iteration are all cheap, guarded by a single RWMutex.
type skiplistRegistry struct {
	mu     sync.RWMutex
	byID   *skiplist.SkipList[int64, *core.Snapshot]
	latest int64 // 0 means empty
	logger *slog.Logger
	tracer trace.Tracer
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger, tracer trace.Tracer) Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &skiplistRegistry{
		byID:   skiplist.NewWithComparator[int64, *core.Snapshot](idComparator),
		logger: logger,
		tracer: tracer,
	}
}

func (r *skiplistRegistry) TryGet(id int64) (*core.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if node, ok := r.byID.Seek(id); ok && node.Key() == id {
		return node.Value(), nil
	}

	if earliest, ok := r.earliestLocked(); ok && id < earliest {
		return nil, &core.SnapshotGoneError{ID: id}
	}
	// Beyond latest (any positive id on an empty registry): not published yet.
	if id > r.latest {
		return nil, nil
	}
	// id falls within [earliest, latest] but was dropped out of order; treat
	// as gone rather than silently returning nothing.
	return nil, &core.SnapshotGoneError{ID: id}
}

func (r *skiplistRegistry) earliestLocked() (int64, bool) {
	iter := r.byID.NewIterator()
	if !iter.Next() {
		return 0, false
	}
	return iter.Key(), true
}

func (r *skiplistRegistry) EarliestID() (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.earliestLocked()
}

func (r *skiplistRegistry) LatestID() (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.latest == 0 {
		return 0, false
	}
	return r.latest, true
}

func (r *skiplistRegistry) Latest() *core.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.latest == 0 {
		return nil
	}
	node, ok := r.byID.Seek(r.latest)
	if !ok {
		return nil
	}
	return node.Value()
}

func (r *skiplistRegistry) LatestSchemaID() (int64, bool) {
	snap := r.Latest()
	if snap == nil {
		return 0, false
	}
	return snap.SchemaID, true
}

func (r *skiplistRegistry) IterSnapshots(fn func(*core.Snapshot) bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	iter := r.byID.NewIterator()
	for iter.Next() {
		if !fn(iter.Value()) {
			return
		}
	}
}

// Commit publishes snap under optimistic concurrency control: it only
// succeeds if expectedBase still matches the registry's current latest id.
func (r *skiplistRegistry) Commit(ctx context.Context, expectedBase int64, snap *core.Snapshot) error {
	var span trace.Span
	if r.tracer != nil {
		ctx, span = r.tracer.Start(ctx, "snapshot.Commit")
		defer span.End()
	}
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.latest != expectedBase {
		return &core.CommitConflictError{ExpectedBase: expectedBase, ActualLatest: r.latest}
	}

	r.byID.Insert(snap.ID, snap)
	r.latest = snap.ID
	r.logger.Debug("published snapshot", "id", snap.ID, "commit_kind", snap.CommitKind)
	return nil
}

// Expire removes every retained snapshot with id < beforeID from the index,
// returning the removed ids in ascending order. It never removes the
// current latest snapshot, even if beforeID exceeds it.
func (r *skiplistRegistry) Expire(beforeID int64) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var toRemove []int64
	iter := r.byID.NewIterator()
	for iter.Next() {
		id := iter.Key()
		if id >= beforeID || id == r.latest {
			break
		}
		toRemove = append(toRemove, id)
	}
	for _, id := range toRemove {
		r.byID.Delete(id)
	}
	return toRemove
}
