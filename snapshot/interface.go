// Package snapshot implements the registry of published table snapshots and
// the schema history they reference, the fixed point every reader and the
// commit coordinator agree on.
package snapshot

import (
	"context"

	"github.com/lakestore/tablecore/core"
)

// Registry is the append-only, id-ordered store of published snapshots plus
// the schema versions a table has carried over its lifetime. A Registry is
// safe for concurrent use.
type Registry interface {
	// TryGet returns the snapshot with the given id, or a *core.SnapshotGoneError
	// if id predates the earliest retained snapshot, or nil (no error) if id
	// is beyond the latest published snapshot.
	TryGet(id int64) (*core.Snapshot, error)

	// EarliestID returns the id of the oldest retained snapshot, and false if
	// the registry holds no snapshots at all.
	EarliestID() (int64, bool)

	// LatestID returns the id of the most recently published snapshot, and
	// false if the registry holds no snapshots at all.
	LatestID() (int64, bool)

	// Latest returns the most recently published snapshot, or nil if none
	// has been published yet.
	Latest() *core.Snapshot

	// IterSnapshots calls fn for every retained snapshot in ascending id
	// order, stopping early if fn returns false.
	IterSnapshots(fn func(*core.Snapshot) bool)

	// Commit publishes snap as the new latest snapshot. It returns
	// *core.CommitConflictError if expectedBase does not match the current
	// latest id, leaving the registry unchanged.
	Commit(ctx context.Context, expectedBase int64, snap *core.Snapshot) error

	// Expire drops every retained snapshot with id < beforeID from the
	// registry's in-memory index (their manifest files are removed by the
	// caller). It returns the ids removed.
	Expire(beforeID int64) []int64

	// LatestSchemaID returns the schema id attached to the latest snapshot,
	// and false if the registry holds no snapshots yet.
	LatestSchemaID() (int64, bool)
}
