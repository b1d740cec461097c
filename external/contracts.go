// Package external defines the boundary contracts this core consumes from
// its host system: durable byte storage, the schema catalog, the
// partition/bucket catalog, and the on-disk record format. Concrete file
// formats and catalog services live outside this module's scope; this
// package only states the shape a host must provide.
package external

import (
	"context"
	"io"

	"github.com/lakestore/tablecore/core"
)

// FileIO abstracts durable byte storage for data, manifest and deletion
// files. Paths are opaque strings the rest of the core treats as handles,
// never parses.
type FileIO interface {
	OpenInput(ctx context.Context, path string) (io.ReadCloser, error)
	OpenOutput(ctx context.Context, path string) (io.WriteCloser, error)
	List(ctx context.Context, dir string) ([]string, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
	// Rename atomically publishes a file written to oldPath under newPath,
	// the write-and-rename pattern the Partition Expire Controller's
	// last_check_time persistence and snapshot.PersistSnapshot's pointer
	// files both rely on for crash safety.
	Rename(ctx context.Context, oldPath, newPath string) error
}

// SchemaManager resolves a table's schema history. The merge-read and
// commit paths only ever need the latest schema id and the field list it
// implies for key-comparator construction; full DDL lives outside scope.
type SchemaManager interface {
	Latest(ctx context.Context) (schemaID int64, keyFields []string, err error)
	Get(ctx context.Context, schemaID int64) (keyFields []string, err error)
}

// PartitionHandler is the catalog-facing sink for partition lifecycle
// events the Partition Expire Controller and Commit Coordinator produce.
type PartitionHandler interface {
	CreatePartitions(ctx context.Context, partitions []core.Partition) error
	DropPartitions(ctx context.Context, partitions []core.Partition) error
	AlterPartitions(ctx context.Context, stats []core.PartitionStatistics) error
	MarkDonePartitions(ctx context.Context, partitions []core.Partition) error
	Close() error
}

// PartitionEnumerator lists the partitions live under a published snapshot,
// standing in for the manifest-list walk the Partition Expire Controller
// would otherwise perform directly; the on-disk manifest format is external
// to this core (see FileIO), so enumeration is a capability the host
// injects instead.
type PartitionEnumerator interface {
	LivePartitions(ctx context.Context, snap *core.Snapshot) ([]core.Partition, error)
}

// KeyValueFileReaderFactory builds a core.RecordIterator over one sealed
// data file's full, undecoded contents. The on-disk encoding (columnar,
// row-oriented, whatever the host chooses) is entirely behind this
// contract; this core never interprets file bytes itself.
type KeyValueFileReaderFactory interface {
	Open(ctx context.Context, path string, meta core.DataFileMeta) (core.RecordIterator, error)
}

// IOManager allocates spill space for the Merge Engine's sorter. The merge
// path implemented by this core runs entirely in memory today, so nothing
// currently requests a spill file through it, but the Split Read Façade
// still accepts and holds one for its reader's full lifetime and releases
// it on Close, so a caller-supplied spill pool is never leaked even before
// a spilling sorter lands.
type IOManager interface {
	Close() error
}
