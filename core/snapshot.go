package core

// Snapshot is a versioned metadata pointer: the unit the Snapshot & Schema
// Registry hands back for a given id, and the unit the Commit Coordinator
// publishes atomically.
type Snapshot struct {
	ID         int64      `json:"id"`
	CommitKind CommitKind `json:"commit_kind"`
	SchemaID   int64      `json:"schema_id"`

	BaseManifestList      string `json:"base_manifest_list"`
	DeltaManifestList     string `json:"delta_manifest_list"`
	ChangelogManifestList string `json:"changelog_manifest_list,omitempty"`

	// CommitIdentifier is the writer-supplied monotonic tag correlating a
	// prepared commit with the snapshot that publishes it; used by
	// filter_and_commit for idempotent retry.
	CommitIdentifier int64  `json:"commit_identifier"`
	CommitUser       string `json:"commit_user"`

	// DroppedPartitions lists partitions this OVERWRITE snapshot removed,
	// empty for APPEND/COMPACT snapshots.
	DroppedPartitions []Partition `json:"dropped_partitions,omitempty"`

	TimestampMillis int64 `json:"timestamp_millis"`
}

// ManifestEntry describes one data file's membership in a manifest list,
// enough for the Interval-Partition Planner and Partition Expire Controller
// to enumerate files per (partition, bucket) without touching bytes.
type ManifestEntry struct {
	Partition Partition
	Bucket    int
	File      DataFileMeta
}
