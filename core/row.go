package core

// Row is a structured tuple of values keyed by field name. Both keys and
// values in a KeyValue are Rows; the table schema decides which fields of
// the value row constitute the primary key.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Project returns a new Row containing only the named fields. Missing
// fields are simply absent from the result.
func (r Row) Project(fields []string) Row {
	out := make(Row, len(fields))
	for _, f := range fields {
		if v, ok := r[f]; ok {
			out[f] = v
		}
	}
	return out
}

// KeyValue is a single record flowing through the merge-read engine.
type KeyValue struct {
	Key       Row
	Value     Row
	SeqNumber uint64
	RowKind   RowKind
}

// SortOrder controls the direction in which sequence/UDS values order
// records that share a key.
type SortOrder byte

const (
	Ascending SortOrder = iota
	Descending
)

// CommitKind classifies what kind of change a Snapshot represents.
type CommitKind string

const (
	CommitKindAppend    CommitKind = "APPEND"
	CommitKindCompact   CommitKind = "COMPACT"
	CommitKindOverwrite CommitKind = "OVERWRITE"
)

// Partition is an ordered tuple of partition-key column values, represented
// as name -> formatted string. Field order follows the partition schema.
type Partition struct {
	Fields []string
	Values map[string]string
}

// Key returns a stable, order-independent identity string for the
// partition, suitable for use as a map key.
func (p Partition) Key() string {
	s := make([]byte, 0, 64)
	for _, f := range p.Fields {
		s = append(s, f...)
		s = append(s, '=')
		s = append(s, p.Values[f]...)
		s = append(s, '/')
	}
	return string(s)
}

func (p Partition) String() string {
	return p.Key()
}

// PartitionStatistics carries aggregate file-level stats for a partition,
// reported to the external catalog via PartitionHandler.AlterPartitions.
type PartitionStatistics struct {
	Partition      Partition
	RowCount       int64
	FileCount      int64
	TotalSizeBytes int64
	LastModified   int64 // unix millis
}

// POSTPONE_BUCKET marks a split whose bucket assignment is deferred to
// read time rather than fixed at write time.
const PostponeBucket = -1
