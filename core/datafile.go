package core

// DataFileMeta describes one sealed on-disk data file. Files at level 0 may
// overlap in key range; files at level >= 1 within the same level are
// non-overlapping (the Interval-Partition Planner enforces this on read,
// the writer enforces it on write — out of scope here).
type DataFileMeta struct {
	Path        string
	Level       int
	MinKey      Row
	MaxKey      Row
	KeyCount    int64
	MinSeqNum   uint64
	MaxSeqNum   uint64
	FileSizeBytes int64
	// ValueStats holds optional per-column min/max/null-count statistics
	// used for predicate pushdown decisions upstream of the reader.
	ValueStats map[string]ColumnStats
}

// ColumnStats is a coarse per-file statistic for one value column.
type ColumnStats struct {
	Min      any
	Max      any
	NullCount int64
}

// DeletionFile names the sidecar file holding a DeletionVector for one
// DataFileMeta, plus the byte range within it (deletion vectors for many
// data files are frequently packed into a single physical file).
type DeletionFile struct {
	DataFilePath string
	Path         string
	Offset       int64
	Length       int64
}

// DataSplit is a unit of read work handed to the Split Read Façade.
type DataSplit struct {
	Partition     Partition
	Bucket        int
	Files         []DataFileMeta
	DeletionFiles []DeletionFile
	// BeforeFiles is only ever populated for changelog/streaming reads; a
	// non-empty BeforeFiles handed to the merge path is a caller error.
	BeforeFiles []DataFileMeta
	IsStreaming bool
}

// Empty reports whether the split carries no data files at all, in which
// case the reader it produces must yield zero records.
func (s DataSplit) Empty() bool {
	return len(s.Files) == 0
}
