package commit

import "github.com/lakestore/tablecore/core"

// DataIncrement describes the file-level delta an append commit contributes
// to one (partition, bucket): files it adds, plus the before/after view of
// any compaction the writer folded into the same commit.
type DataIncrement struct {
	NewFiles      []core.DataFileMeta
	CompactBefore []core.DataFileMeta
	CompactAfter  []core.DataFileMeta
}

// CompactIncrement describes a standalone compaction's file-level delta.
type CompactIncrement struct {
	CompactedFiles []core.DataFileMeta
	CompactBefore  []core.DataFileMeta
	CompactAfter   []core.DataFileMeta
}

// Message is one writer-prepared unit of change targeting a single
// (partition, bucket). A commit publishes a snapshot built from one or more
// Messages sharing a commit identifier.
type Message struct {
	Partition    core.Partition
	Bucket       int
	TotalBuckets int
	Data         *DataIncrement
	Compact      *CompactIncrement
}

// kind reports the CommitKind a message implies on its own: COMPACT if it
// carries only a CompactIncrement, APPEND otherwise. A batch of messages
// commits as COMPACT only when every message in it is compaction-only;
// mixed batches commit as APPEND, matching the source's convention that an
// append commit may carry compaction file changes alongside new files.
func (m Message) kind() core.CommitKind {
	if m.Data == nil && m.Compact != nil {
		return core.CommitKindCompact
	}
	return core.CommitKindAppend
}

func kindOf(messages []Message) core.CommitKind {
	if len(messages) == 0 {
		return core.CommitKindAppend
	}
	kind := messages[0].kind()
	for _, m := range messages[1:] {
		if m.kind() != kind {
			return core.CommitKindAppend
		}
	}
	return kind
}
