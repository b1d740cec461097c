package levels

import "github.com/lakestore/tablecore/core"

// RunOverlapsRange reports whether a SortedRun's key range intersects
// [minKey, maxKey]. A nil bound is treated as unbounded on that side.
func RunOverlapsRange(run SortedRun, minKey, maxKey core.Row, cmp core.KeyComparator) bool {
	if len(run.Files) == 0 {
		return false
	}
	if maxKey != nil && cmp.Compare(run.MinKey(), maxKey) > 0 {
		return false
	}
	if minKey != nil && cmp.Compare(run.MaxKey(), minKey) < 0 {
		return false
	}
	return true
}

// FilesInRange returns the files of a single SortedRun whose individual
// ranges intersect [minKey, maxKey]. Because a run's files are internally
// non-overlapping and sorted, this narrows the scan with a binary search on
// MaxKey, mirroring how a non-overlapping level locates candidate tables.
func FilesInRange(run SortedRun, minKey, maxKey core.Row, cmp core.KeyComparator) []core.DataFileMeta {
	files := run.Files
	if len(files) == 0 {
		return nil
	}

	start := 0
	if minKey != nil {
		lo, hi := 0, len(files)
		for lo < hi {
			mid := (lo + hi) / 2
			if cmp.Compare(files[mid].MaxKey, minKey) >= 0 {
				hi = mid
			} else {
				lo = mid + 1
			}
		}
		start = lo
	}

	var out []core.DataFileMeta
	for i := start; i < len(files); i++ {
		f := files[i]
		if maxKey != nil && cmp.Compare(f.MinKey, maxKey) > 0 {
			break
		}
		out = append(out, f)
	}
	return out
}
