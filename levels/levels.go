// Package levels implements the Interval-Partition Planner: grouping a
// flat list of data files belonging to one (partition, bucket) into
// Sections of SortedRuns by key-range interval containment.
package levels

import (
	"sort"

	"github.com/lakestore/tablecore/core"
)

// SortedRun is an ordered, key-disjoint sequence of data files: for any two
// consecutive files f_i, f_{i+1}, f_i.MaxKey < f_{i+1}.MinKey under the
// run's key comparator.
type SortedRun struct {
	Files []core.DataFileMeta
}

// MinKey returns the lowest key covered by the run.
func (r SortedRun) MinKey() core.Row {
	if len(r.Files) == 0 {
		return nil
	}
	return r.Files[0].MinKey
}

// MaxKey returns the highest key covered by the run.
func (r SortedRun) MaxKey() core.Row {
	if len(r.Files) == 0 {
		return nil
	}
	return r.Files[len(r.Files)-1].MaxKey
}

// Section is a maximal set of SortedRuns whose key-range intervals mutually
// overlap. A Section with exactly one run is Overlapping() == false and
// admits value-predicate pushdown into its file readers; a Section with two
// or more runs must restrict pushdown to key-only predicates, since a value
// predicate evaluated locally could discard a row a merge would otherwise
// keep (see S6 in the package tests).
type Section struct {
	Runs []SortedRun
}

// Overlapping reports whether this section requires a merge across more
// than one run.
func (s Section) Overlapping() bool {
	return len(s.Runs) > 1
}

// Files returns every file in the section across all runs, in no
// particular cross-run order.
func (s Section) Files() []core.DataFileMeta {
	var out []core.DataFileMeta
	for _, r := range s.Runs {
		out = append(out, r.Files...)
	}
	return out
}

// Plan groups files into an ordered list of Sections using the comparator
// to order and compare key ranges. Input order is not significant; Plan
// sorts internally by MinKey, ties broken by MaxKey.
//
// Algorithm: sweep the sorted files left to right, extending the current
// open section's interval while the next file's MinKey falls within it;
// otherwise close the section and start a new one. Within each section,
// greedily pack files into sorted runs by first-fit: place a file into the
// earliest existing run whose current MaxKey is less than the file's
// MinKey, else start a new run. The result is deterministic for a given
// input and comparator.
func Plan(files []core.DataFileMeta, cmp core.KeyComparator) []Section {
	if len(files) == 0 {
		return nil
	}

	sorted := make([]core.DataFileMeta, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool {
		if d := cmp.Compare(sorted[i].MinKey, sorted[j].MinKey); d != 0 {
			return d < 0
		}
		return cmp.Compare(sorted[i].MaxKey, sorted[j].MaxKey) < 0
	})

	var sections []Section
	var current []core.DataFileMeta
	var runningMax core.Row

	flush := func() {
		if len(current) == 0 {
			return
		}
		sections = append(sections, Section{Runs: packRuns(current, cmp)})
		current = nil
	}

	for _, f := range sorted {
		if len(current) == 0 || cmp.Compare(f.MinKey, runningMax) <= 0 {
			current = append(current, f)
			if runningMax == nil || cmp.Compare(f.MaxKey, runningMax) > 0 {
				runningMax = f.MaxKey
			}
			continue
		}
		flush()
		current = append(current, f)
		runningMax = f.MaxKey
	}
	flush()

	return sections
}

// packRuns assigns files (already sorted by MinKey, then MaxKey) to the
// minimal number of key-disjoint runs using a first-fit policy.
func packRuns(files []core.DataFileMeta, cmp core.KeyComparator) []SortedRun {
	var runs []SortedRun
	for _, f := range files {
		placed := false
		for i := range runs {
			last := runs[i].Files[len(runs[i].Files)-1]
			if cmp.Compare(last.MaxKey, f.MinKey) < 0 {
				runs[i].Files = append(runs[i].Files, f)
				placed = true
				break
			}
		}
		if !placed {
			runs = append(runs, SortedRun{Files: []core.DataFileMeta{f}})
		}
	}
	return runs
}
