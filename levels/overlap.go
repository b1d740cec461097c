package levels

import "github.com/lakestore/tablecore/core"

// SectionsInRange filters sections to those whose overall key range
// intersects [minKey, maxKey], trimming each retained section's runs with
// FilesInRange. Sections that end up with no files after trimming are
// dropped. A nil bound is unbounded on that side.
func SectionsInRange(sections []Section, minKey, maxKey core.Row, cmp core.KeyComparator) []Section {
	if minKey == nil && maxKey == nil {
		return sections
	}

	var out []Section
	for _, sec := range sections {
		var runs []SortedRun
		for _, run := range sec.Runs {
			if !RunOverlapsRange(run, minKey, maxKey, cmp) {
				continue
			}
			files := FilesInRange(run, minKey, maxKey, cmp)
			if len(files) == 0 {
				continue
			}
			runs = append(runs, SortedRun{Files: files})
		}
		if len(runs) > 0 {
			out = append(out, Section{Runs: runs})
		}
	}
	return out
}
