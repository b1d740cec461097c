package levels

import (
	"testing"

	"github.com/lakestore/tablecore/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(k int64) core.Row { return core.Row{"k": k} }

func file(min, max int64) core.DataFileMeta {
	return core.DataFileMeta{MinKey: row(min), MaxKey: row(max)}
}

func TestPlan_NonOverlappingFilesFormSingleRunSections(t *testing.T) {
	cmp := core.NewKeyComparator([]string{"k"})
	files := []core.DataFileMeta{file(10, 20), file(30, 40), file(50, 60)}

	sections := Plan(files, cmp)

	require.Len(t, sections, 3)
	for _, sec := range sections {
		assert.False(t, sec.Overlapping())
		assert.Len(t, sec.Runs, 1)
	}
}

func TestPlan_OverlappingFilesFormMultiRunSection(t *testing.T) {
	cmp := core.NewKeyComparator([]string{"k"})
	// Two files covering the same range must land in separate runs within
	// one overlapping section.
	files := []core.DataFileMeta{file(1, 10), file(3, 10)}

	sections := Plan(files, cmp)

	require.Len(t, sections, 1)
	assert.True(t, sections[0].Overlapping())
	assert.Len(t, sections[0].Runs, 2)
}

func TestPlan_FirstFitPacksThreeIntoTwoRuns(t *testing.T) {
	cmp := core.NewKeyComparator([]string{"k"})
	// A:[1,5] B:[6,10] both disjoint so can share a run; C:[3,8] overlaps
	// both and needs a second run.
	files := []core.DataFileMeta{file(1, 5), file(3, 8), file(6, 10)}

	sections := Plan(files, cmp)

	require.Len(t, sections, 1)
	sec := sections[0]
	assert.True(t, sec.Overlapping())
	require.Len(t, sec.Runs, 2)
	assert.Len(t, sec.Runs[0].Files, 2) // A, B share the first run
	assert.Len(t, sec.Runs[1].Files, 1) // C alone in the second run
}

func TestPlan_Empty(t *testing.T) {
	cmp := core.NewKeyComparator([]string{"k"})
	assert.Nil(t, Plan(nil, cmp))
}

func TestSectionsInRange_TrimsAndDrops(t *testing.T) {
	cmp := core.NewKeyComparator([]string{"k"})
	sections := Plan([]core.DataFileMeta{file(1, 10), file(20, 30), file(40, 50)}, cmp)

	filtered := SectionsInRange(sections, row(15), row(45), cmp)

	require.Len(t, filtered, 2)
	assert.Equal(t, int64(20), filtered[0].Files()[0].MinKey["k"])
	assert.Equal(t, int64(40), filtered[1].Files()[0].MinKey["k"])
}

// TestPlan_OverlapAwarePushdownScenario grounds spec scenario S6: two runs
// both cover [k1,k2], so the section must report Overlapping()==true,
// signalling that callers must not push a value predicate into per-file
// readers for this section.
func TestPlan_OverlapAwarePushdownScenario(t *testing.T) {
	cmp := core.NewKeyComparator([]string{"k"})
	runA := core.DataFileMeta{MinKey: row(1), MaxKey: row(2), MinSeqNum: 100, MaxSeqNum: 100}
	runB := core.DataFileMeta{MinKey: row(1), MaxKey: row(2), MinSeqNum: 10, MaxSeqNum: 10}

	sections := Plan([]core.DataFileMeta{runA, runB}, cmp)

	require.Len(t, sections, 1)
	assert.True(t, sections[0].Overlapping(), "overlapping runs must not be collapsed into one run")
}
