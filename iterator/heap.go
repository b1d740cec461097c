package iterator

import (
	"container/heap"
	"fmt"

	"github.com/lakestore/tablecore/core"
)

// mergeItem is one source's current record, parked in the merge heap.
type mergeItem struct {
	iter      core.RecordIterator
	sourceIdx int // position in the original source list; lower wins physical-order ties
	current   *core.KeyValue
}

// mergeHeap orders items by key under keyCmp, then by the configured
// within-key ordering (UDS comparator if set, else sequence number), then
// by source index as a final, deterministic physical-order tiebreak.
type mergeHeap struct {
	items  []*mergeItem
	keyCmp core.KeyComparator
	order  core.SortOrder
	uds    UDSComparator
}

func (h *mergeHeap) Len() int { return len(h.items) }

func (h *mergeHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if d := h.keyCmp.Compare(a.current.Key, b.current.Key); d != 0 {
		return d < 0
	}
	return h.withinKeyLess(a, b)
}

// withinKeyLess decides which of two same-key records should be consumed
// first. Ascending order means the "smallest" sequence/UDS value surfaces
// first; Descending reverses that. A tie falls back to source index.
func (h *mergeHeap) withinKeyLess(a, b *mergeItem) bool {
	var cmp int
	if h.uds != nil {
		cmp = h.uds.Compare(a.current, b.current)
	} else {
		switch {
		case a.current.SeqNumber < b.current.SeqNumber:
			cmp = -1
		case a.current.SeqNumber > b.current.SeqNumber:
			cmp = 1
		}
	}
	if cmp != 0 {
		if h.order == core.Descending {
			return cmp > 0
		}
		return cmp < 0
	}
	return a.sourceIdx < b.sourceIdx
}

func (h *mergeHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *mergeHeap) Push(x interface{}) {
	h.items = append(h.items, x.(*mergeItem))
}

func (h *mergeHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	return item
}

// fill advances item's iterator and pushes it back onto the heap, or drops
// it (closing its iterator on error) if it's exhausted.
func (h *mergeHeap) fill(item *mergeItem) error {
	if !item.iter.Next() {
		if err := item.iter.Error(); err != nil {
			return err
		}
		return nil
	}
	kv, err := item.iter.At()
	if err != nil {
		return err
	}
	item.current = kv
	heap.Push(h, item)
	return nil
}

func newMergeHeap(iters []core.RecordIterator, keyCmp core.KeyComparator, order core.SortOrder, uds UDSComparator) (*mergeHeap, error) {
	h := &mergeHeap{keyCmp: keyCmp, order: order, uds: uds}
	for i, it := range iters {
		item := &mergeItem{iter: it, sourceIdx: i}
		if err := h.fill(item); err != nil {
			return nil, fmt.Errorf("iterator: priming source %d: %w", i, err)
		}
	}
	heap.Init(h)
	return h, nil
}
