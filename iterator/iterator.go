// Package iterator implements the Merge Engine: a k-way merge over the
// record iterators produced for a Section's sorted runs, reducing same-key
// groups with a pluggable merge function and applying drop-delete and
// projection semantics.
package iterator

import (
	"container/heap"

	"github.com/lakestore/tablecore/core"
)

// UDSComparator orders two records that share a primary key using a
// user-defined sequence column instead of the physical SeqNumber. Compare
// follows the usual convention: negative if a sorts before b.
type UDSComparator interface {
	Compare(a, b *core.KeyValue) int
}

// MergeFunc reduces every record sharing one key, already ordered per the
// merge's configured direction, into the single record the merge emits for
// that key. A nil return with a nil error means the key produces no output
// row (e.g. the group collapsed to a pure delete that the caller is
// dropping).
type MergeFunc func(group []*core.KeyValue) (*core.KeyValue, error)

// Reducer folds one additional record into a running accumulator.
type Reducer func(acc, next *core.KeyValue) (*core.KeyValue, error)

// ReducerMergeFunctionWrapper lifts a pairwise Reducer into a MergeFunc by
// left-folding it over the same-key group in order.
func ReducerMergeFunctionWrapper(r Reducer) MergeFunc {
	return func(group []*core.KeyValue) (*core.KeyValue, error) {
		if len(group) == 0 {
			return nil, nil
		}
		acc := group[0]
		for _, next := range group[1:] {
			var err error
			acc, err = r(acc, next)
			if err != nil {
				return nil, err
			}
		}
		return acc, nil
	}
}

// LastWins is the default Reducer: the later record in the group's order
// (per the merge's UDS comparator or SeqNumber, see mergeHeap) replaces the
// earlier one outright.
func LastWins(acc, next *core.KeyValue) (*core.KeyValue, error) {
	return next, nil
}

// Options configures a MergeIterator.
type Options struct {
	KeyComparator core.KeyComparator
	Order         core.SortOrder
	UDS           UDSComparator // optional
	Merge         MergeFunc     // defaults to ReducerMergeFunctionWrapper(LastWins)
	KeepDelete    bool          // if false (default), merged delete rows are dropped
}

// MergeIterator is the Merge Engine's k-way merge over a set of per-run
// core.RecordIterator sources sharing one key comparator. It groups
// consecutive records with equal keys across sources, reduces each group
// with the configured MergeFunc, and (unless KeepDelete) suppresses groups
// whose merged row is a delete.
type MergeIterator struct {
	sources []core.RecordIterator
	heap    *mergeHeap
	opts    Options

	current *core.KeyValue
	err     error
}

var _ core.RecordIterator = (*MergeIterator)(nil)

// New creates a MergeIterator over sources, which must already implement
// core.RecordIterator (e.g. per-file readers from the File Reader Factory,
// one per SortedRun file in physical order oldest-to-newest within a run).
func New(sources []core.RecordIterator, opts Options) (*MergeIterator, error) {
	if opts.Merge == nil {
		opts.Merge = ReducerMergeFunctionWrapper(LastWins)
	}
	h, err := newMergeHeap(sources, opts.KeyComparator, opts.Order, opts.UDS)
	if err != nil {
		closeAll(sources)
		return nil, err
	}
	return &MergeIterator{sources: sources, heap: h, opts: opts}, nil
}

func closeAll(iters []core.RecordIterator) {
	for _, it := range iters {
		_ = it.Close()
	}
}

func (mi *MergeIterator) Next() bool {
	if mi.err != nil {
		return false
	}

	for {
		group, err := mi.nextGroup()
		if err != nil {
			mi.err = err
			return false
		}
		if group == nil {
			mi.current = nil
			return false
		}

		merged, err := mi.opts.Merge(group)
		if err != nil {
			mi.err = err
			return false
		}
		if merged == nil {
			continue
		}
		if !mi.opts.KeepDelete && merged.RowKind == core.RowKindDelete {
			continue
		}
		mi.current = merged
		return true
	}
}

// nextGroup pops every item at the top of the heap sharing the current
// smallest key, advancing each source it consumes from, and returns them
// in heap-pop order (which already respects Order/UDS/physical tiebreak).
func (mi *MergeIterator) nextGroup() ([]*core.KeyValue, error) {
	if mi.heap.Len() == 0 {
		return nil, nil
	}

	first := heap.Pop(mi.heap).(*mergeItem)
	key := first.current.Key
	group := []*core.KeyValue{first.current}
	if err := mi.heap.fill(first); err != nil {
		return nil, err
	}

	for mi.heap.Len() > 0 && mi.heap.keyCmp.Compare(mi.heap.items[0].current.Key, key) == 0 {
		next := heap.Pop(mi.heap).(*mergeItem)
		group = append(group, next.current)
		if err := mi.heap.fill(next); err != nil {
			return nil, err
		}
	}

	return group, nil
}

func (mi *MergeIterator) At() (*core.KeyValue, error) {
	return mi.current, mi.err
}

func (mi *MergeIterator) Error() error { return mi.err }

func (mi *MergeIterator) Close() error {
	closeAll(mi.sources)
	mi.sources = nil
	mi.heap = nil
	return nil
}

// EmptyIterator is a core.RecordIterator that is always exhausted, used as
// a no-op source when a section or split carries no files.
type EmptyIterator struct{}

func NewEmptyIterator() core.RecordIterator { return &EmptyIterator{} }

func (it *EmptyIterator) Next() bool                  { return false }
func (it *EmptyIterator) At() (*core.KeyValue, error) { return nil, nil }
func (it *EmptyIterator) Error() error                { return nil }
func (it *EmptyIterator) Close() error                { return nil }
