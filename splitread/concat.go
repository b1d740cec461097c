package splitread

import "github.com/lakestore/tablecore/core"

// concatIterator sequences a list of already-sorted core.RecordIterators
// end to end without interleaving, used both for a SortedRun's per-file
// readers (already key-disjoint and ordered by construction) and for the
// Interval-Partition Planner's ordered list of sections.
type concatIterator struct {
	iters   []core.RecordIterator
	idx     int
	current *core.KeyValue
	err     error
}

func newConcatIterator(iters []core.RecordIterator) core.RecordIterator {
	if len(iters) == 0 {
		return emptyIterator{}
	}
	return &concatIterator{iters: iters}
}

func (c *concatIterator) Next() bool {
	for c.idx < len(c.iters) {
		if c.iters[c.idx].Next() {
			kv, err := c.iters[c.idx].At()
			if err != nil {
				c.err = err
				return false
			}
			c.current = kv
			return true
		}
		if err := c.iters[c.idx].Error(); err != nil {
			c.err = err
			return false
		}
		c.idx++
	}
	return false
}

func (c *concatIterator) At() (*core.KeyValue, error) { return c.current, c.err }
func (c *concatIterator) Error() error                { return c.err }

func (c *concatIterator) Close() error {
	return closeAll(c.iters)
}

func closeAll(iters []core.RecordIterator) error {
	var firstErr error
	for _, it := range iters {
		if err := it.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type emptyIterator struct{}

func (emptyIterator) Next() bool                  { return false }
func (emptyIterator) At() (*core.KeyValue, error) { return nil, nil }
func (emptyIterator) Error() error                { return nil }
func (emptyIterator) Close() error                { return nil }
