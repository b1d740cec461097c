package splitread

import "github.com/lakestore/tablecore/core"

// deleteFilterIterator drops records reduced to a DELETE row kind unless
// the caller asked to keep them. Delete handling happens once, after every
// section's output has been concatenated, matching the merge path's single
// drop-delete pass over the whole split.
type deleteFilterIterator struct {
	inner      core.RecordIterator
	keepDelete bool
	current    *core.KeyValue
}

func (d *deleteFilterIterator) Next() bool {
	for d.inner.Next() {
		kv, err := d.inner.At()
		if err != nil {
			return false
		}
		if !d.keepDelete && kv.RowKind == core.RowKindDelete {
			continue
		}
		d.current = kv
		return true
	}
	return false
}

func (d *deleteFilterIterator) At() (*core.KeyValue, error) { return d.current, d.inner.Error() }
func (d *deleteFilterIterator) Error() error                { return d.inner.Error() }
func (d *deleteFilterIterator) Close() error                { return d.inner.Close() }

// projectingIterator applies the key and outer (value) projections last,
// after merging and delete handling, since merging itself requires full
// keys and reducers may need value columns the caller never asked for.
type projectingIterator struct {
	inner       core.RecordIterator
	keyFields   []string // nil means "no projection, keep as-is"
	valueFields []string
}

func (p *projectingIterator) Next() bool { return p.inner.Next() }

func (p *projectingIterator) At() (*core.KeyValue, error) {
	kv, err := p.inner.At()
	if err != nil || kv == nil {
		return kv, err
	}
	out := &core.KeyValue{SeqNumber: kv.SeqNumber, RowKind: kv.RowKind}
	if p.keyFields != nil {
		out.Key = kv.Key.Project(p.keyFields)
	} else {
		out.Key = kv.Key
	}
	if p.valueFields != nil {
		out.Value = kv.Value.Project(p.valueFields)
	} else {
		out.Value = kv.Value
	}
	return out, nil
}

func (p *projectingIterator) Error() error { return p.inner.Error() }
func (p *projectingIterator) Close() error { return p.inner.Close() }
