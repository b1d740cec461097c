package core

import (
	"cmp"
	"fmt"
)

// KeyComparator orders two key Rows. Implementations compare field-by-field
// over a fixed, ordered set of key field names.
type KeyComparator interface {
	Compare(a, b Row) int
	KeyFields() []string
}

// rowKeyComparator compares Rows over an ordered list of field names using
// natural ordering of comparable scalar types. It panics on an unsupported
// type pairing, since a key comparator is always built from a single,
// fixed schema.
type rowKeyComparator struct {
	fields []string
}

// NewKeyComparator builds a KeyComparator over the given ordered primary-key
// field names.
func NewKeyComparator(fields []string) KeyComparator {
	out := make([]string, len(fields))
	copy(out, fields)
	return &rowKeyComparator{fields: out}
}

func (c *rowKeyComparator) KeyFields() []string { return c.fields }

func (c *rowKeyComparator) Compare(a, b Row) int {
	for _, f := range c.fields {
		if d := compareScalar(a[f], b[f]); d != 0 {
			return d
		}
	}
	return 0
}

func compareScalar(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	switch av := a.(type) {
	case int64:
		return cmp.Compare(av, b.(int64))
	case int:
		return cmp.Compare(av, b.(int))
	case string:
		return cmp.Compare(av, b.(string))
	case float64:
		return cmp.Compare(av, b.(float64))
	default:
		panic(fmt.Sprintf("core: unsupported key field type %T", a))
	}
}
