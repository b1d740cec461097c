// Package filter implements the conjunctive predicate the Split Read Façade
// evaluates and splits into key-only and value-bearing halves.
package filter

import (
	"cmp"

	"github.com/lakestore/tablecore/core"
)

// Predicate evaluates to true or false against a fully-projected row and
// reports which columns it reads, so callers can decide whether it's
// eligible for key-only pushdown.
type Predicate interface {
	Eval(row core.Row) bool
	Columns() []string
}

// And is the conjunction of its sub-predicates; the top-level shape every
// predicate arriving at the Split Read Façade is decomposed into.
type And []Predicate

func (a And) Eval(row core.Row) bool {
	for _, p := range a {
		if !p.Eval(row) {
			return false
		}
	}
	return true
}

func (a And) Columns() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, p := range a {
		for _, c := range p.Columns() {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				out = append(out, c)
			}
		}
	}
	return out
}

type op int

const (
	opEq op = iota
	opNeq
	opLt
	opLte
	opGt
	opGte
)

// comparison is a single-column leaf predicate.
type comparison struct {
	column string
	op     op
	value  any
}

func Eq(column string, value any) Predicate  { return comparison{column, opEq, value} }
func Neq(column string, value any) Predicate { return comparison{column, opNeq, value} }
func Lt(column string, value any) Predicate  { return comparison{column, opLt, value} }
func Lte(column string, value any) Predicate { return comparison{column, opLte, value} }
func Gt(column string, value any) Predicate  { return comparison{column, opGt, value} }
func Gte(column string, value any) Predicate { return comparison{column, opGte, value} }

func (c comparison) Columns() []string { return []string{c.column} }

func (c comparison) Eval(row core.Row) bool {
	actual, ok := row[c.column]
	if !ok {
		return false
	}
	d := compare(actual, c.value)
	switch c.op {
	case opEq:
		return d == 0
	case opNeq:
		return d != 0
	case opLt:
		return d < 0
	case opLte:
		return d <= 0
	case opGt:
		return d > 0
	case opGte:
		return d >= 0
	default:
		return false
	}
}

func compare(a, b any) int {
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
		return 0
	}
}

// Split partitions a conjunctive predicate into a key-only half (every
// leaf mentions only columns in keyFields) and a value half (every other
// leaf). Either half is nil if it would otherwise be empty. Splitting a
// non-And predicate treats it as a single-leaf conjunction.
//
// A sub-predicate is eligible as a key-filter iff it mentions only primary
// key columns; otherwise it is a value-filter, because in an overlapping
// section pushing a value predicate into individual files could drop rows
// that would have been superseded by a merge.
func Split(p Predicate, keyFields []string) (keyPred, valuePred Predicate) {
	if p == nil {
		return nil, nil
	}
	leaves, ok := p.(And)
	if !ok {
		leaves = And{p}
	}

	keySet := make(map[string]struct{}, len(keyFields))
	for _, f := range keyFields {
		keySet[f] = struct{}{}
	}

	var keyLeaves, valueLeaves And
	for _, leaf := range leaves {
		if onlyKeyColumns(leaf.Columns(), keySet) {
			keyLeaves = append(keyLeaves, leaf)
		} else {
			valueLeaves = append(valueLeaves, leaf)
		}
	}

	return asPredicate(keyLeaves), asPredicate(valueLeaves)
}

func onlyKeyColumns(columns []string, keySet map[string]struct{}) bool {
	for _, c := range columns {
		if _, ok := keySet[c]; !ok {
			return false
		}
	}
	return true
}

func asPredicate(leaves And) Predicate {
	if len(leaves) == 0 {
		return nil
	}
	return leaves
}
