package filter

import (
	"testing"

	"github.com/lakestore/tablecore/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(fields map[string]any) core.Row {
	r := core.Row{}
	for k, v := range fields {
		r[k] = v
	}
	return r
}

func TestComparison_Eval(t *testing.T) {
	r := row(map[string]any{"id": int64(5), "name": "alice"})

	assert.True(t, Eq("id", int64(5)).Eval(r))
	assert.False(t, Eq("id", int64(6)).Eval(r))
	assert.True(t, Neq("id", int64(6)).Eval(r))
	assert.True(t, Gt("id", int64(4)).Eval(r))
	assert.True(t, Gte("id", int64(5)).Eval(r))
	assert.True(t, Lt("id", int64(6)).Eval(r))
	assert.True(t, Lte("id", int64(5)).Eval(r))
	assert.True(t, Eq("name", "alice").Eval(r))
}

func TestComparison_MissingColumnIsFalse(t *testing.T) {
	r := row(map[string]any{"id": int64(5)})
	assert.False(t, Eq("missing", int64(1)).Eval(r))
}

func TestAnd_EvalRequiresAllLeaves(t *testing.T) {
	r := row(map[string]any{"id": int64(5), "status": "ok"})
	p := And{Eq("id", int64(5)), Eq("status", "ok")}
	assert.True(t, p.Eval(r))

	p2 := And{Eq("id", int64(5)), Eq("status", "bad")}
	assert.False(t, p2.Eval(r))
}

func TestAnd_ColumnsDeduplicates(t *testing.T) {
	p := And{Eq("id", int64(1)), Gt("id", int64(0)), Eq("status", "ok")}
	cols := p.Columns()
	assert.ElementsMatch(t, []string{"id", "status"}, cols)
}

func TestSplit_PureKeyPredicateHasNoValueHalf(t *testing.T) {
	p := And{Eq("id", int64(1)), Gte("id", int64(0))}
	keyPred, valuePred := Split(p, []string{"id"})
	require.NotNil(t, keyPred)
	assert.Nil(t, valuePred)
}

func TestSplit_MixedPredicateSeparatesHalves(t *testing.T) {
	p := And{Eq("id", int64(1)), Eq("status", "ok")}
	keyPred, valuePred := Split(p, []string{"id"})
	require.NotNil(t, keyPred)
	require.NotNil(t, valuePred)

	r := row(map[string]any{"id": int64(1), "status": "ok"})
	assert.True(t, keyPred.Eval(r))
	assert.True(t, valuePred.Eval(r))

	r2 := row(map[string]any{"id": int64(1), "status": "bad"})
	assert.True(t, keyPred.Eval(r2))
	assert.False(t, valuePred.Eval(r2))
}

func TestSplit_SingleLeafNonAnd(t *testing.T) {
	keyPred, valuePred := Split(Eq("id", int64(1)), []string{"id"})
	assert.NotNil(t, keyPred)
	assert.Nil(t, valuePred)
}

func TestSplit_NilPredicate(t *testing.T) {
	keyPred, valuePred := Split(nil, []string{"id"})
	assert.Nil(t, keyPred)
	assert.Nil(t, valuePred)
}

func TestSplit_MultiColumnLeafWithAnyNonKeyColumnIsValuePredicate(t *testing.T) {
	// A leaf mentioning both a key and a non-key column must not be pushed
	// as a key-filter into an overlapping section: it could drop rows that
	// would have been superseded by a merge.
	pm := And{And{Eq("id", int64(1)), Eq("status", "ok")}}
	keyPredM, valuePredM := Split(pm, []string{"id"})
	assert.Nil(t, keyPredM)
	assert.NotNil(t, valuePredM)

	p := And{Eq("id", int64(1))}
	keyPred, valuePred := Split(p, []string{"id", "bucket"})
	assert.NotNil(t, keyPred)
	assert.Nil(t, valuePred)

	p2 := And{Eq("status", "ok")}
	keyPred2, valuePred2 := Split(p2, []string{"id"})
	assert.Nil(t, keyPred2)
	assert.NotNil(t, valuePred2)
}
