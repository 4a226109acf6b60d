package plan

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantisdb/recordlayer/filter"
	"github.com/mantisdb/recordlayer/record"
	"github.com/mantisdb/recordlayer/tuple"
)

func ageIndex() *record.Index {
	return &record.Index{Name: "by_age", KeyExpr: record.Field("age")}
}

func compoundIndex() *record.Index {
	return &record.Index{Name: "by_status_age", KeyExpr: record.Concat(record.Field("status"), record.Field("age"))}
}

func TestMatchIndexSingleEquality(t *testing.T) {
	f := filter.FieldCompare{Field: "age", Op: filter.OpEq, Literal: tuple.Int64(30)}
	m, ok := MatchIndex(f, ageIndex())
	require.True(t, ok)
	assert.Equal(t, tuple.Tuple{tuple.Int64(30)}, m.Range.BeginValues)
	assert.Equal(t, tuple.Tuple{tuple.Int64(30)}, m.Range.EndValues)
	assert.Nil(t, m.Residual)
}

func TestMatchIndexNoMatchingFieldFails(t *testing.T) {
	f := filter.FieldCompare{Field: "name", Op: filter.OpEq, Literal: tuple.String("x")}
	_, ok := MatchIndex(f, ageIndex())
	assert.False(t, ok)
}

func TestMatchIndexRangeOp(t *testing.T) {
	f := filter.FieldCompare{Field: "age", Op: filter.OpGt, Literal: tuple.Int64(18)}
	m, ok := MatchIndex(f, ageIndex())
	require.True(t, ok)
	require.Len(t, m.Range.BeginValues, 1)
	assert.Equal(t, int64(19), m.Range.BeginValues[0].Int64())
	assert.Empty(t, m.Range.EndValues)
}

func TestMatchIndexLeUsesSuccessorForEndBound(t *testing.T) {
	f := filter.FieldCompare{Field: "age", Op: filter.OpLe, Literal: tuple.Int64(18)}
	m, ok := MatchIndex(f, ageIndex())
	require.True(t, ok)
	require.Len(t, m.Range.EndValues, 1)
	assert.Equal(t, int64(19), m.Range.EndValues[0].Int64())
}

func TestMatchIndexFallsBackWhenSuccessorUndefined(t *testing.T) {
	f := filter.FieldCompare{Field: "age", Op: filter.OpLe, Literal: tuple.Int64(math.MaxInt64)}
	_, ok := MatchIndex(f, ageIndex())
	assert.False(t, ok)
}

func TestMatchIndexCompoundGreedyEqualityThenRange(t *testing.T) {
	f := filter.And{Children: []filter.Tree{
		filter.FieldCompare{Field: "status", Op: filter.OpEq, Literal: tuple.String("active")},
		filter.FieldCompare{Field: "age", Op: filter.OpGe, Literal: tuple.Int64(21)},
	}}
	m, ok := MatchIndex(f, compoundIndex())
	require.True(t, ok)
	require.Len(t, m.Range.BeginValues, 2)
	assert.Equal(t, "active", m.Range.BeginValues[0].String())
	assert.Equal(t, int64(21), m.Range.BeginValues[1].Int64())
	assert.Nil(t, m.Residual)
}

func TestMatchIndexCompoundStopsExtendingAfterRange(t *testing.T) {
	// a range conjunct on the leading field stops the matcher from
	// considering any further fields, even if they have their own equality.
	idx := &record.Index{KeyExpr: record.Concat(record.Field("age"), record.Field("status"))}
	f := filter.And{Children: []filter.Tree{
		filter.FieldCompare{Field: "age", Op: filter.OpGt, Literal: tuple.Int64(18)},
		filter.FieldCompare{Field: "status", Op: filter.OpEq, Literal: tuple.String("active")},
	}}
	m, ok := MatchIndex(f, idx)
	require.True(t, ok)
	require.Len(t, m.Range.BeginValues, 1)
	require.NotNil(t, m.Residual)
	fc, ok := m.Residual.(filter.FieldCompare)
	require.True(t, ok)
	assert.Equal(t, "status", fc.Field)
}

func TestMatchIndexUnmatchedConjunctsBecomeResidual(t *testing.T) {
	f := filter.And{Children: []filter.Tree{
		filter.FieldCompare{Field: "age", Op: filter.OpEq, Literal: tuple.Int64(30)},
		filter.FieldCompare{Field: "name", Op: filter.OpStartsWith, Literal: tuple.String("A")},
	}}
	m, ok := MatchIndex(f, ageIndex())
	require.True(t, ok)
	require.NotNil(t, m.Residual)
	fc, ok := m.Residual.(filter.FieldCompare)
	require.True(t, ok)
	assert.Equal(t, "name", fc.Field)
}

func TestCoveringFieldsSatisfyNilResidualAlwaysTrue(t *testing.T) {
	assert.True(t, CoveringFieldsSatisfy(ageIndex(), nil))
}

func TestCoveringFieldsSatisfyChecksResidualFields(t *testing.T) {
	idx := &record.Index{KeyExpr: record.Field("age"), CoveringFields: []string{"name"}}
	covered := filter.FieldCompare{Field: "name", Op: filter.OpEq, Literal: tuple.String("x")}
	uncovered := filter.FieldCompare{Field: "email", Op: filter.OpEq, Literal: tuple.String("x")}

	assert.True(t, CoveringFieldsSatisfy(idx, covered))
	assert.False(t, CoveringFieldsSatisfy(idx, uncovered))
}
