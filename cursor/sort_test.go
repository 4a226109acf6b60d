package cursor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rlerrors "github.com/mantisdb/recordlayer/errors"
	"github.com/mantisdb/recordlayer/plan"
	"github.com/mantisdb/recordlayer/tuple"
)

func TestSortCursorOrdersAscending(t *testing.T) {
	child := newSliceCursor(
		rec(map[string]tuple.Element{"age": tuple.Int64(30)}),
		rec(map[string]tuple.Element{"age": tuple.Int64(10)}),
		rec(map[string]tuple.Element{"age": tuple.Int64(20)}),
	)
	keys := []plan.SortKey{{Field: "age", Ascending: true}}
	c := NewSort(child, keys, fieldMapAccessor{}, 100)

	var ages []int64
	for c.Next(context.Background()) {
		ages = append(ages, c.Record().(map[string]tuple.Element)["age"].Int64())
	}
	require.NoError(t, c.Err())
	assert.Equal(t, []int64{10, 20, 30}, ages)
}

func TestSortCursorOrdersDescending(t *testing.T) {
	child := newSliceCursor(
		rec(map[string]tuple.Element{"age": tuple.Int64(10)}),
		rec(map[string]tuple.Element{"age": tuple.Int64(30)}),
		rec(map[string]tuple.Element{"age": tuple.Int64(20)}),
	)
	keys := []plan.SortKey{{Field: "age", Ascending: false}}
	c := NewSort(child, keys, fieldMapAccessor{}, 100)

	var ages []int64
	for c.Next(context.Background()) {
		ages = append(ages, c.Record().(map[string]tuple.Element)["age"].Int64())
	}
	assert.Equal(t, []int64{30, 20, 10}, ages)
}

func TestSortCursorIsStableOnTies(t *testing.T) {
	a := rec(map[string]tuple.Element{"age": tuple.Int64(1), "name": tuple.String("a")})
	b := rec(map[string]tuple.Element{"age": tuple.Int64(1), "name": tuple.String("b")})
	child := newSliceCursor(a, b)
	keys := []plan.SortKey{{Field: "age", Ascending: true}}
	c := NewSort(child, keys, fieldMapAccessor{}, 100)

	var names []string
	for c.Next(context.Background()) {
		names = append(names, c.Record().(map[string]tuple.Element)["name"].String())
	}
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestSortCursorExceedingMaxRowsIsResourceExhausted(t *testing.T) {
	child := newSliceCursor(
		rec(map[string]tuple.Element{"age": tuple.Int64(1)}),
		rec(map[string]tuple.Element{"age": tuple.Int64(2)}),
		rec(map[string]tuple.Element{"age": tuple.Int64(3)}),
	)
	keys := []plan.SortKey{{Field: "age", Ascending: true}}
	c := NewSort(child, keys, fieldMapAccessor{}, 2)

	for c.Next(context.Background()) {
	}
	require.Error(t, c.Err())
	assert.True(t, rlerrors.Is(c.Err(), rlerrors.KindResourceExhausted))
}

func TestSortCursorMultiKeyBreaksTiesOnSecondField(t *testing.T) {
	a := rec(map[string]tuple.Element{"age": tuple.Int64(1), "name": tuple.String("z")})
	b := rec(map[string]tuple.Element{"age": tuple.Int64(1), "name": tuple.String("a")})
	child := newSliceCursor(a, b)
	keys := []plan.SortKey{{Field: "age", Ascending: true}, {Field: "name", Ascending: true}}
	c := NewSort(child, keys, fieldMapAccessor{}, 100)

	var names []string
	for c.Next(context.Background()) {
		names = append(names, c.Record().(map[string]tuple.Element)["name"].String())
	}
	assert.Equal(t, []string{"a", "z"}, names)
}
