package cursor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rlerrors "github.com/mantisdb/recordlayer/errors"
	"github.com/mantisdb/recordlayer/filter"
	"github.com/mantisdb/recordlayer/plan"
	"github.com/mantisdb/recordlayer/record"
	"github.com/mantisdb/recordlayer/tuple"
	"github.com/mantisdb/recordlayer/vector"
)

type fakeSource struct {
	entries []vector.Entry
}

func (f *fakeSource) ScanAll(ctx context.Context, idx *record.Index) (<-chan vector.Entry, <-chan error) {
	ch := make(chan vector.Entry, len(f.entries))
	errCh := make(chan error, 1)
	for _, e := range f.entries {
		ch <- e
	}
	close(ch)
	close(errCh)
	return ch, errCh
}

type fakeGraph struct {
	results []tuple.Tuple
	err     error
}

func (f *fakeGraph) Query(ctx context.Context, idx *record.Index, query []float64, k int) ([]tuple.Tuple, error) {
	if f.err != nil {
		return nil, f.err
	}
	if k < len(f.results) {
		return f.results[:k], nil
	}
	return f.results, nil
}

func vectorIndex() *record.Index {
	return &record.Index{
		Name:       "by_embedding",
		RecordType: "widget",
		State:      record.IndexStateReadable,
		Vector:     record.VectorOptions{Strategy: record.VectorStrategyFlatScan, Metric: record.VectorMetricEuclidean},
	}
}

func setupVectorEnv(t *testing.T, ids ...int64) Env {
	t.Helper()
	store := newMemKV()
	txn, err := store.CreateTransaction(context.Background())
	require.NoError(t, err)
	recordSub := newMemSubspace("record")
	for _, id := range ids {
		txn.Set(context.Background(), recordSub.Pack(append(recordTypeTuple("widget"), tuple.Int64(id))), widgetBytes(t, widget{ID: id, Status: "x"}))
	}
	return Env{RecordSubspace: recordSub, Accessor: widgetAccessor{}, Txn: txn}
}

func TestVectorExecutorIndexNotReadableErrors(t *testing.T) {
	idx := vectorIndex()
	idx.State = record.IndexStateDisabled
	e := &VectorExecutor{Source: &fakeSource{}}
	c := e.Run(context.Background(), Env{}, plan.VectorKNN{Index: idx, K: 2})
	assert.False(t, c.Next(context.Background()))
	assert.True(t, rlerrors.Is(c.Err(), rlerrors.KindIndexNotReadable))
}

func TestVectorExecutorFlatScanReturnsClosestK(t *testing.T) {
	env := setupVectorEnv(t, 1, 2, 3)
	src := &fakeSource{entries: []vector.Entry{
		{PK: tuple.Tuple{tuple.Int64(1)}, Vector: []float64{0, 0}},
		{PK: tuple.Tuple{tuple.Int64(2)}, Vector: []float64{10, 10}},
		{PK: tuple.Tuple{tuple.Int64(3)}, Vector: []float64{1, 1}},
	}}
	e := &VectorExecutor{Source: src}
	c := e.Run(context.Background(), env, plan.VectorKNN{Index: vectorIndex(), QueryVector: []float64{0, 0}, K: 2})

	var ids []int64
	for c.Next(context.Background()) {
		ids = append(ids, c.Record().(widget).ID)
	}
	require.NoError(t, c.Err())
	assert.ElementsMatch(t, []int64{1, 3}, ids)
}

func TestVectorExecutorHNSWFallsBackToFlatScanWhenGraphNotBuilt(t *testing.T) {
	env := setupVectorEnv(t, 1)
	idx := vectorIndex()
	idx.Vector.Strategy = record.VectorStrategyHNSW
	src := &fakeSource{entries: []vector.Entry{{PK: tuple.Tuple{tuple.Int64(1)}, Vector: []float64{0, 0}}}}
	graph := &fakeGraph{err: rlerrors.HNSWGraphNotBuilt("by_embedding")}
	breaker := vector.New(1, time.Minute, 5)

	e := &VectorExecutor{Source: src, Graph: graph, Breaker: breaker}
	c := e.Run(context.Background(), env, plan.VectorKNN{Index: idx, QueryVector: []float64{0, 0}, K: 1})

	require.True(t, c.Next(context.Background()))
	assert.Equal(t, int64(1), c.Record().(widget).ID)
	assert.Equal(t, vector.StateFailed, breaker.State())
}

func TestVectorExecutorUsesHNSWResultsOnSuccess(t *testing.T) {
	env := setupVectorEnv(t, 5)
	idx := vectorIndex()
	idx.Vector.Strategy = record.VectorStrategyHNSW
	graph := &fakeGraph{results: []tuple.Tuple{{tuple.Int64(5)}}}
	breaker := vector.New(3, time.Minute, 5)

	e := &VectorExecutor{Source: &fakeSource{}, Graph: graph, Breaker: breaker}
	c := e.Run(context.Background(), env, plan.VectorKNN{Index: idx, QueryVector: []float64{0, 0}, K: 1})

	require.True(t, c.Next(context.Background()))
	assert.Equal(t, int64(5), c.Record().(widget).ID)
	assert.Equal(t, vector.StateHealthy, breaker.State())
}

func TestVectorExecutorResidualOverFetchesUntilKSatisfied(t *testing.T) {
	// The four closest vectors (ids 1-4) fail the residual; only the two
	// farthest pass it. K=2 makes the first attempt fetch 4 candidates, all
	// failing, which forces a second, wider attempt (fetchK = K*(attempt+1))
	// before the result set can be satisfied.
	store := newMemKV()
	txn, err := store.CreateTransaction(context.Background())
	require.NoError(t, err)
	recordSub := newMemSubspace("record")
	statuses := map[int64]string{1: "x", 2: "x", 3: "x", 4: "x", 5: "y", 6: "y"}
	for id, status := range statuses {
		txn.Set(context.Background(), recordSub.Pack(append(recordTypeTuple("widget"), tuple.Int64(id))), widgetBytes(t, widget{ID: id, Status: status}))
	}
	env := Env{RecordSubspace: recordSub, Accessor: widgetAccessor{}, Txn: txn}

	src := &fakeSource{entries: []vector.Entry{
		{PK: tuple.Tuple{tuple.Int64(1)}, Vector: []float64{0, 0}},
		{PK: tuple.Tuple{tuple.Int64(2)}, Vector: []float64{1, 1}},
		{PK: tuple.Tuple{tuple.Int64(3)}, Vector: []float64{2, 2}},
		{PK: tuple.Tuple{tuple.Int64(4)}, Vector: []float64{3, 3}},
		{PK: tuple.Tuple{tuple.Int64(5)}, Vector: []float64{4, 4}},
		{PK: tuple.Tuple{tuple.Int64(6)}, Vector: []float64{5, 5}},
	}}
	e := &VectorExecutor{Source: src}
	residual := filter.FieldCompare{Field: "status", Op: filter.OpEq, Literal: tuple.String("y")}
	c := e.Run(context.Background(), env, plan.VectorKNN{Index: vectorIndex(), QueryVector: []float64{0, 0}, K: 2, Residual: residual})

	var ids []int64
	for c.Next(context.Background()) {
		ids = append(ids, c.Record().(widget).ID)
	}
	require.NoError(t, c.Err())
	assert.ElementsMatch(t, []int64{5, 6}, ids)
}
