package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantisdb/recordlayer/config"
	"github.com/mantisdb/recordlayer/cursor"
	"github.com/mantisdb/recordlayer/filter"
	"github.com/mantisdb/recordlayer/kv"
	"github.com/mantisdb/recordlayer/plan"
	"github.com/mantisdb/recordlayer/record"
	"github.com/mantisdb/recordlayer/stats"
	"github.com/mantisdb/recordlayer/tuple"
)

// emptyStore is a kv.Store whose transactions see no data at all: every
// point read misses, every range read is immediately exhausted. Good
// enough to drive the statistics manager's always-miss path and the
// cursor engine's dispatch without needing a populated keyspace.
type emptyStore struct{}

func (emptyStore) CreateTransaction(ctx context.Context) (kv.Txn, error) { return emptyTxn{}, nil }

type emptyTxn struct{}

func (emptyTxn) GetValue(ctx context.Context, key []byte, snapshot bool) ([]byte, error) {
	return nil, nil
}
func (emptyTxn) GetRange(ctx context.Context, begin, end kv.KeySelector, snapshot bool) (<-chan kv.KeyValue, <-chan error) {
	kvCh := make(chan kv.KeyValue)
	errCh := make(chan error, 1)
	close(kvCh)
	close(errCh)
	return kvCh, errCh
}
func (emptyTxn) GetKey(ctx context.Context, sel kv.KeySelector, snapshot bool) ([]byte, error) {
	return nil, nil
}
func (emptyTxn) Set(ctx context.Context, key, value []byte) {}
func (emptyTxn) Clear(ctx context.Context, key []byte)      {}
func (emptyTxn) Commit(ctx context.Context) error           { return nil }
func (emptyTxn) Cancel()                                    {}

type pathSubspace struct{ path string }

func (s pathSubspace) Sub(part string) kv.Subspace { return pathSubspace{path: s.path + "/" + part} }
func (s pathSubspace) Pack(t tuple.Tuple) []byte    { return []byte(s.path) }
func (s pathSubspace) Unpack(key []byte) (tuple.Tuple, error) {
	return nil, nil
}
func (s pathSubspace) Range() (begin, end []byte) { return []byte(s.path), []byte(s.path + "\xff") }
func (s pathSubspace) Bytes() []byte              { return []byte(s.path) }

type noopAccessor struct{}

func (noopAccessor) Deserialize(ctx context.Context, data []byte) (record.Record, error) {
	return nil, nil
}
func (noopAccessor) RecordName(r record.Record) string { return "widget" }
func (noopAccessor) ExtractField(r record.Record, field string) ([]tuple.Element, error) {
	return nil, nil
}
func (noopAccessor) ExtractPrimaryKey(r record.Record, pk record.PrimaryKey) (tuple.Tuple, error) {
	return nil, nil
}
func (noopAccessor) Evaluate(r record.Record, ke record.KeyExpression) (tuple.Tuple, error) {
	return nil, nil
}
func (noopAccessor) SupportsReconstruction() bool { return false }
func (noopAccessor) Reconstruct(indexKey, indexValue tuple.Tuple, idx *record.Index, pk record.PrimaryKey) (record.Record, error) {
	return nil, nil
}

func testSchema() *record.Schema {
	return &record.Schema{
		RecordType: "widget",
		PrimaryKey: record.PrimaryKey{KeyExpr: record.Field("id")},
		Indexes: []*record.Index{
			{Name: "by_age", RecordType: "widget", KeyExpr: record.Field("age"), State: record.IndexStateReadable},
		},
	}
}

func newTestPlanner(t *testing.T, schema *record.Schema) *Planner {
	t.Helper()
	mgr, err := stats.NewManager(emptyStore{}, pathSubspace{path: "stats"}, 16, nil, nil)
	require.NoError(t, err)
	return New(schema, config.Default(), mgr, pathSubspace{path: "record"}, pathSubspace{path: "index"}, nil, nil, nil, nil)
}

func TestPlanNoIndexesFallsBackToFullScan(t *testing.T) {
	schema := &record.Schema{RecordType: "widget", PrimaryKey: record.PrimaryKey{KeyExpr: record.Field("id")}}
	p := newTestPlanner(t, schema)
	f := filter.FieldCompare{Field: "age", Op: filter.OpEq, Literal: tuple.Int64(30)}
	node := p.Plan(context.Background(), "widget", Query{Filter: f})
	_, ok := node.(plan.FullScan)
	assert.True(t, ok)
}

func TestPlanPrefersIndexScanOverFullScanWhenAvailable(t *testing.T) {
	p := newTestPlanner(t, testSchema())
	f := filter.FieldCompare{Field: "age", Op: filter.OpEq, Literal: tuple.Int64(30)}
	node := p.Plan(context.Background(), "widget", Query{Filter: f})
	_, ok := node.(plan.IndexScan)
	assert.True(t, ok)
}

func TestPlanCachesSecondIdenticalQuery(t *testing.T) {
	p := newTestPlanner(t, testSchema())
	f := filter.FieldCompare{Field: "age", Op: filter.OpEq, Literal: tuple.Int64(30)}
	q := Query{Filter: f}
	p.Plan(context.Background(), "widget", q)
	assert.Equal(t, 1, p.cache.Stats().Size)
	p.Plan(context.Background(), "widget", q)
	assert.Equal(t, 1, p.cache.Stats().Size)
	assert.Equal(t, int64(1), p.cache.Stats().HitCount)
}

func TestPlanWrapsLimitWhenRequested(t *testing.T) {
	p := newTestPlanner(t, testSchema())
	q := Query{Limit: 5}
	node := p.Plan(context.Background(), "widget", q)
	l, ok := node.(plan.Limit)
	require.True(t, ok)
	assert.Equal(t, 5, l.N)
}

func TestPlanWrapsSortWhenNaturalOrderDoesNotMatch(t *testing.T) {
	p := newTestPlanner(t, testSchema())
	q := Query{Sort: []plan.SortKey{{Field: "status", Ascending: true}}}
	node := p.Plan(context.Background(), "widget", q)
	_, ok := node.(plan.Sort)
	assert.True(t, ok)
}

func TestPlanSkipsSortWhenIndexAlreadyOrdersByRequestedKey(t *testing.T) {
	p := newTestPlanner(t, testSchema())
	f := filter.FieldCompare{Field: "age", Op: filter.OpGe, Literal: tuple.Int64(0)}
	q := Query{Filter: f, Sort: []plan.SortKey{{Field: "age", Ascending: true}}}
	node := p.Plan(context.Background(), "widget", q)
	_, ok := node.(plan.Sort)
	assert.False(t, ok)
}

func TestExecuteFullScanOnEmptyStoreProducesNoRows(t *testing.T) {
	p := newTestPlanner(t, testSchema())
	env := cursor.Env{RecordSubspace: pathSubspace{path: "record"}, Accessor: noopAccessor{}, Txn: emptyTxn{}}
	c := p.Execute(context.Background(), env, plan.FullScan{RecordType: "widget"})
	assert.False(t, c.Next(context.Background()))
	assert.NoError(t, c.Err())
}

func TestExecuteFilterWrapsChildCursor(t *testing.T) {
	p := newTestPlanner(t, testSchema())
	env := cursor.Env{RecordSubspace: pathSubspace{path: "record"}, Accessor: noopAccessor{}, Txn: emptyTxn{}}
	node := plan.Filter{Child: plan.FullScan{RecordType: "widget"}, Residual: nil}
	c := p.Execute(context.Background(), env, node)
	assert.False(t, c.Next(context.Background()))
}

func TestExecuteUnknownNodeFallsBackToFullScan(t *testing.T) {
	p := newTestPlanner(t, testSchema())
	env := cursor.Env{RecordSubspace: pathSubspace{path: "record"}, Accessor: noopAccessor{}, Txn: emptyTxn{}}
	c := p.Execute(context.Background(), env, nil)
	assert.False(t, c.Next(context.Background()))
	assert.NoError(t, c.Err())
}
