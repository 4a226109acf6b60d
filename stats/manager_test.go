package stats

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantisdb/recordlayer/kv"
	"github.com/mantisdb/recordlayer/tuple"
)

// memStore is a minimal in-memory kv.Store good enough to drive the
// persist/load round trip under test, without a real transactional KV
// engine. It ignores conflict tracking entirely: Manager's persistence path
// never reads and writes the same key within one transaction.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (s *memStore) CreateTransaction(ctx context.Context) (kv.Txn, error) {
	return &memTxn{store: s}, nil
}

type memTxn struct{ store *memStore }

func (t *memTxn) GetValue(ctx context.Context, key []byte, snapshot bool) ([]byte, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.store.data[string(key)], nil
}
func (t *memTxn) GetRange(ctx context.Context, begin, end kv.KeySelector, snapshot bool) (<-chan kv.KeyValue, <-chan error) {
	kvCh := make(chan kv.KeyValue)
	errCh := make(chan error, 1)
	close(kvCh)
	close(errCh)
	return kvCh, errCh
}
func (t *memTxn) GetKey(ctx context.Context, sel kv.KeySelector, snapshot bool) ([]byte, error) {
	return nil, nil
}
func (t *memTxn) Set(ctx context.Context, key, value []byte) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	cp := append([]byte(nil), value...)
	t.store.data[string(key)] = cp
}
func (t *memTxn) Clear(ctx context.Context, key []byte) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	delete(t.store.data, string(key))
}
func (t *memTxn) Commit(ctx context.Context) error { return nil }
func (t *memTxn) Cancel()                          {}

// memSubspace packs keys as a flat "/"-joined string path; good enough for
// a single-process test double.
type memSubspace struct{ path string }

func (s memSubspace) Sub(part string) kv.Subspace { return memSubspace{path: s.path + "/" + part} }
func (s memSubspace) Pack(t tuple.Tuple) []byte    { return []byte(s.path) }
func (s memSubspace) Unpack(key []byte) (tuple.Tuple, error) { return nil, nil }
func (s memSubspace) Range() (begin, end []byte)   { return []byte(s.path), []byte(s.path + "\xff") }
func (s memSubspace) Bytes() []byte                { return []byte(s.path) }

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store := newMemStore()
	sub := memSubspace{path: "stats"}
	m, err := NewManager(store, sub, 16, nil, nil)
	require.NoError(t, err)
	return m
}

func TestGetTableStatsMissReturnsNotOK(t *testing.T) {
	m := newTestManager(t)
	_, ok := m.GetTableStats(context.Background(), "widget")
	assert.False(t, ok)
}

func TestCollectTableStatsPersistsAndCaches(t *testing.T) {
	m := newTestManager(t)
	m.tableSampler = func(ctx context.Context, recordType string, sampleRate float64) (int64, float64, error) {
		return 1234, 56.0, nil
	}
	require.NoError(t, m.CollectTableStats(context.Background(), "widget", 0.1))

	ts, ok := m.GetTableStats(context.Background(), "widget")
	require.True(t, ok)
	assert.Equal(t, int64(1234), ts.RowCount)
	assert.Equal(t, 56.0, ts.AvgRowSize)
}

func TestCollectTableStatsRejectsSampleRateOutOfRange(t *testing.T) {
	m := newTestManager(t)
	err := m.CollectTableStats(context.Background(), "widget", 0)
	assert.Error(t, err)
	err = m.CollectTableStats(context.Background(), "widget", 1.5)
	assert.Error(t, err)
}

func TestGetTableStatsReloadsFromStoreAfterCacheClear(t *testing.T) {
	m := newTestManager(t)
	m.tableSampler = func(ctx context.Context, recordType string, sampleRate float64) (int64, float64, error) {
		return 42, 10.0, nil
	}
	require.NoError(t, m.CollectTableStats(context.Background(), "widget", 0.2))
	m.ClearCache("widget")

	ts, ok := m.GetTableStats(context.Background(), "widget")
	require.True(t, ok)
	assert.Equal(t, int64(42), ts.RowCount)
}

func TestCollectIndexStatsBuildsHistogramAndCardinality(t *testing.T) {
	m := newTestManager(t)
	m.indexSampler = func(ctx context.Context, indexName string) (<-chan tuple.Element, <-chan error) {
		vals := make(chan tuple.Element, 5)
		errCh := make(chan error, 1)
		vals <- tuple.Int64(1)
		vals <- tuple.Int64(2)
		vals <- tuple.Int64(3)
		vals <- tuple.Null()
		close(vals)
		close(errCh)
		return vals, errCh
	}
	require.NoError(t, m.CollectIndexStats(context.Background(), "by_age", 100, 100))

	is, ok := m.GetIndexStats(context.Background(), "by_age")
	require.True(t, ok)
	assert.Equal(t, int64(1), is.NullCount)
	assert.Equal(t, int64(1), is.Min.Int64())
	assert.Equal(t, int64(3), is.Max.Int64())
	assert.NotEmpty(t, is.Histogram.Buckets)
}

func TestCollectIndexStatsRejectsBadBucketOrReservoirSize(t *testing.T) {
	m := newTestManager(t)
	assert.Error(t, m.CollectIndexStats(context.Background(), "x", 0, 100))
	assert.Error(t, m.CollectIndexStats(context.Background(), "x", 100, 0))
}

func TestDecodeElementRoundTripsBytesAndUUID(t *testing.T) {
	b := tuple.Bytes([]byte{0x00, 0xde, 0xad, 0xbe, 0xef})
	got := decodeElement(b.Kind(), b.String())
	assert.Equal(t, b.BytesValue(), got.BytesValue())

	id := uuid.New()
	u := tuple.UUID(id)
	got = decodeElement(u.Kind(), u.String())
	assert.Equal(t, id, got.UUIDValue())
}

func TestClearAllDropsBothCaches(t *testing.T) {
	m := newTestManager(t)
	m.tableSampler = func(ctx context.Context, recordType string, sampleRate float64) (int64, float64, error) {
		return 1, 1, nil
	}
	require.NoError(t, m.CollectTableStats(context.Background(), "widget", 0.5))
	m.ClearAll()
	_, ok := m.tables.Get("widget")
	assert.False(t, ok)
}
