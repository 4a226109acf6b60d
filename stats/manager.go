package stats

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	rlerrors "github.com/mantisdb/recordlayer/errors"
	"github.com/mantisdb/recordlayer/kv"
	"github.com/mantisdb/recordlayer/rlog"
	"github.com/mantisdb/recordlayer/tuple"
)

// TableStats is the per-record-type statistics record from §3.
type TableStats struct {
	RowCount   int64
	AvgRowSize float64
	SampleRate float64
	Timestamp  time.Time
}

// IndexStats is the per-index statistics record from §3.
type IndexStats struct {
	DistinctValues int64
	NullCount      int64
	Min            tuple.Element
	Max            tuple.Element
	Histogram      Histogram
	Timestamp      time.Time
}

// TableSampler reads a record type's full data range for collectTableStats.
// The KV range-scan and deserialization mechanics live with the caller
// (the planner facade owns the txn); the sampler only needs each row's
// byte size.
type TableSampler func(ctx context.Context, recordType string, sampleRate float64) (rowCount int64, avgRowSize float64, err error)

// IndexSampler reads an index's full range for collectIndexStats, yielding
// the indexed field's value for every entry.
type IndexSampler func(ctx context.Context, indexName string) (<-chan tuple.Element, <-chan error)

// Manager is the process-wide statistics subsystem (§4.6). Table stats and
// index stats are guarded by independent mutexes: a collection pass over
// one record type's rows never blocks a lookup of an unrelated index's
// histogram, and vice versa (§5 "shared mutable state... critical sections
// must be small").
type Manager struct {
	tableMu sync.RWMutex
	tables  *lru.Cache[string, TableStats]

	indexMu sync.RWMutex
	indexes *lru.Cache[string, IndexStats]

	store  kv.Store
	stats  kv.Subspace
	logger *rlog.Logger
	codec  *blockCodec

	tableSampler TableSampler
	indexSampler IndexSampler
}

// NewManager constructs a Manager backed by a bounded read-through cache of
// size cacheSize for each of the two statistics kinds.
func NewManager(store kv.Store, statsSubspace kv.Subspace, cacheSize int, tableSampler TableSampler, indexSampler IndexSampler) (*Manager, error) {
	tables, err := lru.New[string, TableStats](cacheSize)
	if err != nil {
		return nil, rlerrors.Internal("stats: allocate table cache", err)
	}
	indexes, err := lru.New[string, IndexStats](cacheSize)
	if err != nil {
		return nil, rlerrors.Internal("stats: allocate index cache", err)
	}
	return &Manager{
		tables:       tables,
		indexes:      indexes,
		store:        store,
		stats:        statsSubspace,
		logger:       rlog.New("stats.manager"),
		codec:        newBlockCodec(),
		tableSampler: tableSampler,
		indexSampler: indexSampler,
	}, nil
}

// GetTableStats returns the cached stats for recordType, loading from the
// KV store on a cache miss. Loads populate the cache on hit only (§4.6
// invariant): if nothing has ever been persisted, ok is false and the
// cache stays empty rather than caching an absence.
func (m *Manager) GetTableStats(ctx context.Context, recordType string) (TableStats, bool) {
	m.tableMu.RLock()
	if s, ok := m.tables.Get(recordType); ok {
		m.tableMu.RUnlock()
		return s, true
	}
	m.tableMu.RUnlock()

	loaded, ok, err := m.loadTableStats(ctx, recordType)
	if err != nil {
		m.logger.Warn("get_table_stats", "load from store failed", zap.String("record_type", recordType), zap.Error(err))
		return TableStats{}, false
	}
	if !ok {
		return TableStats{}, false
	}

	m.tableMu.Lock()
	m.tables.Add(recordType, loaded)
	m.tableMu.Unlock()
	return loaded, true
}

// GetIndexStats mirrors GetTableStats for index-level statistics.
func (m *Manager) GetIndexStats(ctx context.Context, indexName string) (IndexStats, bool) {
	m.indexMu.RLock()
	if s, ok := m.indexes.Get(indexName); ok {
		m.indexMu.RUnlock()
		return s, true
	}
	m.indexMu.RUnlock()

	loaded, ok, err := m.loadIndexStats(ctx, indexName)
	if err != nil {
		m.logger.Warn("get_index_stats", "load from store failed", zap.String("index", indexName), zap.Error(err))
		return IndexStats{}, false
	}
	if !ok {
		return IndexStats{}, false
	}

	m.indexMu.Lock()
	m.indexes.Add(indexName, loaded)
	m.indexMu.Unlock()
	return loaded, true
}

// CollectTableStats scans recordType's full data range at sampleRate and
// replaces its cached/persisted TableStats.
func (m *Manager) CollectTableStats(ctx context.Context, recordType string, sampleRate float64) error {
	if sampleRate <= 0 || sampleRate > 1 {
		return rlerrors.InvalidArgument(fmt.Sprintf("stats: sampleRate %v out of (0,1]", sampleRate))
	}
	rowCount, avgRowSize, err := m.tableSampler(ctx, recordType, sampleRate)
	if err != nil {
		return rlerrors.Internal("stats: collect table stats", err)
	}
	ts := TableStats{
		RowCount:   rowCount,
		AvgRowSize: avgRowSize,
		SampleRate: sampleRate,
		Timestamp:  time.Now(),
	}
	if err := m.persistTableStats(ctx, recordType, ts); err != nil {
		return err
	}
	m.tableMu.Lock()
	m.tables.Add(recordType, ts)
	m.tableMu.Unlock()
	return nil
}

// CollectIndexStats scans indexName's full range, feeding every value into
// an HLL for distinct-count estimation and a reservoir sampler of size up
// to reservoirSize for histogram input, per §4.6.
func (m *Manager) CollectIndexStats(ctx context.Context, indexName string, bucketCount, reservoirSize int) error {
	if bucketCount <= 0 || bucketCount > 10000 {
		return rlerrors.InvalidArgument(fmt.Sprintf("stats: bucketCount %d out of (0,10000]", bucketCount))
	}
	if reservoirSize <= 0 || reservoirSize > 100000 {
		return rlerrors.InvalidArgument(fmt.Sprintf("stats: reservoirSize %d out of (0,100000]", reservoirSize))
	}

	values, errCh := m.indexSampler(ctx, indexName)
	hll := NewHyperLogLog()
	reservoir := NewReservoir(reservoirSize, time.Now().UnixNano())

	var nullCount int64
	var min, max tuple.Element
	first := true

	for v := range values {
		if v.IsNull() {
			nullCount++
			continue
		}
		hll.Add(v)
		reservoir.Add(v)
		if first {
			min, max = v, v
			first = false
			continue
		}
		if tuple.Compare(v, min) < 0 {
			min = v
		}
		if tuple.Compare(v, max) > 0 {
			max = v
		}
	}
	if err := <-errCh; err != nil {
		return rlerrors.Internal("stats: collect index stats", err)
	}

	var hist Histogram
	if !first {
		hist = BuildValueAwareHistogram(reservoir.Sample(), reservoir.SeenCount())
		if len(hist.Buckets) > bucketCount {
			hist = mergeBucketsTo(hist, bucketCount)
		}
	}

	is := IndexStats{
		DistinctValues: hll.Estimate(),
		NullCount:      nullCount,
		Min:            min,
		Max:            max,
		Histogram:      hist,
		Timestamp:      time.Now(),
	}
	if err := m.persistIndexStats(ctx, indexName, is); err != nil {
		return err
	}
	m.indexMu.Lock()
	m.indexes.Add(indexName, is)
	m.indexMu.Unlock()
	return nil
}

// mergeBucketsTo coalesces adjacent buckets until at most target remain,
// merging the smallest-count neighbor pairs first.
func mergeBucketsTo(h Histogram, target int) Histogram {
	buckets := append([]Bucket(nil), h.Buckets...)
	for len(buckets) > target {
		minIdx, minSum := 0, int64(-1)
		for i := 0; i < len(buckets)-1; i++ {
			sum := buckets[i].Count + buckets[i+1].Count
			if minSum == -1 || sum < minSum {
				minSum = sum
				minIdx = i
			}
		}
		merged := Bucket{
			LowerBound:    buckets[minIdx].LowerBound,
			UpperBound:    buckets[minIdx+1].UpperBound,
			Count:         buckets[minIdx].Count + buckets[minIdx+1].Count,
			DistinctCount: buckets[minIdx].DistinctCount + buckets[minIdx+1].DistinctCount,
		}
		buckets = append(buckets[:minIdx], append([]Bucket{merged}, buckets[minIdx+2:]...)...)
	}
	return Histogram{Buckets: buckets, TotalCount: h.TotalCount}
}

// ClearCache drops recordType's cached table stats, forcing the next
// GetTableStats to reload from the store.
func (m *Manager) ClearCache(recordType string) {
	m.tableMu.Lock()
	m.tables.Remove(recordType)
	m.tableMu.Unlock()
}

// ClearAll drops every cached table and index statistic.
func (m *Manager) ClearAll() {
	m.tableMu.Lock()
	m.tables.Purge()
	m.tableMu.Unlock()

	m.indexMu.Lock()
	m.indexes.Purge()
	m.indexMu.Unlock()
}

type tableStatsWire struct {
	RowCount   int64
	AvgRowSize float64
	SampleRate float64
	Timestamp  int64
}

type bucketWire struct {
	LowerKind, UpperKind   tuple.Kind
	LowerStr, UpperStr     string
	Count, DistinctCount   int64
}

type indexStatsWire struct {
	DistinctValues int64
	NullCount      int64
	MinKind, MaxKind tuple.Kind
	MinStr, MaxStr   string
	Buckets          []bucketWire
	TotalCount       int64
	Timestamp        int64
}

func (m *Manager) persistTableStats(ctx context.Context, recordType string, ts TableStats) error {
	wire := tableStatsWire{RowCount: ts.RowCount, AvgRowSize: ts.AvgRowSize, SampleRate: ts.SampleRate, Timestamp: ts.Timestamp.UnixNano()}
	return m.persist(ctx, m.stats.Sub("table").Sub(recordType), wire)
}

func (m *Manager) loadTableStats(ctx context.Context, recordType string) (TableStats, bool, error) {
	var wire tableStatsWire
	ok, err := m.load(ctx, m.stats.Sub("table").Sub(recordType), &wire)
	if err != nil || !ok {
		return TableStats{}, ok, err
	}
	return TableStats{
		RowCount:   wire.RowCount,
		AvgRowSize: wire.AvgRowSize,
		SampleRate: wire.SampleRate,
		Timestamp:  time.Unix(0, wire.Timestamp),
	}, true, nil
}

func (m *Manager) persistIndexStats(ctx context.Context, indexName string, is IndexStats) error {
	buckets := make([]bucketWire, len(is.Histogram.Buckets))
	for i, b := range is.Histogram.Buckets {
		buckets[i] = bucketWire{
			LowerKind: b.LowerBound.Kind(), LowerStr: b.LowerBound.String(),
			UpperKind: b.UpperBound.Kind(), UpperStr: b.UpperBound.String(),
			Count: b.Count, DistinctCount: b.DistinctCount,
		}
	}
	wire := indexStatsWire{
		DistinctValues: is.DistinctValues,
		NullCount:      is.NullCount,
		MinKind:        is.Min.Kind(), MinStr: is.Min.String(),
		MaxKind: is.Max.Kind(), MaxStr: is.Max.String(),
		Buckets:    buckets,
		TotalCount: is.Histogram.TotalCount,
		Timestamp:  is.Timestamp.UnixNano(),
	}
	return m.persist(ctx, m.stats.Sub("index").Sub(indexName), wire)
}

func (m *Manager) loadIndexStats(ctx context.Context, indexName string) (IndexStats, bool, error) {
	var wire indexStatsWire
	ok, err := m.load(ctx, m.stats.Sub("index").Sub(indexName), &wire)
	if err != nil || !ok {
		return IndexStats{}, ok, err
	}
	buckets := make([]Bucket, len(wire.Buckets))
	for i, b := range wire.Buckets {
		buckets[i] = Bucket{
			LowerBound:    decodeElement(b.LowerKind, b.LowerStr),
			UpperBound:    decodeElement(b.UpperKind, b.UpperStr),
			Count:         b.Count,
			DistinctCount: b.DistinctCount,
		}
	}
	return IndexStats{
		DistinctValues: wire.DistinctValues,
		NullCount:      wire.NullCount,
		Min:            decodeElement(wire.MinKind, wire.MinStr),
		Max:            decodeElement(wire.MaxKind, wire.MaxStr),
		Histogram:      Histogram{Buckets: buckets, TotalCount: wire.TotalCount},
		Timestamp:      time.Unix(0, wire.Timestamp),
	}, true, nil
}

// decodeElement reconstructs an Element from its persisted kind and string
// form. The string form is lossless for every kind this package persists
// (histogram bucket boundaries and index min/max), since Element.String()
// round-trips through Go's own numeric and time formatters.
func decodeElement(kind tuple.Kind, s string) tuple.Element {
	switch kind {
	case tuple.KindInt64:
		var v int64
		fmt.Sscanf(s, "%d", &v)
		return tuple.Int64(v)
	case tuple.KindFloat64:
		var v float64
		fmt.Sscanf(s, "%g", &v)
		return tuple.Float64(v)
	case tuple.KindFloat32:
		var v float32
		fmt.Sscanf(s, "%g", &v)
		return tuple.Float32(v)
	case tuple.KindBool:
		return tuple.Bool(s == "true")
	case tuple.KindBytes:
		b, err := hex.DecodeString(s)
		if err != nil {
			return tuple.Bytes(nil)
		}
		return tuple.Bytes(b)
	case tuple.KindUUID:
		u, err := uuid.Parse(s)
		if err != nil {
			return tuple.Null()
		}
		return tuple.UUID(u)
	case tuple.KindTime:
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return tuple.Null()
		}
		return tuple.Time(t)
	case tuple.KindNull:
		return tuple.Null()
	default:
		return tuple.String(s)
	}
}

// persist gob-encodes wire and compresses it (size-routed between snappy,
// lz4 and zstd — see blockCodec) before a single Set under sub's key — I/O
// never runs under the statistics mutexes (§5); the caller has already
// released them by the time persist is called.
func (m *Manager) persist(ctx context.Context, sub kv.Subspace, wire any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wire); err != nil {
		return rlerrors.Internal("stats: encode", err)
	}
	compressed, err := m.codec.Encode(buf.Bytes())
	if err != nil {
		return rlerrors.Internal("stats: compress", err)
	}
	txn, err := m.store.CreateTransaction(ctx)
	if err != nil {
		return rlerrors.Internal("stats: create txn", err)
	}
	defer txn.Cancel()
	txn.Set(ctx, sub.Bytes(), compressed)
	if err := txn.Commit(ctx); err != nil {
		return rlerrors.Internal("stats: commit", err)
	}
	return nil
}

func (m *Manager) load(ctx context.Context, sub kv.Subspace, wire any) (bool, error) {
	txn, err := m.store.CreateTransaction(ctx)
	if err != nil {
		return false, rlerrors.Internal("stats: create txn", err)
	}
	defer txn.Cancel()
	raw, err := txn.GetValue(ctx, sub.Bytes(), true)
	if err != nil {
		return false, rlerrors.Internal("stats: get", err)
	}
	if raw == nil {
		return false, nil
	}
	decoded, err := m.codec.Decode(raw)
	if err != nil {
		return false, rlerrors.Internal("stats: decompress", err)
	}
	if err := gob.NewDecoder(bytes.NewReader(decoded)).Decode(wire); err != nil {
		return false, rlerrors.Internal("stats: decode", err)
	}
	return true, nil
}
