package cursor

import (
	"container/heap"
	"context"
	"time"

	rlerrors "github.com/mantisdb/recordlayer/errors"
	"github.com/mantisdb/recordlayer/filter"
	"github.com/mantisdb/recordlayer/plan"
	"github.com/mantisdb/recordlayer/record"
	"github.com/mantisdb/recordlayer/tuple"
	"github.com/mantisdb/recordlayer/vector"
)

// candidate is one scored vector match. maxDistHeap orders candidates by
// descending distance, so the farthest of the current top-k sits at the
// heap root for eviction.
type candidate struct {
	pk       tuple.Tuple
	distance float64
}

type maxDistHeap []candidate

func (h maxDistHeap) Len() int            { return len(h) }
func (h maxDistHeap) Less(i, j int) bool  { return h[i].distance > h[j].distance }
func (h maxDistHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxDistHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *maxDistHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// VectorExecutor runs the vector k-NN plan from §4.4/§4.8, consulting a
// per-index circuit breaker before every HNSW attempt.
type VectorExecutor struct {
	Source   vector.Source
	Graph    vector.GraphMaintainer
	Breaker  *vector.CircuitBreaker
}

// knnCursor replays a materialized result set; vector k-NN is not
// naturally streamable (the top-k decision needs every candidate, or the
// graph's already-ranked output), so execution happens eagerly in Run and
// Next just walks the result slice.
type knnCursor struct {
	results []record.Record
	idx     int
	err     error
}

func (c *knnCursor) Next(ctx context.Context) bool {
	if c.idx >= len(c.results) {
		return false
	}
	c.idx++
	return true
}
func (c *knnCursor) Record() record.Record { return c.results[c.idx-1] }
func (c *knnCursor) Err() error             { return c.err }
func (c *knnCursor) Close()                 {}

// Run executes p against env, implementing §4.4's vector k-NN steps:
// readability check, strategy selection, HNSW-with-circuit-breaker or
// flat scan, and over-fetch compensation when a residual filter exists.
func (e *VectorExecutor) Run(ctx context.Context, env Env, p plan.VectorKNN) Cursor {
	if p.Index.State != record.IndexStateReadable {
		return &knnCursor{err: rlerrors.IndexNotReadable(p.Index.Name, p.Index.State.String())}
	}

	maxAttempts := 1
	if p.Residual != nil {
		maxAttempts = 5
	}

	seen := make(map[string]bool)
	var out []record.Record

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		fetchK := p.K * (attempt + 1)
		if p.Residual == nil {
			fetchK = p.K
		}

		pks, usedHNSW, err := e.fetchCandidates(ctx, p.Index, p.QueryVector, fetchK)
		if err != nil {
			return &knnCursor{err: err}
		}
		_ = usedHNSW

		for _, pk := range pks {
			key := primaryKeyTuple(pk).mapKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			rec, err := env.fetchByPK(ctx, p.Index.RecordType, pk)
			if err != nil {
				return &knnCursor{err: err}
			}
			if rec == nil {
				continue
			}
			ok, err := filter.Evaluate(p.Residual, rec, env.Accessor)
			if err != nil {
				return &knnCursor{err: err}
			}
			if !ok {
				continue
			}
			out = append(out, rec)
		}

		if len(out) >= p.K || p.Residual == nil {
			break
		}
	}

	if len(out) > p.K {
		out = out[:p.K]
	}
	return &knnCursor{results: out}
}

// fetchCandidates consults the circuit breaker, attempts HNSW if allowed,
// and falls back to flat scan specifically on a graph-not-built error
// (§4.8: "catches graph-unbuilt errors specifically and also falls back.
// Other errors propagate").
func (e *VectorExecutor) fetchCandidates(ctx context.Context, idx *record.Index, query []float64, k int) ([]tuple.Tuple, bool, error) {
	useHNSW := idx.Vector.Strategy == record.VectorStrategyHNSW && e.Breaker != nil && e.Breaker.ShouldUseHNSW(time.Now())

	if useHNSW {
		pks, err := e.Graph.Query(ctx, idx, query, k)
		if err == nil {
			e.Breaker.RecordSuccess()
			return pks, true, nil
		}
		if !rlerrors.Is(err, rlerrors.KindHNSWGraphNotBuilt) {
			return nil, false, err
		}
		e.Breaker.RecordFailure(err)
	}

	pks, err := e.flatScan(ctx, idx, query, k)
	return pks, false, err
}

func (e *VectorExecutor) flatScan(ctx context.Context, idx *record.Index, query []float64, k int) ([]tuple.Tuple, error) {
	entries, errCh := e.Source.ScanAll(ctx, idx)
	h := &maxDistHeap{}
	heap.Init(h)

	for entry := range entries {
		d := vector.Distance(idx.Vector.Metric, query, entry.Vector)
		if h.Len() < k {
			heap.Push(h, candidate{pk: entry.PK, distance: d})
		} else if h.Len() > 0 && d < (*h)[0].distance {
			heap.Pop(h)
			heap.Push(h, candidate{pk: entry.PK, distance: d})
		}
	}
	if err := <-errCh; err != nil {
		return nil, rlerrors.Internal("vector flat scan", err)
	}

	out := make([]tuple.Tuple, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(candidate).pk
	}
	return out, nil
}
