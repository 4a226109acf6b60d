// Package planner is the facade tying rewrite, index matching, plan
// enumeration, cost-based selection, the plan cache and the cursor engine
// together into one query path (§4). It owns the per-schema collaborators
// (stats manager, plan cache, vector circuit breakers, spatial covering
// generator) a single query touches.
package planner

import (
	"context"

	"github.com/mantisdb/recordlayer/cache"
	"github.com/mantisdb/recordlayer/config"
	"github.com/mantisdb/recordlayer/cost"
	"github.com/mantisdb/recordlayer/cursor"
	"github.com/mantisdb/recordlayer/filter"
	"github.com/mantisdb/recordlayer/kv"
	"github.com/mantisdb/recordlayer/plan"
	"github.com/mantisdb/recordlayer/record"
	"github.com/mantisdb/recordlayer/rlog"
	"github.com/mantisdb/recordlayer/spatial"
	"github.com/mantisdb/recordlayer/stats"
	"github.com/mantisdb/recordlayer/tuple"
	"github.com/mantisdb/recordlayer/vector"
)

// Query is one declarative request: a rewritten-able filter, an optional
// sort order and an optional row limit (0 means unlimited).
type Query struct {
	Filter filter.Tree
	Sort   []plan.SortKey
	Limit  int
}

// Planner plans and executes queries against one schema. It is safe for
// concurrent use: the plan cache and statistics manager carry their own
// locks, and a Planner holds no per-query mutable state.
type Planner struct {
	schema *record.Schema
	cfg    *config.PlanGenerationConfig
	cache  *cache.Cache
	stats  *stats.Manager
	logger *rlog.Logger

	recordSubspace kv.Subspace
	indexRoot      kv.Subspace

	vectorSource    vector.Source
	graphMaintainer vector.GraphMaintainer
	breakerFor      func(indexName string) *vector.CircuitBreaker

	spatialGen spatial.Generator
}

// New constructs a Planner. breakerFor resolves (and should memoize) one
// CircuitBreaker per HNSW-strategy index name; the planner does not own
// breaker lifetime itself since a host may want to share breakers across
// multiple Planner instances (e.g. one per transaction).
func New(
	schema *record.Schema,
	cfg *config.PlanGenerationConfig,
	statsManager *stats.Manager,
	recordSubspace, indexRoot kv.Subspace,
	vectorSource vector.Source,
	graphMaintainer vector.GraphMaintainer,
	breakerFor func(indexName string) *vector.CircuitBreaker,
	spatialGen spatial.Generator,
) *Planner {
	return &Planner{
		schema:          schema,
		cfg:             cfg,
		cache:           cache.New(cfg.PlanCacheSize),
		stats:           statsManager,
		logger:          rlog.New("planner"),
		recordSubspace:  recordSubspace,
		indexRoot:       indexRoot,
		vectorSource:    vectorSource,
		graphMaintainer: graphMaintainer,
		breakerFor:      breakerFor,
		spatialGen:      spatialGen,
	}
}

// Plan resolves q to a physical plan node, consulting the plan cache first
// and falling through to rewrite → enumerate → cost → select → sort-wrap
// on a miss (§4.7). The resolved node (including any Sort/Limit wrapper)
// is itself what gets cached, so a cache hit skips every later stage.
func (p *Planner) Plan(ctx context.Context, recordType string, q Query) plan.Node {
	key := cache.BuildKey(q.Filter, q.Limit, q.Sort)
	if node, ok := p.cache.Get(key); ok {
		return node
	}

	rewritten := filter.Rewrite(q.Filter, p.cfg.MaxDNFBranches)
	candidates := plan.Enumerate(rewritten, recordType, p.schema, p.cfg)

	best := p.pickBest(ctx, candidates, q.Sort)
	node := p.wrapSortAndLimit(best, q)

	p.cache.Put(key, node)
	return node
}

// pickBest costs every candidate and returns the cheapest by Total(),
// per §4.5/§4.3 "cost-based selection". Ties keep the first (lower index)
// candidate, which enumeration emits in the fixed priority order of §4.3
// (unique-index short-circuit, IN-join, single-index, intersection,
// union) — a deliberate, stable tie-break rather than an arbitrary one.
func (p *Planner) pickBest(ctx context.Context, candidates []plan.Candidate, requestedSort []plan.SortKey) plan.Node {
	var best plan.Node
	bestCost := -1.0
	for _, c := range candidates {
		qc := p.costOf(ctx, c.Node, requestedSort)
		total := qc.Total()
		if bestCost < 0 || total < bestCost {
			bestCost = total
			best = c.Node
		}
	}
	return best
}

// wrapSortAndLimit adds a Sort node when the chosen plan's natural order
// doesn't already satisfy q.Sort, then a Limit node when q.Limit > 0,
// mirroring §4.3 "sort wrapping" (sort applies to the post-filter,
// pre-limit row stream).
func (p *Planner) wrapSortAndLimit(node plan.Node, q Query) plan.Node {
	if len(q.Sort) > 0 {
		if keys, ok := node.ResultSort(); !ok || !sortKeysEqual(keys, q.Sort) {
			node = plan.Sort{Child: node, Keys: q.Sort}
		}
	}
	if q.Limit > 0 {
		node = plan.Limit{Child: node, N: q.Limit}
	}
	return node
}

func sortKeysEqual(a, b []plan.SortKey) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Execute turns a planned node into a running Cursor, recursing over the
// closed plan.Node variant set (§3/§4.4). env carries the transaction and
// accessor every leaf operator reads through.
func (p *Planner) Execute(ctx context.Context, env cursor.Env, node plan.Node) cursor.Cursor {
	switch n := node.(type) {
	case plan.FullScan:
		return cursor.NewFullScan(ctx, env, n)

	case plan.IndexScan:
		return cursor.NewIndexScan(ctx, env, p.subspacesFor(n.Index), p.schema.PrimaryKey, n)

	case plan.CoveringScan:
		return cursor.NewCoveringScan(ctx, env, p.subspacesFor(n.Index), p.schema.PrimaryKey, n)

	case plan.Filter:
		return cursor.NewFilter(p.Execute(ctx, env, n.Child), n.Residual, env.Accessor)

	case plan.Limit:
		return cursor.NewLimit(p.Execute(ctx, env, n.Child), n.N)

	case plan.Sort:
		return cursor.NewSort(p.Execute(ctx, env, n.Child), n.Keys, env.Accessor, p.cfg.MaxRowsInMemory)

	case plan.Intersection:
		children := p.executeChildren(ctx, env, n.Children)
		if n.Strategy == plan.IntersectionSortedMerge {
			return cursor.NewSortedMergeIntersection(children, p.schema.PrimaryKey, env.Accessor)
		}
		return cursor.NewHashIntersection(children, p.schema.PrimaryKey, env.Accessor)

	case plan.Union:
		children := p.executeChildren(ctx, env, n.Children)
		if n.Strategy == plan.UnionMerge {
			return cursor.NewMergeUnion(children, p.schema.PrimaryKey, env.Accessor)
		}
		return cursor.NewHashUnion(children, p.schema.PrimaryKey, env.Accessor)

	case plan.InJoin:
		return cursor.NewInJoin(ctx, env, p.subspacesFor(n.Index), p.schema.PrimaryKey, n)

	case plan.VectorKNN:
		exec := &vector.VectorExecutor{
			Source:  p.vectorSource,
			Graph:   p.graphMaintainer,
			Breaker: p.breakerFor(n.Index.Name),
		}
		return exec.Run(ctx, env, n)

	case plan.SpatialRange:
		return cursor.NewSpatialRange(ctx, env, p.subspacesFor(n.Index), p.schema.PrimaryKey, p.spatialGen, n)

	case plan.GroupBy:
		return cursor.NewGroupBy(p.Execute(ctx, env, n.Child), env.Accessor, n)

	default:
		return cursor.NewFullScan(ctx, env, plan.FullScan{RecordType: p.schema.RecordType})
	}
}

// executeChildren builds every child cursor before any of them is pulled
// from. Each cursor constructor (NewIndexScan, etc.) issues its
// Txn.GetRange call up front, so the KV store already services every
// child's range concurrently by the time the set-operator starts
// comparing heads (§5 "Concurrency in intersection") — no extra
// goroutine fan-out is needed on top of that, and submission order (the
// order children were declared in the plan) is preserved exactly since
// this loop is sequential construction, not a parallel dispatch that
// could reorder results.
func (p *Planner) executeChildren(ctx context.Context, env cursor.Env, nodes []plan.Node) []cursor.Cursor {
	children := make([]cursor.Cursor, len(nodes))
	for i, child := range nodes {
		children[i] = p.Execute(ctx, env, child)
	}
	return children
}

// subspacesFor resolves the KV subspaces an index-backed cursor needs.
func (p *Planner) subspacesFor(idx *record.Index) cursor.IndexSubspaces {
	return cursor.IndexSubspaces{
		Index:  p.indexRoot.Sub(idx.SubspaceKey),
		Record: p.recordSubspace,
	}
}

// histogramLookup resolves the best available histogram for field from
// any readable index whose leading field is field, per §4.5.
func (p *Planner) histogramLookup(ctx context.Context, field string) (stats.Histogram, bool) {
	for _, idx := range p.schema.IndexesOnField(field) {
		if is, ok := p.stats.GetIndexStats(ctx, idx.Name); ok {
			return is.Histogram, true
		}
	}
	return stats.Histogram{}, false
}

// costOf implements §4.5's per-plan-type cost model, recursing over the
// plan tree. requestedSort marks a node NeedsSort when its own natural
// order doesn't already satisfy the caller's request, so two plans that
// differ only in whether they'd need a trailing sort are compared fairly.
func (p *Planner) costOf(ctx context.Context, node plan.Node, requestedSort []plan.SortKey) cost.QueryCost {
	needsSort := len(requestedSort) > 0
	if keys, ok := node.ResultSort(); ok && sortKeysEqual(keys, requestedSort) {
		needsSort = false
	}

	switch n := node.(type) {
	case plan.FullScan:
		rows := p.tableRows(ctx, n.RecordType)
		sel := 1.0
		if n.Residual != nil {
			sel = cost.EstimateSelectivity(ctx, n.Residual, p.histogramLookup)
		}
		return cost.FullScan(rows, sel, needsSort)

	case plan.IndexScan:
		return p.indexScanCost(ctx, n.Index, n.Range, n.Residual, needsSort)

	case plan.CoveringScan:
		qc := p.indexScanCost(ctx, n.Index, n.Range, n.Residual, needsSort)
		qc.IOCost /= 2 // one index read, no record-subspace fetch
		return qc

	case plan.Filter:
		child := p.costOf(ctx, n.Child, requestedSort)
		sel := cost.EstimateSelectivity(ctx, n.Residual, p.histogramLookup)
		child.EstimatedRows *= sel
		return child

	case plan.Limit:
		return cost.Limit(p.costOf(ctx, n.Child, requestedSort), n.N)

	case plan.Sort:
		c := p.costOf(ctx, n.Child, nil)
		c.NeedsSort = true
		return c

	case plan.Intersection:
		childCosts := make([]cost.QueryCost, len(n.Children))
		childSel := make([]float64, len(n.Children))
		rows := p.tableRows(ctx, p.schema.RecordType)
		for i, c := range n.Children {
			childCosts[i] = p.costOf(ctx, c, nil)
			if rows > 0 {
				childSel[i] = childCosts[i].EstimatedRows / rows
			}
		}
		qc := cost.Intersection(childCosts, rows, childSel)
		qc.NeedsSort = needsSort
		return qc

	case plan.Union:
		childCosts := make([]cost.QueryCost, len(n.Children))
		for i, c := range n.Children {
			childCosts[i] = p.costOf(ctx, c, nil)
		}
		qc := cost.Union(childCosts)
		qc.NeedsSort = needsSort
		return qc

	case plan.InJoin:
		childCosts := make([]cost.QueryCost, 0, len(n.Values))
		for range n.Values {
			childCosts = append(childCosts, p.indexScanCost(ctx, n.Index, plan.KeyRange{}, n.Residual, false))
		}
		qc := cost.Union(childCosts)
		qc.NeedsSort = needsSort
		return qc

	case plan.VectorKNN:
		rows := float64(n.K)
		return cost.QueryCost{IOCost: rows * 2, CPUCost: rows, EstimatedRows: rows, NeedsSort: false}

	case plan.SpatialRange:
		rows := p.tableRows(ctx, n.Index.RecordType) * 0.05
		return cost.QueryCost{IOCost: rows * 2, CPUCost: rows, EstimatedRows: rows, NeedsSort: needsSort}

	case plan.GroupBy:
		c := p.costOf(ctx, n.Child, nil)
		c.NeedsSort = false
		return c

	default:
		return cost.Unknown()
	}
}

func (p *Planner) indexScanCost(ctx context.Context, idx *record.Index, r plan.KeyRange, residual filter.Tree, needsSort bool) cost.QueryCost {
	rows := p.tableRows(ctx, idx.RecordType)
	fields := idx.Fields()

	rangeSel := 1.0
	if len(fields) > 0 {
		if is, ok := p.stats.GetIndexStats(ctx, idx.Name); ok {
			rangeSel = rangeSelectivityFromHistogram(is.Histogram, r)
		} else {
			full := len(r.BeginValues) == 0 && len(r.EndValues) == 0
			halfOpen := !full && (len(r.BeginValues) == 0 || len(r.EndValues) == 0)
			rangeSel = cost.HeuristicRangeSelectivity(full, halfOpen)
		}
	}

	filterSel := 1.0
	if residual != nil {
		filterSel = cost.EstimateSelectivity(ctx, residual, p.histogramLookup)
	}
	return cost.IndexScan(rows, rangeSel, filterSel, needsSort)
}

func rangeSelectivityFromHistogram(h stats.Histogram, r plan.KeyRange) float64 {
	if len(r.BeginValues) > 0 && len(r.EndValues) > 0 && tuple.Compare(r.BeginValues[0], r.EndValues[0]) == 0 {
		if sel, ok := h.PointSelectivity(r.BeginValues[0]); ok {
			return sel
		}
		return 0.01
	}
	var lo, hi *tuple.Element
	if len(r.BeginValues) > 0 {
		v := r.BeginValues[0]
		lo = &v
	}
	if len(r.EndValues) > 0 {
		v := r.EndValues[0]
		hi = &v
	}
	if sel, ok := h.RangeSelectivity(lo, hi, true, false); ok {
		return sel
	}
	return 0.33
}

// tableRows reads the cached/persisted row count for recordType, or a
// conservative default when no statistics have been collected yet.
func (p *Planner) tableRows(ctx context.Context, recordType string) float64 {
	if ts, ok := p.stats.GetTableStats(ctx, recordType); ok && ts.RowCount > 0 {
		return float64(ts.RowCount)
	}
	return 10000
}
