package cost

import (
	"context"

	"github.com/mantisdb/recordlayer/filter"
	"github.com/mantisdb/recordlayer/stats"
)

// heuristic selectivities from §4.5, used when no histogram is available.
const (
	heuristicEq          = 0.01
	heuristicNe          = 0.99
	heuristicRange       = 0.33
	heuristicStartsWith  = 0.1
	heuristicContains    = 0.2
)

// HistogramLookup resolves the histogram backing a field, if any index's
// collected statistics cover it. Returns ok=false when no statistics exist,
// in which case the heuristic table applies.
type HistogramLookup func(ctx context.Context, field string) (stats.Histogram, bool)

const selectivityEpsilon = 1e-9

func clamp(sel float64) float64 {
	if sel < selectivityEpsilon {
		return selectivityEpsilon
	}
	if sel > 1 {
		return 1
	}
	return sel
}

// EstimateSelectivity implements §4.5's selectivity model over a
// (rewritten) filter tree: field-compare looks up a histogram when
// available, AND takes the independence product, OR takes the
// inclusion-exclusion complement, NOT complements its child.
func EstimateSelectivity(ctx context.Context, f filter.Tree, lookup HistogramLookup) float64 {
	switch n := f.(type) {
	case filter.FieldCompare:
		return fieldCompareSelectivity(ctx, n, lookup)
	case filter.In:
		// Not named explicitly in §4.5; treated as an n-way OR of equalities,
		// consistent with how the enumerator treats IN for join planning.
		per := heuristicEq
		if h, ok := lookup(ctx, n.Field); ok {
			if len(n.Literals) > 0 {
				if sel, ok := h.PointSelectivity(n.Literals[0]); ok {
					per = sel
				}
			}
		}
		return clamp(1 - pow1Minus(per, len(n.Literals)))
	case filter.And:
		sel := 1.0
		for _, c := range n.Children {
			sel *= EstimateSelectivity(ctx, c, lookup)
		}
		return clamp(sel)
	case filter.Or:
		complement := 1.0
		for _, c := range n.Children {
			complement *= 1 - EstimateSelectivity(ctx, c, lookup)
		}
		return clamp(1 - complement)
	case filter.Not:
		return clamp(1 - EstimateSelectivity(ctx, n.Child, lookup))
	default:
		return heuristicEq
	}
}

func pow1Minus(p float64, n int) float64 {
	r := 1.0
	for i := 0; i < n; i++ {
		r *= 1 - p
	}
	return r
}

func fieldCompareSelectivity(ctx context.Context, n filter.FieldCompare, lookup HistogramLookup) float64 {
	h, ok := lookup(ctx, n.Field)
	if ok {
		switch n.Op {
		case filter.OpEq:
			if sel, ok := h.PointSelectivity(n.Literal); ok {
				return clamp(sel)
			}
		case filter.OpLt:
			if sel, ok := h.RangeSelectivity(nil, &n.Literal, false, false); ok {
				return clamp(sel)
			}
		case filter.OpLe:
			if sel, ok := h.RangeSelectivity(nil, &n.Literal, false, true); ok {
				return clamp(sel)
			}
		case filter.OpGt:
			if sel, ok := h.RangeSelectivity(&n.Literal, nil, false, false); ok {
				return clamp(sel)
			}
		case filter.OpGe:
			if sel, ok := h.RangeSelectivity(&n.Literal, nil, true, false); ok {
				return clamp(sel)
			}
		}
	}
	switch n.Op {
	case filter.OpEq:
		return heuristicEq
	case filter.OpNe:
		return heuristicNe
	case filter.OpLt, filter.OpLe, filter.OpGt, filter.OpGe:
		return heuristicRange
	case filter.OpStartsWith:
		return heuristicStartsWith
	case filter.OpContains:
		return heuristicContains
	default:
		return heuristicEq
	}
}
