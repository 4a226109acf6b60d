package plan

import (
	"github.com/mantisdb/recordlayer/filter"
	"github.com/mantisdb/recordlayer/record"
	"github.com/mantisdb/recordlayer/tuple"
)

// MatchResult is a successful match from §4.2: a key range to scan plus the
// residual filter to apply post-scan. An index that cannot contribute a
// range at all is reported by MatchIndex returning ok=false, which callers
// must treat as "fall back to full scan" (§8 invariant 3 and 4).
type MatchResult struct {
	Range    KeyRange
	Residual filter.Tree
}

// MatchIndex implements §4.2: for a simple value index, matches a leading
// field-compare conjunct; for a compound (concatenate) index, greedily
// matches equality conjuncts field by field, then permits one trailing
// range conjunct on the next field. Conjuncts that don't participate
// become the residual.
func MatchIndex(f filter.Tree, idx *record.Index) (MatchResult, bool) {
	fields := idx.Fields()
	if len(fields) == 0 {
		return MatchResult{}, false
	}

	conjuncts := filter.Conjuncts(f)
	used := make([]bool, len(conjuncts))

	var beginValues, endValues tuple.Tuple
	matchedAny := false

	for _, field := range fields {
		// look for an equality conjunct on this field first
		eqIdx := findConjunct(conjuncts, used, field, filter.OpEq)
		if eqIdx >= 0 {
			lit := conjuncts[eqIdx].(filter.FieldCompare).Literal
			beginValues = append(beginValues, lit)
			endValues = append(endValues, lit)
			used[eqIdx] = true
			matchedAny = true
			continue
		}

		// no equality on this field: try exactly one trailing range conjunct,
		// then stop extending the range regardless of match.
		rangeIdx := findRangeConjunct(conjuncts, used, field)
		if rangeIdx >= 0 {
			fc := conjuncts[rangeIdx].(filter.FieldCompare)
			b, e, ok := rangeBounds(fc.Op, fc.Literal)
			if !ok {
				// next(v) undefined: correctness invariant forces a full fallback
				// (§8 invariant 4), not a silently-wrong `>=` range.
				return MatchResult{}, false
			}
			if b != nil {
				beginValues = append(beginValues, *b)
			}
			if e != nil {
				endValues = append(endValues, *e)
			}
			used[rangeIdx] = true
			matchedAny = true
		}
		break
	}

	if !matchedAny {
		return MatchResult{}, false
	}

	var residualChildren []filter.Tree
	for i, c := range conjuncts {
		if !used[i] {
			residualChildren = append(residualChildren, c)
		}
	}

	return MatchResult{
		Range:    KeyRange{BeginValues: beginValues, EndValues: endValues},
		Residual: buildResidual(residualChildren),
	}, true
}

func findConjunct(conjuncts []filter.Tree, used []bool, field string, op filter.Op) int {
	for i, c := range conjuncts {
		if used[i] {
			continue
		}
		fc, ok := c.(filter.FieldCompare)
		if ok && fc.Field == field && fc.Op == op {
			return i
		}
	}
	return -1
}

func findRangeConjunct(conjuncts []filter.Tree, used []bool, field string) int {
	for i, c := range conjuncts {
		if used[i] {
			continue
		}
		fc, ok := c.(filter.FieldCompare)
		if ok && fc.Field == field && fc.Op.IsRangeOp() {
			return i
		}
	}
	return -1
}

// rangeBounds translates one ordered comparison into (begin, end) tuple
// elements per the table in §4.2. A nil *tuple.Element means "unbounded on
// this side". ok=false means next(v) could not be computed and the caller
// must reject the match entirely (§8 invariant 4).
func rangeBounds(op filter.Op, v tuple.Element) (begin, end *tuple.Element, ok bool) {
	switch op {
	case filter.OpLt:
		return nil, &v, true
	case filter.OpLe:
		next, succOK := v.Successor()
		if !succOK {
			return nil, nil, false
		}
		return nil, &next, true
	case filter.OpGt:
		next, succOK := v.Successor()
		if !succOK {
			return nil, nil, false
		}
		return &next, nil, true
	case filter.OpGe:
		return &v, nil, true
	default:
		return nil, nil, false
	}
}

func buildResidual(children []filter.Tree) filter.Tree {
	if len(children) == 0 {
		return nil
	}
	if len(children) == 1 {
		return children[0]
	}
	return filter.And{Children: children}
}

// CoveringFieldsSatisfy reports whether idx's covering fields (plus its own
// key-expression fields) are a superset of every field the residual filter
// references. The matcher must never hand back a covering-index plan whose
// residual touches an uncovered field (§9 open question: "Residual
// correctness under covering indexes").
func CoveringFieldsSatisfy(idx *record.Index, residual filter.Tree) bool {
	if residual == nil {
		return true
	}
	covered := make(map[string]bool)
	for _, f := range idx.Fields() {
		covered[f] = true
	}
	for _, f := range idx.CoveringFields {
		covered[f] = true
	}
	for _, f := range filter.Fields(residual) {
		if !covered[f] {
			return false
		}
	}
	return true
}
