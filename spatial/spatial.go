// Package spatial declares the external covering-range collaborator for
// spatial-index range queries (§4.4 "Spatial range"). S2 cell generation
// (geographic) and Morton-code range generation (Cartesian) are themselves
// a non-goal (§1) — this package only states the contract the cursor
// operator drives, plus the cell-budget sizing arithmetic for radius
// queries, which is plain geometry rather than a covering algorithm.
package spatial

import (
	"context"
	"math"

	"github.com/mantisdb/recordlayer/record"
	"github.com/mantisdb/recordlayer/tuple"
)

// Range is one covering range's index-subspace key bounds, expressed as the
// field values to pack relative to the index's subspace — the spatial
// analogue of plan.KeyRange. Declared independently here (rather than
// reusing plan.KeyRange) so this package has no dependency on plan.
type Range struct {
	BeginValues tuple.Tuple
	EndValues   tuple.Tuple
}

// Generator is the external covering-range collaborator: given a spatial
// index and a query box, it returns the set of index-subspace ranges that
// cover the box (and may include false positives — the caller always
// re-verifies actual coordinates per §4.4 step 3). budgetHint, when
// non-zero, caps the number of cells/ranges the generator should aim for;
// CellBudget computes it for radius queries.
type Generator interface {
	BoxRanges(ctx context.Context, idx *record.Index, min, max []float64, budgetHint int) ([]Range, error)
}

// CellBudget sizes the covering-range cell budget for a radius query from
// the ratio of circle area to a single cell's area, with a 50% buffer,
// clamped to [4, 100] (§4.4 step 1).
func CellBudget(radius, cellArea float64) int {
	if cellArea <= 0 {
		return 4
	}
	circleArea := math.Pi * radius * radius
	n := int(math.Ceil((circleArea / cellArea) * 1.5))
	if n < 4 {
		return 4
	}
	if n > 100 {
		return 100
	}
	return n
}

// MergeRanges sorts ranges by begin value and coalesces any pair where the
// earlier range's end overlaps or touches the next range's begin (§4.4 step
// 2: "sort by begin, coalesce when end >= next.begin").
func MergeRanges(ranges []Range) []Range {
	if len(ranges) < 2 {
		return ranges
	}
	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && tuple.CompareTuples(sorted[j].BeginValues, sorted[j-1].BeginValues) < 0; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	merged := make([]Range, 0, len(sorted))
	cur := sorted[0]
	for _, r := range sorted[1:] {
		if tuple.CompareTuples(cur.EndValues, r.BeginValues) >= 0 {
			if tuple.CompareTuples(r.EndValues, cur.EndValues) > 0 {
				cur.EndValues = r.EndValues
			}
			continue
		}
		merged = append(merged, cur)
		cur = r
	}
	merged = append(merged, cur)
	return merged
}
