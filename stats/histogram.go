// Package stats implements the statistics subsystem (§4.6): reservoir
// sampled, value-aware histograms, HyperLogLog cardinality estimation, and
// the process-wide statistics manager the cost model consults.
package stats

import (
	"sort"

	"github.com/mantisdb/recordlayer/tuple"
)

// Bucket is one histogram bucket (§3): a value range plus the row and
// distinct counts observed in it.
type Bucket struct {
	LowerBound    tuple.Element
	UpperBound    tuple.Element
	Count         int64
	DistinctCount int64
}

// Histogram is an ordered sequence of buckets plus a total row count.
type Histogram struct {
	Buckets    []Bucket
	TotalCount int64
}

// BuildValueAwareHistogram builds a histogram from a reservoir sample using
// the value-aware bucketing rule from §4.6's Collection subsection: every
// distinct value in the sample becomes its own bucket, with its count
// scaled by totalElementsSeen/sampleSize to project back to the full
// population. Buckets are produced in ascending value order so the cost
// model's range-selectivity lookup can binary-search them.
func BuildValueAwareHistogram(sample []tuple.Element, totalElementsSeen int64) Histogram {
	if len(sample) == 0 {
		return Histogram{}
	}
	sorted := make([]tuple.Element, len(sample))
	copy(sorted, sample)
	sort.Slice(sorted, func(i, j int) bool { return tuple.Compare(sorted[i], sorted[j]) < 0 })

	scale := float64(totalElementsSeen) / float64(len(sample))

	var buckets []Bucket
	var total int64
	i := 0
	for i < len(sorted) {
		j := i
		for j < len(sorted) && tuple.Compare(sorted[i], sorted[j]) == 0 {
			j++
		}
		rawCount := int64(j - i)
		scaledCount := int64(float64(rawCount)*scale + 0.5)
		if scaledCount < rawCount {
			scaledCount = rawCount
		}
		buckets = append(buckets, Bucket{
			LowerBound:    sorted[i],
			UpperBound:    sorted[i],
			Count:         scaledCount,
			DistinctCount: 1,
		})
		total += scaledCount
		i = j
	}
	return Histogram{Buckets: buckets, TotalCount: total}
}

// RangeSelectivity estimates the fraction of rows satisfying `v op bound`
// by summing bucket counts that fall inside the requested half-open or
// point range, per §4.5's "index's histogram if present" rule. Returns
// (selectivity, ok) — ok is false for an empty histogram, letting the
// caller fall back to the heuristic table.
func (h Histogram) RangeSelectivity(lower, upper *tuple.Element, lowerInclusive, upperInclusive bool) (float64, bool) {
	if h.TotalCount == 0 || len(h.Buckets) == 0 {
		return 0, false
	}
	var matched int64
	for _, b := range h.Buckets {
		if lower != nil {
			c := tuple.Compare(b.LowerBound, *lower)
			if c < 0 || (c == 0 && !lowerInclusive) {
				continue
			}
		}
		if upper != nil {
			c := tuple.Compare(b.UpperBound, *upper)
			if c > 0 || (c == 0 && !upperInclusive) {
				continue
			}
		}
		matched += b.Count
	}
	sel := float64(matched) / float64(h.TotalCount)
	return clampSelectivity(sel), true
}

// PointSelectivity estimates the selectivity of field = v.
func (h Histogram) PointSelectivity(v tuple.Element) (float64, bool) {
	if h.TotalCount == 0 {
		return 0, false
	}
	for _, b := range h.Buckets {
		if tuple.Compare(b.LowerBound, v) == 0 {
			return clampSelectivity(float64(b.Count) / float64(h.TotalCount)), true
		}
	}
	// value not observed in the sample: treat as rare but not impossible
	return clampSelectivity(1.0 / float64(h.TotalCount+1)), true
}

const selectivityEpsilon = 1e-9

func clampSelectivity(sel float64) float64 {
	if sel < selectivityEpsilon {
		return selectivityEpsilon
	}
	if sel > 1 {
		return 1
	}
	return sel
}
