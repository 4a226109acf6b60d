package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantisdb/recordlayer/tuple"
)

func TestBuildValueAwareHistogramOneBucketPerDistinctValue(t *testing.T) {
	sample := []tuple.Element{tuple.Int64(1), tuple.Int64(2), tuple.Int64(1), tuple.Int64(3)}
	h := BuildValueAwareHistogram(sample, int64(len(sample)))
	require.Len(t, h.Buckets, 3)
	assert.Equal(t, int64(1), h.Buckets[0].LowerBound.Int64())
	assert.Equal(t, int64(2), h.Buckets[0].Count) // two 1s in the sample
}

func TestBuildValueAwareHistogramScalesByPopulationRatio(t *testing.T) {
	sample := []tuple.Element{tuple.Int64(1), tuple.Int64(2)}
	h := BuildValueAwareHistogram(sample, 2000) // population is 1000x the sample
	for _, b := range h.Buckets {
		assert.InDelta(t, 1000, b.Count, 1)
	}
}

func TestBuildValueAwareHistogramEmptySample(t *testing.T) {
	h := BuildValueAwareHistogram(nil, 0)
	assert.Empty(t, h.Buckets)
	assert.Equal(t, int64(0), h.TotalCount)
}

func TestPointSelectivityKnownValue(t *testing.T) {
	sample := []tuple.Element{tuple.Int64(1), tuple.Int64(1), tuple.Int64(1), tuple.Int64(2)}
	h := BuildValueAwareHistogram(sample, 4)
	sel, ok := h.PointSelectivity(tuple.Int64(1))
	require.True(t, ok)
	assert.InDelta(t, 0.75, sel, 1e-6)
}

func TestPointSelectivityUnseenValueIsRareNotZero(t *testing.T) {
	sample := []tuple.Element{tuple.Int64(1), tuple.Int64(2)}
	h := BuildValueAwareHistogram(sample, 2)
	sel, ok := h.PointSelectivity(tuple.Int64(999))
	require.True(t, ok)
	assert.Greater(t, sel, 0.0)
	assert.Less(t, sel, 0.5)
}

func TestRangeSelectivityInclusiveBounds(t *testing.T) {
	sample := []tuple.Element{tuple.Int64(1), tuple.Int64(2), tuple.Int64(3), tuple.Int64(4)}
	h := BuildValueAwareHistogram(sample, 4)
	lower := tuple.Int64(2)
	upper := tuple.Int64(3)
	sel, ok := h.RangeSelectivity(&lower, &upper, true, true)
	require.True(t, ok)
	assert.InDelta(t, 0.5, sel, 1e-6) // values 2 and 3 of 4
}

func TestRangeSelectivityExclusiveBoundsNarrower(t *testing.T) {
	sample := []tuple.Element{tuple.Int64(1), tuple.Int64(2), tuple.Int64(3), tuple.Int64(4)}
	h := BuildValueAwareHistogram(sample, 4)
	lower := tuple.Int64(1)
	upper := tuple.Int64(4)
	inclusive, _ := h.RangeSelectivity(&lower, &upper, true, true)
	exclusive, _ := h.RangeSelectivity(&lower, &upper, false, false)
	assert.Less(t, exclusive, inclusive)
}

func TestRangeSelectivityOnEmptyHistogramIsNotOK(t *testing.T) {
	var h Histogram
	_, ok := h.RangeSelectivity(nil, nil, true, true)
	assert.False(t, ok)
}
