package vector

import (
	"context"
	"math"

	"github.com/mantisdb/recordlayer/record"
	"github.com/mantisdb/recordlayer/tuple"
)

// Entry is one vector-index entry surfaced by a flat scan: the owning
// record's primary key and its stored vector.
type Entry struct {
	PK     tuple.Tuple
	Vector []float64
}

// Source is the external collaborator a vector-index flat scan reads
// from — the vector storage format is a KV-store codec concern (§1
// non-goal); this package only consumes it.
type Source interface {
	// ScanAll streams every (pk, vector) entry under idx, for brute-force
	// flat scan (§4.4 step 3).
	ScanAll(ctx context.Context, idx *record.Index) (<-chan Entry, <-chan error)
}

// GraphMaintainer is the external HNSW graph collaborator (§1 non-goal):
// build and maintenance live outside this module. Query returns
// errors.HNSWGraphNotBuilt when idx's graph hasn't been constructed yet,
// which the k-NN operator catches specifically (§4.8).
type GraphMaintainer interface {
	Query(ctx context.Context, idx *record.Index, queryVector []float64, k int) ([]tuple.Tuple, error)
}

// Distance computes the query-to-candidate distance for metric m. Smaller
// is always "closer" for every metric: cosine uses 1 - similarity and dot
// product is negated, so one ascending-distance ordering serves all three.
func Distance(metric record.VectorMetric, a, b []float64) float64 {
	switch metric {
	case record.VectorMetricCosine:
		return 1 - cosineSimilarity(a, b)
	case record.VectorMetricDotProduct:
		return -dotProduct(a, b)
	default: // VectorMetricEuclidean
		return euclidean(a, b)
	}
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func dotProduct(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func cosineSimilarity(a, b []float64) float64 {
	dot := dotProduct(a, b)
	na := math.Sqrt(dotProduct(a, a))
	nb := math.Sqrt(dotProduct(b, b))
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (na * nb)
}
