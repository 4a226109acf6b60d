package stats

import (
	"math/rand"

	"github.com/mantisdb/recordlayer/tuple"
)

// Reservoir implements Algorithm R (Vitter): a fixed-capacity uniform
// random sample over a stream of unknown length, used as histogram input
// per §4.6's Collection rule. Not safe for concurrent use — each
// collectIndexStats call owns a private Reservoir.
type Reservoir struct {
	capacity int
	seen     int64
	sample   []tuple.Element
	rng      *rand.Rand
}

// NewReservoir returns a reservoir of the given capacity. rngSeed fixes the
// sampler's randomness source; callers that need reproducible tests pass a
// deterministic seed, production callers seed from a process-wide source.
func NewReservoir(capacity int, rngSeed int64) *Reservoir {
	return &Reservoir{
		capacity: capacity,
		sample:   make([]tuple.Element, 0, capacity),
		rng:      rand.New(rand.NewSource(rngSeed)),
	}
}

// Add offers one more element from the stream to the reservoir.
func (r *Reservoir) Add(v tuple.Element) {
	r.seen++
	if len(r.sample) < r.capacity {
		r.sample = append(r.sample, v)
		return
	}
	j := r.rng.Int63n(r.seen)
	if j < int64(r.capacity) {
		r.sample[j] = v
	}
}

// Sample returns the current sample contents. The caller must not retain
// the slice across further Add calls.
func (r *Reservoir) Sample() []tuple.Element { return r.sample }

// SeenCount returns the total number of elements offered, used to scale
// bucket counts back up to the full population in BuildValueAwareHistogram.
func (r *Reservoir) SeenCount() int64 { return r.seen }
