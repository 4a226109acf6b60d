package cursor

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mantisdb/recordlayer/record"
)

// sortedMergeIntersection implements §4.4's sorted-merge variant: every
// child must emit in strictly-ascending PK order (true for index scans,
// whose suffix embeds the PK). At each step, compare the head PK of every
// child; if all agree, emit and advance all; otherwise advance every
// cursor whose head is below the largest head. O(1) memory, O(Σnᵢ) time.
type sortedMergeIntersection struct {
	children []Cursor
	pk       record.PrimaryKey
	accessor record.Accessor

	heads   []primaryKeyTuple
	hasHead []bool
	started bool
	cur     record.Record
	err     error
	done    bool
}

func NewSortedMergeIntersection(children []Cursor, pk record.PrimaryKey, accessor record.Accessor) Cursor {
	return &sortedMergeIntersection{
		children: children,
		pk:       pk,
		accessor: accessor,
		heads:    make([]primaryKeyTuple, len(children)),
		hasHead:  make([]bool, len(children)),
	}
}

func (s *sortedMergeIntersection) advance(ctx context.Context, i int) error {
	if !s.children[i].Next(ctx) {
		s.hasHead[i] = false
		return s.children[i].Err()
	}
	pk, err := primaryKeyOf(Env{Accessor: s.accessor}, s.children[i].Record(), s.pk)
	if err != nil {
		s.hasHead[i] = false
		return err
	}
	s.heads[i] = pk
	s.hasHead[i] = true
	return nil
}

// advanceAll advances every index in indices concurrently: each child's
// Next blocks on its own KV-store range-read channel, so fanning these out
// lets the slowest child's wait dominate instead of the sum of every
// child's wait (§5 "Concurrency in intersection"). Each goroutine only
// ever touches its own slot of s.heads/s.hasHead, so no further
// synchronization is needed beyond errgroup collecting the first error.
func (s *sortedMergeIntersection) advanceAll(ctx context.Context, indices []int) {
	g, gctx := errgroup.WithContext(ctx)
	for _, i := range indices {
		i := i
		g.Go(func() error { return s.advance(gctx, i) })
	}
	if err := g.Wait(); err != nil {
		s.err = err
	}
}

func (s *sortedMergeIntersection) Next(ctx context.Context) bool {
	if s.done || s.err != nil {
		return false
	}
	if !s.started {
		s.started = true
		all := make([]int, len(s.children))
		for i := range all {
			all[i] = i
		}
		s.advanceAll(ctx, all)
	}

	for {
		if s.err != nil {
			s.done = true
			return false
		}
		// if any child is exhausted, the intersection is exhausted
		allPresent := true
		for _, present := range s.hasHead {
			if !present {
				allPresent = false
				break
			}
		}
		if !allPresent {
			s.done = true
			return false
		}

		// find the max among heads; advance every head strictly below it
		maxPK := s.heads[0]
		for _, h := range s.heads[1:] {
			if comparePK(h, maxPK) > 0 {
				maxPK = h
			}
		}

		allEqual := true
		for _, h := range s.heads {
			if comparePK(h, maxPK) != 0 {
				allEqual = false
				break
			}
		}

		if allEqual {
			s.cur = s.children[0].Record()
			all := make([]int, len(s.children))
			for i := range all {
				all[i] = i
			}
			s.advanceAll(ctx, all)
			return true
		}

		var below []int
		for i, h := range s.heads {
			if comparePK(h, maxPK) < 0 {
				below = append(below, i)
			}
		}
		s.advanceAll(ctx, below)
	}
}

func (s *sortedMergeIntersection) Record() record.Record { return s.cur }
func (s *sortedMergeIntersection) Err() error             { return s.err }
func (s *sortedMergeIntersection) Close() {
	for _, c := range s.children {
		c.Close()
	}
}

// hashIntersection implements §4.4's hash-based variant, used when any
// child isn't PK-ordered. It materializes the first child into a PK-keyed
// set (no sampling is done to find the smallest child; see
// estimateSmallest), then streams the remaining children filtering to PKs
// still in the set, shrinking it to the running intersection. Memory is
// O(n₀), n₀ being the first child's row count.
type hashIntersection struct {
	remaining []Cursor
	pk        record.PrimaryKey
	accessor  record.Accessor

	set      map[string]record.Record
	order    []string
	idx      int
	prepared bool
	err      error
}

func NewHashIntersection(children []Cursor, pk record.PrimaryKey, accessor record.Accessor) Cursor {
	return &hashIntersection{remaining: children, pk: pk, accessor: accessor}
}

// prepare materializes the child chosen by estimateSmallest into a
// PK-keyed set, then drains every other child and keeps only the PKs each
// of them also produced, stopping early once the set is empty.
func (h *hashIntersection) prepare(ctx context.Context) {
	h.prepared = true
	if len(h.remaining) == 0 {
		h.set = map[string]record.Record{}
		return
	}

	smallestIdx := h.estimateSmallest(ctx)
	smallest := h.remaining[smallestIdx]

	h.set = make(map[string]record.Record)
	for smallest.Next(ctx) {
		rec := smallest.Record()
		pk, err := primaryKeyOf(Env{Accessor: h.accessor}, rec, h.pk)
		if err != nil {
			h.err = err
			return
		}
		h.set[pk.mapKey()] = rec
	}
	if err := smallest.Err(); err != nil {
		h.err = err
		return
	}
	smallest.Close()

	others := make([]Cursor, 0, len(h.remaining)-1)
	for i, c := range h.remaining {
		if i != smallestIdx {
			others = append(others, c)
		}
	}

	for _, other := range others {
		seen := make(map[string]bool)
		for other.Next(ctx) {
			rec := other.Record()
			pk, err := primaryKeyOf(Env{Accessor: h.accessor}, rec, h.pk)
			if err != nil {
				h.err = err
				return
			}
			seen[pk.mapKey()] = true
		}
		if err := other.Err(); err != nil {
			h.err = err
			return
		}
		other.Close()
		for k := range h.set {
			if !seen[k] {
				delete(h.set, k)
			}
		}
		if len(h.set) == 0 {
			break // early-exit when empty, per §4.4
		}
	}

	h.order = make([]string, 0, len(h.set))
	for k := range h.set {
		h.order = append(h.order, k)
	}
}

// estimateSmallest picks the child prepare materializes. It samples no
// rows and always returns 0, so the first child is materialized whatever
// its size.
func (h *hashIntersection) estimateSmallest(ctx context.Context) int {
	// With single-consumer, forward-only cursors, sampling ahead of the
	// real pass would discard rows, so no sample is taken and the first
	// child is used. The order of children is the plan's order, which the
	// enumerator does not sort by estimated cost.
	return 0
}

func (h *hashIntersection) Next(ctx context.Context) bool {
	if !h.prepared {
		h.prepare(ctx)
	}
	if h.err != nil {
		return false
	}
	if h.idx >= len(h.order) {
		return false
	}
	h.idx++
	return true
}

func (h *hashIntersection) Record() record.Record {
	return h.set[h.order[h.idx-1]]
}
func (h *hashIntersection) Err() error { return h.err }
func (h *hashIntersection) Close() {
	for _, c := range h.remaining {
		c.Close()
	}
}
