// Package plan implements the plan tree (§3, §4.3), the index matcher
// (§4.2) and the enumerator (§4.3). Plans are immutable value descriptions
// of physical execution strategy; the cursor package turns them into
// running operators.
package plan

import (
	"github.com/mantisdb/recordlayer/filter"
	"github.com/mantisdb/recordlayer/record"
	"github.com/mantisdb/recordlayer/tuple"
)

// SortKey is one component of a requested sort order (§3).
type SortKey struct {
	Field     string
	Ascending bool
}

// KeyRange is the half-open key range an index or full scan is read over,
// expressed in the field values to pack relative to the index's subspace
// (§4.2 "Key-range construction").
type KeyRange struct {
	BeginValues tuple.Tuple
	EndValues   tuple.Tuple
}

// IntersectionStrategy distinguishes the two intersection physical
// operators from §4.4.
type IntersectionStrategy uint8

const (
	IntersectionSortedMerge IntersectionStrategy = iota
	IntersectionHash
)

// UnionStrategy distinguishes merge-union (children known PK-sorted) from
// hash-dedup union.
type UnionStrategy uint8

const (
	UnionHash UnionStrategy = iota
	UnionMerge
)

// Node is the closed plan-tree variant from §3/§4.4. It carries an
// unexported marker so the cost model and executor pattern-match over the
// enumerated set (§9 DESIGN NOTES).
type Node interface {
	isPlan()
	// ResultSort reports the sort order this node's output is already in,
	// or ok=false if unordered. Only index scans (and nodes that inherit
	// from a single PK-ordered child) can report true (§4.3 "Sort
	// wrapping").
	ResultSort() (keys []SortKey, ok bool)
}

type FullScan struct {
	RecordType string
	Residual   filter.Tree // nil means no residual beyond the type filter
}

func (FullScan) isPlan() {}
func (FullScan) ResultSort() ([]SortKey, bool) { return nil, false }

type IndexScan struct {
	Index    *record.Index
	Range    KeyRange
	Residual filter.Tree
}

func (IndexScan) isPlan() {}
func (s IndexScan) ResultSort() ([]SortKey, bool) {
	fields := s.Index.Fields()
	keys := make([]SortKey, len(fields))
	for i, f := range fields {
		keys[i] = SortKey{Field: f, Ascending: true}
	}
	return keys, true
}

// CoveringScan is an IndexScan that skips the record-subspace fetch
// because the index's covering fields suffice to reconstruct the record
// (§4.4).
type CoveringScan struct {
	Index    *record.Index
	Range    KeyRange
	Residual filter.Tree
}

func (CoveringScan) isPlan() {}
func (s CoveringScan) ResultSort() ([]SortKey, bool) {
	fields := s.Index.Fields()
	keys := make([]SortKey, len(fields))
	for i, f := range fields {
		keys[i] = SortKey{Field: f, Ascending: true}
	}
	return keys, true
}

type Filter struct {
	Child    Node
	Residual filter.Tree
}

func (Filter) isPlan() {}
func (f Filter) ResultSort() ([]SortKey, bool) { return f.Child.ResultSort() }

type Limit struct {
	Child Node
	N     int
}

func (Limit) isPlan() {}
func (l Limit) ResultSort() ([]SortKey, bool) { return l.Child.ResultSort() }

type Sort struct {
	Child Node
	Keys  []SortKey
}

func (Sort) isPlan() {}
func (s Sort) ResultSort() ([]SortKey, bool) { return s.Keys, true }

type Intersection struct {
	Children []Node
	Strategy IntersectionStrategy
}

func (Intersection) isPlan() {}
func (i Intersection) ResultSort() ([]SortKey, bool) {
	if i.Strategy == IntersectionSortedMerge && len(i.Children) > 0 {
		return i.Children[0].ResultSort()
	}
	return nil, false
}

type Union struct {
	Children []Node
	Strategy UnionStrategy
}

func (Union) isPlan() {}
func (u Union) ResultSort() ([]SortKey, bool) {
	if u.Strategy == UnionMerge && len(u.Children) > 0 {
		return u.Children[0].ResultSort()
	}
	return nil, false
}

// InJoin is the IN-predicate union-of-point-scans plan from §4.3 step 3.
type InJoin struct {
	Field    string
	Values   []tuple.Element
	Index    *record.Index
	Residual filter.Tree
}

func (InJoin) isPlan() {}
func (InJoin) ResultSort() ([]SortKey, bool) { return nil, false }

// VectorKNN is the approximate/exact nearest-neighbor plan from §4.4.
type VectorKNN struct {
	Index       *record.Index
	K           int
	QueryVector []float64
	Residual    filter.Tree
}

func (VectorKNN) isPlan() {}
func (VectorKNN) ResultSort() ([]SortKey, bool) { return nil, false }

// BoundingBox is a 2D/3D axis-aligned query box for SpatialRange.
type BoundingBox struct {
	Min, Max []float64
}

// SpatialRange is the bounding-box (or circle, when Radius > 0) range query
// from §4.4. For a circle query Box.Min/Box.Max still carry the query's
// enclosing rectangle (for the final re-verify step); Radius additionally
// sizes the covering-range cell budget.
type SpatialRange struct {
	Index    *record.Index
	Box      BoundingBox
	Radius   float64 // 0 means a plain rectangular box query
	Residual filter.Tree
}

func (SpatialRange) isPlan() {}
func (SpatialRange) ResultSort() ([]SortKey, bool) { return nil, false }

// GroupBy is the minimal hard-resource-exhaustion aggregation operator
// added in the expanded scope (see SPEC_FULL.md §4 component notes): it
// groups the child's output by a field's value and emits the first record
// seen for each group (no aggregate is computed), refusing to run rather than spill once the group
// count exceeds a configured bound.
type GroupBy struct {
	Child      Node
	GroupField string
	MaxGroups  int
}

func (GroupBy) isPlan() {}
func (g GroupBy) ResultSort() ([]SortKey, bool) { return nil, false }
