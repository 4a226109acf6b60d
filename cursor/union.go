package cursor

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mantisdb/recordlayer/record"
)

// hashUnion implements §4.4 "Union" (hash-dedup variant): execute every
// branch, concatenate, deduplicate by primary key.
type hashUnion struct {
	children []Cursor
	pk       record.PrimaryKey
	accessor record.Accessor

	childIdx int
	seen     map[string]bool
	cur      record.Record
	err      error
}

func NewHashUnion(children []Cursor, pk record.PrimaryKey, accessor record.Accessor) Cursor {
	return &hashUnion{children: children, pk: pk, accessor: accessor, seen: make(map[string]bool)}
}

func (u *hashUnion) Next(ctx context.Context) bool {
	for u.childIdx < len(u.children) {
		child := u.children[u.childIdx]
		if !child.Next(ctx) {
			if err := child.Err(); err != nil {
				u.err = err
				return false
			}
			child.Close()
			u.childIdx++
			continue
		}
		rec := child.Record()
		pk, err := primaryKeyOf(Env{Accessor: u.accessor}, rec, u.pk)
		if err != nil {
			u.err = err
			return false
		}
		key := pk.mapKey()
		if u.seen[key] {
			continue
		}
		u.seen[key] = true
		u.cur = rec
		return true
	}
	return false
}

func (u *hashUnion) Record() record.Record { return u.cur }
func (u *hashUnion) Err() error             { return u.err }
func (u *hashUnion) Close() {
	for _, c := range u.children {
		c.Close()
	}
}

// mergeUnion implements §4.4's merge-union variant, used when the planner
// knows all branches are PK-sorted: single pass, O(1) memory, no hash set.
// It performs a k-way merge and skips duplicate PKs across branches.
type mergeUnion struct {
	children []Cursor
	pk       record.PrimaryKey
	accessor record.Accessor

	heads   []primaryKeyTuple
	hasHead []bool
	started bool
	lastPK  primaryKeyTuple
	hasLast bool
	cur     record.Record
	err     error
}

func NewMergeUnion(children []Cursor, pk record.PrimaryKey, accessor record.Accessor) Cursor {
	return &mergeUnion{
		children: children,
		pk:       pk,
		accessor: accessor,
		heads:    make([]primaryKeyTuple, len(children)),
		hasHead:  make([]bool, len(children)),
	}
}

func (m *mergeUnion) advance(ctx context.Context, i int) error {
	if !m.children[i].Next(ctx) {
		m.hasHead[i] = false
		return m.children[i].Err()
	}
	pk, err := primaryKeyOf(Env{Accessor: m.accessor}, m.children[i].Record(), m.pk)
	if err != nil {
		m.hasHead[i] = false
		return err
	}
	m.heads[i] = pk
	m.hasHead[i] = true
	return nil
}

func (m *mergeUnion) Next(ctx context.Context) bool {
	if !m.started {
		m.started = true
		g, gctx := errgroup.WithContext(ctx)
		for i := range m.children {
			i := i
			g.Go(func() error { return m.advance(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			m.err = err
		}
	}
	for {
		if m.err != nil {
			return false
		}
		minIdx := -1
		for i, present := range m.hasHead {
			if !present {
				continue
			}
			if minIdx == -1 || comparePK(m.heads[i], m.heads[minIdx]) < 0 {
				minIdx = i
			}
		}
		if minIdx == -1 {
			return false
		}
		pk := m.heads[minIdx]
		rec := m.children[minIdx].Record()
		if err := m.advance(ctx, minIdx); err != nil {
			m.err = err
		}

		if m.hasLast && comparePK(pk, m.lastPK) == 0 {
			continue // duplicate PK across branches, already emitted
		}
		m.lastPK = pk
		m.hasLast = true
		m.cur = rec
		return true
	}
}

func (m *mergeUnion) Record() record.Record { return m.cur }
func (m *mergeUnion) Err() error             { return m.err }
func (m *mergeUnion) Close() {
	for _, c := range m.children {
		c.Close()
	}
}
