package cursor

import (
	"context"
	"sort"

	rlerrors "github.com/mantisdb/recordlayer/errors"
	"github.com/mantisdb/recordlayer/plan"
	"github.com/mantisdb/recordlayer/record"
	"github.com/mantisdb/recordlayer/tuple"
)

// sortCursor fully materializes its child, then sorts by the declared sort
// keys using the tuple ordering of §3, preserving input order for ties
// (§4.4 "Sort"). Exceeding maxRowsInMemory is a hard resourceExhausted
// error, never a silent truncation (§5).
type sortCursor struct {
	accessor      record.Accessor
	keys          []plan.SortKey
	rows          []record.Record
	idx           int
	materialized  bool
	maxRows       int
	child         Cursor
	err           error
}

func NewSort(child Cursor, keys []plan.SortKey, accessor record.Accessor, maxRowsInMemory int) Cursor {
	return &sortCursor{child: child, keys: keys, accessor: accessor, maxRows: maxRowsInMemory}
}

func (c *sortCursor) materialize(ctx context.Context) bool {
	c.materialized = true
	for c.child.Next(ctx) {
		if len(c.rows) >= c.maxRows {
			c.err = rlerrors.ResourceExhausted("sort: row count exceeds max_rows_in_memory")
			return false
		}
		c.rows = append(c.rows, c.child.Record())
	}
	if err := c.child.Err(); err != nil {
		c.err = err
		return false
	}

	values := make([]tuple.Tuple, len(c.rows))
	for i, r := range c.rows {
		vals := make(tuple.Tuple, len(c.keys))
		for j, k := range c.keys {
			fields, err := c.accessor.ExtractField(r, k.Field)
			if err != nil {
				c.err = err
				return false
			}
			if len(fields) > 0 {
				vals[j] = fields[0]
			} else {
				vals[j] = tuple.Null()
			}
		}
		values[i] = vals
	}

	order := make([]int, len(c.rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return lessByKeys(values[order[a]], values[order[b]], c.keys)
	})

	sorted := make([]record.Record, len(c.rows))
	for i, idx := range order {
		sorted[i] = c.rows[idx]
	}
	c.rows = sorted
	return true
}

func lessByKeys(a, b tuple.Tuple, keys []plan.SortKey) bool {
	for i, k := range keys {
		cmp := tuple.Compare(a[i], b[i])
		if cmp == 0 {
			continue
		}
		if k.Ascending {
			return cmp < 0
		}
		return cmp > 0
	}
	return false
}

func (c *sortCursor) Next(ctx context.Context) bool {
	if !c.materialized {
		if !c.materialize(ctx) {
			return false
		}
	}
	if c.idx >= len(c.rows) {
		return false
	}
	c.idx++
	return true
}

func (c *sortCursor) Record() record.Record { return c.rows[c.idx-1] }
func (c *sortCursor) Err() error             { return c.err }
func (c *sortCursor) Close()                 { c.child.Close() }
