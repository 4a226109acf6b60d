package cursor

import (
	"context"

	"github.com/mantisdb/recordlayer/filter"
	"github.com/mantisdb/recordlayer/record"
)

// filterCursor wraps a child cursor, forwarding only records for which
// residual evaluates true (§4.4 "Filter").
type filterCursor struct {
	child    Cursor
	residual filter.Tree
	accessor record.Accessor
	err      error
}

func NewFilter(child Cursor, residual filter.Tree, accessor record.Accessor) Cursor {
	return &filterCursor{child: child, residual: residual, accessor: accessor}
}

func (c *filterCursor) Next(ctx context.Context) bool {
	for c.child.Next(ctx) {
		ok, err := filter.Evaluate(c.residual, c.child.Record(), c.accessor)
		if err != nil {
			c.err = err
			return false
		}
		if ok {
			return true
		}
	}
	if err := c.child.Err(); err != nil {
		c.err = err
	}
	return false
}

func (c *filterCursor) Record() record.Record { return c.child.Record() }
func (c *filterCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.child.Err()
}
func (c *filterCursor) Close() { c.child.Close() }

// limitCursor wraps a child cursor, stopping after N records (§4.4 "Limit").
type limitCursor struct {
	child   Cursor
	n       int
	emitted int
}

func NewLimit(child Cursor, n int) Cursor {
	return &limitCursor{child: child, n: n}
}

func (c *limitCursor) Next(ctx context.Context) bool {
	if c.emitted >= c.n {
		return false
	}
	if !c.child.Next(ctx) {
		return false
	}
	c.emitted++
	return true
}

func (c *limitCursor) Record() record.Record { return c.child.Record() }
func (c *limitCursor) Err() error             { return c.child.Err() }
func (c *limitCursor) Close()                 { c.child.Close() }
