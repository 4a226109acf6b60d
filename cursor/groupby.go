package cursor

import (
	"context"

	rlerrors "github.com/mantisdb/recordlayer/errors"
	"github.com/mantisdb/recordlayer/plan"
	"github.com/mantisdb/recordlayer/record"
)

// groupByCursor implements the GroupBy operator: materialize the child,
// bucket by GroupField's value, emit the first record seen per group as
// that group's representative. Exceeding MaxGroups is a hard
// resourceExhausted error rather than a silent spill or truncation (§5/§9
// "GROUP BY ... must refuse silently-degraded correctness").
type groupByCursor struct {
	child      Cursor
	accessor   record.Accessor
	groupField string
	maxGroups  int

	materialized bool
	groups       []record.Record
	idx          int
	err          error
}

func NewGroupBy(child Cursor, accessor record.Accessor, p plan.GroupBy) Cursor {
	return &groupByCursor{child: child, accessor: accessor, groupField: p.GroupField, maxGroups: p.MaxGroups}
}

func (c *groupByCursor) materialize(ctx context.Context) bool {
	c.materialized = true
	seen := make(map[string]bool)
	for c.child.Next(ctx) {
		rec := c.child.Record()
		vals, err := c.accessor.ExtractField(rec, c.groupField)
		if err != nil {
			c.err = err
			return false
		}
		var key string
		if len(vals) > 0 {
			key = vals[0].String()
		}
		if seen[key] {
			continue
		}
		if len(seen) >= c.maxGroups {
			c.err = rlerrors.ResourceExhausted("group by: group count exceeds max_groups_in_memory")
			return false
		}
		seen[key] = true
		c.groups = append(c.groups, rec)
	}
	if err := c.child.Err(); err != nil {
		c.err = err
		return false
	}
	return true
}

func (c *groupByCursor) Next(ctx context.Context) bool {
	if !c.materialized {
		if !c.materialize(ctx) {
			return false
		}
	}
	if c.idx >= len(c.groups) {
		return false
	}
	c.idx++
	return true
}

func (c *groupByCursor) Record() record.Record { return c.groups[c.idx-1] }
func (c *groupByCursor) Err() error             { return c.err }
func (c *groupByCursor) Close()                 { c.child.Close() }
