package cursor

import (
	"context"

	"github.com/mantisdb/recordlayer/plan"
	"github.com/mantisdb/recordlayer/record"
	"github.com/mantisdb/recordlayer/tuple"
)

// NewInJoin implements §4.4 "IN-join": one index scan per value,
// concatenated and deduplicated by PK. Each per-value scan is a plain
// equality index scan, so it naturally emits in PK order — a hash union
// is still used for the merge because branches for different values are
// not mutually ordered relative to each other at the IN-join boundary.
func NewInJoin(ctx context.Context, env Env, subs IndexSubspaces, pk record.PrimaryKey, p plan.InJoin) Cursor {
	children := make([]Cursor, 0, len(p.Values))
	for _, v := range p.Values {
		point := tuple.Tuple{v}
		scan := NewIndexScan(ctx, env, subs, pk, plan.IndexScan{
			Index:    p.Index,
			Range:    plan.KeyRange{BeginValues: point, EndValues: point},
			Residual: p.Residual,
		})
		children = append(children, scan)
	}
	return NewHashUnion(children, pk, env.Accessor)
}
