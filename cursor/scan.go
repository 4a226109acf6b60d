package cursor

import (
	"context"

	rlerrors "github.com/mantisdb/recordlayer/errors"
	"github.com/mantisdb/recordlayer/filter"
	"github.com/mantisdb/recordlayer/kv"
	"github.com/mantisdb/recordlayer/plan"
	"github.com/mantisdb/recordlayer/record"
	"github.com/mantisdb/recordlayer/tuple"
)

// fullScanCursor implements §4.4 "Full scan": range over the record
// subspace, deserialize, drop records whose type name doesn't match, apply
// the residual filter.
type fullScanCursor struct {
	env        Env
	recordType string
	residual   filter.Tree

	kvCh  <-chan kv.KeyValue
	errCh <-chan error
	cur   record.Record
	err   error
	done  bool
}

// NewFullScan builds the full-scan operator over env.
func NewFullScan(ctx context.Context, env Env, p plan.FullScan) Cursor {
	begin, end := env.RecordSubspace.Range()
	kvCh, errCh := env.Txn.GetRange(ctx, kv.FirstGreaterOrEqual(begin), kv.FirstGreaterOrEqual(end), env.Snapshot)
	return &fullScanCursor{env: env, recordType: p.RecordType, residual: p.Residual, kvCh: kvCh, errCh: errCh}
}

func (c *fullScanCursor) Next(ctx context.Context) bool {
	if c.done {
		return false
	}
	for {
		select {
		case <-ctx.Done():
			c.err = ctx.Err()
			c.done = true
			return false
		case kvPair, ok := <-c.kvCh:
			if !ok {
				if err := drainErr(c.errCh); err != nil {
					c.err = err
				}
				c.done = true
				return false
			}
			rec, err := c.env.Accessor.Deserialize(ctx, kvPair.Value)
			if err != nil {
				c.err = rlerrors.Internal("full scan: deserialize", err)
				c.done = true
				return false
			}
			if c.env.Accessor.RecordName(rec) != c.recordType {
				continue
			}
			ok2, err := filter.Evaluate(c.residual, rec, c.env.Accessor)
			if err != nil {
				c.err = err
				c.done = true
				return false
			}
			if !ok2 {
				continue
			}
			c.cur = rec
			return true
		}
	}
}

func (c *fullScanCursor) Record() record.Record { return c.cur }
func (c *fullScanCursor) Err() error             { return c.err }
func (c *fullScanCursor) Close()                 {}

func drainErr(errCh <-chan error) error {
	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

// IndexSubspaces bundles the two subspaces an index-backed scan needs: the
// index's own entries, and the record subspace to point-read from. Both
// are KV-store codec concerns (§1 non-goal) the planner facade resolves
// from the schema before building cursors.
type IndexSubspaces struct {
	Index  kv.Subspace
	Record kv.Subspace
}

// indexScanCursor implements §4.4 "Index scan": range over the index
// subspace, extract the PK suffix, point-read the record subspace, apply
// residual. The index key layout is contractual: `<index-subspace>
// <indexed-fields…> <primary-key…>` (§4.4/§6).
type indexScanCursor struct {
	env      Env
	idx      *record.Index
	pk       record.PrimaryKey
	residual filter.Tree
	subs     IndexSubspaces
	covering bool // true for CoveringScan: skip the record point-read

	kvCh  <-chan kv.KeyValue
	errCh <-chan error
	cur   record.Record
	err   error
	done  bool
}

// NewIndexScan builds the index-scan operator.
func NewIndexScan(ctx context.Context, env Env, subs IndexSubspaces, pk record.PrimaryKey, p plan.IndexScan) Cursor {
	begin, end := rangeBounds(subs.Index, p.Range)
	kvCh, errCh := env.Txn.GetRange(ctx, kv.FirstGreaterOrEqual(begin), kv.FirstGreaterOrEqual(end), env.Snapshot)
	return &indexScanCursor{env: env, idx: p.Index, pk: pk, residual: p.Residual, subs: subs, kvCh: kvCh, errCh: errCh}
}

// NewCoveringScan builds the covering-index variant of the index scan: it
// reconstructs the record directly from the index key/value instead of
// point-reading the record subspace (§4.4 "Covering-index scan").
func NewCoveringScan(ctx context.Context, env Env, subs IndexSubspaces, pk record.PrimaryKey, p plan.CoveringScan) Cursor {
	begin, end := rangeBounds(subs.Index, p.Range)
	kvCh, errCh := env.Txn.GetRange(ctx, kv.FirstGreaterOrEqual(begin), kv.FirstGreaterOrEqual(end), env.Snapshot)
	return &indexScanCursor{env: env, idx: p.Index, pk: pk, residual: p.Residual, subs: subs, covering: true, kvCh: kvCh, errCh: errCh}
}

func rangeBounds(sub kv.Subspace, r plan.KeyRange) (begin, end []byte) {
	subBegin, subEnd := sub.Range()
	begin, end = subBegin, subEnd
	if len(r.BeginValues) > 0 {
		begin = sub.Pack(r.BeginValues)
	}
	if len(r.EndValues) > 0 {
		end = sub.Pack(r.EndValues)
		// A full equality match packs the same values onto both bounds
		// (§4.2), and a compound match with a trailing open-ended range
		// (status=x AND age>=21) packs EndValues as a strict prefix of
		// BeginValues. In both cases every real index key extends past
		// EndValues with a primary-key suffix (and, in the compound case,
		// the unbounded field's own value), and a longer key that extends
		// an equal prefix sorts after it. Without this, end <= begin and
		// the scan would read nothing. Extending the upper bound to the
		// prefix's successor restores the usual "range starts with this
		// prefix" semantics.
		if isTuplePrefix(r.EndValues, r.BeginValues) {
			end = strinc(end)
		}
	}
	return begin, end
}

// isTuplePrefix reports whether prefix equals the leading len(prefix)
// elements of full (prefix itself included, i.e. equal tuples count).
func isTuplePrefix(prefix, full tuple.Tuple) bool {
	if len(prefix) > len(full) {
		return false
	}
	for i := range prefix {
		if tuple.Compare(prefix[i], full[i]) != 0 {
			return false
		}
	}
	return true
}

// strinc returns the smallest byte string greater than every string with
// prefix b, by incrementing its last byte below 0xff and truncating
// anything after it; an all-0xff input has no such successor within the
// byte-string order and is extended by one byte instead.
func strinc(b []byte) []byte {
	out := append([]byte(nil), b...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] < 0xff {
			out[i]++
			return out[:i+1]
		}
	}
	return append(out, 0xff)
}

func (c *indexScanCursor) Next(ctx context.Context) bool {
	if c.done {
		return false
	}
	for {
		select {
		case <-ctx.Done():
			c.err = ctx.Err()
			c.done = true
			return false
		case kvPair, ok := <-c.kvCh:
			if !ok {
				if err := drainErr(c.errCh); err != nil {
					c.err = err
				}
				c.done = true
				return false
			}
			rec, err := c.resolveRecord(ctx, kvPair)
			if err != nil {
				c.err = err
				c.done = true
				return false
			}
			if rec == nil {
				continue
			}
			ok2, err := filter.Evaluate(c.residual, rec, c.env.Accessor)
			if err != nil {
				c.err = err
				c.done = true
				return false
			}
			if !ok2 {
				continue
			}
			c.cur = rec
			return true
		}
	}
}

func (c *indexScanCursor) resolveRecord(ctx context.Context, kvPair kv.KeyValue) (record.Record, error) {
	indexKeyTuple, err := c.subs.Index.Unpack(kvPair.Key)
	if err != nil {
		return nil, rlerrors.Internal("index scan: unpack index key", err)
	}
	pkLen := c.pk.Length()
	if len(indexKeyTuple) < pkLen {
		return nil, rlerrors.Internal("index scan: index key shorter than primary key", nil)
	}
	pkTuple := indexKeyTuple[len(indexKeyTuple)-pkLen:]

	if c.covering {
		indexValueTuple, err := c.subs.Index.Unpack(kvPair.Value)
		if err != nil {
			return nil, rlerrors.Internal("index scan: unpack index value", err)
		}
		if !c.env.Accessor.SupportsReconstruction() {
			return nil, rlerrors.Internal("covering scan: accessor does not support reconstruction", nil)
		}
		return c.env.Accessor.Reconstruct(indexKeyTuple, indexValueTuple, c.idx, c.pk)
	}

	recordKey := c.subs.Record.Pack(append(recordTypeTuple(c.idx.RecordType), pkTuple...))
	raw, err := c.env.Txn.GetValue(ctx, recordKey, c.env.Snapshot)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		// entry present in the index but not in the record subspace: a
		// torn write the caller's transaction model rules out outside a
		// race the KV store itself would surface as a conflict, so treat
		// as absent rather than erroring.
		return nil, nil
	}
	return c.env.Accessor.Deserialize(ctx, raw)
}

func (c *indexScanCursor) Record() record.Record { return c.cur }
func (c *indexScanCursor) Err() error             { return c.err }
func (c *indexScanCursor) Close()                 {}
