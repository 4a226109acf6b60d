package cursor

import (
	"context"

	"github.com/mantisdb/recordlayer/record"
	"github.com/mantisdb/recordlayer/tuple"
)

// fieldMapAccessor is a minimal record.Accessor over map[string]tuple.Element
// records, enough to drive the operators in this package without a real
// storage engine or schema-evaluation layer.
type fieldMapAccessor struct{}

func (fieldMapAccessor) Deserialize(ctx context.Context, data []byte) (record.Record, error) {
	return nil, nil
}
func (fieldMapAccessor) RecordName(r record.Record) string { return "widget" }
func (fieldMapAccessor) ExtractField(r record.Record, field string) ([]tuple.Element, error) {
	m := r.(map[string]tuple.Element)
	v, ok := m[field]
	if !ok {
		return nil, nil
	}
	return []tuple.Element{v}, nil
}
func (fieldMapAccessor) ExtractPrimaryKey(r record.Record, pk record.PrimaryKey) (tuple.Tuple, error) {
	m := r.(map[string]tuple.Element)
	out := make(tuple.Tuple, 0, len(pk.Fields()))
	for _, f := range pk.Fields() {
		out = append(out, m[f])
	}
	return out, nil
}
func (fieldMapAccessor) Evaluate(r record.Record, ke record.KeyExpression) (tuple.Tuple, error) {
	return nil, nil
}
func (fieldMapAccessor) SupportsReconstruction() bool { return false }
func (fieldMapAccessor) Reconstruct(indexKey, indexValue tuple.Tuple, idx *record.Index, pk record.PrimaryKey) (record.Record, error) {
	return nil, nil
}

func rec(fields map[string]tuple.Element) record.Record { return fields }

func widgetPK() record.PrimaryKey { return record.PrimaryKey{KeyExpr: record.Field("id")} }

// sliceCursor is an in-memory Cursor over a fixed slice, standing in for a
// real scan or upstream operator so the operators in this package can be
// driven without any KV dependency.
type sliceCursor struct {
	rows []record.Record
	idx  int
	err  error
}

func newSliceCursor(rows ...record.Record) *sliceCursor {
	return &sliceCursor{rows: rows}
}

func (s *sliceCursor) Next(ctx context.Context) bool {
	if s.err != nil || s.idx >= len(s.rows) {
		return false
	}
	s.idx++
	return true
}
func (s *sliceCursor) Record() record.Record { return s.rows[s.idx-1] }
func (s *sliceCursor) Err() error            { return s.err }
func (s *sliceCursor) Close()                {}

// erroringCursor always fails on the first Next call, for error-propagation
// tests.
type erroringCursor struct{ err error }

func (e *erroringCursor) Next(ctx context.Context) bool { return false }
func (e *erroringCursor) Record() record.Record         { return nil }
func (e *erroringCursor) Err() error                    { return e.err }
func (e *erroringCursor) Close()                        {}
