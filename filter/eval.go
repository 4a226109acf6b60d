package filter

import (
	"strings"

	"github.com/mantisdb/recordlayer/record"
	"github.com/mantisdb/recordlayer/tuple"
)

// Evaluate applies a (rewritten or raw) filter tree directly against a
// decoded record, using accessor to pull field values. This is the ground
// truth the index matcher's soundness invariant (§8.3) is checked against:
// MatchIndex's range-plus-residual combination must agree with
// Evaluate on every record.
func Evaluate(f Tree, r record.Record, accessor record.Accessor) (bool, error) {
	if f == nil {
		return true, nil
	}
	switch n := f.(type) {
	case FieldCompare:
		values, err := accessor.ExtractField(r, n.Field)
		if err != nil {
			return false, err
		}
		if len(values) == 0 {
			return false, nil
		}
		return compareOp(n.Op, values[0], n.Literal), nil
	case In:
		values, err := accessor.ExtractField(r, n.Field)
		if err != nil {
			return false, err
		}
		if len(values) == 0 {
			return false, nil
		}
		for _, lit := range n.Literals {
			if tuple.Compare(values[0], lit) == 0 {
				return true, nil
			}
		}
		return false, nil
	case And:
		for _, c := range n.Children {
			ok, err := Evaluate(c, r, accessor)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case Or:
		for _, c := range n.Children {
			ok, err := Evaluate(c, r, accessor)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case Not:
		ok, err := Evaluate(n.Child, r, accessor)
		if err != nil {
			return false, err
		}
		return !ok, nil
	default:
		return false, nil
	}
}

func compareOp(op Op, v, literal tuple.Element) bool {
	switch op {
	case OpEq:
		return tuple.Compare(v, literal) == 0
	case OpNe:
		return tuple.Compare(v, literal) != 0
	case OpLt:
		return tuple.Compare(v, literal) < 0
	case OpLe:
		return tuple.Compare(v, literal) <= 0
	case OpGt:
		return tuple.Compare(v, literal) > 0
	case OpGe:
		return tuple.Compare(v, literal) >= 0
	case OpStartsWith:
		return v.Kind() == tuple.KindString && literal.Kind() == tuple.KindString &&
			strings.HasPrefix(v.String(), literal.String())
	case OpContains:
		return v.Kind() == tuple.KindString && literal.Kind() == tuple.KindString &&
			strings.Contains(v.String(), literal.String())
	default:
		return false
	}
}
