package cursor

import (
	"fmt"

	"github.com/mantisdb/recordlayer/tuple"
)

// primaryKeyTuple is the comparison/dedup key every set-operator
// (intersection, union, IN-join) keys on. It is kept as a distinct named
// type rather than a bare tuple.Tuple so the operators in this package
// read as "primary-key-keyed", matching the contractual index key layout
// from §6 (`<index-subspace> <indexed-fields…> <primary-key…>`).
type primaryKeyTuple tuple.Tuple

func (p primaryKeyTuple) mapKey() string {
	return fmt.Sprintf("%v", []tuple.Element(p))
}

func comparePK(a, b primaryKeyTuple) int {
	return tuple.CompareTuples(tuple.Tuple(a), tuple.Tuple(b))
}

// recordTypeTuple builds the leading tuple component of every record key,
// per the layout in §6: `<record-subspace> <recordTypeName> <primaryKeyTuple>`.
func recordTypeTuple(recordType string) tuple.Tuple {
	return tuple.Tuple{tuple.String(recordType)}
}
