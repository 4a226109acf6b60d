package record

import (
	"context"

	"github.com/mantisdb/recordlayer/tuple"
)

// Record is an opaque user record value. The core never inspects it
// directly — every capability runs through Accessor.
type Record any

// Accessor is the record-access collaborator from §6. It is implemented by
// the host application per record type and is intentionally
// non-generic: plans are cached and compared across record types by name,
// so the planner and cursor packages must not be parameterized over R.
type Accessor interface {
	// Deserialize decodes a record of RecordName()'s type from bytes.
	Deserialize(ctx context.Context, data []byte) (Record, error)

	// RecordName returns the record-type name stamped on r, used to filter
	// full scans to the expected type.
	RecordName(r Record) string

	// ExtractField returns the tuple-element value(s) of a named field on
	// r. Most fields yield exactly one element; repeated fields may yield
	// more (the caller ignores any beyond what is needed for a key
	// expression's arity).
	ExtractField(r Record, fieldName string) ([]tuple.Element, error)

	// ExtractPrimaryKey evaluates the schema's primary-key expression
	// against r.
	ExtractPrimaryKey(r Record, pk PrimaryKey) (tuple.Tuple, error)

	// Evaluate evaluates an arbitrary key expression (e.g. an index's)
	// against r, producing the tuple suffix that would be written for it.
	Evaluate(r Record, ke KeyExpression) (tuple.Tuple, error)

	// SupportsReconstruction reports whether Reconstruct is implemented for
	// this record type, enabling covering-index scans (§4.4).
	SupportsReconstruction() bool

	// Reconstruct rebuilds a record directly from a covering index's key
	// and value, without a record-subspace fetch. Only called when
	// SupportsReconstruction() is true and the covering index's fields
	// suffice for the query (the matcher is responsible for that check).
	Reconstruct(indexKey, indexValue tuple.Tuple, idx *Index, pk PrimaryKey) (Record, error)
}
