// Package record models the schema surface: record types, primary keys,
// secondary indexes and key expressions. The KV-store codec and on-disk
// serialization are external collaborators (see package kv and Accessor
// below); this package only describes shape.
package record

// IndexKind tags the closed set of index variants from §3.
type IndexKind uint8

const (
	IndexKindValue IndexKind = iota
	IndexKindCovering
	IndexKindRank
	IndexKindSpatial
	IndexKindVector
)

// IndexState reflects readability for the error surface in §7.
type IndexState uint8

const (
	IndexStateReadable IndexState = iota
	IndexStateWriteOnly
	IndexStateDisabled
)

func (s IndexState) String() string {
	switch s {
	case IndexStateReadable:
		return "readable"
	case IndexStateWriteOnly:
		return "write_only"
	case IndexStateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// VectorStrategy selects the k-NN execution strategy for a vector index.
type VectorStrategy uint8

const (
	VectorStrategyFlatScan VectorStrategy = iota
	VectorStrategyHNSW
)

// VectorOptions carries the kind-specific options for a vector index.
type VectorOptions struct {
	Strategy        VectorStrategy
	InlineIndexing  bool
	Metric          VectorMetric
	Dimensions      int
}

type VectorMetric uint8

const (
	VectorMetricEuclidean VectorMetric = iota
	VectorMetricCosine
	VectorMetricDotProduct
)

// SpatialCoordSystem selects the covering-range generation strategy (§4.4).
type SpatialCoordSystem uint8

const (
	SpatialCoordGeographic SpatialCoordSystem = iota // S2 cells
	SpatialCoordCartesian                            // Morton code ranges
)

type SpatialOptions struct {
	CoordSystem SpatialCoordSystem
	Dimensions  int // 2 or 3
}

// Index is a tagged variant over the kinds in §3. Field is empty for
// composite (Concatenate) key expressions — use KeyExpr in that case.
type Index struct {
	Name         string
	SubspaceKey  string
	RecordType   string
	Kind         IndexKind
	Unique       bool
	State        IndexState
	KeyExpr      KeyExpression
	CoveringFields []string // only meaningful for IndexKindCovering
	Vector       VectorOptions
	Spatial      SpatialOptions
}

// Fields returns the ordered list of field names the index's key
// expression is built from, flattening Concatenate nodes. This is what the
// index matcher walks to greedily match equality conjuncts (§4.2).
func (idx *Index) Fields() []string {
	return keyExpressionFields(idx.KeyExpr)
}

func keyExpressionFields(ke KeyExpression) []string {
	switch k := ke.(type) {
	case FieldReference:
		return []string{k.Field}
	case Concatenate:
		var out []string
		for _, child := range k.Children {
			out = append(out, keyExpressionFields(child)...)
		}
		return out
	case RangeBoundary:
		return keyExpressionFields(k.Child)
	default:
		return nil
	}
}

// PrimaryKey is the schema's primary-key expression; Fields() gives its
// component names in order, and len(Fields()) is PrimaryKeyLength.
type PrimaryKey struct {
	KeyExpr KeyExpression
}

func (pk PrimaryKey) Fields() []string { return keyExpressionFields(pk.KeyExpr) }
func (pk PrimaryKey) Length() int      { return len(pk.Fields()) }

// Schema maps one record-type name to its primary key and secondary
// indexes.
type Schema struct {
	RecordType string
	PrimaryKey PrimaryKey
	Indexes    []*Index
}

// Index looks up a secondary index by name.
func (s *Schema) Index(name string) (*Index, bool) {
	for _, idx := range s.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return nil, false
}

// IndexesOnField returns every index whose key expression's leading field
// is `field` — candidates the matcher and enumerator consider for a
// field-compare or IN predicate on that field.
func (s *Schema) IndexesOnField(field string) []*Index {
	var out []*Index
	for _, idx := range s.Indexes {
		fields := idx.Fields()
		if len(fields) > 0 && fields[0] == field {
			out = append(out, idx)
		}
	}
	return out
}

// UniqueIndexOnField returns the unique index whose leading (and only, for
// the short-circuit case) field is `field`, if one exists.
func (s *Schema) UniqueIndexOnField(field string) (*Index, bool) {
	for _, idx := range s.IndexesOnField(field) {
		if idx.Unique {
			return idx, true
		}
	}
	return nil, false
}

// KeyExpression is a tagged union over {field-reference, concatenate,
// range-boundary}, per §3. It is a closed interface with an unexported
// marker method so new variants cannot be added from outside the package —
// the planner pattern-matches over the enumerated set rather than
// type-asserting against an open interface (§9 DESIGN NOTES).
type KeyExpression interface {
	isKeyExpression()
}

type FieldReference struct {
	Field string
}

func (FieldReference) isKeyExpression() {}

type Concatenate struct {
	Children []KeyExpression
}

func (Concatenate) isKeyExpression() {}

// RangeBoundary wraps a child key expression whose value contributes a
// range rather than a point (used for rank/spatial indexes whose key
// suffix is itself a derived range value, e.g. a score or a cell id).
type RangeBoundary struct {
	Child KeyExpression
}

func (RangeBoundary) isKeyExpression() {}

// Field is a convenience constructor.
func Field(name string) FieldReference { return FieldReference{Field: name} }

// Concat is a convenience constructor.
func Concat(children ...KeyExpression) Concatenate { return Concatenate{Children: children} }

// keyTupleLen reports the arity of a key expression, used to size PK
// suffix extraction in the index-scan cursor.
func KeyTupleLen(ke KeyExpression) int {
	return len(keyExpressionFields(ke))
}
