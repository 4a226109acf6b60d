// Package tuple implements the closed set of comparable values the planner
// and executor exchange with the KV-store codec: integers, floating point
// numbers, booleans, strings, byte strings, UUIDs, timestamps and null.
//
// Element is the single ordering comparator referenced throughout §9 of the
// design — intersection, sort and histogram bucketing all call Compare
// rather than re-implementing per-type comparisons.
package tuple

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Kind tags the variant carried by an Element.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt64
	KindFloat64
	KindFloat32
	KindBool
	KindString
	KindBytes
	KindUUID
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "double"
	case KindFloat32:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindUUID:
		return "uuid"
	case KindTime:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Element is a tagged value from the closed tuple-element set. Only one of
// the payload fields is meaningful for a given Kind.
type Element struct {
	kind Kind
	i    int64
	f64  float64
	f32  float32
	b    bool
	s    string
	by   []byte
	u    uuid.UUID
	t    time.Time
}

func Null() Element                { return Element{kind: KindNull} }
func Int64(v int64) Element        { return Element{kind: KindInt64, i: v} }
func Float64(v float64) Element     { return Element{kind: KindFloat64, f64: v} }
func Float32(v float32) Element     { return Element{kind: KindFloat32, f32: v} }
func Bool(v bool) Element          { return Element{kind: KindBool, b: v} }
func String(v string) Element      { return Element{kind: KindString, s: v} }
func Bytes(v []byte) Element       { return Element{kind: KindBytes, by: append([]byte(nil), v...)} }
func UUID(v uuid.UUID) Element     { return Element{kind: KindUUID, u: v} }
func Time(v time.Time) Element     { return Element{kind: KindTime, t: v} }

func (e Element) Kind() Kind    { return e.kind }
func (e Element) IsNull() bool  { return e.kind == KindNull }
func (e Element) Int64() int64  { return e.i }
func (e Element) Float64() float64 { return e.f64 }
func (e Element) Float32() float32 { return e.f32 }
func (e Element) Bool() bool    { return e.b }
func (e Element) String() string {
	switch e.kind {
	case KindNull:
		return "null"
	case KindInt64:
		return fmt.Sprintf("%d", e.i)
	case KindFloat64:
		return fmt.Sprintf("%g", e.f64)
	case KindFloat32:
		return fmt.Sprintf("%g", e.f32)
	case KindBool:
		return fmt.Sprintf("%t", e.b)
	case KindString:
		return e.s
	case KindBytes:
		return fmt.Sprintf("%x", e.by)
	case KindUUID:
		return e.u.String()
	case KindTime:
		return e.t.Format(time.RFC3339Nano)
	default:
		return ""
	}
}
func (e Element) BytesValue() []byte { return e.by }
func (e Element) UUIDValue() uuid.UUID { return e.u }
func (e Element) TimeValue() time.Time { return e.t }

// Compare implements the lexicographic ordering of §9 DESIGN NOTES: it is
// the one comparator used by sort, intersection and histogram bucketing.
// Null sorts lowest. Mismatched kinds compare by Kind to keep the order
// total, which only matters for degenerate mixed-kind inputs (the matcher
// and schema never produce them for a single field).
func Compare(a, b Element) int {
	if a.kind != b.kind {
		if a.kind == KindNull {
			return -1
		}
		if b.kind == KindNull {
			return 1
		}
		if a.kind < b.kind {
			return -1
		}
		return 1
	}

	switch a.kind {
	case KindNull:
		return 0
	case KindInt64:
		return cmpInt64(a.i, b.i)
	case KindFloat64:
		return cmpFloat64(a.f64, b.f64)
	case KindFloat32:
		return cmpFloat64(float64(a.f32), float64(b.f32))
	case KindBool:
		if a.b == b.b {
			return 0
		}
		if !a.b {
			return -1
		}
		return 1
	case KindString:
		return compareStrings(a.s, b.s)
	case KindBytes:
		return bytes.Compare(a.by, b.by)
	case KindUUID:
		return bytes.Compare(a.u[:], b.u[:])
	case KindTime:
		if a.t.Before(b.t) {
			return -1
		}
		if a.t.After(b.t) {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// compareStrings orders by code point then by length, matching the
// packed-tuple encoding's byte-then-length ordering for prefix cases.
func compareStrings(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return cmpInt(len(a), len(b))
}

func cmpInt64(a, b int64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func cmpFloat64(a, b float64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// Successor returns the smallest Element strictly greater than e in the
// ordering defined by Compare, and false when no such value exists (e.g. an
// int64 already at math.MaxInt64, or a float already +Inf). The index
// matcher relies on this to translate `<=` into a half-open end bound; when
// it returns false the matcher must fall back to a full scan rather than
// silently treating `<= max` as unbounded.
func (e Element) Successor() (Element, bool) {
	switch e.kind {
	case KindInt64:
		if e.i == math.MaxInt64 {
			return Element{}, false
		}
		return Int64(e.i + 1), true
	case KindFloat64:
		if math.IsInf(e.f64, 1) {
			return Element{}, false
		}
		return Float64(math.Nextafter(e.f64, math.Inf(1))), true
	case KindFloat32:
		if e.f32 == math.MaxFloat32 || math.IsInf(float64(e.f32), 1) {
			return Element{}, false
		}
		return Float32(math.Nextafter32(e.f32, float32(math.Inf(1)))), true
	case KindString:
		// Smallest string strictly greater than s in byte order: append a
		// zero byte. There is always such a string (the domain is unbounded).
		next := make([]byte, len(e.s)+1)
		copy(next, e.s)
		return String(string(next)), true
	case KindBytes:
		next := make([]byte, len(e.by)+1)
		copy(next, e.by)
		return Bytes(next), true
	case KindBool:
		if !e.b {
			return Bool(true), true
		}
		return Element{}, false
	case KindTime:
		return Time(e.t.Add(time.Nanosecond)), true
	case KindUUID:
		next := e.u
		for i := len(next) - 1; i >= 0; i-- {
			if next[i] != 0xff {
				next[i]++
				return UUID(next), true
			}
			next[i] = 0
		}
		return Element{}, false
	default:
		return Element{}, false
	}
}
