// Package errors defines the closed set of typed errors the planner and
// executor surface to callers (§7). KV-store failures are not wrapped here:
// they propagate through unchanged, per the propagation policy in §7.
package errors

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind tags one of the error categories named in §7's taxonomy.
type Kind int

const (
	KindInvalidArgument Kind = iota
	KindInternal
	KindIndexNotReadable
	KindResourceExhausted
	KindHNSWGraphNotBuilt
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindInternal:
		return "internal"
	case KindIndexNotReadable:
		return "index_not_readable"
	case KindResourceExhausted:
		return "resource_exhausted"
	case KindHNSWGraphNotBuilt:
		return "hnsw_graph_not_built"
	default:
		return "unknown"
	}
}

// Error is the concrete type behind every error this module originates.
// Detail carries the offending identifier; Advice is the actionable
// follow-up suggested to the caller (§7 "user-visible behavior").
type Error struct {
	Kind   Kind
	Detail string
	Advice string
	cause  error
}

func (e *Error) Error() string {
	if e.Advice != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Detail, e.Advice)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.cause }

func InvalidArgument(detail string) *Error {
	return &Error{Kind: KindInvalidArgument, Detail: detail}
}

func Internal(detail string, cause error) *Error {
	return &Error{Kind: KindInternal, Detail: detail, cause: pkgerrors.WithStack(cause)}
}

// IndexNotReadable reports that index `name` is in state `state` and cannot
// serve a query. Advice names the remediation, per §7.
func IndexNotReadable(name, state string) *Error {
	return &Error{
		Kind:   KindIndexNotReadable,
		Detail: fmt.Sprintf("index %q is %s", name, state),
		Advice: fmt.Sprintf("enable the index %q before querying it", name),
	}
}

func ResourceExhausted(detail string) *Error {
	return &Error{Kind: KindResourceExhausted, Detail: detail}
}

// HNSWGraphNotBuilt reports that the approximate-nearest-neighbor graph for
// `indexName` has not been built yet. It is caught internally by the vector
// operator (§4.8), which always falls back to a flat scan, so it never
// reaches the caller.
func HNSWGraphNotBuilt(indexName string) *Error {
	return &Error{
		Kind:   KindHNSWGraphNotBuilt,
		Detail: fmt.Sprintf("HNSW graph for index %q is not built", indexName),
		Advice: fmt.Sprintf("switch index %q to batch indexing for > 100 nodes, or wait for the background build", indexName),
	}
}

// Is reports whether err is a *Error of the given kind, unwrapping through
// any pkg/errors stack frames.
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
