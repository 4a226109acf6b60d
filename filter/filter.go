// Package filter implements the filter tree (§3) and its rewriter (§4.1).
// The rewriter is a pure function: filter tree in, logically equivalent
// filter tree out, canonicalized for matching and for the plan-cache key.
package filter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mantisdb/recordlayer/tuple"
)

// Op is one of the comparison operators from §3.
type Op uint8

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpStartsWith
	OpContains
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpStartsWith:
		return "starts_with"
	case OpContains:
		return "contains"
	default:
		return "?"
	}
}

// IsRangeOp reports whether op is one of the four ordered comparisons the
// index matcher can turn into a range boundary.
func (o Op) IsRangeOp() bool {
	switch o {
	case OpLt, OpLe, OpGt, OpGe:
		return true
	default:
		return false
	}
}

// Tree is the closed filter-tree variant from §3: field-compare, IN, AND,
// OR, NOT. A small unexported marker method keeps the set closed so the
// rewriter, matcher and cost model pattern-match over an enumerated list
// instead of type-switching on an open interface (§9).
type Tree interface {
	isFilter()
	// CacheKey returns this node's contribution to the stable, commutativity
	// normalized fingerprint used by both structural dedup (§4.1) and the
	// plan cache key (§4.7) — one code path backs both, per the
	// cost-key-stability invariant (§8.8).
	CacheKey() string
}

type FieldCompare struct {
	Field   string
	Op      Op
	Literal tuple.Element
}

func (FieldCompare) isFilter() {}
func (f FieldCompare) CacheKey() string {
	return fmt.Sprintf("field:%s:%s:%s:%s", f.Field, f.Op, f.Literal.Kind(), f.Literal.String())
}

type In struct {
	Field   string
	Literals []tuple.Element
}

func (In) isFilter() {}
func (n In) CacheKey() string {
	parts := make([]string, len(n.Literals))
	for i, l := range n.Literals {
		parts[i] = fmt.Sprintf("%s:%s", l.Kind(), l.String())
	}
	sort.Strings(parts)
	return fmt.Sprintf("in:%s:[%s]", n.Field, strings.Join(parts, ","))
}

type And struct {
	Children []Tree
}

func (And) isFilter() {}
func (a And) CacheKey() string { return joinSorted("and", a.Children) }

type Or struct {
	Children []Tree
}

func (Or) isFilter() {}
func (o Or) CacheKey() string { return joinSorted("or", o.Children) }

type Not struct {
	Child Tree
}

func (Not) isFilter() {}
func (n Not) CacheKey() string { return fmt.Sprintf("not:%s", n.Child.CacheKey()) }

func joinSorted(tag string, children []Tree) string {
	keys := make([]string, len(children))
	for i, c := range children {
		keys[i] = c.CacheKey()
	}
	sort.Strings(keys)
	return fmt.Sprintf("%s(%s)", tag, strings.Join(keys, ","))
}

// Fields returns the set of field names this leaf or subtree references,
// used by the enumerator to ask the schema for candidate indexes.
func Fields(t Tree) []string {
	seen := map[string]bool{}
	var out []string
	var walk func(Tree)
	walk = func(t Tree) {
		switch n := t.(type) {
		case FieldCompare:
			if !seen[n.Field] {
				seen[n.Field] = true
				out = append(out, n.Field)
			}
		case In:
			if !seen[n.Field] {
				seen[n.Field] = true
				out = append(out, n.Field)
			}
		case And:
			for _, c := range n.Children {
				walk(c)
			}
		case Or:
			for _, c := range n.Children {
				walk(c)
			}
		case Not:
			walk(n.Child)
		}
	}
	walk(t)
	return out
}

// Conjuncts returns t's top-level AND children, or []Tree{t} if t is not an
// AND (a single predicate is a degenerate one-conjunct AND for matching
// purposes).
func Conjuncts(t Tree) []Tree {
	if a, ok := t.(And); ok {
		return a.Children
	}
	return []Tree{t}
}
