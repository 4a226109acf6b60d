package plan

import (
	"github.com/mantisdb/recordlayer/config"
	"github.com/mantisdb/recordlayer/filter"
	"github.com/mantisdb/recordlayer/record"
	"github.com/mantisdb/recordlayer/tuple"
)

// Candidate wraps one enumerated plan node. It is a thin wrapper rather
// than a bare Node so later pipeline stages (cost, cache) have a stable
// place to hang per-candidate metadata without changing Node's shape.
type Candidate struct {
	Node Node
}

// Enumerate implements §4.3: given a rewritten filter over recordType and a
// schema, emit 1..maxCandidatePlans semantically-equivalent candidate
// plans, consulting schema indexes. Budget stops enumeration early but
// never below the mandatory baseline.
func Enumerate(f filter.Tree, recordType string, schema *record.Schema, cfg *config.PlanGenerationConfig) []Candidate {
	budget := cfg.MaxCandidatePlans
	candidates := []Candidate{{Node: FullScan{RecordType: recordType, Residual: f}}}
	if budget <= 1 {
		return candidates
	}

	// step 2: unique-index short-circuit
	if cfg.EnableHeuristicPruning {
		if fc, ok := f.(filter.FieldCompare); ok && fc.Op == filter.OpEq {
			if idx, ok := schema.UniqueIndexOnField(fc.Field); ok {
				point := tuple.Tuple{fc.Literal}
				return []Candidate{{Node: IndexScan{
					Index:    idx,
					Range:    KeyRange{BeginValues: point, EndValues: point},
					Residual: nil,
				}}}
			}
		}
	}

	// step 3: IN-join
	if in, ok := f.(filter.In); ok && len(in.Literals) >= 2 && len(in.Literals) <= cfg.MaxInValues {
		if idx, ok := firstIndexForField(schema, in.Field); ok {
			candidates = append(candidates, Candidate{Node: InJoin{
				Field:  in.Field,
				Values: in.Literals,
				Index:  idx,
			}})
			if len(candidates) >= budget {
				return candidates[:budget]
			}
		}
	}

	conjuncts := filter.Conjuncts(f)
	fieldsUsed := filter.Fields(f)

	// step 4: single-index plans
	singleIndexNodes := map[string]Node{}
	for _, fieldName := range fieldsUsed {
		for _, idx := range schema.IndexesOnField(fieldName) {
			if _, already := singleIndexNodes[idx.Name]; already {
				continue
			}
			match, ok := MatchIndex(f, idx)
			if !ok {
				continue
			}
			node := indexScanOrCoveringNode(idx, match)
			singleIndexNodes[idx.Name] = node
			candidates = append(candidates, Candidate{Node: node})
			if len(candidates) >= budget {
				return candidates[:budget]
			}
		}
	}

	// step 5: multi-index intersection
	if len(conjuncts) >= 2 && len(singleIndexNodes) >= 2 {
		children := make([]Node, 0, len(singleIndexNodes))
		for _, n := range singleIndexNodes {
			children = append(children, n)
		}
		candidates = append(candidates, Candidate{Node: Intersection{
			Children: children,
			Strategy: IntersectionSortedMerge,
		}})
		if len(candidates) >= budget {
			return candidates[:budget]
		}
	}

	// step 5: multi-index union, only meaningful post-DNF (top-level OR)
	if or, ok := f.(filter.Or); ok {
		branches := make([]Node, 0, len(or.Children))
		allMatched := true
		for _, branch := range or.Children {
			node, matched := matchAnyIndex(branch, schema)
			if !matched {
				allMatched = false
				break
			}
			branches = append(branches, node)
		}
		if allMatched {
			candidates = append(candidates, Candidate{Node: Union{
				Children: branches,
				Strategy: UnionHash,
			}})
			if len(candidates) >= budget {
				return candidates[:budget]
			}
		}
	}

	return candidates
}

// matchAnyIndex tries every index on every field branch references and
// returns the first successful match, used to plan one DNF union branch.
func matchAnyIndex(branch filter.Tree, schema *record.Schema) (Node, bool) {
	for _, fieldName := range filter.Fields(branch) {
		for _, idx := range schema.IndexesOnField(fieldName) {
			if match, ok := MatchIndex(branch, idx); ok {
				return indexScanOrCoveringNode(idx, match), true
			}
		}
	}
	return nil, false
}

// indexScanOrCoveringNode picks CoveringScan over IndexScan when the index
// is a covering index and its covering fields are a safe superset of the
// residual's referenced fields (§9 open question, resolved: the matcher
// must never hand back an unsafe covering plan).
func indexScanOrCoveringNode(idx *record.Index, match MatchResult) Node {
	if idx.Kind == record.IndexKindCovering && CoveringFieldsSatisfy(idx, match.Residual) {
		return CoveringScan{Index: idx, Range: match.Range, Residual: match.Residual}
	}
	return IndexScan{Index: idx, Range: match.Range, Residual: match.Residual}
}

func firstIndexForField(schema *record.Schema, field string) (*record.Index, bool) {
	idxs := schema.IndexesOnField(field)
	if len(idxs) == 0 {
		return nil, false
	}
	return idxs[0], true
}
