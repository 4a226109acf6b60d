package filter

// Rewrite canonicalizes f in the order §4.1 specifies: push NOT down,
// flatten nested booleans, deduplicate children structurally, then attempt
// a budget-bounded DNF conversion. Each step re-examines the whole tree so
// the transforms compose correctly (e.g. NOT-push can expose new flatten
// opportunities).
func Rewrite(f Tree, maxDNFBranches int) Tree {
	f = pushNot(f)
	f = flatten(f)
	f = dedup(f)

	if termCount(f) == 1 {
		// single leaf, nothing further to do
		return f
	}

	if dnf, ok := tryDNF(f, maxDNFBranches); ok {
		dnf = flatten(dnf)
		dnf = dedup(dnf)
		return dnf
	}
	return f
}

// pushNot applies De Morgan recursively and eliminates double negation.
func pushNot(f Tree) Tree {
	switch n := f.(type) {
	case Not:
		switch c := n.Child.(type) {
		case Not:
			return pushNot(c.Child)
		case And:
			negated := make([]Tree, len(c.Children))
			for i, ch := range c.Children {
				negated[i] = pushNot(Not{Child: ch})
			}
			return Or{Children: negated}
		case Or:
			negated := make([]Tree, len(c.Children))
			for i, ch := range c.Children {
				negated[i] = pushNot(Not{Child: ch})
			}
			return And{Children: negated}
		default:
			return Not{Child: pushNot(c)}
		}
	case And:
		children := make([]Tree, len(n.Children))
		for i, c := range n.Children {
			children[i] = pushNot(c)
		}
		return And{Children: children}
	case Or:
		children := make([]Tree, len(n.Children))
		for i, c := range n.Children {
			children[i] = pushNot(c)
		}
		return Or{Children: children}
	default:
		return f
	}
}

// flatten collapses nested AND/AND and OR/OR, and reduces a single-child
// AND/OR to its child.
func flatten(f Tree) Tree {
	switch n := f.(type) {
	case And:
		var out []Tree
		for _, c := range n.Children {
			c = flatten(c)
			if ca, ok := c.(And); ok {
				out = append(out, ca.Children...)
			} else {
				out = append(out, c)
			}
		}
		if len(out) == 1 {
			return out[0]
		}
		return And{Children: out}
	case Or:
		var out []Tree
		for _, c := range n.Children {
			c = flatten(c)
			if co, ok := c.(Or); ok {
				out = append(out, co.Children...)
			} else {
				out = append(out, c)
			}
		}
		if len(out) == 1 {
			return out[0]
		}
		return Or{Children: out}
	case Not:
		return Not{Child: flatten(n.Child)}
	default:
		return f
	}
}

// dedup removes structurally identical children from AND/OR nodes using
// the same CacheKey fingerprint the plan cache uses (§4.1: "structural, not
// semantic").
func dedup(f Tree) Tree {
	switch n := f.(type) {
	case And:
		return And{Children: dedupChildren(n.Children)}
	case Or:
		return Or{Children: dedupChildren(n.Children)}
	case Not:
		return Not{Child: dedup(n.Child)}
	default:
		return f
	}
}

func dedupChildren(children []Tree) []Tree {
	seen := make(map[string]bool, len(children))
	out := make([]Tree, 0, len(children))
	for _, c := range children {
		c = dedup(c)
		key := c.CacheKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// termCount counts the number of AND/OR leaves reachable from f, used only
// to short-circuit the degenerate single-leaf case.
func termCount(f Tree) int {
	switch n := f.(type) {
	case And:
		c := 0
		for _, ch := range n.Children {
			c += termCount(ch)
		}
		return c
	case Or:
		c := 0
		for _, ch := range n.Children {
			c += termCount(ch)
		}
		return c
	case Not:
		return termCount(n.Child)
	default:
		return 1
	}
}

// tryDNF distributes AND over OR bottom-up, aborting if the projected
// branch count would exceed maxDNFBranches (§4.1 rule 4, invariant §8.2).
// The branch count is checked as the bottom-up merge proceeds (before each
// AND cross-product is built, and after each OR child's branches are
// appended), so the merge aborts as soon as the budget is exceeded rather
// than after building the whole distributed tree.
func tryDNF(f Tree, maxDNFBranches int) (Tree, bool) {
	branches, ok := dnfBranches(f, maxDNFBranches)
	if !ok {
		return nil, false
	}
	if len(branches) == 1 {
		return branches[0], true
	}
	return Or{Children: branches}, true
}

// dnfBranches returns f's disjunctive-normal-form branches (each an AND of
// leaves, or a bare leaf), or ok=false if the branch count would exceed the
// budget at any point during the bottom-up merge.
func dnfBranches(f Tree, budget int) ([]Tree, bool) {
	switch n := f.(type) {
	case Or:
		var all []Tree
		for _, c := range n.Children {
			sub, ok := dnfBranches(c, budget)
			if !ok {
				return nil, false
			}
			all = append(all, sub...)
			if len(all) > budget {
				return nil, false
			}
		}
		return all, true
	case And:
		// cross-product the branch lists of each conjunct
		var acc []Tree
		for i, c := range n.Children {
			sub, ok := dnfBranches(c, budget)
			if !ok {
				return nil, false
			}
			if i == 0 {
				acc = sub
				if len(acc) > budget {
					return nil, false
				}
				continue
			}
			if len(acc)*len(sub) > budget {
				return nil, false
			}
			next := make([]Tree, 0, len(acc)*len(sub))
			for _, a := range acc {
				for _, s := range sub {
					next = append(next, conjoin(a, s))
				}
			}
			acc = next
		}
		return acc, true
	default:
		return []Tree{f}, true
	}
}

func conjoin(a, b Tree) Tree {
	var children []Tree
	if aa, ok := a.(And); ok {
		children = append(children, aa.Children...)
	} else {
		children = append(children, a)
	}
	if ba, ok := b.(And); ok {
		children = append(children, ba.Children...)
	} else {
		children = append(children, b)
	}
	return And{Children: children}
}
