// Package cost implements the cost model from §4.5: per-plan I/O/CPU/sort
// cost estimation and the selectivity model it shares with the plan
// enumerator's pruning decisions.
package cost

import "math"

// Model's fixed per-unit costs. These are deliberately simple constants
// rather than a calibration table — the cost model only needs to rank
// plans consistently, not predict wall-clock time.
const (
	ioRead    = 1.0
	cpuDeser  = 0.05
	cpuFilter = 0.01
)

// QueryCost is the cost vector from §3. Ordering between plans is by
// Total(), never by comparing components directly.
type QueryCost struct {
	IOCost        float64
	CPUCost       float64
	EstimatedRows float64
	NeedsSort     bool
}

// Total implements the formula from §3:
// ioCost + 0.1·cpuCost + (needsSort ? 0.01·n·log2(max(n,1)) : 0).
func (c QueryCost) Total() float64 {
	total := c.IOCost + 0.1*c.CPUCost
	if c.NeedsSort {
		total += sortCost(c.EstimatedRows)
	}
	return total
}

func sortCost(n float64) float64 {
	if n < 1 {
		n = 1
	}
	return 0.01 * n * math.Log2(n)
}

// FullScan costs a full-table scan with residual filter selectivity sel
// applied over n rows, per §4.5.
func FullScan(n float64, sel float64, needsSort bool) QueryCost {
	return QueryCost{
		IOCost:        n * ioRead,
		CPUCost:       n * (cpuDeser + cpuFilter),
		EstimatedRows: n * sel,
		NeedsSort:     needsSort,
	}
}

// IndexScan costs a single-index scan: rangeSel narrows the index range,
// filterSel narrows the residual applied after the per-entry record fetch.
// ioCost covers one index read and one record read per matched row.
func IndexScan(n float64, rangeSel, filterSel float64, needsSort bool) QueryCost {
	rows := n * rangeSel * filterSel
	return QueryCost{
		IOCost:        2 * rows * ioRead,
		CPUCost:       rows * (cpuDeser + cpuFilter),
		EstimatedRows: rows,
		NeedsSort:     needsSort,
	}
}

// HeuristicRangeSelectivity is the fallback table from §4.5 used when no
// histogram is available for the scanned index.
func HeuristicRangeSelectivity(full, halfOpen bool) float64 {
	switch {
	case full:
		return 1.0
	case halfOpen:
		return 0.5
	default:
		return 0.1
	}
}

// Intersection costs an intersection plan: children run concurrently so
// I/O is summed (not maxed, since the KV store still serves each range
// independently); output rows use the independence assumption
// n·∏childSel; CPU is proportional to the smallest child (the
// sorted-merge and hash paths both bound work by the smallest input).
func Intersection(children []QueryCost, tableRows float64, childSelectivities []float64) QueryCost {
	var ioSum, cpuMin float64
	rows := tableRows
	first := true
	for i, c := range children {
		ioSum += c.IOCost
		if first || c.CPUCost < cpuMin {
			cpuMin = c.CPUCost
			first = false
		}
		if i < len(childSelectivities) {
			rows *= childSelectivities[i]
		}
	}
	return QueryCost{IOCost: ioSum, CPUCost: cpuMin, EstimatedRows: rows}
}

// Union costs a union plan: costs sum, and a 10% dedup allowance is
// applied to the combined row estimate per §4.5.
func Union(children []QueryCost) QueryCost {
	var ioSum, cpuSum, rowSum float64
	for _, c := range children {
		ioSum += c.IOCost
		cpuSum += c.CPUCost
		rowSum += c.EstimatedRows
	}
	return QueryCost{IOCost: ioSum, CPUCost: cpuSum, EstimatedRows: 0.9 * rowSum}
}

// Limit scales a child's cost down by min(1, limit/childRows), per §4.5.
func Limit(child QueryCost, limit int) QueryCost {
	if child.EstimatedRows <= 0 {
		return QueryCost{EstimatedRows: 0}
	}
	ratio := float64(limit) / child.EstimatedRows
	if ratio > 1 {
		ratio = 1
	}
	rows := child.EstimatedRows
	if float64(limit) < rows {
		rows = float64(limit)
	}
	return QueryCost{
		IOCost:    child.IOCost * ratio,
		CPUCost:   child.CPUCost * ratio,
		EstimatedRows: rows,
		NeedsSort: child.NeedsSort,
	}
}

// unknownPenaltyCost is the fixed high cost assigned to a plan type the
// model doesn't recognize, per §4.5's "Unknown" rule — it discourages
// selection without excluding the plan outright (a plan that is the only
// candidate must still be choosable).
const unknownPenaltyCost = 1e12

// Unknown returns the fixed penalty cost for an unrecognized plan shape.
func Unknown() QueryCost {
	return QueryCost{IOCost: unknownPenaltyCost}
}
