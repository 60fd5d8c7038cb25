package index

import "sort"

// Assignment places one event into a column grid: the event renders in column
// Column out of Columns equal-width columns. Assignments are derived data,
// recomputed from the current interval set and never persisted.
type Assignment struct {
	Column  int
	Columns int
}

// Columns lays out the given intervals with greedy column packing, run per
// contiguous cluster of mutually overlapping intervals:
//
//  1. sort by start, shorter duration first on ties, then by id;
//  2. place each interval into the lowest column whose last end <= its start,
//     opening a new column when none fits;
//  3. every member of a cluster gets the cluster's total column count.
//
// The greedy rule uses the minimal number of columns for an interval graph,
// and the tie-break makes re-renders stable. Zero-duration intervals occupy
// a column like any other member.
func Columns(ivs []Interval) map[string]Assignment {
	sorted := make([]Interval, len(ivs))
	copy(sorted, ivs)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.startNano() != b.startNano() {
			return a.startNano() < b.startNano()
		}
		da, db := a.effEndNano()-a.startNano(), b.effEndNano()-b.startNano()
		if da != db {
			return da < db
		}
		return a.ID < b.ID
	})

	out := make(map[string]Assignment, len(sorted))
	var cluster []Interval
	clusterEnd := int64(0)

	flush := func() {
		if len(cluster) == 0 {
			return
		}
		packCluster(cluster, out)
		cluster = cluster[:0]
	}

	for _, iv := range sorted {
		if len(cluster) > 0 && iv.startNano() >= clusterEnd {
			flush()
		}
		cluster = append(cluster, iv)
		if e := iv.effEndNano(); len(cluster) == 1 || e > clusterEnd {
			clusterEnd = e
		}
	}
	flush()
	return out
}

// packCluster assigns columns within one cluster; the input is already in
// placement order.
func packCluster(cluster []Interval, out map[string]Assignment) {
	var colEnds []int64
	cols := make([]int, len(cluster))
	for i, iv := range cluster {
		placed := -1
		for c, end := range colEnds {
			if end <= iv.startNano() {
				placed = c
				break
			}
		}
		if placed < 0 {
			colEnds = append(colEnds, 0)
			placed = len(colEnds) - 1
		}
		colEnds[placed] = iv.effEndNano()
		cols[i] = placed
	}
	for i, iv := range cluster {
		out[iv.ID] = Assignment{Column: cols[i], Columns: len(colEnds)}
	}
}
