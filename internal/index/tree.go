// Package index maintains the time intervals of all events and answers
// overlap queries, and derives the column layout used to render overlapping
// events side by side.
package index

import (
	"sort"
	"time"
)

// Interval is the half-open time range [Start, End) of one event.
// A zero-duration interval (Start == End) is accepted; for overlap purposes
// it behaves as an instant, it overlaps exactly the ranges containing its
// start point.
type Interval struct {
	ID    string
	Start time.Time
	End   time.Time
}

func (iv Interval) startNano() int64 { return iv.Start.UnixNano() }

// effEndNano widens degenerate intervals by one nanosecond so that a reminder
// at instant p is reported by queries covering p.
func (iv Interval) effEndNano() int64 {
	e := iv.End.UnixNano()
	if s := iv.Start.UnixNano(); e <= s {
		return s + 1
	}
	return e
}

type node struct {
	iv          Interval
	left, right *node
	height      int
	maxEnd      int64 // max effective end in this subtree
}

// Tree is an augmented AVL interval tree keyed by (start, id). Each node keeps
// the maximum end time of its subtree, so range queries prune whole subtrees
// and run in O(log n + k).
type Tree struct {
	root *node
	size int
}

func NewTree() *Tree {
	return &Tree{}
}

func (t *Tree) Len() int {
	return t.size
}

// Insert adds the interval. Inserting an ID twice is the caller's bug; the
// second copy is stored independently, Remove takes it out again by (start, id).
func (t *Tree) Insert(iv Interval) {
	t.root = insert(t.root, iv)
	t.size++
}

// Remove deletes the interval previously inserted with the same ID and start.
// It reports whether something was removed.
func (t *Tree) Remove(iv Interval) bool {
	var removed bool
	t.root, removed = remove(t.root, iv)
	if removed {
		t.size--
	}
	return removed
}

// Query returns all intervals overlapping the half-open range [from, to),
// ordered by start time, then id. The result is a fresh slice.
func (t *Tree) Query(from, to time.Time) []Interval {
	a, b := from.UnixNano(), to.UnixNano()
	var out []Interval
	collect(t.root, a, b, &out)
	sort.Slice(out, func(i, j int) bool {
		if out[i].startNano() != out[j].startNano() {
			return out[i].startNano() < out[j].startNano()
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Stab returns the intervals containing the given instant.
func (t *Tree) Stab(at time.Time) []Interval {
	return t.Query(at, at.Add(time.Nanosecond))
}

// All returns every stored interval ordered by start time, then id.
func (t *Tree) All() []Interval {
	var min, max time.Time
	if t.root == nil {
		return nil
	}
	min = time.Unix(0, leftmost(t.root).iv.startNano())
	max = time.Unix(0, t.root.maxEnd)
	return t.Query(min, max)
}

func overlaps(iv Interval, a, b int64) bool {
	return iv.startNano() < b && a < iv.effEndNano()
}

func collect(n *node, a, b int64, out *[]Interval) {
	if n == nil || n.maxEnd <= a {
		return
	}
	collect(n.left, a, b, out)
	if overlaps(n.iv, a, b) {
		*out = append(*out, n.iv)
	}
	// keys to the right all start at or after this node's start
	if n.iv.startNano() < b {
		collect(n.right, a, b, out)
	}
}

func less(x, y Interval) bool {
	if x.startNano() != y.startNano() {
		return x.startNano() < y.startNano()
	}
	return x.ID < y.ID
}

func insert(n *node, iv Interval) *node {
	if n == nil {
		return &node{iv: iv, height: 1, maxEnd: iv.effEndNano()}
	}
	if less(iv, n.iv) {
		n.left = insert(n.left, iv)
	} else {
		n.right = insert(n.right, iv)
	}
	return rebalance(n)
}

func remove(n *node, iv Interval) (*node, bool) {
	if n == nil {
		return nil, false
	}
	var removed bool
	switch {
	case less(iv, n.iv):
		n.left, removed = remove(n.left, iv)
	case less(n.iv, iv):
		n.right, removed = remove(n.right, iv)
	case n.iv.ID == iv.ID:
		removed = true
		switch {
		case n.left == nil:
			return n.right, true
		case n.right == nil:
			return n.left, true
		default:
			succ := leftmost(n.right)
			n.iv = succ.iv
			n.right, _ = remove(n.right, succ.iv)
		}
	default:
		// equal key but different interval, keep looking right
		n.right, removed = remove(n.right, iv)
	}
	if !removed {
		return n, false
	}
	return rebalance(n), true
}

func leftmost(n *node) *node {
	for n.left != nil {
		n = n.left
	}
	return n
}

func height(n *node) int {
	if n == nil {
		return 0
	}
	return n.height
}

func maxEnd(n *node) int64 {
	if n == nil {
		return 0
	}
	return n.maxEnd
}

func update(n *node) {
	n.height = 1 + max(height(n.left), height(n.right))
	n.maxEnd = n.iv.effEndNano()
	if m := maxEnd(n.left); m > n.maxEnd {
		n.maxEnd = m
	}
	if m := maxEnd(n.right); m > n.maxEnd {
		n.maxEnd = m
	}
}

func balance(n *node) int {
	return height(n.left) - height(n.right)
}

func rebalance(n *node) *node {
	update(n)
	switch b := balance(n); {
	case b > 1:
		if balance(n.left) < 0 {
			n.left = rotateLeft(n.left)
		}
		return rotateRight(n)
	case b < -1:
		if balance(n.right) > 0 {
			n.right = rotateRight(n.right)
		}
		return rotateLeft(n)
	}
	return n
}

func rotateLeft(n *node) *node {
	r := n.right
	n.right = r.left
	r.left = n
	update(n)
	update(r)
	return r
}

func rotateRight(n *node) *node {
	l := n.left
	n.left = l.right
	l.right = n
	update(n)
	update(l)
	return l
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
