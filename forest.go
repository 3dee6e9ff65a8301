package gdbscan

import (
	"fmt"
	"math"
)

// minForestCapacity is the initial arena size, matching the number of
// clusters most runs never exceed.
const minForestCapacity = 100

// forest is the cluster forest: a growable arena of core records forming a
// disjoint-set structure. Records are addressed by int32 index and are never
// removed; a union only rewrites parent links.
//
// Tree shape is union by rank, so the depth of any record is bounded by
// log2 of the number of successful unions. The representative of a set is
// its label, the smallest record index in the set, kept at the tree root.
// Representatives therefore do not depend on the order in which unions are
// performed.
//
// forest is not safe for concurrent use; the engine guards it with its mutex.
type forest struct {
	parent []int32 // parent[i] == i marks a root
	rank   []uint8
	label  []int32 // valid at roots only
	limit  int
}

// newForest creates an empty forest that refuses to grow past limit records.
// limit <= 0 means the int32 index space.
func newForest(limit int) *forest {
	if limit <= 0 || limit > math.MaxInt32 {
		limit = math.MaxInt32
	}
	c := min(minForestCapacity, limit)
	return &forest{
		parent: make([]int32, 0, c),
		rank:   make([]uint8, 0, c),
		label:  make([]int32, 0, c),
		limit:  limit,
	}
}

// Len returns the number of records allocated so far.
func (f *forest) Len() int { return len(f.parent) }

// add allocates a new root record and returns its index.
func (f *forest) add() (int32, error) {
	n := len(f.parent)
	if n >= f.limit {
		return -1, fmt.Errorf("%w: %d core records allocated", ErrForestExhausted, n)
	}
	if n == cap(f.parent) {
		f.grow()
	}
	idx := int32(n)
	f.parent = append(f.parent, idx)
	f.rank = append(f.rank, 0)
	f.label = append(f.label, idx)
	return idx, nil
}

// grow doubles the arena capacity, clamped to the limit.
func (f *forest) grow() {
	c := min(max(2*cap(f.parent), minForestCapacity), f.limit)
	parent := make([]int32, len(f.parent), c)
	rank := make([]uint8, len(f.rank), c)
	label := make([]int32, len(f.label), c)
	copy(parent, f.parent)
	copy(rank, f.rank)
	copy(label, f.label)
	f.parent, f.rank, f.label = parent, rank, label
}

// root walks parent links from x to the tree root without modifying them.
func (f *forest) root(x int32) int32 {
	for f.parent[x] != x {
		x = f.parent[x]
	}
	return x
}

// find returns the representative of the set containing x: the smallest
// record index in the set.
func (f *forest) find(x int32) int32 {
	return f.label[f.root(x)]
}

// depth returns the number of parent links followed from x to its root.
func (f *forest) depth(x int32) int {
	d := 0
	for f.parent[x] != x {
		x = f.parent[x]
		d++
	}
	return d
}

// union merges the sets containing a and b. It reports whether the two were
// previously disjoint. Repeated calls, in either argument order, are no-ops.
func (f *forest) union(a, b int32) bool {
	ra, rb := f.root(a), f.root(b)
	if ra == rb {
		return false
	}
	// Attach the lower-ranked tree under the higher one.
	if f.rank[ra] < f.rank[rb] {
		ra, rb = rb, ra
	}
	f.parent[rb] = ra
	if f.rank[ra] == f.rank[rb] {
		f.rank[ra]++
	}
	if f.label[rb] < f.label[ra] {
		f.label[ra] = f.label[rb]
	}
	return true
}

// compress points every record directly at its root. Afterwards root and
// find are O(1). Only the resolver calls this.
func (f *forest) compress() {
	for i := range f.parent {
		x := int32(i)
		r := f.root(x)
		for f.parent[x] != r {
			x, f.parent[x] = f.parent[x], r
		}
	}
}

// roots returns the number of disjoint sets.
func (f *forest) roots() int {
	n := 0
	for i, p := range f.parent {
		if int32(i) == p {
			n++
		}
	}
	return n
}
