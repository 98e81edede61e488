package spatial

import "github.com/biogo/store/llrb"

// intKey orders Table/laneTable's lane and tile numbers for finalize's
// dense-plane construction, the same llrb.Tree-backed ordered-key
// pattern the teacher uses for shard lookup (encoding/bampair/shard_info.go's
// byKey tree) and merge-leaf ordering (cmd/bio-bam-sort/sorter/sort.go).
// A plain map plus a one-off sort.Ints would do the same job; this keeps
// insertion order incrementally sorted instead, at the one-time scan cost
// of an Insert per newly observed lane/tile rather than a single sort at
// finalize time.
type intKey int

func (k intKey) Compare(c llrb.Comparable) int {
	return int(k) - int(c.(intKey))
}

// orderedInts accumulates distinct ints in sorted order as they're first
// observed, avoiding a collect-then-sort pass at finalize time.
type orderedInts struct {
	tree llrb.Tree
	seen map[int]bool
}

func newOrderedInts() *orderedInts {
	return &orderedInts{tree: llrb.Tree{}, seen: make(map[int]bool)}
}

func (o *orderedInts) add(n int) {
	if o.seen[n] {
		return
	}
	o.seen[n] = true
	o.tree.Insert(intKey(n))
}

// sorted returns every observed int in ascending order.
func (o *orderedInts) sorted() []int {
	out := make([]int, 0, len(o.seen))
	o.tree.Do(func(c llrb.Comparable) bool {
		out = append(out, int(c.(intKey)))
		return false
	})
	return out
}
