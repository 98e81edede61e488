// Package spatial implements the Spatial Filter: a Region Table that
// tabulates alignment outcomes per (lane, tile, read, cycle, region),
// promotes counts to per-region state flags via thresholds, and a binary
// Filter File codec for writing/applying the result (spec.md §4.6, §4.7).
package spatial

// State is the bitmask spec.md §3 names for a Region Table cell.
type State uint8

const (
	Coverage State = 1 << iota
	Mismatch
	Insertion
	Deletion
	SoftClip
	Bad
)

// TileRegionThreshold is the majority-rule fraction from spec.md §4.6.
const TileRegionThreshold = 0.75

// NReadsPresent scales the bad-tile-culling threshold (spec.md §4.6:
// "fewer reads than N_READS_PRESENT x 1000").
const NReadsPresent = 1

// regionKey identifies a spatial bin within one lane: a struct-of-two-int32
// key (spec.md §9's redesign note) rather than a stringified key, to avoid
// allocation in the Region Table's hot per-record loop.
type regionKey struct {
	rx, ry int32
}

// Cell is one Region Table entry (spec.md §3).
type Cell struct {
	Align      int64
	Mismatch   int64
	Insertion  int64
	Deletion   int64
	SoftClip   int64
	KnownSNP   int64
	QualitySum int64
	State      State
}

// N returns align+insertion+deletion+soft_clip+known_snp, the
// denominator spec.md §3/§4.6 use for averaging and thresholding.
func (c *Cell) N() int64 {
	return c.Align + c.Insertion + c.Deletion + c.SoftClip + c.KnownSNP
}

// MeanQuality divides QualitySum by N(), per spec.md §3's report-time rule.
func (c *Cell) MeanQuality() float64 {
	n := c.N()
	if n == 0 {
		return 0
	}
	return float64(c.QualitySum) / float64(n)
}
