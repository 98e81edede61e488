package spatial

import "math"

// Thresholds are the per-state promotion fractions from spec.md §4.6 and
// §6 ("--region_mismatch_threshold" etc).
type Thresholds struct {
	Mismatch  float64
	Insertion float64
	Deletion  float64
}

// regionMinCount computes spec.md §4.6 step 1: ceil(2 / min(thresholds)).
func regionMinCount(th Thresholds) int {
	m := th.Mismatch
	if th.Insertion < m {
		m = th.Insertion
	}
	if th.Deletion < m {
		m = th.Deletion
	}
	if m <= 0 {
		return 1
	}
	return int(math.Ceil(2 / m))
}

// Promote runs spec.md §4.6's post-scan state promotion over every lane:
// region enlargement when average coverage is too thin, per-cell
// threshold promotion, the per-tile majority rule, and bad-tile culling.
// scaleFactor is the integer enlargement factor for step 2.
func (t *Table) Promote(th Thresholds, scaleFactor int) {
	minCount := regionMinCount(th)
	for _, l := range t.lanes {
		l.enlargeIfSparse(minCount, scaleFactor)
		l.promoteCells(minCount, th)
		l.applyMajorityRule()
		l.cullBadTiles()
	}
}

// enlargeIfSparse implements spec.md §4.6 step 2: when average reads per
// region falls below minCount, aggregate adjacent regions by scaleFactor
// until the average clears the threshold or the whole tile is one region.
func (l *laneTable) enlargeIfSparse(minCount, scaleFactor int) {
	if scaleFactor < 2 {
		scaleFactor = 2
	}
	for {
		nRegions := int(l.nRegionsX) * int(l.nRegionsY)
		if nRegions <= 1 {
			return
		}
		total, count := int64(0), 0
		for _, cells := range l.cells {
			for _, c := range cells {
				total += c.N()
				count++
			}
		}
		if count == 0 {
			return
		}
		avg := float64(total) / float64(nRegions)
		if avg >= float64(minCount) {
			return
		}
		l.mergeRegions(scaleFactor)
	}
}

// mergeRegions rebuilds the region index at 1/scaleFactor resolution on
// each axis, summing aggregated cells into scratch state before replacing
// the lane's region index and cell planes (spec.md §9's two-phase
// redesign: discovery, then allocation, never an in-place realloc mid-scan).
func (l *laneTable) mergeRegions(scaleFactor int) {
	oldToNew := make(map[int32]int32, len(l.regionIndex))
	newIndex := make(map[regionKey]int32)
	var newX, newY int32
	for key, oldIdx := range l.regionIndex {
		nk := regionKey{key.rx / int32(scaleFactor), key.ry / int32(scaleFactor)}
		ni, ok := newIndex[nk]
		if !ok {
			ni = int32(len(newIndex))
			newIndex[nk] = ni
			if nk.rx+1 > newX {
				newX = nk.rx + 1
			}
			if nk.ry+1 > newY {
				newY = nk.ry + 1
			}
		}
		oldToNew[oldIdx] = ni
	}

	newCells := make(map[tileReadCycleKey][]Cell, len(l.cells))
	for key, cells := range l.cells {
		merged := make([]Cell, len(newIndex))
		for oldIdx, c := range cells {
			ni, ok := oldToNew[int32(oldIdx)]
			if !ok {
				continue
			}
			merged[ni] = aggregateCell(merged[ni], c)
		}
		newCells[key] = merged
	}

	l.regionIndex = newIndex
	l.nRegionsX = newX
	l.nRegionsY = newY
	l.cells = newCells
}

func aggregateCell(a, b Cell) Cell {
	a.Align += b.Align
	a.Mismatch += b.Mismatch
	a.Insertion += b.Insertion
	a.Deletion += b.Deletion
	a.SoftClip += b.SoftClip
	a.KnownSNP += b.KnownSNP
	a.QualitySum += b.QualitySum
	a.State |= b.State
	return a
}

// promoteCells implements spec.md §4.6 step 3 for every cell.
func (l *laneTable) promoteCells(minCount int, th Thresholds) {
	for _, cells := range l.cells {
		for i := range cells {
			c := &cells[i]
			n := c.N()
			if n < int64(minCount) {
				c.State |= Coverage
			}
			nPrime := n
			if nPrime < int64(minCount) {
				nPrime = int64(minCount)
			}
			if nPrime == 0 {
				continue
			}
			if float64(c.Mismatch)/float64(nPrime) >= th.Mismatch {
				c.State |= Mismatch
			}
			if float64(c.Insertion)/float64(nPrime) >= th.Insertion {
				c.State |= Insertion
			}
			if float64(c.Deletion)/float64(nPrime) >= th.Deletion {
				c.State |= Deletion
			}
		}
	}
}

// applyMajorityRule implements spec.md §4.6 step 4: per (tile, read,
// cycle), if every non-zero state across regions agrees and more than
// TileRegionThreshold of regions share it, promote that state to every
// region of the tile/cycle, preserving each region's own COVERAGE bit.
func (l *laneTable) applyMajorityRule() {
	for _, cells := range l.cells {
		if len(cells) == 0 {
			continue
		}
		counts := make(map[State]int)
		nonZero := 0
		for _, c := range cells {
			s := c.State &^ Coverage
			if s == 0 {
				continue
			}
			counts[s]++
			nonZero++
		}
		if len(counts) != 1 || nonZero == 0 {
			continue
		}
		var majority State
		var majorityCount int
		for s, n := range counts {
			majority, majorityCount = s, n
		}
		if float64(majorityCount) < TileRegionThreshold*float64(len(cells)) {
			continue
		}
		for i := range cells {
			coverage := cells[i].State & Coverage
			cells[i].State = majority | coverage
		}
	}
}

// cullBadTiles implements spec.md §4.6's bad-tile culling: a tile with
// fewer reads than NReadsPresent*1000 is invalidated. The tile number
// itself is tracked by the caller (Filter File serialization in toHeader),
// which consults invalidTiles.
func (l *laneTable) cullBadTiles() {
	l.invalidTiles = make(map[int]bool)
	for tile, reads := range l.tiles {
		if reads < int64(NReadsPresent)*1000 {
			l.invalidTiles[tile] = true
		}
	}
}

// TotalReads sums every tile's read count for this lane, used by the
// whole-filter-discard rule (spec.md §4.6: "A filter with total reads
// below ntiles*1000 is discarded whole").
func (l *laneTable) TotalReads() int64 {
	var total int64
	for _, n := range l.tiles {
		total += n
	}
	return total
}
