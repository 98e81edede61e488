package spatial

import (
	"github.com/biogo/hts/sam"

	"github.com/wtsi-npg/bambi-go/auxtag"
	"github.com/wtsi-npg/bambi-go/record"
	"github.com/wtsi-npg/bambi-go/snpset"
)

// GridOpts configures region-grid normalization for one lane (spec.md §3
// "Region Grid").
type GridOpts struct {
	CoordShift  int
	CoordFactor int
	RegionSize  int
}

func (g GridOpts) regionOf(coord int) int32 {
	factor := g.CoordFactor
	if factor <= 0 {
		factor = 1
	}
	size := g.RegionSize
	if size <= 0 {
		size = 1
	}
	return int32((coord - g.CoordShift) / factor / size)
}

// laneTable holds one lane's Region Table: a region hash plus
// per-(tile,read,cycle,region) cell storage, both grown during the scan
// itself. Region discovery and cell allocation are not separate phases: a
// cell slice is extended (new cells zeroed) when a record lands in a
// region discovered after that slice was allocated.
type laneTable struct {
	Lane int
	Grid GridOpts

	regionIndex map[regionKey]int32 // discovered during the scan phase
	nRegionsX   int32
	nRegionsY   int32

	// Per-(tile,read,cycle) slice of cells, one per discovered region.
	// Keyed lazily; the dense cell plane is only materialized once the
	// Filter File is serialized (ToLaneHeaders).
	cells map[tileReadCycleKey][]Cell

	tiles        map[int]int64 // tile -> read count, for bad-tile culling
	tileOrder    *orderedInts  // tiles in ascending discovery-sorted order
	invalidTiles map[int]bool
	readLength   [3]int
}

type tileReadCycleKey struct {
	tile, read, cycle int
}

// Table owns one laneTable per lane observed during the scan.
type Table struct {
	lanes     map[int]*laneTable
	laneOrder *orderedInts
	SNPs      *snpset.Set
}

// NewTable creates an empty Region Table.
func NewTable(snps *snpset.Set) *Table {
	return &Table{lanes: make(map[int]*laneTable), laneOrder: newOrderedInts(), SNPs: snps}
}

func (t *Table) lane(laneNo int, grid GridOpts) *laneTable {
	l, ok := t.lanes[laneNo]
	if !ok {
		l = &laneTable{
			Lane:        laneNo,
			Grid:        grid,
			regionIndex: make(map[regionKey]int32),
			cells:       make(map[tileReadCycleKey][]Cell),
			tiles:       make(map[int]int64),
			tileOrder:   newOrderedInts(),
		}
		t.lanes[laneNo] = l
		t.laneOrder.add(laneNo)
	}
	return l
}

// regionFor finds-or-inserts the region index for (rx, ry), growing
// nRegionsX/nRegionsY as needed (spec.md §4.6).
func (l *laneTable) regionFor(rx, ry int32) int32 {
	key := regionKey{rx, ry}
	if idx, ok := l.regionIndex[key]; ok {
		return idx
	}
	idx := int32(len(l.regionIndex))
	l.regionIndex[key] = idx
	if rx+1 > l.nRegionsX {
		l.nRegionsX = rx + 1
	}
	if ry+1 > l.nRegionsY {
		l.nRegionsY = ry + 1
	}
	return idx
}

func (l *laneTable) cellSlice(tile, read, cycle int) []Cell {
	key := tileReadCycleKey{tile, read, cycle}
	c, ok := l.cells[key]
	nRegions := len(l.regionIndex)
	if !ok || len(c) < nRegions {
		nc := make([]Cell, nRegions)
		copy(nc, c)
		l.cells[key] = nc
		return nc
	}
	return c
}

// Scan implements spec.md §4.6's per-record scan step. md is the record's
// MD tag value (already extracted by the caller); grid configures the
// lane's region normalization.
func (t *Table) Scan(r *record.Record, md string, grid GridOpts) error {
	if record.IsUnmapped(r) || record.IsQCFail(r) || record.IsSecondary(r) || record.IsSupplementary(r) {
		return nil
	}
	if record.IsPaired(r) && !record.IsProperPair(r) {
		return nil
	}
	coord, err := ParseQueryName(r.Name)
	if err != nil {
		return err
	}
	l := t.lane(coord.Lane, grid)
	l.tiles[coord.Tile]++
	l.tileOrder.add(coord.Tile)

	readNum := record.ReadNum(r)
	readLen := r.Seq.Length
	reverse := r.Flags&sam.Reverse != 0
	class, refPositions, err := ClassifyWithRefPositions(r.Cigar, md, readLen, reverse, r.Pos)
	if err != nil {
		return err
	}

	rx := grid.regionOf(coord.X)
	ry := grid.regionOf(coord.Y)
	region := l.regionFor(rx, ry)

	if r.Seq.Length > l.readLength[clampReadIdx(readNum)] {
		l.readLength[clampReadIdx(readNum)] = r.Seq.Length
	}

	for cycle, st := range class {
		knownSNP := t.SNPs != nil && refPositions[cycle] >= 0 &&
			t.SNPs.Contains(refPosRefName(r), refPositions[cycle])
		cell := l.cellSlice(coord.Tile, readNum, cycle)
		c := &cell[region]
		switch {
		case knownSNP:
			c.KnownSNP++
		case st&Insertion != 0:
			c.Insertion++
		case st&Deletion != 0:
			c.Deletion++
		case st&SoftClip != 0:
			c.SoftClip++
		case st&Mismatch != 0:
			c.Mismatch++
		default:
			c.Align++
		}
		if cycle < len(r.Qual) {
			c.QualitySum += int64(r.Qual[cycle])
		}
		l.cells[tileReadCycleKey{coord.Tile, readNum, cycle}] = cell
	}
	return nil
}

func clampReadIdx(read int) int {
	if read < 0 || read > 2 {
		return 0
	}
	return read
}

func refPosRefName(r *record.Record) string {
	if r.Ref == nil {
		return ""
	}
	return r.Ref.Name()
}

// GetAuxMD extracts the MD tag from a record, defaulting to "" when
// absent (an absent MD disables mismatch classification for that record;
// every cycle in its M-runs is reported as ALIGN).
func GetAuxMD(r *record.Record) string {
	s, _ := auxtag.GetString(r, auxtag.ParseTag("MD"))
	return s
}
