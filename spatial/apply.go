package spatial

import (
	"github.com/biogo/hts/sam"

	"github.com/wtsi-npg/bambi-go/record"
)

// DefaultFilterMask is the standard State mask to pass to NewAppliedFilter
// (which always takes the mask explicitly): a cycle carrying an
// INSERTION or DELETION call in the Filter File suppresses the read.
const DefaultFilterMask = Insertion | Deletion

// AppliedFilter is the read-only view of a Filter File used while applying
// spatial filtering to a second pass over a BAM (spec.md §4.6 "Apply").
type AppliedFilter struct {
	lanes map[int]*appliedLane
	mask  State
}

type appliedLane struct {
	header     *LaneHeader
	tileOffset map[int32]int64 // tile number -> index into header.Tiles
	regionKey  map[regionKey]int32
	grid       GridOpts
	totalLen   int32
}

// NewAppliedFilter indexes parsed LaneHeaders for fast per-record lookup.
// mask selects which State bits make a cycle count as filtered; pass
// DefaultFilterMask for the documented INSERTION|DELETION behavior, or
// include Mismatch (or any other State bit) to widen it.
func NewAppliedFilter(lanes []*LaneHeader, mask State) *AppliedFilter {
	af := &AppliedFilter{lanes: make(map[int]*appliedLane), mask: mask}
	for _, l := range lanes {
		al := &appliedLane{
			header:     l,
			tileOffset: make(map[int32]int64, len(l.Tiles)),
			regionKey:  make(map[regionKey]int32, l.NRegions),
			grid: GridOpts{
				CoordShift:  int(l.CoordShift),
				CoordFactor: int(l.CoordFactor),
				RegionSize:  int(l.RegionSize),
			},
			totalLen: l.totalReadLength(),
		}
		for i, t := range l.Tiles {
			al.tileOffset[t.Tile] = int64(i)
		}
		if int(l.NRegionsY) > 0 {
			for pos, idx := range l.RegionMap {
				if idx < 0 {
					continue
				}
				rx := int32(pos) / l.NRegionsY
				ry := int32(pos) % l.NRegionsY
				al.regionKey[regionKey{rx, ry}] = idx
			}
		}
		af.lanes[int(l.Lane)] = al
	}
	return af
}

// cycleState returns the filter's State byte for (lane, tile, read, cycle,
// region) using the offset arithmetic of spec.md §6:
//
//	offset = tile_index*total_read_length*nregions +
//	         (sum(read_lengths[:read]) + cycle)*nregions + region
func (af *AppliedFilter) cycleState(lane, tile, read, cycle int, region int32) (State, bool) {
	al, ok := af.lanes[lane]
	if !ok {
		return 0, false
	}
	tileIdx, ok := al.tileOffset[int32(tile)]
	if !ok {
		return 0, false
	}
	nregions := int64(al.header.NRegions)
	if nregions == 0 {
		return 0, false
	}
	var readOffset int32
	for i := 0; i < read && i < len(al.header.ReadLength); i++ {
		readOffset += al.header.ReadLength[i]
	}
	offset := tileIdx*int64(al.totalLen)*nregions +
		(int64(readOffset)+int64(cycle))*nregions + int64(region)
	if offset < 0 || offset >= int64(len(al.header.Data)) {
		return 0, false
	}
	return State(al.header.Data[offset]), true
}

// regionOf maps a lane's (x, y) into the region index recorded in its
// Filter File, using the same grid the scan phase used to build it.
func (al *appliedLane) regionOf(x, y int) (int32, bool) {
	rx := al.grid.regionOf(x)
	ry := al.grid.regionOf(y)
	idx, ok := al.regionKey[regionKey{rx, ry}]
	return idx, ok
}

// IsFiltered implements spec.md §4.6's apply-side predicate: a record is
// filtered iff any cycle of its classification carries a State bit in
// af.mask, read from the Filter File (not re-derived from this pass's own
// CIGAR/MD, so a previously-observed indel hotspot suppresses the read
// even when this particular alignment looks clean).
func (af *AppliedFilter) IsFiltered(r *record.Record) (bool, error) {
	coord, err := ParseQueryName(r.Name)
	if err != nil {
		return false, err
	}
	al, ok := af.lanes[coord.Lane]
	if !ok {
		return false, nil
	}
	region, ok := al.regionOf(coord.X, coord.Y)
	if !ok {
		return false, nil
	}
	readNum := record.ReadNum(r)
	readLen := al.header.ReadLength[clampReadIdx(readNum)]
	for cycle := 0; cycle < int(readLen); cycle++ {
		st, ok := af.cycleState(coord.Lane, coord.Tile, readNum, cycle, region)
		if !ok {
			continue
		}
		if st&af.mask != 0 {
			return true, nil
		}
	}
	return false, nil
}

// Policy controls what happens to a filtered record (spec.md §4.6's
// "drop or flag QC fail" apply-time choice).
type Policy int

const (
	// PolicyDrop removes filtered records from the stream entirely.
	PolicyDrop Policy = iota
	// PolicyQCFail leaves the record in place but sets its QC-fail flag.
	PolicyQCFail
)

// Apply runs the configured Policy against r, reporting whether r should
// be dropped by the caller (PolicyDrop only; PolicyQCFail mutates r in place
// and always returns false).
func Apply(af *AppliedFilter, r *record.Record, policy Policy) (drop bool, err error) {
	filtered, err := af.IsFiltered(r)
	if err != nil {
		return false, err
	}
	if !filtered {
		return false, nil
	}
	switch policy {
	case PolicyDrop:
		return true, nil
	case PolicyQCFail:
		r.Flags |= sam.QCFail
		return false, nil
	default:
		return false, nil
	}
}
