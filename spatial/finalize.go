package spatial

// regionMapIndex encodes a lane's sparse regionIndex as a dense
// row-major (rx, ry) grid of data-plane indices, -1 where no region was
// discovered at that grid cell. This is the "nregions x int32" array
// spec.md §6 places ahead of the byte plane, and lets the apply side
// recover a region's plane index from raw (rx, ry) without needing the
// scan-time hash map.
func regionMapIndex(l *laneTable) []int32 {
	grid := make([]int32, int(l.nRegionsX)*int(l.nRegionsY))
	for i := range grid {
		grid[i] = -1
	}
	for key, idx := range l.regionIndex {
		pos := int(key.rx)*int(l.nRegionsY) + int(key.ry)
		grid[pos] = idx
	}
	return grid
}

// ToLaneHeaders finalizes every scanned lane into a serializable
// LaneHeader, applying the whole-filter-discard rule (spec.md §4.6: "A
// filter with total reads below ntiles*1000 is discarded whole") and
// materializing the dense (tile, read, cycle, region) byte plane from the
// sparse per-key cell map.
func (t *Table) ToLaneHeaders() []*LaneHeader {
	var out []*LaneHeader
	for _, laneNo := range t.laneOrder.sorted() {
		l := t.lanes[laneNo]
		if l.TotalReads() < int64(len(l.tiles))*1000 {
			continue
		}
		out = append(out, l.toHeader())
	}
	return out
}

func (l *laneTable) toHeader() *LaneHeader {
	tiles := make([]TileEntry, 0, len(l.tiles))
	for _, tile := range l.tileOrder.sorted() {
		tiles = append(tiles, TileEntry{Tile: int32(tile), ReadCount: uint64(l.tiles[tile])})
	}

	nregions := len(l.regionIndex)
	var readLen32 [3]int32
	for i, r := range l.readLength {
		readLen32[i] = int32(r)
	}
	totalLen := int32(0)
	for _, r := range readLen32 {
		totalLen += r
	}

	data := make([]byte, len(tiles)*int(totalLen)*nregions)
	for tileIdx, t := range tiles {
		tile := int(t.Tile)
		if l.invalidTiles[tile] {
			continue
		}
		var readOffset int32
		for read := 0; read < 3; read++ {
			for cycle := 0; cycle < int(readLen32[read]); cycle++ {
				cells, ok := l.cells[tileReadCycleKey{tile, read, cycle}]
				if !ok {
					continue
				}
				for region, c := range cells {
					offset := int64(tileIdx)*int64(totalLen)*int64(nregions) +
						(int64(readOffset)+int64(cycle))*int64(nregions) + int64(region)
					data[offset] = byte(c.State)
				}
			}
			readOffset += readLen32[read]
		}
	}

	var nreads uint64
	for _, t := range tiles {
		nreads += t.ReadCount
	}

	return &LaneHeader{
		Lane:        int32(l.Lane),
		CoordShift:  int32(l.Grid.CoordShift),
		CoordFactor: int32(l.Grid.CoordFactor),
		Tiles:       tiles,
		RegionMap:   regionMapIndex(l),
		NRegions:    int32(nregions),
		RegionSize:  int32(l.Grid.RegionSize),
		NRegionsX:   l.nRegionsX,
		NRegionsY:   l.nRegionsY,
		NReads:      nreads,
		ReadLength:  readLen32,
		Data:        data,
	}
}
