package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFinalizeLane(laneNo int) *laneTable {
	return &laneTable{
		Lane:        laneNo,
		regionIndex: make(map[regionKey]int32),
		cells:       make(map[tileReadCycleKey][]Cell),
		tiles:       make(map[int]int64),
		tileOrder:   newOrderedInts(),
	}
}

func TestToLaneHeadersDiscardsSparseLane(t *testing.T) {
	l := newFinalizeLane(1)
	l.tiles[1] = 10 // well below len(tiles)*1000
	l.tileOrder.add(1)
	tbl := &Table{lanes: map[int]*laneTable{1: l}, laneOrder: newOrderedInts()}
	tbl.laneOrder.add(1)

	out := tbl.ToLaneHeaders()
	assert.Empty(t, out)
}

func TestToLaneHeadersKeepsLaneAboveThreshold(t *testing.T) {
	l := newFinalizeLane(1)
	l.tiles[1] = 1000
	l.tileOrder.add(1)
	l.readLength[0] = 2
	l.regionIndex[regionKey{0, 0}] = 0
	l.nRegionsX, l.nRegionsY = 1, 1
	l.cells[tileReadCycleKey{1, 0, 0}] = []Cell{{Align: 5, State: Coverage}}
	l.cells[tileReadCycleKey{1, 0, 1}] = []Cell{{Align: 5, State: Mismatch}}

	tbl := &Table{lanes: map[int]*laneTable{1: l}, laneOrder: newOrderedInts()}
	tbl.laneOrder.add(1)

	out := tbl.ToLaneHeaders()
	require.Len(t, out, 1)
	h := out[0]
	assert.Equal(t, int32(1), h.Lane)
	require.Len(t, h.Tiles, 1)
	assert.Equal(t, int32(1), h.Tiles[0].Tile)
	assert.Equal(t, uint64(1000), h.NReads)
	require.Len(t, h.Data, 2)
	assert.Equal(t, byte(Coverage), h.Data[0])
	assert.Equal(t, byte(Mismatch), h.Data[1])
}

func TestToHeaderSkipsInvalidTileData(t *testing.T) {
	l := newFinalizeLane(2)
	l.tiles[7] = 2000
	l.tileOrder.add(7)
	l.invalidTiles = map[int]bool{7: true}
	l.readLength[0] = 1
	l.regionIndex[regionKey{0, 0}] = 0
	l.nRegionsX, l.nRegionsY = 1, 1
	l.cells[tileReadCycleKey{7, 0, 0}] = []Cell{{Align: 1, State: Mismatch}}

	h := l.toHeader()
	require.Len(t, h.Data, 1)
	assert.Equal(t, byte(0), h.Data[0])
}

func TestRegionMapIndexMarksUndiscoveredCellsNegativeOne(t *testing.T) {
	l := newFinalizeLane(1)
	l.nRegionsX, l.nRegionsY = 2, 2
	l.regionIndex[regionKey{0, 0}] = 0
	l.regionIndex[regionKey{1, 1}] = 1

	grid := regionMapIndex(l)
	require.Len(t, grid, 4)
	assert.Equal(t, int32(0), grid[0])
	assert.Equal(t, int32(1), grid[3])
	assert.Equal(t, int32(-1), grid[1])
	assert.Equal(t, int32(-1), grid[2])
}
