package spatial

import (
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wtsi-npg/bambi-go/auxtag"
	"github.com/wtsi-npg/bambi-go/record"
)

func newScanRecord(name string, cigar sam.Cigar, md string, seq string) *record.Record {
	r := &record.Record{
		Name:  name,
		Cigar: cigar,
		Seq:   sam.NewSeq([]byte(seq)),
		Qual:  make([]byte, len(seq)),
	}
	_ = auxtag.AppendTyped(r, auxtag.ParseTag("MD"), md)
	return r
}

func TestScanTabulatesAlignedCycle(t *testing.T) {
	tbl := NewTable(nil)
	grid := GridOpts{CoordFactor: 1, RegionSize: 100}
	cigar := sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 5)}
	r := newScanRecord("HISEQ:1:FC:1:1101:100:200", cigar, "5", "ACGTA")

	require.NoError(t, tbl.Scan(r, GetAuxMD(r), grid))

	l := tbl.lanes[1]
	require.NotNil(t, l)
	assert.Equal(t, int64(1), l.tiles[1101])
	cell := l.cells[tileReadCycleKey{1101, 0, 0}]
	require.Len(t, cell, 1)
	assert.Equal(t, int64(1), cell[0].Align)
}

func TestScanSkipsUnmappedAndQCFail(t *testing.T) {
	tbl := NewTable(nil)
	grid := GridOpts{CoordFactor: 1, RegionSize: 100}
	cigar := sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 3)}

	r := newScanRecord("HISEQ:1:FC:1:1101:1:1", cigar, "3", "ACG")
	r.Flags = sam.Unmapped
	require.NoError(t, tbl.Scan(r, "3", grid))
	assert.Nil(t, tbl.lanes[1])

	r2 := newScanRecord("HISEQ:1:FC:1:1101:1:1", cigar, "3", "ACG")
	r2.Flags = sam.QCFail
	require.NoError(t, tbl.Scan(r2, "3", grid))
	assert.Nil(t, tbl.lanes[1])
}

func TestScanSkipsDiscordantPair(t *testing.T) {
	tbl := NewTable(nil)
	grid := GridOpts{CoordFactor: 1, RegionSize: 100}
	cigar := sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 3)}

	r := newScanRecord("HISEQ:1:FC:1:1101:1:1", cigar, "3", "ACG")
	r.Flags = sam.Paired // paired but not ProperPair
	require.NoError(t, tbl.Scan(r, "3", grid))
	assert.Nil(t, tbl.lanes[1])
}

func TestScanRecordsMismatchFromMD(t *testing.T) {
	tbl := NewTable(nil)
	grid := GridOpts{CoordFactor: 1, RegionSize: 100}
	cigar := sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 3)}
	r := newScanRecord("HISEQ:1:FC:2:1:1:1", cigar, "1A1", "ACG")

	require.NoError(t, tbl.Scan(r, "1A1", grid))
	l := tbl.lanes[2]
	require.NotNil(t, l)
	cell := l.cells[tileReadCycleKey{1, 0, 1}]
	require.Len(t, cell, 1)
	assert.Equal(t, int64(1), cell[0].Mismatch)
}
