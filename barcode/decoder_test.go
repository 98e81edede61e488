package barcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wtsi-npg/bambi-go/auxtag"
	"github.com/wtsi-npg/bambi-go/record"
)

func testTable(t *testing.T) *Table {
	t.Helper()
	data := "seq\tname\tlibrary\tsample\tdescription\n" +
		"ACGTACGT\tbc1\tlib1\ts1\tdesc1\n" +
		"TTTTAAAA\tbc2\tlib2\ts2\tdesc2\n"
	tbl, err := Load(strings.NewReader(data), LoadOpts{})
	require.NoError(t, err)
	return tbl
}

func recWithBC(bc, qt string) *record.Record {
	r := &record.Record{Name: "r1"}
	_ = auxtag.AppendTyped(r, auxtag.ParseTag("BC"), bc)
	if qt != "" {
		_ = auxtag.AppendTyped(r, auxtag.ParseTag("QT"), qt)
	}
	return r
}

func TestDecodeExactMatchUpdatesCountersAndRGTag(t *testing.T) {
	d := NewDecoder(testTable(t), DefaultOpts())
	r := recWithBC("ACGTACGT", "")
	tmpl := record.Template{r}

	idx, err := d.Decode(tmpl)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Equal(t, int64(1), d.Table.Entries[1].Counters.Perfect)

	rg, ok := auxtag.GetString(r, auxtag.ParseTag("RG"))
	require.True(t, ok)
	assert.Equal(t, "#bc1", rg)
}

func TestDecodeOneMismatchWithinTolerance(t *testing.T) {
	d := NewDecoder(testTable(t), DefaultOpts())
	r := recWithBC("ACGTACGA", "") // last base differs from bc1
	tmpl := record.Template{r}

	idx, err := d.Decode(tmpl)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Equal(t, int64(1), d.Table.Entries[1].Counters.OneMismatch)
}

func TestDecodeTooManyNoCallsAssignsZeroBin(t *testing.T) {
	d := NewDecoder(testTable(t), DefaultOpts())
	r := recWithBC("NNNNACGT", "") // 4 no-calls > MaxNoCalls(2)
	tmpl := record.Template{r}

	idx, err := d.Decode(tmpl)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, int64(1), d.Table.Entries[0].Counters.Reads)
}

func TestDecodeRejectsDisagreeingBarcodeTags(t *testing.T) {
	d := NewDecoder(testTable(t), DefaultOpts())
	r1 := recWithBC("ACGTACGT", "")
	r2 := recWithBC("TTTTAAAA", "")
	tmpl := record.Template{r1, r2}

	_, err := d.Decode(tmpl)
	require.Error(t, err)
}

func TestDecodeConvertsLowQualityBasesToN(t *testing.T) {
	opts := DefaultOpts()
	opts.ConvertLowQuality = true
	opts.MaxLowQualityToConvert = 5
	d := NewDecoder(testTable(t), opts)

	// Low quality (phred 0 => '!') at position 7; converted to 'N' still
	// within MaxNoCalls, and the remaining 7 bases match bc1 exactly; the N
	// position is not counted, so the match has 0 mismatches.
	qual := strings.Repeat("I", 7) + "!" // 'I' = phred 40
	r := recWithBC("ACGTACGT", qual)
	tmpl := record.Template{r}

	idx, err := d.Decode(tmpl)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}

func TestDecodeChangeReadNameAppendsSuffix(t *testing.T) {
	opts := DefaultOpts()
	opts.ChangeReadName = true
	d := NewDecoder(testTable(t), opts)
	r := recWithBC("ACGTACGT", "")
	tmpl := record.Template{r}

	_, err := d.Decode(tmpl)
	require.NoError(t, err)
	assert.Equal(t, "r1#bc1", r.Name)
}

func TestCloneCopiesLookupDataButOwnsIndependentCounters(t *testing.T) {
	d := NewDecoder(testTable(t), DefaultOpts())
	d.checkTagHopping("ACGTACGT", "AAAA") // seed some tag-hop state if matched

	clone := d.Clone()
	assert.NotSame(t, d.Table, clone.Table)
	assert.NotSame(t, d, clone)
	assert.Equal(t, d.Table.Entries[1].Seq, clone.Table.Entries[1].Seq)
	assert.Empty(t, clone.TagHops())

	clone.Table.Entries[1].Counters.Reads = 5
	assert.Zero(t, d.Table.Entries[1].Counters.Reads)
}

func TestMergeSumsCountersAndUnionsTagHops(t *testing.T) {
	base := NewDecoder(testTable(t), DefaultOpts())
	worker := base.Clone()
	worker.Table.Entries[1].Counters.Reads = 5
	worker.tagHops["X-Y"] = &TagHopEntry{Seq: "X-Y", Counters: Counters{Reads: 2}}

	base.Merge(worker)
	assert.Equal(t, int64(5), base.Table.Entries[1].Counters.Reads)
	assert.Equal(t, int64(2), base.tagHops["X-Y"].Counters.Reads)
}

func TestCountMismatchesIgnoresNoCallPositions(t *testing.T) {
	assert.Equal(t, 0, countMismatches("ACGT", "ACNT", 10))
	assert.Equal(t, 1, countMismatches("ACGT", "ACGA", 10))
}

func TestConvertLowQualityOnlyAffectsAlphaBases(t *testing.T) {
	out := convertLowQuality("AC.T", "!!!!", 10)
	assert.Equal(t, "NN.N", out)
}

func TestNoCallsCountsNAndDot(t *testing.T) {
	assert.Equal(t, 3, noCalls("N.nACGT"))
}

func TestSortedTagHopsOrdersByKeyDeterministically(t *testing.T) {
	d := NewDecoder(testTable(t), DefaultOpts())
	d.tagHops["zz-yy"] = &TagHopEntry{Seq: "zz-yy"}
	d.tagHops["aa-bb"] = &TagHopEntry{Seq: "aa-bb"}
	d.tagHops["mm-nn"] = &TagHopEntry{Seq: "mm-nn"}

	sorted := d.SortedTagHops()
	require.Len(t, sorted, 3)
	assert.Equal(t, []string{"aa-bb", "mm-nn", "zz-yy"},
		[]string{sorted[0].Seq, sorted[1].Seq, sorted[2].Seq})
}

func TestDecoderAccumulatorRoundTripsThroughWorkerpool(t *testing.T) {
	d := NewDecoder(testTable(t), DefaultOpts())
	acc := d.AsAccumulator()
	cloned := acc.Clone()

	r := recWithBC("ACGTACGT", "")
	tmpl := record.Template{r}
	out, err := DecodeProcess(cloned, tmpl)
	require.NoError(t, err)
	assert.Same(t, tmpl[0], out[0])

	acc.Merge(cloned)
	assert.Equal(t, int64(1), d.Table.Entries[1].Counters.Perfect)
}
