package barcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBarcodeFile() string {
	return "seq\tname\tlibrary\tsample\tdescription\n" +
		"ACGTACGT\tbc1\tlib1\ts1\tdesc1\n" +
		"TTTTAAAA\tbc2\tlib2\ts2\tdesc2\n"
}

func TestLoadBuildsSyntheticZeroEntry(t *testing.T) {
	tbl, err := Load(strings.NewReader(sampleBarcodeFile()), LoadOpts{})
	require.NoError(t, err)
	require.Len(t, tbl.Entries, 3)
	assert.Equal(t, "0", tbl.Entries[0].Name)
	assert.Equal(t, "NNNNNNNN", tbl.Entries[0].Idx1)
}

func TestLoadRejectsEmptyFile(t *testing.T) {
	_, err := Load(strings.NewReader(""), LoadOpts{})
	require.Error(t, err)
}

func TestLoadRejectsInconsistentLengths(t *testing.T) {
	data := "seq\tname\n" + "ACGT\tbc1\n" + "ACGTAC\tbc2\n"
	_, err := Load(strings.NewReader(data), LoadOpts{})
	require.Error(t, err)
}

func TestLoadRejectsDuplicateName(t *testing.T) {
	data := "seq\tname\n" + "ACGT\tbc1\n" + "TTTT\tbc1\n"
	_, err := Load(strings.NewReader(data), LoadOpts{})
	require.Error(t, err)
}

func TestLoadRejectsEmptyName(t *testing.T) {
	data := "seq\tname\n" + "ACGT\t\n"
	_, err := Load(strings.NewReader(data), LoadOpts{})
	require.Error(t, err)
}

func TestLookupFindsExactMatchByHash(t *testing.T) {
	tbl, err := Load(strings.NewReader(sampleBarcodeFile()), LoadOpts{})
	require.NoError(t, err)

	idx, ok := tbl.Lookup("ACGTACGT")
	require.True(t, ok)
	assert.Equal(t, "bc1", tbl.Entries[idx].Name)

	_, ok = tbl.Lookup("GGGGGGGG")
	assert.False(t, ok)
}

func TestLookupNeverMatchesSyntheticEntry(t *testing.T) {
	tbl, err := Load(strings.NewReader(sampleBarcodeFile()), LoadOpts{})
	require.NoError(t, err)
	_, ok := tbl.Lookup(tbl.Entries[0].Seq)
	assert.False(t, ok)
}

func TestSplitDualIndexFindsSeparatorRun(t *testing.T) {
	idx1, idx2, err := splitDualIndex("ACGT-TTTT", 0)
	require.NoError(t, err)
	assert.Equal(t, "ACGT", idx1)
	assert.Equal(t, "TTTT", idx2)
}

func TestSplitDualIndexNoSeparatorReturnsWhole(t *testing.T) {
	idx1, idx2, err := splitDualIndex("ACGTACGT", 0)
	require.NoError(t, err)
	assert.Equal(t, "ACGTACGT", idx1)
	assert.Equal(t, "", idx2)
}

func TestSplitDualIndexExplicitPosition(t *testing.T) {
	idx1, idx2, err := splitDualIndex("ACGTTTTT", 4)
	require.NoError(t, err)
	assert.Equal(t, "ACGT", idx1)
	assert.Equal(t, "TTTT", idx2)
}

func TestSplitDualIndexExplicitPositionOutOfRange(t *testing.T) {
	_, _, err := splitDualIndex("ACGT", 10)
	require.Error(t, err)
}

func TestDualIndexedReflectsIdx2Presence(t *testing.T) {
	data := "seq\tname\n" + "ACGT-TTTT\tbc1\n"
	tbl, err := Load(strings.NewReader(data), LoadOpts{})
	require.NoError(t, err)
	assert.True(t, tbl.DualIndexed())
	assert.True(t, tbl.Entries[1].DualIndexed())
}

func TestCountersAddSumsFields(t *testing.T) {
	a := Counters{Reads: 10, Perfect: 5}
	b := Counters{Reads: 3, Perfect: 1, OneMismatch: 2}
	a.Add(b)
	assert.Equal(t, int64(13), a.Reads)
	assert.Equal(t, int64(6), a.Perfect)
	assert.Equal(t, int64(2), a.OneMismatch)
}
