package rgheader

import (
	"testing"
	"time"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHeaderWithRG(t *testing.T, id string) *sam.Header {
	t.Helper()
	h, err := sam.NewHeader(nil, nil)
	require.NoError(t, err)
	rg, err := sam.NewReadGroup(id, "", "", "", "", "", "", "", "", "", time.Time{}, 0)
	require.NoError(t, err)
	require.NoError(t, h.AddReadGroup(rg))
	return h
}

func TestAddProvenanceAppendsProgramLine(t *testing.T) {
	h, err := sam.NewHeader(nil, nil)
	require.NoError(t, err)

	err = AddProvenance(h, Provenance{ID: "bambi1", Program: "bambi", Version: "1.0", CommandLine: "bambi decode"})
	require.NoError(t, err)
	require.Len(t, h.Progs(), 1)
	assert.Equal(t, "bambi1", h.Progs()[0].Name())
}

func TestRewriteForBarcodesAddsOneGroupPerEntry(t *testing.T) {
	h := newHeaderWithRG(t, "rg1")
	entries := []BarcodeInfo{
		{Name: "0", Library: "lib0", Sample: "s0"},
		{Name: "ACGT", Library: "lib1", Sample: "s1"},
	}

	out, err := RewriteForBarcodes(h, entries)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, rg := range out.RGs() {
		names[rg.Name()] = true
	}
	assert.False(t, names["rg1"]) // original removed, not just superseded
	assert.True(t, names["rg1#0"])
	assert.True(t, names["rg1#ACGT"])
	assert.Len(t, out.RGs(), 2)
}

func TestRewriteForBarcodesRejectsDuplicateID(t *testing.T) {
	h := newHeaderWithRG(t, "rg1")
	// Two entries sharing a name against the same original RG collide on
	// the same derived ID "rg1#0", which AddReadGroup must reject.
	entries := []BarcodeInfo{{Name: "0"}, {Name: "0"}}

	_, err := RewriteForBarcodes(h, entries)
	require.Error(t, err)
}

func TestNewRGIDJoinsWithHash(t *testing.T) {
	assert.Equal(t, "rg1#0", NewRGID("rg1", "0"))
	assert.Equal(t, "rg1#ACGT", NewRGID("rg1", "ACGT"))
}
