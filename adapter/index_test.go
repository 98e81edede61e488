package adapter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReverseComplement(t *testing.T) {
	assert.Equal(t, "ACGT", reverseComplement("ACGT"))
	assert.Equal(t, "TTTT", reverseComplement("AAAA"))
	assert.Equal(t, "N", reverseComplement("N"))
}

func TestNewAdapterPrecomputesSeeds(t *testing.T) {
	a := NewAdapter("A1", "AGATCGGAAGAGCACACGTCTGAACTCCAGTCA", 0)
	assert.Equal(t, Seed(a.Fwd), a.FwdSeed)
	assert.Equal(t, Seed(a.Rev), a.RevSeed)
	assert.Equal(t, reverseComplement(a.Fwd), a.Rev)
}

func TestLoadFastaParsesNameSequencePairs(t *testing.T) {
	data := ">A1\nAGATCGGAAGAGCACACGTCTGAACTCCAGTCA\n>A2\nACGTACGTACGTACGTACGTACGTACGTACGTAC\n"
	idx, err := LoadFasta(strings.NewReader(data), DefaultMinScore)
	require.NoError(t, err)

	// 2 base adapters plus their fragments.
	names := map[string]bool{}
	for _, f := range idx.Fragments {
		names[f.Name] = true
	}
	assert.True(t, names["A1"])
	assert.True(t, names["A2"])
	assert.True(t, len(idx.Fragments) > 2)
}

func TestLoadFastaRejectsBlankLine(t *testing.T) {
	_, err := LoadFasta(strings.NewReader(">A1\nACGT\n\n>A2\nACGT\n"), DefaultMinScore)
	require.Error(t, err)
}

func TestLoadFastaRejectsSequenceBeforeName(t *testing.T) {
	_, err := LoadFasta(strings.NewReader("ACGT\n>A1\nACGT\n"), DefaultMinScore)
	require.Error(t, err)
}

func TestLoadFastaRejectsConsecutiveNames(t *testing.T) {
	_, err := LoadFasta(strings.NewReader(">A1\n>A2\nACGT\n"), DefaultMinScore)
	require.Error(t, err)
}

func TestNewIndexFragmentsEverySuffix(t *testing.T) {
	fwd := "AGATCGGAAGAGCACACGTCTGAACTCCAGTCA" // length 33
	idx := NewIndex([]Adapter{NewAdapter("A1", fwd, 0)}, 16)
	// offsets 1..(33-16-1) = 1..16 inclusive plus the original => 17 fragments
	assert.Equal(t, 17, len(idx.Fragments))
}

func TestExactMatchesFindsBySeed(t *testing.T) {
	fwd := "AGATCGGAAGAGCACACGTCTGAACTCCAGTCA"
	idx := NewIndex([]Adapter{NewAdapter("A1", fwd, 0)}, 16)
	matches := idx.ExactMatches(Seed(fwd))
	require.NotEmpty(t, matches)
	assert.Equal(t, "A1", idx.Fragments[matches[0]].Name)
}

func TestCandidatesNearToleratesSmallDistance(t *testing.T) {
	fwd := "AGATCGGAAGAGCACACGTCTGAACTCCAGTCA"
	idx := NewIndex([]Adapter{NewAdapter("A1", fwd, 0)}, 16)
	near := Seed("CGATCGGAAGAGCACACGTCTGAACTCCAGTCA") // one base off
	cands := idx.CandidatesNear(near)
	assert.NotEmpty(t, cands)
}
