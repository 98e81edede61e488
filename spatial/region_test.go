package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCellNExcludesMismatch(t *testing.T) {
	c := Cell{Align: 10, Mismatch: 3, Insertion: 1, Deletion: 1, SoftClip: 2, KnownSNP: 1}
	assert.Equal(t, int64(15), c.N())
}

func TestCellMeanQualityZeroWhenEmpty(t *testing.T) {
	var c Cell
	assert.Equal(t, 0.0, c.MeanQuality())
}

func TestCellMeanQualityAverages(t *testing.T) {
	c := Cell{Align: 4, QualitySum: 120}
	assert.Equal(t, 30.0, c.MeanQuality())
}

func TestIsAlignedOnlyWhenNoDefectBits(t *testing.T) {
	assert.True(t, State(0).IsAligned())
	assert.True(t, Coverage.IsAligned())
	assert.False(t, Mismatch.IsAligned())
	assert.False(t, (Insertion | Coverage).IsAligned())
}
