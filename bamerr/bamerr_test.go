package bamerr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFormatsComponentAndKind(t *testing.T) {
	err := New("barcode", FormatError, "bad line 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "barcode")
	assert.Contains(t, err.Error(), "FormatError")
	assert.Contains(t, err.Error(), "bad line 3")
}

func TestIsMatchesWrappedKind(t *testing.T) {
	err := New("spatial", FilterMagicMismatch, "bad magic")
	assert.True(t, Is(err, FilterMagicMismatch))
	assert.False(t, Is(err, IoError))
}

func TestIsWalksUnwrapChain(t *testing.T) {
	inner := New("adapter", InvalidCigar, "bad op")
	outer := fmt.Errorf("scanning record: %w", inner)
	assert.True(t, Is(outer, InvalidCigar))
}

func TestKindStringUnknownIsOther(t *testing.T) {
	assert.Equal(t, "Other", Kind(999).String())
}
