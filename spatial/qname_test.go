package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wtsi-npg/bambi-go/bamerr"
)

func TestParseQueryNameExtractsLaneTileXY(t *testing.T) {
	c, err := ParseQueryName("HISEQ:1:FC:3:1101:12345:6789")
	require.NoError(t, err)
	assert.Equal(t, Coordinates{Lane: 3, Tile: 1101, X: 12345, Y: 6789}, c)
}

func TestParseQueryNameToleratesTrailingUMI(t *testing.T) {
	c, err := ParseQueryName("HISEQ:1:FC:3:1101:12345:6789:ACGTACGT")
	require.NoError(t, err)
	assert.Equal(t, 3, c.Lane)
	assert.Equal(t, 1101, c.Tile)
	assert.Equal(t, 12345, c.X)
	assert.Equal(t, 6789, c.Y)
}

func TestParseQueryNameRejectsTooFewFields(t *testing.T) {
	_, err := ParseQueryName("a:b:c")
	require.Error(t, err)
	assert.True(t, bamerr.Is(err, bamerr.InvalidQueryName))
}

func TestParseQueryNameRejectsNonNumericField(t *testing.T) {
	_, err := ParseQueryName("HISEQ:1:FC:x:1101:12345:6789")
	require.Error(t, err)
	assert.True(t, bamerr.Is(err, bamerr.InvalidQueryName))
}
