package spatial

import (
	"strconv"
	"strings"

	"github.com/wtsi-npg/bambi-go/bamerr"
)

// Coordinates holds the (lane, tile, x, y) parsed from an Illumina query
// name, spec.md §4.6's "Derive (lane, tile, x, y, read)".
type Coordinates struct {
	Lane, Tile, X, Y int
}

// ParseQueryName parses the standard Illumina colon-delimited query name
// "instrument:run:flowcell:lane:tile:x:y[:UMI]" and returns its trailing
// lane/tile/x/y fields.
func ParseQueryName(name string) (Coordinates, error) {
	parts := strings.Split(name, ":")
	if len(parts) < 7 {
		return Coordinates{}, bamerr.New("spatial", bamerr.InvalidQueryName,
			"too few colon-delimited fields in", name)
	}
	// x/y may carry a trailing UMI/extra field appended after y; lane,
	// tile, x, y are always the 4th-through-7th colon-delimited fields.
	fields := parts[3:7]
	vals := make([]int, 4)
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return Coordinates{}, bamerr.New("spatial", bamerr.InvalidQueryName, err, name)
		}
		vals[i] = n
	}
	return Coordinates{Lane: vals[0], Tile: vals[1], X: vals[2], Y: vals[3]}, nil
}
