// Package rgheader implements the Header Mutator (spec.md §4.3): adding
// one read group per barcode entry and appending processing provenance.
// Built directly on sam.Header / sam.ReadGroup / sam.Program the way the
// teacher derives its own provenance and read-group records.
package rgheader

import (
	"fmt"
	"time"

	"github.com/biogo/hts/sam"

	"github.com/wtsi-npg/bambi-go/bamerr"
)

// BarcodeInfo is the subset of a barcode.Entry the header mutator needs.
// Declared locally (rather than importing package barcode) to avoid a
// dependency cycle, since barcode.Entry itself never needs header types.
type BarcodeInfo struct {
	Name        string
	Library     string
	Sample      string
	Description string
}

// Provenance describes the single PG line appended by every component
// (spec.md §4.3).
type Provenance struct {
	ID          string
	Program     string
	Version     string
	CommandLine string
	PrevID      string // chains to an upstream PG record, if any
}

// AddProvenance appends one processing-provenance line to h.
func AddProvenance(h *sam.Header, p Provenance) error {
	prog := sam.NewProgram(p.ID, p.Program, p.CommandLine, p.PrevID, p.Version)
	if err := h.AddProgram(prog); err != nil {
		return bamerr.New("rgheader", bamerr.FormatError, err)
	}
	return nil
}

// RewriteForBarcodes implements spec.md §4.3's read-group rewrite: every
// existing read group is removed and replaced by one copy per barcode
// entry, ID "<original ID>#<entry name>" (including the synthetic entry
// 0). Library/Sample/Description come from the barcode entry when
// non-empty; every other field (center, platform, flow order, key
// sequence, run date, insert size) is left at its zero value rather than
// carried over from the original group, per spec.md §4.3's "one copy per
// barcode entry" wording.
//
// The rewrite is done by building a fresh Header rather than mutating h:
// sam.Header's ReadGroup/Program/Reference types are single-owner (an
// Add* call panics-by-error on an already-owned value), and its
// RemoveReadGroup validates the removed group's index against the
// Header's reference count rather than its read-group count, so it
// rejects a perfectly valid removal whenever a BAM has fewer references
// than read groups. Cloning every reference and program onto a new
// Header and adding only the rewritten read groups sidesteps both
// issues and still yields a header with the originals gone.
func RewriteForBarcodes(h *sam.Header, entries []BarcodeInfo) (*sam.Header, error) {
	refs := make([]*sam.Reference, len(h.Refs()))
	for i, r := range h.Refs() {
		refs[i] = r.Clone()
	}
	out, err := sam.NewHeader(nil, refs)
	if err != nil {
		return nil, bamerr.New("rgheader", bamerr.FormatError, err)
	}
	out.Version = h.Version
	out.SortOrder = h.SortOrder
	out.GroupOrder = h.GroupOrder
	out.Comments = append([]string(nil), h.Comments...)

	for _, p := range h.Progs() {
		if err := out.AddProgram(p.Clone()); err != nil {
			return nil, bamerr.New("rgheader", bamerr.FormatError, err)
		}
	}

	for _, orig := range h.RGs() {
		for _, e := range entries {
			rg, err := sam.NewReadGroup(
				orig.Name()+"#"+e.Name, // name (ID)
				"",                     // center
				e.Description,          // description
				e.Library,              // library
				"",                     // program
				"",                     // platform
				"#"+e.Name,             // platform unit
				e.Sample,               // sample
				"",                     // flow order
				"",                     // key sequence
				time.Time{},            // date
				0,                      // insert size
			)
			if err != nil {
				return nil, bamerr.New("rgheader", bamerr.FormatError, err)
			}
			if err := out.AddReadGroup(rg); err != nil {
				return nil, bamerr.New("rgheader", bamerr.FormatError,
					fmt.Sprintf("duplicate read-group ID %q after barcode rewrite", rg.Name()))
			}
		}
	}
	return out, nil
}

// NewRGID builds the "<prev-RG>#<name>" ID the Decoder Core uses to
// rewrite a record's RG tag (spec.md §4.5). When name is "0" the result
// is still "<prev>#0", per spec.md's explicit statement that entry 0 is
// not special-cased for this string.
func NewRGID(prevRG, name string) string {
	return prevRG + "#" + name
}
