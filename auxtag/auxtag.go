// Package auxtag implements the typed auxiliary-tag codec (spec.md §4.2)
// shared by every component that reads or mutates a record's aux fields.
// It is a thin layer over github.com/biogo/hts/sam.Aux — the teacher's
// encoding/bam package leans on the same sam.Aux type rather than
// re-encoding BAM aux bytes itself.
package auxtag

import (
	"github.com/biogo/hts/sam"

	"github.com/wtsi-npg/bambi-go/bamerr"
	"github.com/wtsi-npg/bambi-go/record"
)

// Tag is a two-character auxiliary tag name, e.g. "RG", "BC", "QT".
type Tag = sam.Tag

// ParseTag converts a two-byte tag name into a sam.Tag.
func ParseTag(name string) Tag {
	var t Tag
	copy(t[:], name)
	return t
}

// GetAux returns the aux field for tag, or (nil, false) if absent.
func GetAux(r *record.Record, tag Tag) (sam.Aux, bool) {
	for _, a := range r.AuxFields {
		if a.Tag() == tag {
			return a, true
		}
	}
	return nil, false
}

// GetString returns the string value of a Z-typed tag.
func GetString(r *record.Record, tag Tag) (string, bool) {
	a, ok := GetAux(r, tag)
	if !ok || a.Type() != 'Z' {
		return "", false
	}
	v, ok := a.Value().(string)
	return v, ok
}

// UpdateStr replaces the value of an existing Z-typed tag in place. It
// fails with bamerr.TagTypeMismatch when the tag exists with another
// type, per spec.md §4.2.
func UpdateStr(r *record.Record, tag Tag, value string) error {
	for i, a := range r.AuxFields {
		if a.Tag() != tag {
			continue
		}
		if a.Type() != 'Z' {
			return bamerr.New("auxtag", bamerr.TagTypeMismatch,
				"tag", tag.String(), "existing type", string(a.Type()))
		}
		na, err := sam.NewAux(tag, value)
		if err != nil {
			return bamerr.New("auxtag", bamerr.FormatError, err)
		}
		r.AuxFields[i] = na
		return nil
	}
	return AppendTyped(r, tag, value)
}

// AppendTyped adds a new aux field of any type sam.NewAux accepts
// (string, signed/unsigned integer widths, float32/float64, byte, []byte).
func AppendTyped(r *record.Record, tag Tag, value interface{}) error {
	a, err := sam.NewAux(tag, value)
	if err != nil {
		return bamerr.New("auxtag", bamerr.FormatError, err)
	}
	appendAux(r, a)
	return nil
}

// CopyAux appends a raw sam.Aux (as returned by GetAux on another record)
// onto r, used when a mate merge needs to carry a tag across verbatim
// without re-encoding its typed value.
func CopyAux(r *record.Record, a sam.Aux) {
	appendAux(r, a)
}

// appendAux appends a onto r.AuxFields, applying spec.md §4.2's
// reallocation invariant: when the existing backing array has no spare
// capacity, the mutation must extend the buffer to a capacity rounded up
// to the next power of two, not whatever growth factor Go's built-in
// append happens to use.
func appendAux(r *record.Record, a sam.Aux) {
	fields := r.AuxFields
	if len(fields) == cap(fields) {
		grown := make([]sam.Aux, len(fields), GrowCapacity(len(fields)+1))
		copy(grown, fields)
		fields = grown
	}
	r.AuxFields = append(fields, a)
}

// DeleteTag removes tag if present; it is a no-op otherwise.
func DeleteTag(r *record.Record, tag Tag) {
	out := r.AuxFields[:0]
	for _, a := range r.AuxFields {
		if a.Tag() != tag {
			out = append(out, a)
		}
	}
	r.AuxFields = out
}

// Size returns the in-record byte length of a recognized aux value type,
// the sizing helper named in spec.md §4.2. It mirrors the per-type byte
// widths the teacher's encoding/bam marshaler uses to precompute its
// record buffer length.
func Size(a sam.Aux) int {
	switch a.Type() {
	case 'A', 'c', 'C':
		return 1
	case 's', 'S':
		return 2
	case 'i', 'I', 'f':
		return 4
	case 'Z', 'H':
		return len(a) - 2 // minus the 2-byte tag; NUL terminator excluded
	case 'B':
		return len(a) - 2
	default:
		return 0
	}
}

// GrowCapacity rounds n up to the next power of two, the reallocation
// policy spec.md §4.2 requires whenever a mutation extends the record
// buffer.
func GrowCapacity(n int) int {
	if n <= 0 {
		return 0
	}
	c := 1
	for c < n {
		c <<= 1
	}
	return c
}
