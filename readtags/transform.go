// Package readtags implements the Read-to-Tags Transformer: excising
// contiguous spans of a read's sequence/quality into auxiliary tags, then
// merging a pair's mate when the transform leaves one read empty (spec.md
// §4.10).
package readtags

import (
	"github.com/biogo/hts/sam"

	"github.com/wtsi-npg/bambi-go/auxtag"
	"github.com/wtsi-npg/bambi-go/bamerr"
	"github.com/wtsi-npg/bambi-go/record"
)

const sentinel = 0x01

// Span is one 1-based half-open excision, naming which record of the
// template it applies to (spec.md §4.10 step 1: "0 for unpaired, 1 for
// read1, 2 for read2").
type Span struct {
	RecordIndex int
	From, To    int // 1-based, half-open: bases [From, To)
}

// CollisionPolicy controls what happens when a tag name is written twice
// (spec.md §4.10 step 4).
type CollisionPolicy int

const (
	PolicyReject CollisionPolicy = iota
	PolicyOverwrite
	PolicyConcatenate
)

// Opts configures one Read-to-Tags run. TagForSpan maps a span to the
// barcode-tag and quality-tag names its extracted bases accumulate into
// (either may be "" to skip that accumulation for a given span).
type Opts struct {
	Spans        []Span
	TagForSpan   func(span Span) (barcodeTag, qualityTag string)
	Collision    CollisionPolicy
	MateKeepTags []string // aux tags copied from an emptied mate during merge
}

// Transform applies Opts to every record of tmpl matching a span's
// RecordIndex, excising bases into tags, compacting the record, and
// merging mates if one becomes empty. It returns the (possibly shorter)
// output template.
func Transform(tmpl record.Template, opts Opts) (record.Template, error) {
	accum := map[string]*accumulation{}
	working := map[*record.Record][]byte{} // per-record working sequence, sentinel-marked in place
	workingQual := map[*record.Record][]byte{}

	seqOf := func(r *record.Record) []byte {
		if s, ok := working[r]; ok {
			return s
		}
		s := r.Seq.Expand()
		working[r] = s
		q := append([]byte(nil), r.Qual...)
		workingQual[r] = q
		return s
	}

	for _, sp := range opts.Spans {
		r := recordForIndex(tmpl, sp.RecordIndex)
		if r == nil {
			continue
		}
		seq := seqOf(r)
		qual := workingQual[r]
		barcodeTag, qualityTag := "", ""
		if opts.TagForSpan != nil {
			barcodeTag, qualityTag = opts.TagForSpan(sp)
		}
		from, to := sp.From-1, sp.To-1 // convert to 0-based half-open
		if from < 0 || to > len(seq) || from > to {
			return nil, bamerr.New("readtags", bamerr.FormatError, "span out of range")
		}
		if barcodeTag != "" {
			a := accumFor(accum, r, barcodeTag)
			a.seq += string(seq[from:to])
		}
		if qualityTag != "" {
			a := accumFor(accum, r, qualityTag)
			a.qual += string(qual[from:to])
		}
		for i := from; i < to; i++ {
			seq[i] = sentinel
			if i < len(qual) {
				qual[i] = sentinel
			}
		}
	}

	for r, seq := range working {
		compact(r, seq, workingQual[r])
	}

	for _, a := range accum {
		if err := applyTag(a.r, a.tag, a.seq, a.qual, opts.Collision); err != nil {
			return nil, err
		}
	}

	return mergeEmptyMates(tmpl, opts)
}

func recordForIndex(tmpl record.Template, idx int) *record.Record {
	for _, r := range tmpl {
		if record.ReadNum(r) == idx {
			return r
		}
	}
	return nil
}

type accumulation struct {
	r        *record.Record
	tag      string
	seq, qual string
}

func accumFor(accum map[string]*accumulation, r *record.Record, tag string) *accumulation {
	key := accumKeyString(r, tag)
	a, ok := accum[key]
	if !ok {
		a = &accumulation{r: r, tag: tag}
		accum[key] = a
	}
	return a
}

func accumKeyString(r *record.Record, tag string) string {
	return r.Name + "\x00" + tag
}

func applyTag(r *record.Record, tagName, seq, qual string, policy CollisionPolicy) error {
	if seq != "" {
		if err := writeAccumulatedTag(r, tagName, seq, policy); err != nil {
			return err
		}
	}
	if qual != "" {
		if err := writeAccumulatedTag(r, tagName, qual, policy); err != nil {
			return err
		}
	}
	return nil
}

func writeAccumulatedTag(r *record.Record, tagName, value string, policy CollisionPolicy) error {
	tag := auxtag.ParseTag(tagName)
	existing, ok := auxtag.GetString(r, tag)
	if !ok {
		return auxtag.AppendTyped(r, tag, value)
	}
	switch policy {
	case PolicyReject:
		return bamerr.New("readtags", bamerr.DuplicateTag, tagName)
	case PolicyOverwrite:
		return auxtag.UpdateStr(r, tag, value)
	case PolicyConcatenate:
		return auxtag.UpdateStr(r, tag, existing+value)
	default:
		return bamerr.New("readtags", bamerr.DuplicateTag, tagName)
	}
}

// compact removes every sentinel-marked base from seq/qual and writes the
// shortened result back onto r (spec.md §4.10 step 3: "mark... with
// sentinel 0x01, then compact").
func compact(r *record.Record, seq, qual []byte) {
	out := seq[:0]
	outQ := qual[:0]
	for i, b := range seq {
		if b == sentinel {
			continue
		}
		out = append(out, b)
		if i < len(qual) {
			outQ = append(outQ, qual[i])
		}
	}
	r.Seq = sam.NewSeq(out)
	r.Qual = outQ
}

// mergeEmptyMates implements spec.md §4.10 step 5: when one mate of a
// pair has become empty, fold it into its non-empty mate and emit a
// single unpaired record. Conceptually grounded on the teacher's
// mate-pairing machinery in encoding/bampair (there: cross-shard disk
// lookup of a distant mate; here: an in-memory merge within one already-
// materialized template, since Read-to-Tags never needs to look outside
// its own template).
func mergeEmptyMates(tmpl record.Template, opts Opts) (record.Template, error) {
	var r1, r2 *record.Record
	for _, r := range tmpl {
		switch record.ReadNum(r) {
		case 1:
			r1 = r
		case 2:
			r2 = r
		}
	}
	if r1 == nil || r2 == nil {
		return tmpl, nil
	}
	var empty, full *record.Record
	switch {
	case r1.Seq.Length == 0 && r2.Seq.Length != 0:
		empty, full = r1, r2
	case r2.Seq.Length == 0 && r1.Seq.Length != 0:
		empty, full = r2, r1
	default:
		return tmpl, nil
	}

	for _, keep := range opts.MateKeepTags {
		tag := auxtag.ParseTag(keep)
		v, ok := auxtag.GetAux(empty, tag)
		if !ok {
			continue
		}
		if _, exists := auxtag.GetAux(full, tag); exists {
			switch opts.Collision {
			case PolicyReject:
				return nil, bamerr.New("readtags", bamerr.DuplicateTag, keep)
			case PolicyOverwrite:
				auxtag.DeleteTag(full, tag)
				auxtag.CopyAux(full, v)
			case PolicyConcatenate:
				existing, _ := auxtag.GetString(full, tag)
				if err := auxtag.UpdateStr(full, tag, existing+aux2Str(v)); err != nil {
					return nil, err
				}
			}
			continue
		}
		auxtag.CopyAux(full, v)
	}

	full.Flags &^= sam.Paired | sam.Read1 | sam.Read2

	out := record.Template{full}
	for _, r := range tmpl {
		if r != r1 && r != r2 {
			out = append(out, r)
		}
	}
	return out, nil
}

func aux2Str(a sam.Aux) string {
	if s, ok := a.Value().(string); ok {
		return s
	}
	return ""
}
