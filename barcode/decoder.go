package barcode

import (
	"sort"

	"github.com/wtsi-npg/bambi-go/auxtag"
	"github.com/wtsi-npg/bambi-go/bamerr"
	"github.com/wtsi-npg/bambi-go/record"
	"github.com/wtsi-npg/bambi-go/workerpool"
)

// Opts configures the Decoder Core (spec.md §4.5, CLI flags in §6).
type Opts struct {
	BarcodeTagName          string // default "BC"
	QualityTagName          string // default "QT"
	MaxLowQualityToConvert  int
	ConvertLowQuality       bool
	MaxNoCalls              int
	MaxMismatches           int
	MinMismatchDelta        int
	ChangeReadName          bool
	IgnorePF                bool
}

// DefaultOpts returns the decoder's documented defaults.
func DefaultOpts() Opts {
	return Opts{
		BarcodeTagName:   "BC",
		QualityTagName:   "QT",
		MaxNoCalls:       2,
		MaxMismatches:    1,
		MinMismatchDelta: 1,
	}
}

// TagHopEntry is the Tag-Hop Entry of spec.md §3: same shape as Entry,
// keyed by the cross-product (best-idx1, sep, best-idx2).
type TagHopEntry = Entry

// Decoder holds the read-only Barcode Table and the mutable per-worker
// state (counters, tag-hop table) a single goroutine accumulates before
// merging into the shared totals, per spec.md §4.11's per-worker
// accumulator design.
type Decoder struct {
	Table   *Table
	Opts    Opts
	tagHops map[string]*TagHopEntry
}

// NewDecoder creates a Decoder bound to table; call Clone per worker.
func NewDecoder(table *Table, opts Opts) *Decoder {
	return &Decoder{Table: table, Opts: opts, tagHops: make(map[string]*TagHopEntry)}
}

// Clone returns a private copy for one worker: it shares the read-only
// lookup half of Table (the hash index and every entry's seq/name/library
// fields) but owns independent per-entry Counters and a fresh tag-hop map,
// matching spec.md §4.11 ("each worker owns a clone of read-only state...
// and its own mutable accumulators"). Without independent Counters two
// workers decoding concurrently would race on the same Entry, and Merge
// would double-count whatever they'd already mutated in place.
func (d *Decoder) Clone() *Decoder {
	return &Decoder{Table: d.Table.CloneForWorker(), Opts: d.Opts, tagHops: make(map[string]*TagHopEntry)}
}

// TagHops returns this decoder's tag-hop accumulator.
func (d *Decoder) TagHops() map[string]*TagHopEntry { return d.tagHops }

// SortedTagHops returns d's tag-hop entries ordered by key, the
// deterministic iteration a metrics-file writer needs since Go's map
// range order is randomized and Table.Entries' own order (file-load
// order, already stable) doesn't extend to tag-hops at all.
func (d *Decoder) SortedTagHops() []*TagHopEntry {
	keys := make([]string, 0, len(d.tagHops))
	for k := range d.tagHops {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*TagHopEntry, len(keys))
	for i, k := range keys {
		out[i] = d.tagHops[k]
	}
	return out
}

// Merge folds other's per-worker state into d: barcode counters are
// added field-wise and the tag-hop hash is unioned with per-entry
// field-wise addition on collision (spec.md §4.11's shutdown-merge rule).
func (d *Decoder) Merge(other *Decoder) {
	for i, e := range other.Table.Entries {
		d.Table.Entries[i].Counters.Add(e.Counters)
	}
	for key, e := range other.tagHops {
		if existing, ok := d.tagHops[key]; ok {
			existing.Counters.Add(e.Counters)
		} else {
			clone := *e
			d.tagHops[key] = &clone
		}
	}
}

// Decode implements spec.md §4.5 end to end for one template: it reads
// the barcode/quality tags, applies low-quality conversion, splits the
// observed sequence, finds the best match, updates counters, mutates
// every record's RG tag (and optionally the query name), and returns the
// chosen entry index.
func (d *Decoder) Decode(tmpl record.Template) (entryIdx int, err error) {
	obsSeq, obsQual, err := d.collectBarcodeTag(tmpl)
	if err != nil {
		return 0, err
	}
	if d.Opts.ConvertLowQuality && obsQual != "" {
		obsSeq = convertLowQuality(obsSeq, obsQual, d.Opts.MaxLowQualityToConvert)
	}

	obsIdx1, obsIdx2, _ := splitDualIndex(obsSeq, 0)
	obsIdx1 = truncate(obsIdx1, d.Table.Idx1Len)
	obsIdx2 = truncate(obsIdx2, d.Table.Idx2Len)
	obs := obsIdx1
	if d.Table.DualIndexed() {
		obs = obsIdx1 + string(d.Table.Sep) + obsIdx2
	}

	pf := anyQCFail(tmpl)

	if noCalls(obsSeq) > d.Opts.MaxNoCalls {
		entryIdx = 0
	} else {
		entryIdx = d.findBestMatch(obsIdx1, obsIdx2, obs)
		if entryIdx == 0 && d.Table.DualIndexed() {
			d.checkTagHopping(obsIdx1, obsIdx2)
		}
	}

	d.updateCounters(entryIdx, obsIdx1, obsIdx2, obs, pf)
	d.rewriteTags(tmpl, entryIdx)
	return entryIdx, nil
}

// collectBarcodeTag gathers the barcode-tag and quality-tag values from
// any record in the template, rejecting disagreement (spec.md §4.5 step 1).
func (d *Decoder) collectBarcodeTag(tmpl record.Template) (seq, qual string, err error) {
	btag := auxtag.ParseTag(d.Opts.BarcodeTagName)
	qtag := auxtag.ParseTag(d.Opts.QualityTagName)
	found := false
	for _, r := range tmpl {
		s, ok := auxtag.GetString(r, btag)
		if !ok {
			continue
		}
		if !found {
			seq = s
			found = true
		} else if seq != s {
			return "", "", bamerr.New("barcode", bamerr.BarcodeTagMismatch,
				"records in template disagree on", d.Opts.BarcodeTagName)
		}
		if q, ok := auxtag.GetString(r, qtag); ok {
			qual = q
		}
	}
	return seq, qual, nil
}

// convertLowQuality replaces each alphabetic base whose quality (Phred+33
// decoded) is <= maxLow with 'N' (spec.md §4.5 step 2).
func convertLowQuality(seq, qual string, maxLow int) string {
	if len(qual) != len(seq) {
		return seq
	}
	b := []byte(seq)
	for i := 0; i < len(b); i++ {
		q := int(qual[i]) - 33
		if q <= maxLow && isAlpha(b[i]) {
			b[i] = 'N'
		}
	}
	return string(b)
}

func isAlpha(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func truncate(s string, n int) string {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}

// noCalls counts 'N', 'n', '.' occurrences (spec.md §4.5 step 5).
func noCalls(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 'N', 'n', '.':
			n++
		}
	}
	return n
}

// countMismatches computes the Hamming distance between entry and obs,
// ignoring positions where obs has an 'N', early-exiting once the running
// count exceeds cap (spec.md §4.5 findBestMatch).
func countMismatches(entry, obs string, cap int) int {
	n := 0
	l := len(entry)
	if len(obs) < l {
		l = len(obs)
	}
	for i := 0; i < l; i++ {
		if obs[i] == 'N' || obs[i] == 'n' {
			continue
		}
		if entry[i] != obs[i] {
			n++
			if n > cap {
				return n
			}
		}
	}
	return n
}

// findBestMatch implements spec.md §4.5's findBestMatch: exact-match fast
// path when min_mismatch_delta <= 1, else a full scan tracking best and
// second-best mismatch counts.
func (d *Decoder) findBestMatch(obsIdx1, obsIdx2, obs string) int {
	if d.Opts.MinMismatchDelta <= 1 {
		if idx, ok := d.Table.Lookup(obs); ok {
			return idx
		}
	}

	bestIdx, bestMM := -1, d.Opts.MaxMismatches+1+d.Opts.MinMismatchDelta
	secondMM := bestMM
	for i := 1; i < len(d.Table.Entries); i++ {
		e := d.Table.Entries[i]
		mm := countMismatches(e.Seq, obs, secondMM)
		switch {
		case mm < bestMM:
			secondMM = bestMM
			bestMM = mm
			bestIdx = i
		case mm < secondMM:
			secondMM = mm
		}
	}
	if bestIdx < 0 {
		return 0
	}
	if bestMM <= d.Opts.MaxMismatches && secondMM-bestMM >= d.Opts.MinMismatchDelta {
		return bestIdx
	}
	return 0
}

// checkTagHopping implements spec.md §4.5's checkTagHopping: an exact
// match on idx1 in one entry and idx2 in a different entry is recorded as
// a tag-hop occurrence, for metrics only.
func (d *Decoder) checkTagHopping(obsIdx1, obsIdx2 string) {
	var matchIdx1, matchIdx2 *Entry
	for _, e := range d.Table.Entries[1:] {
		if e.Idx1 == obsIdx1 && matchIdx1 == nil {
			matchIdx1 = e
		}
		if e.Idx2 == obsIdx2 && matchIdx2 == nil {
			matchIdx2 = e
		}
	}
	if matchIdx1 == nil || matchIdx2 == nil || matchIdx1 == matchIdx2 {
		return
	}
	key := matchIdx1.Idx1 + string(d.Table.Sep) + matchIdx2.Idx2
	entry, ok := d.tagHops[key]
	if !ok {
		entry = &TagHopEntry{
			Seq:  key,
			Idx1: matchIdx1.Idx1,
			Idx2: matchIdx2.Idx2,
			Name: key,
		}
		d.tagHops[key] = entry
	}
	entry.Counters.Reads++
}

func anyQCFail(tmpl record.Template) bool {
	for _, r := range tmpl {
		if record.IsQCFail(r) {
			return true
		}
	}
	return false
}

// updateCounters implements spec.md §4.5's metric update.
func (d *Decoder) updateCounters(entryIdx int, obsIdx1, obsIdx2, obs string, pf bool) {
	e := d.Table.Entries[entryIdx]
	e.Counters.Reads++
	if !pf {
		e.Counters.PFReads++
	}
	mm := countMismatches(e.Seq, obs, d.Opts.MaxMismatches+1)
	switch mm {
	case 0:
		e.Counters.Perfect++
		if !pf {
			e.Counters.PFPerfect++
		}
	case 1:
		e.Counters.OneMismatch++
		if !pf {
			e.Counters.PFOneMismatch++
		}
	}
}

// rewriteTags implements spec.md §4.5's tag mutations: replace RG with
// "<prev-RG>#<name>" and, when enabled, append "#<name>" to the query
// name, on every record of the template.
func (d *Decoder) rewriteTags(tmpl record.Template, entryIdx int) {
	name := d.Table.Entries[entryIdx].Name
	rgTag := auxtag.ParseTag("RG")
	for _, r := range tmpl {
		if prev, ok := auxtag.GetString(r, rgTag); ok {
			_ = auxtag.UpdateStr(r, rgTag, prev+"#"+name)
		} else {
			_ = auxtag.UpdateStr(r, rgTag, "#"+name)
		}
		if d.Opts.ChangeReadName {
			r.Name = r.Name + "#" + name
		}
	}
}

// decoderAccumulator adapts *Decoder to workerpool.Accumulator: the
// Worker Pool's Clone/Merge signatures are generic across every
// component, while Decoder's own Clone/Merge stay typed on *Decoder so
// callers outside the pool never need a type assertion.
type decoderAccumulator struct{ *Decoder }

func (a decoderAccumulator) Clone() workerpool.Accumulator {
	return decoderAccumulator{a.Decoder.Clone()}
}

func (a decoderAccumulator) Merge(other workerpool.Accumulator) {
	a.Decoder.Merge(other.(decoderAccumulator).Decoder)
}

// AsAccumulator exposes d as a workerpool.Accumulator, the seed a
// Pool running Decode over a template stream clones per worker (spec.md
// §4.11: "each worker owns a clone of read-only state... and its own
// mutable accumulators").
func (d *Decoder) AsAccumulator() workerpool.Accumulator {
	return decoderAccumulator{d}
}

// DecodeProcess is a workerpool.Process bound to the Barcode Decoder: it
// runs Decode against the cloned Decoder behind acc and returns tmpl
// unchanged, since decoding only rewrites tags in place.
func DecodeProcess(acc workerpool.Accumulator, tmpl record.Template) (record.Template, error) {
	d := acc.(decoderAccumulator).Decoder
	if _, err := d.Decode(tmpl); err != nil {
		return nil, err
	}
	return tmpl, nil
}
