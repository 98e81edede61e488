package adapter

import (
	"math"

	"github.com/wtsi-npg/bambi-go/auxtag"
	"github.com/wtsi-npg/bambi-go/record"
	"github.com/wtsi-npg/bambi-go/workerpool"
)

// MatcherOpts configures the Adapter Matcher (spec.md §4.9). GenomeSize
// resolves spec.md §9's Open Question ("the adapter path's Poisson
// confidence uses a hard-coded genome size 3e9; this should be exposed as
// configuration") as a settable field defaulting to the original constant.
type MatcherOpts struct {
	MinScore     int
	MinFrac      float64
	MinPFrac     float64
	GenomeSize   float64
	OverlapMin   int     // minimum paired-overlap length (spec.md §4.9: 32)
	OverlapRate  float64 // maximum mismatch rate over the overlap (spec.md §4.9: 0.1)
	ImpliedBases int     // bases of implied adapter compared per mate (spec.md §4.9: 12)
}

// DefaultMatcherOpts mirrors the constants named in spec.md §4.9.
func DefaultMatcherOpts() MatcherOpts {
	return MatcherOpts{
		MinScore:     DefaultMinScore,
		MinFrac:      0.5,
		MinPFrac:     0.5,
		GenomeSize:   3e9,
		OverlapMin:   32,
		OverlapRate:  0.1,
		ImpliedBases: 12,
	}
}

// matchResult is one candidate scan outcome, tracked across every
// (fragment, start position) pair the way spec.md §4.9 describes.
type matchResult struct {
	adapter  *Adapter
	score    int
	begin    int
	end      int
	seqStart int
	frac     float64
	pfrac    float64
}

// Matcher runs the seeded local-alignment scan against an Index.
type Matcher struct {
	Index *Index
	Opts  MatcherOpts
}

// NewMatcher builds a Matcher over idx with opts.
func NewMatcher(idx *Index, opts MatcherOpts) *Matcher {
	return &Matcher{Index: idx, Opts: opts}
}

// ScanRead implements spec.md §4.9's per-record scan: seed-prefiltered
// local alignment against every fragment at every read-start position,
// keeping the best candidate passing the three thresholds. A read shorter
// than MinScore always yields no match (spec.md §8).
func (m *Matcher) ScanRead(seq string) (matchResult, bool) {
	if len(seq) < m.Opts.MinScore {
		return matchResult{}, false
	}
	var best matchResult
	haveBest := false
	limit := len(seq) - m.Opts.MinScore
	for s := 0; s <= limit; s++ {
		if s+SeedLength > len(seq) {
			break
		}
		readSeed := Seed(seq[s : s+SeedLength])
		for _, fi := range m.Index.CandidatesNear(readSeed) {
			frag := &m.Index.Fragments[fi]
			score, begin, end := localAlign(frag.Fwd, seq[s:])
			if score < m.Opts.MinScore {
				continue
			}
			fragLen := len(frag.Fwd)
			frac := float64(end-begin) / float64(fragLen+frag.Offset)
			denomP := fragLen
			if len(seq)-s < denomP {
				denomP = len(seq) - s
			}
			pfrac := float64(end-begin) / float64(denomP+frag.Offset)
			if frac < m.Opts.MinFrac || pfrac < m.Opts.MinPFrac {
				continue
			}
			if !haveBest || score > best.score {
				best = matchResult{
					adapter:  frag,
					score:    score,
					begin:    begin,
					end:      end,
					seqStart: s + begin,
					frac:     frac,
					pfrac:    pfrac,
				}
				haveBest = true
			}
		}
	}
	return best, haveBest
}

// localAlign runs the +1/-2, floor-at-0 local alignment of spec.md §4.9
// between fragment and the read suffix starting at the candidate seed
// position, returning the max score and the [begin, end) span in
// fragment coordinates that achieved it.
func localAlign(fragment, readSuffix string) (score, begin, end int) {
	n := len(fragment)
	if len(readSuffix) < n {
		n = len(readSuffix)
	}
	cur := 0
	curStart := 0
	best, bestBegin, bestEnd := 0, 0, 0
	for i := 0; i < n; i++ {
		if fragment[i] == readSuffix[i] {
			cur++
		} else {
			cur -= 2
		}
		if cur <= 0 {
			cur = 0
			curStart = i + 1
		}
		if cur > best {
			best = cur
			bestBegin = curStart
			bestEnd = i + 1
		}
	}
	return best, bestBegin, bestEnd
}

// PoissonConfidence implements spec.md §4.9's Poisson confidence score
// over the matched stretch.
func PoissonConfidence(matchedBases string, genomeSize float64) float64 {
	var fA, fC, fG, fT float64
	for i := 0; i < len(matchedBases); i++ {
		switch matchedBases[i] {
		case 'A', 'a':
			fA++
		case 'C', 'c':
			fC++
		case 'G', 'g':
			fG++
		case 'T', 't':
			fT++
		default:
			// non-ACGT distributed uniformly at random across the four bases
			fA += 0.25
			fC += 0.25
			fG += 0.25
			fT += 0.25
		}
	}
	k := fA + fC + fG + fT
	lambda := (genomeSize + 1 - k) *
		math.Pow(0.25, fA) * math.Pow(0.25, fC) * math.Pow(0.25, fG) * math.Pow(0.25, fT)
	return 1 / math.Exp(lambda)
}

// TagRecord writes the aa/af/ar/as tags spec.md §4.9 specifies for a
// successful match.
func TagRecord(r *record.Record, res matchResult, readLen int, genomeSize float64) error {
	if err := auxtag.AppendTyped(r, auxtag.ParseTag("aa"), res.adapter.Name); err != nil {
		return err
	}
	if err := auxtag.AppendTyped(r, auxtag.ParseTag("af"), float32(res.pfrac)); err != nil {
		return err
	}
	windowLen := len(res.adapter.Fwd) - res.begin
	if readLen-res.seqStart < windowLen {
		windowLen = readLen - res.seqStart
	}
	window := ""
	if res.begin >= 0 && res.begin+windowLen <= len(res.adapter.Fwd) && windowLen > 0 {
		window = res.adapter.Fwd[res.begin : res.begin+windowLen]
	}
	conf := PoissonConfidence(window, genomeSize)
	if err := auxtag.AppendTyped(r, auxtag.ParseTag("ar"), float32(conf)); err != nil {
		return err
	}
	clip := readLen - res.seqStart + res.adapter.Offset
	return auxtag.AppendTyped(r, auxtag.ParseTag("as"), int32(clip))
}

// DetectPairedOverlap implements spec.md §4.9's paired-overlap detector:
// reverse-complement read2, slide read1's tail against read2's head, and
// on a qualifying overlap inspect up to ImpliedBases of implied adapter on
// each read.
func (m *Matcher) DetectPairedOverlap(read1, read2 string) (overlapLen int, ok bool) {
	rc2 := reverseComplement(read2)
	maxOverlap := len(read1)
	if len(rc2) < maxOverlap {
		maxOverlap = len(rc2)
	}
	for ov := maxOverlap; ov >= m.Opts.OverlapMin; ov-- {
		tail := read1[len(read1)-ov:]
		head := rc2[:ov]
		mismatches := 0
		for i := 0; i < ov; i++ {
			if tail[i] != head[i] {
				mismatches++
			}
		}
		if float64(mismatches)/float64(ov) > m.Opts.OverlapRate {
			continue
		}
		if !m.impliedAdapterAgrees(read1, read2, ov) {
			continue
		}
		return ov, true
	}
	return 0, false
}

func (m *Matcher) impliedAdapterAgrees(read1, read2 string, overlap int) bool {
	n := m.Opts.ImpliedBases
	a1 := impliedAdapterSpan(read1, overlap, n)
	a2 := impliedAdapterSpan(read2, overlap, n)
	if len(a1) == 0 || len(a2) == 0 {
		return true // nothing implied beyond the overlap; vacuously fine
	}
	rc2 := reverseComplement(a2)
	m2 := len(a1)
	if len(rc2) < m2 {
		m2 = len(rc2)
	}
	for i := 0; i < m2; i++ {
		if a1[i] != rc2[i] {
			return false
		}
	}
	return true
}

func impliedAdapterSpan(read string, overlap, n int) string {
	start := len(read) - overlap
	if start <= 0 {
		return ""
	}
	end := start
	if end > n {
		end = n
	}
	return read[:end]
}

// TagPairedOverlap writes the ah/a3 tags spec.md §4.9 specifies on both
// mates of a qualifying paired overlap.
func TagPairedOverlap(r1, r2 *record.Record, overlapLen int) error {
	for _, r := range []*record.Record{r1, r2} {
		if err := auxtag.AppendTyped(r, auxtag.ParseTag("ah"), int32(1)); err != nil {
			return err
		}
		if err := auxtag.AppendTyped(r, auxtag.ParseTag("a3"), int32(overlapLen)); err != nil {
			return err
		}
	}
	return nil
}

func readGroup(r *record.Record) string {
	rg, _ := auxtag.GetString(r, auxtag.ParseTag("RG"))
	return rg
}

// Process is a workerpool.Process bound to the Adapter Matcher: it scans
// each read of the template, tags any match, checks a paired overlap when
// both mates are present, and records every outcome against the bound
// MetricsTable (spec.md §4.9's per-read-group contamination tally).
func Process(acc workerpool.Accumulator, tmpl record.Template) (record.Template, error) {
	wa := acc.(workerAccumulator)
	m := wa.Matcher

	var r1, r2 *record.Record
	for _, r := range tmpl {
		seq := r.Seq.Expand()
		res, ok := m.ScanRead(string(seq))
		group := readGroup(r)
		rev := record.IsRead2(r)
		wa.Metrics.Update(group, func(rm *RGMetrics) {
			if rev {
				rm.TotalRev++
			} else {
				rm.TotalFwd++
			}
		})
		if ok {
			if err := TagRecord(r, res, len(seq), m.Opts.GenomeSize); err != nil {
				return nil, err
			}
			wa.Metrics.Update(group, func(rm *RGMetrics) {
				if rev {
					rm.RecordRev(res.seqStart)
				} else {
					rm.RecordFwd(res.seqStart)
				}
			})
		}
		switch record.ReadNum(r) {
		case 1:
			r1 = r
		case 2:
			r2 = r
		}
	}

	if r1 != nil && r2 != nil {
		seq1 := string(r1.Seq.Expand())
		seq2 := string(r2.Seq.Expand())
		if overlap, ok := m.DetectPairedOverlap(seq1, seq2); ok {
			if err := TagPairedOverlap(r1, r2, overlap); err != nil {
				return nil, err
			}
		}
	}

	return tmpl, nil
}
