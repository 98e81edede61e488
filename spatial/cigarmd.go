package spatial

import (
	"strconv"

	"github.com/biogo/hts/sam"

	"github.com/wtsi-npg/bambi-go/bamerr"
)

// cigarEvent is one element of the (op, len) event stream spec.md §9
// asks for instead of pointer-arithmetic CIGAR walking.
type cigarEvent struct {
	op  sam.CigarOpType
	len int
}

// cigarEvents turns a sam.Cigar into a flat event stream (first pass of
// the two-pass design spec.md §9 requires).
func cigarEvents(cigar sam.Cigar) []cigarEvent {
	events := make([]cigarEvent, len(cigar))
	for i, op := range cigar {
		events[i] = cigarEvent{op: op.Type(), len: op.Len()}
	}
	return events
}

// mdEvent is one parsed element of an MD string: a run of N matching
// reference bases, a single mismatch reference base, or a deletion of a
// given reference substring.
type mdEvent struct {
	matchLen int
	mismatch byte // 0 when this event is a match run or deletion
	deletion string
}

// parseMD tokenizes an MD tag into a stream of mdEvent (spec.md §9's
// "state machine" redesign applied to MD the same way as CIGAR).
func parseMD(md string) ([]mdEvent, error) {
	var events []mdEvent
	i := 0
	for i < len(md) {
		c := md[i]
		switch {
		case c >= '0' && c <= '9':
			j := i
			for j < len(md) && md[j] >= '0' && md[j] <= '9' {
				j++
			}
			n, err := strconv.Atoi(md[i:j])
			if err != nil {
				return nil, bamerr.New("spatial", bamerr.InvalidMD, err)
			}
			events = append(events, mdEvent{matchLen: n})
			i = j
		case c == '^':
			j := i + 1
			for j < len(md) && isBase(md[j]) {
				j++
			}
			events = append(events, mdEvent{deletion: md[i+1 : j]})
			i = j
		case isBase(c):
			events = append(events, mdEvent{mismatch: c})
			i++
		default:
			return nil, bamerr.New("spatial", bamerr.InvalidMD, "unexpected character in MD: "+string(c))
		}
	}
	return events, nil
}

func isBase(c byte) bool {
	switch c {
	case 'A', 'C', 'G', 'T', 'N', 'a', 'c', 'g', 't', 'n':
		return true
	default:
		return false
	}
}

// Classification is the per-cycle union of state bits spec.md §4.6
// requires, indexed by sequencing cycle (0 = first base emitted by the
// sequencer, independent of alignment strand).
type Classification []State

// Classify builds the per-cycle classification array by combining the
// CIGAR and MD event streams, per spec.md §4.6/§9: CIGAR determines which
// read positions are matched/inserted/soft-clipped, MD resolves which
// matched positions are actually mismatches. A CIGAR deletion consumes no
// read base; its event is folded into the cycle immediately preceding the
// gap, the same attribution samtools-derived QC tools use.
func Classify(cigar sam.Cigar, md string, readLen int, reverse bool) (Classification, error) {
	class, _, err := ClassifyWithRefPositions(cigar, md, readLen, reverse, 0)
	return class, err
}

// ClassifyWithRefPositions is Classify plus a parallel array mapping each
// read cycle to its reference coordinate (refStart-based, 0-based),
// needed by the Region Table scan to test KNOWN_SNP membership. Inserted
// and soft-clipped cycles map to -1 (no reference position).
func ClassifyWithRefPositions(cigar sam.Cigar, md string, readLen int, reverse bool, refStart int) (Classification, []int, error) {
	events := cigarEvents(cigar)
	mdEvents, err := parseMD(md)
	if err != nil {
		return nil, nil, err
	}

	alignPos := make([]State, readLen) // indexed by read (SEQ) position
	refPositions := make([]int, readLen)
	for i := range refPositions {
		refPositions[i] = -1
	}
	refPos := refStart
	lastAlignedReadPos := -1
	readPos := 0
	mdIdx := 0
	mdRemaining := 0 // bases left in the current MD match-run

	nextMD := func() (mdEvent, bool) {
		for mdIdx < len(mdEvents) {
			e := mdEvents[mdIdx]
			if e.matchLen == 0 && e.mismatch == 0 && e.deletion == "" {
				mdIdx++
				continue
			}
			return e, true
		}
		return mdEvent{}, false
	}

	for _, ev := range events {
		switch ev.op {
		case sam.CigarSoftClipped:
			for k := 0; k < ev.len; k++ {
				if readPos < readLen {
					alignPos[readPos] |= SoftClip
					readPos++
				}
			}
		case sam.CigarInsertion:
			for k := 0; k < ev.len; k++ {
				if readPos < readLen {
					alignPos[readPos] |= Insertion
					readPos++
				}
			}
		case sam.CigarHardClipped, sam.CigarPadded:
			// consume neither read nor reference; no cycle to mark.
		case sam.CigarDeletion, sam.CigarSkipped:
			if e, ok := nextMD(); ok && e.deletion != "" {
				mdIdx++
			}
			if lastAlignedReadPos >= 0 {
				alignPos[lastAlignedReadPos] |= Deletion
			}
			refPos += ev.len
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			for k := 0; k < ev.len; k++ {
				if readPos >= readLen {
					break
				}
				if mdRemaining == 0 {
					e, ok := nextMD()
					if !ok {
						// An absent MD leaves M cycles ALIGN; a present
						// MD that runs out early marks the rest Mismatch.
						if md != "" {
							alignPos[readPos] |= Mismatch
						}
					} else if e.mismatch != 0 {
						alignPos[readPos] |= Mismatch
						mdIdx++
					} else {
						mdRemaining = e.matchLen
					}
				}
				if mdRemaining > 0 {
					mdRemaining--
					if mdRemaining == 0 {
						mdIdx++
					}
				}
				refPositions[readPos] = refPos
				lastAlignedReadPos = readPos
				readPos++
				refPos++
			}
		}
	}

	// cycles not touched by any CIGAR op (shouldn't happen for a
	// well-formed record) are left at zero, i.e. no classification.
	if reverse {
		reverseInPlace(alignPos)
		reverseInPlaceInt(refPositions)
	}
	return alignPos, refPositions, nil
}

func reverseInPlace(s []State) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func reverseInPlaceInt(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// IsAligned reports whether cycle c was a matched (non-mismatch,
// non-inserted, non-soft-clipped, non-deletion-flagged) base consumed by
// the CIGAR's M/=/X run.
// KNOWN_SNP handling (suppressing ALIGN/MISMATCH) is applied by the
// caller, which is the only place that has the SNP set in scope.
func (c State) IsAligned() bool {
	return c&(Mismatch|Insertion|SoftClip|Deletion) == 0
}
