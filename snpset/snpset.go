// Package snpset loads a sorted set of known-SNP positions used by the
// Spatial Filter to suppress KNOWN_SNP cycles from mismatch classification
// (spec.md §4.6). The on-disk format is a four-column, tab-separated file
// (bin, chrom, start, end) in the style of a UCSC snp BED track; bin is
// ignored.
package snpset

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/log"
)

// Set is a chromosome-keyed union of disjoint, sorted half-open intervals,
// adapted from the teacher's BEDUnion (interval/bedunion.go) down to what
// the Spatial Filter needs: single-position containment tests, no
// inversion, no sam.Header ID indexing (the Region Table keys by
// reference name, not by header-local ID).
type Set struct {
	intervals map[string][]int32 // chrom -> flattened [start0, end0, start1, end1, ...]
}

// Load reads a bin/chrom/start/end SNP track, merging touching or
// overlapping intervals per chromosome. Input need not be sorted; Load
// sorts internally (the teacher's scanBEDUnion requires sorted input and
// rejects split chromosomes — a known SNP set is typically small enough
// that relaxing that requirement costs little).
func Load(r io.Reader) (*Set, error) {
	type entry struct {
		start, end int32
	}
	byChrom := make(map[string][]entry)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 4 {
			return nil, fmt.Errorf("snpset: line %d has fewer than 4 fields", lineNo)
		}
		chrom := fields[1]
		start, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("snpset: line %d: %w", lineNo, err)
		}
		end, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("snpset: line %d: %w", lineNo, err)
		}
		if end < start {
			return nil, fmt.Errorf("snpset: line %d: end before start", lineNo)
		}
		byChrom[chrom] = append(byChrom[chrom], entry{int32(start), int32(end)})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	s := &Set{intervals: make(map[string][]int32, len(byChrom))}
	totalBases := int64(0)
	for chrom, entries := range byChrom {
		sort.Slice(entries, func(i, j int) bool { return entries[i].start < entries[j].start })
		var merged []int32
		prevStart, prevEnd := entries[0].start, entries[0].end
		for _, e := range entries[1:] {
			if e.start > prevEnd {
				merged = append(merged, prevStart, prevEnd)
				totalBases += int64(prevEnd - prevStart)
				prevStart, prevEnd = e.start, e.end
				continue
			}
			if e.end > prevEnd {
				prevEnd = e.end
			}
		}
		merged = append(merged, prevStart, prevEnd)
		totalBases += int64(prevEnd - prevStart)
		s.intervals[chrom] = merged
	}
	log.Printf("snpset: loaded %d chromosome(s), %d base(s) covered\n", len(s.intervals), totalBases)
	return s, nil
}

// Contains reports whether the 0-based reference position pos on chrom
// falls within a known-SNP interval.
func (s *Set) Contains(chrom string, pos int) bool {
	if s == nil {
		return false
	}
	iv, ok := s.intervals[chrom]
	if !ok {
		return false
	}
	p := int32(pos)
	// iv is [start0,end0,start1,end1,...] in increasing order; find the
	// insertion point of p+1 the same way BEDUnion does, then parity of
	// the index tells us whether p fell inside an interval.
	idx := sort.Search(len(iv), func(i int) bool { return iv[i] >= p+1 })
	return idx&1 == 1
}
