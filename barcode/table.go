// Package barcode implements the Barcode Table and Decoder Core (spec.md
// §4.4, §4.5): loading the expected-barcode table, matching observed
// barcodes against it with noise tolerance and ambiguity rejection, and
// detecting dual-index tag hopping.
package barcode

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	farm "github.com/dgryski/go-farm"

	"github.com/wtsi-npg/bambi-go/bamerr"
)

// separators is the fixed set of dual-index split characters named in
// spec.md §4.4.
const separators = "-/|"

// Counters are the per-entry metrics spec.md §3 names.
type Counters struct {
	Reads         int64
	PFReads       int64
	Perfect       int64
	PFPerfect     int64
	OneMismatch   int64
	PFOneMismatch int64
}

// Add adds other into c, field-wise, matching the teacher's
// Metrics.Add merge pattern (markduplicates/metrics.go) used to combine
// per-worker accumulators at join.
func (c *Counters) Add(other Counters) {
	c.Reads += other.Reads
	c.PFReads += other.PFReads
	c.Perfect += other.Perfect
	c.PFPerfect += other.PFPerfect
	c.OneMismatch += other.OneMismatch
	c.PFOneMismatch += other.PFOneMismatch
}

// Entry is a Barcode Entry (spec.md §3). Seq is idx1, optionally followed
// by a separator and idx2 (empty when single-indexed).
type Entry struct {
	Seq         string
	Idx1        string
	Idx2        string
	Name        string
	Library     string
	Sample      string
	Description string
	Counters    Counters
}

// DualIndexed reports whether e carries a second index.
func (e *Entry) DualIndexed() bool { return e.Idx2 != "" }

// SynthesizeKey returns the idx1<sep>idx2 key for entry e, used both for
// the exact-match hash and for Tag-Hop Entry keys.
func (e *Entry) SynthesizeKey(sep byte) string {
	if e.Idx2 == "" {
		return e.Idx1
	}
	return e.Idx1 + string(sep) + e.Idx2
}

// Table is the Barcode Table of spec.md §3/§4.4: an ordered array of
// Entries (index 0 is the synthetic "unassigned" bin) plus an exact-match
// hash from seq to index.
type Table struct {
	Entries []*Entry
	Sep     byte // separator used to re-join idx1/idx2 for hashing and keys

	hash map[uint64][]int // farm.Hash64 -> candidate indices (collision chain)

	Idx1Len int
	Idx2Len int // 0 when the table is single-indexed
}

func (t *Table) DualIndexed() bool { return t.Idx2Len > 0 }

func hashKey(s string) uint64 {
	return farm.Hash64([]byte(s))
}

// LoadOpts configures Load.
type LoadOpts struct {
	// DualTagSplit, when > 0, is a 1-based explicit split position
	// within seq rather than searching for a separator run.
	DualTagSplit int
}

// Load reads a tab-delimited barcode file (spec.md §6): one header line,
// then "sequence\tname\tlibrary\tsample\tdescription" rows with trailing
// columns defaulting to empty.
func Load(r io.Reader, opts LoadOpts) (*Table, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		return nil, bamerr.New("barcode", bamerr.FormatError, "empty barcode file")
	}
	t := &Table{Sep: '-', hash: make(map[uint64][]int)}
	var entries []*Entry
	lineNo := 1
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		for len(fields) < 5 {
			fields = append(fields, "")
		}
		seq := fields[0]
		idx1, idx2, err := splitDualIndex(seq, opts.DualTagSplit)
		if err != nil {
			return nil, bamerr.New("barcode", bamerr.FormatError, err,
				fmt.Sprintf("line %d", lineNo))
		}
		e := &Entry{
			Seq:         seq,
			Idx1:        idx1,
			Idx2:        idx2,
			Name:        fields[1],
			Library:     fields[2],
			Sample:      fields[3],
			Description: fields[4],
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, bamerr.New("barcode", bamerr.IoError, err)
	}
	if err := validateLengths(entries); err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		t.Idx1Len = len(entries[0].Idx1)
		t.Idx2Len = len(entries[0].Idx2)
	}

	synthetic := &Entry{
		Name: "0",
		Idx1: strings.Repeat("N", t.Idx1Len),
		Idx2: strings.Repeat("N", t.Idx2Len),
	}
	synthetic.Seq = synthetic.SynthesizeKey(t.Sep)
	t.Entries = append([]*Entry{synthetic}, entries...)
	for _, e := range t.Entries {
		if e.Seq == "" {
			e.Seq = e.SynthesizeKey(t.Sep)
		}
	}

	t.reindex()
	return t, nil
}

// reindex rebuilds the exact-match hash from t.Entries[1:] (entry 0 is
// never a fast-path match target since it is the catch-all bin, and its
// synthetic all-N sequence would otherwise collide with genuine no-call
// reads).
func (t *Table) reindex() {
	t.hash = make(map[uint64][]int, len(t.Entries))
	for i, e := range t.Entries {
		if i == 0 {
			continue
		}
		h := hashKey(e.Seq)
		t.hash[h] = append(t.hash[h], i)
	}
}

// CloneForWorker returns a Table that shares t's read-only lookup data
// (the hash index and every Entry's Seq/Idx1/Idx2/Name/Library/Sample/
// Description) but owns an independent, zeroed Counters per entry, so a
// worker goroutine can accumulate its own tallies without racing on or
// polluting the entries another worker (or the base Decoder) reads.
func (t *Table) CloneForWorker() *Table {
	entries := make([]*Entry, len(t.Entries))
	for i, e := range t.Entries {
		clone := *e
		clone.Counters = Counters{}
		entries[i] = &clone
	}
	return &Table{
		Entries: entries,
		Sep:     t.Sep,
		hash:    t.hash,
		Idx1Len: t.Idx1Len,
		Idx2Len: t.Idx2Len,
	}
}

// Lookup returns the table index of an exact match for seq, or (0, false).
func (t *Table) Lookup(seq string) (int, bool) {
	h := hashKey(seq)
	for _, i := range t.hash[h] {
		if t.Entries[i].Seq == seq {
			return i, true
		}
	}
	return 0, false
}

func validateLengths(entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}
	l1, l2 := len(entries[0].Idx1), len(entries[0].Idx2)
	for _, e := range entries[1:] {
		if len(e.Idx1) != l1 || len(e.Idx2) != l2 {
			return bamerr.New("barcode", bamerr.InconsistentBarcodeLength,
				fmt.Sprintf("entry %q: idx1/idx2 lengths (%d,%d) != (%d,%d)",
					e.Name, len(e.Idx1), len(e.Idx2), l1, l2))
		}
	}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			return bamerr.New("barcode", bamerr.FormatError, "barcode entry has empty name")
		}
		if seen[e.Name] {
			return bamerr.New("barcode", bamerr.FormatError,
				fmt.Sprintf("duplicate barcode name %q", e.Name))
		}
		seen[e.Name] = true
	}
	return nil
}

// splitDualIndex splits seq into idx1, idx2 either by an explicit 1-based
// split position or by the first run of separator characters (spec.md
// §4.4). splitAt == 0 means "search for a separator".
func splitDualIndex(seq string, splitAt int) (idx1, idx2 string, err error) {
	if splitAt > 0 {
		if splitAt > len(seq) {
			return "", "", fmt.Errorf("dual-tag split position %d exceeds sequence length %d", splitAt, len(seq))
		}
		return seq[:splitAt], seq[splitAt:], nil
	}
	start := strings.IndexAny(seq, separators)
	if start < 0 {
		return seq, "", nil
	}
	end := start
	for end < len(seq) && strings.IndexByte(separators, seq[end]) >= 0 {
		end++
	}
	return seq[:start], seq[end:], nil
}
