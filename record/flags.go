package record

import "github.com/biogo/hts/sam"

// Convenience predicates over sam.Record.Flags, used throughout the
// decoder, spatial filter, and adapter finder to test the flag set named
// in spec.md §3.

func IsPaired(r *Record) bool        { return r.Flags&sam.Paired != 0 }
func IsRead1(r *Record) bool         { return r.Flags&sam.Read1 != 0 }
func IsRead2(r *Record) bool         { return r.Flags&sam.Read2 != 0 }
func IsQCFail(r *Record) bool        { return r.Flags&sam.QCFail != 0 }
func IsUnmapped(r *Record) bool      { return r.Flags&sam.Unmapped != 0 }
func IsSecondary(r *Record) bool     { return r.Flags&sam.Secondary != 0 }
func IsSupplementary(r *Record) bool { return r.Flags&sam.Supplementary != 0 }
func IsProperPair(r *Record) bool    { return r.Flags&sam.ProperPair != 0 }

// ReadNum returns 1 for read1, 2 for read2, 0 for unpaired (spec.md
// §4.10's record_index normalization).
func ReadNum(r *Record) int {
	switch {
	case !IsPaired(r):
		return 0
	case IsRead1(r):
		return 1
	case IsRead2(r):
		return 2
	default:
		return 0
	}
}
