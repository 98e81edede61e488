// Package record implements the template-grouped record stream that every
// post-processing component consumes. It treats the underlying BAM/SAM/CRAM
// decode loop as an external collaborator (spec.md §1 Non-goals): a Source
// is anything that hands back *sam.Record values in file order, typically a
// *github.com/biogo/hts/bam.Reader or *sam.Reader supplied by the caller.
package record

import (
	"io"

	"github.com/biogo/hts/sam"

	"github.com/wtsi-npg/bambi-go/bamerr"
)

// Source yields records in source order. The zero value is not usable.
type Source interface {
	// Read returns the next record, or io.EOF when the source is
	// exhausted.
	Read() (*sam.Record, error)
}

// Record is the Record of spec.md §3. It is a thin alias over sam.Record:
// the teacher's encoding/bam.Record embeds sam.Record the same way rather
// than re-declaring the field set biogo/hts/sam already exposes.
type Record = sam.Record

// Template is an ordered sequence of records sharing a query name
// (spec.md §3 "Template").
type Template []*Record

// QName returns the shared query name of the template, or "" if empty.
func (t Template) QName() string {
	if len(t) == 0 {
		return ""
	}
	return t[0].Name
}

// Stream delivers records in source order and groups them into templates
// by a peek-until-qname-changes rule (spec.md §4.1).
type Stream struct {
	src    Source
	peeked *Record
	peekOK bool
	peekEr error
	atEOF  bool
}

// NewStream wraps src.
func NewStream(src Source) *Stream {
	return &Stream{src: src}
}

// fill ensures s.peeked holds the next unread record, if any.
func (s *Stream) fill() {
	if s.peekOK || s.atEOF {
		return
	}
	r, err := s.src.Read()
	if err == io.EOF {
		s.atEOF = true
		return
	}
	if err != nil {
		s.peekEr = bamerr.New("record", bamerr.IoError, err, "reading next record")
		s.atEOF = true
		return
	}
	s.peeked = r
	s.peekOK = true
}

// HasNext reports whether another record is available.
func (s *Stream) HasNext() (bool, error) {
	s.fill()
	if s.peekEr != nil {
		return false, s.peekEr
	}
	return s.peekOK, nil
}

// Peek borrows the next record without advancing the stream. It returns
// (nil, nil) at end of stream.
func (s *Stream) Peek() (*Record, error) {
	s.fill()
	if s.peekEr != nil {
		return nil, s.peekEr
	}
	if !s.peekOK {
		return nil, nil
	}
	return s.peeked, nil
}

// Next returns the next record, advancing the stream. It returns (nil,
// nil) at end of stream; I/O failures surface as a bamerr IoError.
func (s *Stream) Next() (*Record, error) {
	r, err := s.Peek()
	if err != nil || r == nil {
		return nil, err
	}
	s.peekOK = false
	s.peeked = nil
	return r, nil
}

// LoadTemplate consumes and returns every record that shares the next
// record's query name. It returns an empty template at end of stream.
func (s *Stream) LoadTemplate() (Template, error) {
	first, err := s.Next()
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, nil
	}
	tmpl := Template{first}
	for {
		peek, err := s.Peek()
		if err != nil {
			return nil, err
		}
		if peek == nil || peek.Name != first.Name {
			break
		}
		next, err := s.Next()
		if err != nil {
			return nil, err
		}
		tmpl = append(tmpl, next)
	}
	return tmpl, nil
}
