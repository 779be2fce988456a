// Package scanner implements the element scanner (spec §4.3, component
// C3): a state machine over the bytes following the target array's
// opening "[" that emits each top-level element as a verbatim byte slice,
// without ever building a DOM. It is grounded on the same style of
// hand-written, switch-based JSON tokenizer used elsewhere in the
// retrieval pack (e.g. jsmngo's Parser.Parse), generalized from "tokens
// with start/end offsets" to "verbatim byte ranges streamed one at a
// time."
package scanner

import (
	"github.com/joeblau/jsonsplit/internal/buffer"
	"github.com/joeblau/jsonsplit/internal/jsonerr"
)

// state mirrors spec §4.3's state table: Between, InPrimitive, InString,
// InStructure(depth). depth is folded into the Scanner's loop-local state
// rather than the state enum, matching spec §3's ScanCursor.
type state int

const (
	between state = iota
	inPrimitive
	inString
	inStructure
)

// Element is a single top-level array element: a verbatim byte slice
// referencing the scanner's buffer window, plus its 1-based document-order
// sequence number (spec §3). The slice is only valid until the next call
// to Next — it may be invalidated by a refill or overwritten by the next
// element's bookkeeping. Callers must copy or fully consume it before
// calling Next again.
type Element struct {
	Seq   uint64
	Bytes []byte
}

// Scanner pulls elements out of buf one at a time. The buffer's cursor
// must already be positioned just past the target array's opening "["
// (i.e. after a successful locator.Locate call).
type Scanner struct {
	buf *buffer.Buffer
	seq uint64
}

// New creates a Scanner reading from buf.
func New(buf *buffer.Buffer) *Scanner {
	return &Scanner{buf: buf}
}

// BytesRead returns the cumulative count of input bytes consumed so far,
// for C6's bytes-read/MB-sec reporting.
func (s *Scanner) BytesRead() int64 { return s.buf.BytesRead() }

// Next returns the next element. When the array's closing "]" is reached,
// it returns (Element{}, false, nil) — a clean end, not an error. Next
// must not be called again after that. A non-nil error is always fatal:
// *jsonerr.TruncatedElementError if EOF occurred inside a string or
// structure, or *jsonerr.IOError on a read failure.
func (s *Scanner) Next() (Element, bool, error) {
	st := between
	depth := 0
	escapeNext := false
	elementStart := 0

	for {
		ok, err := s.buf.EnsureByte()
		if err != nil {
			return Element{}, false, err
		}
		if st != between {
			// A refill shifts the preserved element to the front of the window.
			elementStart, _ = s.buf.Preserved()
		}
		if !ok {
			return s.handleEOF(st, elementStart)
		}
		c := s.buf.Byte()

		switch st {
		case between:
			switch {
			case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ',':
				s.buf.Advance()
			case c == ']':
				s.buf.Advance()
				return Element{}, false, nil
			case c == '"':
				elementStart = s.buf.Pos()
				s.buf.Preserve(elementStart)
				depth = 0
				st = inString
				s.buf.Advance()
			case c == '{' || c == '[':
				elementStart = s.buf.Pos()
				s.buf.Preserve(elementStart)
				depth = 1
				st = inStructure
				s.buf.Advance()
			default:
				elementStart = s.buf.Pos()
				s.buf.Preserve(elementStart)
				st = inPrimitive
				s.buf.Advance()
			}

		case inString:
			switch {
			case escapeNext:
				escapeNext = false
				s.buf.Advance()
			case c == '\\':
				escapeNext = true
				s.buf.Advance()
			case c == '"':
				s.buf.Advance()
				if depth == 0 {
					return s.emit(elementStart, s.buf.Pos()), true, nil
				}
				st = inStructure
			default:
				s.buf.Advance()
			}

		case inStructure:
			switch {
			case c == '"':
				st = inString
				s.buf.Advance()
			case c == '{' || c == '[':
				depth++
				s.buf.Advance()
			case c == '}' || c == ']':
				depth--
				s.buf.Advance()
				if depth == 0 {
					return s.emit(elementStart, s.buf.Pos()), true, nil
				}
			default:
				s.buf.Advance()
			}

		case inPrimitive:
			if c == ',' || c == ']' {
				end := s.trimTrailingWhitespace(elementStart, s.buf.Pos())
				return s.emit(elementStart, end), true, nil
			}
			s.buf.Advance()
		}
	}
}

// handleEOF applies spec §4.3's two EOF rules: fatal inside a string or
// structure (or before the array even closes), tolerated inside a
// primitive with at least one accumulated byte.
func (s *Scanner) handleEOF(st state, elementStart int) (Element, bool, error) {
	switch st {
	case inPrimitive:
		end := s.trimTrailingWhitespace(elementStart, s.buf.Pos())
		return s.emit(elementStart, end), true, nil
	case between:
		return Element{}, false, &jsonerr.TruncatedElementError{
			Seq:    s.seq + 1,
			Reason: "eof before closing ']'",
		}
	default: // inString, inStructure
		return Element{}, false, &jsonerr.TruncatedElementError{
			Seq:    s.seq + 1,
			Reason: "eof inside element",
		}
	}
}

func (s *Scanner) emit(start, end int) Element {
	s.seq++
	return Element{Seq: s.seq, Bytes: s.buf.Slice(start, end)}
}

func (s *Scanner) trimTrailingWhitespace(start, end int) int {
	b := s.buf.Slice(start, end)
	for end > start && isSpace(b[len(b)-1]) {
		b = b[:len(b)-1]
		end--
	}
	return end
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
