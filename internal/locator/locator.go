// Package locator implements the key locator (spec §4.2, component C2):
// it scans a byte stream for the delimiter preceding the target JSON
// array, honoring string literals with full escape handling so the target
// key is never matched while it is merely a substring of some unrelated
// string value — the exact failure mode spec §9 calls out for a naive
// memmem search.
package locator

import (
	"bytes"

	"github.com/joeblau/jsonsplit/internal/buffer"
	"github.com/joeblau/jsonsplit/internal/jsonerr"
)

// minSuffix is the floor of the cross-chunk lookback window spec §4.2
// requires (max(4*|key|+32, 64)).
const minSuffix = 64

// Locate scans buf for the opening "[" of the target array. If key is
// empty, it finds the first top-level "[" in the stream. Otherwise it
// finds an occurrence of "<key>" that is not nested inside another
// string, followed (after optional whitespace) by ":" and (after optional
// whitespace) by "[". On success the buffer's cursor is positioned
// immediately after that "[", ready for the element scanner (C3).
//
// Locate returns *jsonerr.TargetNotFoundError if EOF is reached first, or
// *jsonerr.IOError on a read failure.
func Locate(buf *buffer.Buffer, key string) error {
	if key == "" {
		return locateTopLevel(buf)
	}
	return locateKeyed(buf, key)
}

func locateTopLevel(buf *buffer.Buffer) error {
	inString := false
	escapeNext := false

	for {
		ok, err := buf.EnsureByte()
		if err != nil {
			return err
		}
		if !ok {
			return &jsonerr.TargetNotFoundError{}
		}
		c := buf.Byte()

		if inString {
			switch {
			case escapeNext:
				escapeNext = false
			case c == '\\':
				escapeNext = true
			case c == '"':
				inString = false
			}
			buf.Advance()
			continue
		}

		switch c {
		case '"':
			inString = true
			buf.Advance()
		case '[':
			buf.Advance()
			return nil
		default:
			buf.Advance()
		}
	}
}

func locateKeyed(buf *buffer.Buffer, key string) error {
	keyBytes := []byte(key)
	suffix := 4*len(key) + 32
	if suffix < minSuffix {
		suffix = minSuffix
	}

	inString := false
	escapeNext := false
	stringStart := 0

	for {
		if inString {
			buf.Preserve(stringStart)
		} else if p := buf.Pos() - suffix; p > 0 {
			buf.Preserve(p)
		} else {
			buf.Preserve(0)
		}

		ok, err := buf.EnsureByte()
		if err != nil {
			return err
		}
		if !ok {
			return &jsonerr.TargetNotFoundError{Key: key}
		}
		if inString {
			// A refill shifts the preserved string to the front of the window.
			stringStart, _ = buf.Preserved()
		}
		c := buf.Byte()

		if inString {
			switch {
			case escapeNext:
				escapeNext = false
				buf.Advance()
			case c == '\\':
				escapeNext = true
				buf.Advance()
			case c == '"':
				stringEnd := buf.Pos()
				buf.Advance()
				inString = false
				if bytes.Equal(buf.Slice(stringStart, stringEnd), keyBytes) {
					matched, err := matchTail(buf)
					if err != nil {
						return err
					}
					if matched {
						buf.ClearPreserve()
						return nil
					}
				}
			default:
				buf.Advance()
			}
			continue
		}

		if c == '"' {
			inString = true
			stringStart = buf.Pos() + 1
			buf.Advance()
			continue
		}
		buf.Advance()
	}
}

// matchTail checks for (optional whitespace) ":" (optional whitespace) "["
// immediately following a matched key string. On success the cursor is
// left just past the "[". On failure the cursor is left at the first byte
// that broke the match, so the caller's main loop can resume scanning
// normally (e.g. a "key": "value" pair where the string happens to equal
// the target key is correctly rejected and re-scanned as a string value).
func matchTail(buf *buffer.Buffer) (bool, error) {
	if ok, err := skipWhitespace(buf); err != nil || !ok {
		return false, err
	}
	if buf.Byte() != ':' {
		return false, nil
	}
	buf.Advance()

	if ok, err := skipWhitespace(buf); err != nil || !ok {
		return false, err
	}
	if buf.Byte() != '[' {
		return false, nil
	}
	buf.Advance()
	return true, nil
}

func skipWhitespace(buf *buffer.Buffer) (bool, error) {
	for {
		ok, err := buf.EnsureByte()
		if err != nil || !ok {
			return ok, err
		}
		if !isSpace(buf.Byte()) {
			return true, nil
		}
		buf.Advance()
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
