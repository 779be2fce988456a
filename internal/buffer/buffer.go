// Package buffer implements the refillable byte-buffer protocol (spec §3,
// §4.1, component C1): a sliding window over an input stream that refills
// on demand while preserving an in-progress element's suffix across the
// refill, so callers see what looks like a single contiguous buffer even
// across I/O boundaries.
//
// Nothing here builds a DOM; the only state is a byte slice, a cursor, and
// an optional "preserve" offset, matching spec §9's "state floods" note
// that this kind of scanner state should stay non-allocating on the hot
// path (refill is the only place allocation can happen, and only when the
// window needs to grow).
package buffer

import (
	"io"

	"github.com/joeblau/jsonsplit/internal/jsonerr"
)

// maxReadStalls bounds the number of consecutive zero-byte, nil-error reads
// tolerated before treating the stream as stalled. Some io.Reader
// implementations transiently return (0, nil); retrying a bounded number of
// times follows the io.Reader contract without risking a busy-spin.
const maxReadStalls = 100

// Buffer is a sliding window over an io.Reader. It is not safe for
// concurrent use; the parser owns exactly one Buffer.
type Buffer struct {
	src       io.Reader
	buf       []byte
	pos       int // read cursor
	end       int // length of valid data in buf
	keep      int // preserve offset; -1 means "nothing to preserve"
	totalRead int64
}

// New creates a Buffer that reads from src in chunks of size bufSize.
// bufSize is spec §3's read-buffer size; the window grows beyond it only
// when a preserved range fills it: an element longer than bufSize (spec
// §8's "element whose length exceeds buffer_size" boundary case), or the
// key locator's lookback or in-progress string.
func New(src io.Reader, bufSize int) *Buffer {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	return &Buffer{src: src, buf: make([]byte, bufSize), keep: -1}
}

// EnsureByte guarantees at least one byte is available at the cursor,
// refilling from the source if necessary. It returns (false, nil) on a
// normal EOF and (false, err) on a read failure; io_error is the only
// error kind this layer produces (spec §4.1).
func (b *Buffer) EnsureByte() (bool, error) {
	if b.pos < b.end {
		return true, nil
	}
	return b.refill()
}

// Byte returns the byte at the cursor. The caller must have just received
// true from EnsureByte; Byte does not itself check bounds.
func (b *Buffer) Byte() byte { return b.buf[b.pos] }

// Advance moves the cursor forward by one byte.
func (b *Buffer) Advance() { b.pos++ }

// Pos returns the current cursor offset into the buffer's current window.
func (b *Buffer) Pos() int { return b.pos }

// Preserve marks offset as the start of a byte range that must survive the
// next refill. It generalizes spec §3's BufferState.element_start to both
// of its callers: the key locator uses it to retain the cross-chunk
// lookback suffix (spec §4.2), and the element scanner uses it to retain
// the in-progress element (spec §4.1's core invariant). offset must be in
// [0, Pos()].
func (b *Buffer) Preserve(offset int) { b.keep = offset }

// ClearPreserve drops the preservation point; the next refill discards
// everything before the cursor.
func (b *Buffer) ClearPreserve() { b.keep = -1 }

// Preserved reports the current preservation offset, if any.
func (b *Buffer) Preserved() (int, bool) {
	if b.keep < 0 {
		return 0, false
	}
	return b.keep, true
}

// BytesRead returns the cumulative count of bytes pulled from src across
// the Buffer's lifetime, for C6's bytes-read/MB-sec reporting.
func (b *Buffer) BytesRead() int64 { return b.totalRead }

// Slice returns the byte range [start, end) of the current window. The
// returned slice is only valid until the next call to EnsureByte that
// performs a refill — callers must not retain it across one, per spec
// §4.1's explicit prohibition.
func (b *Buffer) Slice(start, end int) []byte {
	return b.buf[start:end]
}

// refill shifts any preserved range to the front of the buffer (growing it
// if the preserved range already fills it) and issues a single read of up
// to the buffer's capacity.
func (b *Buffer) refill() (bool, error) {
	if b.keep >= 0 {
		n := copy(b.buf, b.buf[b.keep:b.end])
		b.pos -= b.keep
		b.end = n
		b.keep = 0
	} else {
		b.pos = 0
		b.end = 0
	}

	if b.end == len(b.buf) {
		grown := make([]byte, len(b.buf)*2)
		copy(grown, b.buf[:b.end])
		b.buf = grown
	}

	for stalls := 0; ; stalls++ {
		n, err := b.src.Read(b.buf[b.end:])
		if n > 0 {
			b.end += n
			b.totalRead += int64(n)
			return true, nil
		}
		if err != nil {
			if err == io.EOF {
				return false, nil
			}
			return false, &jsonerr.IOError{Op: "read", Err: err}
		}
		if stalls >= maxReadStalls {
			return false, &jsonerr.IOError{Op: "read", Err: io.ErrNoProgress}
		}
	}
}
