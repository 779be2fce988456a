// Package router implements the output router (spec §4.4, component C4):
// it decides, per element, which sink to write to (single file vs. a
// size-sharded chunk), applies NDJSON or JSON-array framing, and lazily
// creates chunk files so no zero-record shard ever lands on disk. It is
// built on github.com/spf13/afero so the router can be driven against an
// in-memory filesystem in tests, mirroring the way the broader retrieval
// pack (gardener) threads afero.Fs through its filesystem-touching code.
//
// The Sink interface and the adapter that wraps a bare afero.File into one
// generalize the teacher's engine.Scanner/NewScanner adapter pattern: there
// a bare scan function became a Scanner, here a bare afero.File (or
// os.Stdout) becomes a Sink.
package router

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/joeblau/jsonsplit/internal/config"
	"github.com/joeblau/jsonsplit/internal/jsonerr"
)

// Sink is anything the router can frame and write element bytes into: a
// single output file, one shard file, or stdout.
type Sink interface {
	io.Writer
	Close() error
}

// nopCloseSink adapts an io.Writer with no meaningful Close (stdout) into
// a Sink, the same shape as the teacher's scannerAdapter wrapping a bare
// function into an interface.
type nopCloseSink struct{ io.Writer }

func (nopCloseSink) Close() error { return nil }

// ChunkStat records one finalized chunk file's path and record count, the
// data spec §4.6 requires the sharded-run summary to list.
type ChunkStat struct {
	Path    string
	Records int64
}

// Stats summarizes what a Router has written, consumed by the progress
// reporter (C6) for the final summary.
type Stats struct {
	ElementsWritten int64
	ChunksCreated   int
	Chunks          []ChunkStat
}

// Router implements write_element from spec §4.4. It is not safe for
// concurrent use; the parallel writer (C5) does not use a Router and
// writes its own per-worker temp files, sharing only FlattenNewlines.
type Router struct {
	fs      afero.Fs
	mode    config.Mode
	splitS  int
	prefix  string
	flatten bool
	stdout  io.Writer

	cur        Sink
	curIsFirst bool
	chunkIdx   int
	chunkCount int
	stats      Stats
}

// Option configures a Router.
type Option func(*Router)

// WithFlattenNewlines overrides the router's newline-flattening default
// (spec §4.4: replacing embedded LF/CR bytes within an element with a
// single space before writing it). NDJSON mode defaults to on, since a
// raw embedded LF would break the one-line-per-element guarantee;
// JSON_ARRAY mode defaults to off and ignores this option, since there is
// no one-line-per-element contract to protect there.
func WithFlattenNewlines(flatten bool) Option {
	return func(r *Router) { r.flatten = flatten }
}

// New creates a Router for a non-sharded destination: a single file on fs
// (out != "-") or stdout (out == "-", stdout supplies the writer).
func New(fs afero.Fs, mode config.Mode, out string, stdout io.Writer, opts ...Option) *Router {
	r := &Router{fs: fs, mode: mode, stdout: stdout, flatten: mode == config.NDJSON}
	if out == "-" {
		r.prefix = ""
	} else {
		r.prefix = out
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// NewSharded creates a Router that writes size-sharded chunk files named
// "<prefix>_<5-digit-index>.{ndjson|json}" under prefix's directory.
func NewSharded(fs afero.Fs, mode config.Mode, prefix string, splitLines int, opts ...Option) *Router {
	r := &Router{fs: fs, mode: mode, prefix: prefix, splitS: splitLines, chunkIdx: 1, flatten: mode == config.NDJSON}
	for _, o := range opts {
		o(r)
	}
	return r
}

// WriteElement writes a single verbatim element, opening a new sink or
// chunk file on demand (never pre-emptively), and rolling to the next
// chunk once the current one reaches splitS records.
func (r *Router) WriteElement(b []byte) error {
	if r.cur == nil {
		sink, err := r.openCurrent()
		if err != nil {
			return err
		}
		r.cur = sink
		r.curIsFirst = true
	}

	if err := r.frameAndWrite(r.cur, b, r.curIsFirst); err != nil {
		return &jsonerr.IOError{Op: "write", Err: err}
	}
	r.curIsFirst = false
	r.stats.ElementsWritten++
	r.chunkCount++

	if r.splitS > 0 && r.chunkCount == r.splitS {
		if err := r.closeCurrent(); err != nil {
			return err
		}
		r.chunkIdx++
		r.chunkCount = 0
	}
	return nil
}

// Close finalizes any still-open sink (writing the closing "]" in
// JSON_ARRAY mode) and closes the underlying handle. It is idempotent.
func (r *Router) Close() error {
	if r.cur == nil {
		return nil
	}
	return r.closeCurrent()
}

// Stats returns a snapshot of what has been written so far.
func (r *Router) Stats() Stats { return r.stats }

func (r *Router) openCurrent() (Sink, error) {
	if r.splitS == 0 && r.prefix == "" {
		return nopCloseSink{r.stdout}, nil
	}
	path := r.currentPath()
	f, err := r.fs.Create(path)
	if err != nil {
		return nil, &jsonerr.IOError{Op: "create " + path, Err: err}
	}
	if r.splitS > 0 {
		r.stats.ChunksCreated++
	}
	return f, nil
}

func (r *Router) currentPath() string {
	if r.splitS == 0 {
		return r.prefix
	}
	return fmt.Sprintf("%s_%05d.%s", r.prefix, r.chunkIdx, extFor(r.mode))
}

func (r *Router) closeCurrent() error {
	if r.mode == config.JSONArray {
		if _, err := r.cur.Write([]byte("]")); err != nil {
			return &jsonerr.IOError{Op: "write closing bracket", Err: err}
		}
	}
	if err := r.cur.Close(); err != nil {
		return &jsonerr.IOError{Op: "close", Err: err}
	}
	if r.splitS > 0 {
		r.stats.Chunks = append(r.stats.Chunks, ChunkStat{Path: r.currentPath(), Records: int64(r.chunkCount)})
	}
	r.cur = nil
	return nil
}

func (r *Router) frameAndWrite(w io.Writer, b []byte, isFirst bool) error {
	if r.mode == config.JSONArray {
		if isFirst {
			if _, err := w.Write([]byte("[")); err != nil {
				return err
			}
		} else {
			if _, err := w.Write([]byte(",")); err != nil {
				return err
			}
		}
		_, err := w.Write(b)
		return err
	}

	if r.flatten {
		b = flattenNewlines(b)
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err := w.Write([]byte("\n"))
	return err
}

func extFor(mode config.Mode) string {
	if mode == config.NDJSON {
		return "ndjson"
	}
	return "json"
}

// FlattenNewlines replaces raw LF/CR bytes in b with a single space,
// collapsing a CRLF pair into one space rather than two. It never
// allocates when b contains no line breaks. Exported so the parallel
// writer (C5, NDJSON-only) can apply the same default spec §4.4 gives
// the single-worker router to its own per-worker temp file lines.
func FlattenNewlines(b []byte) []byte { return flattenNewlines(b) }

func flattenNewlines(b []byte) []byte {
	if !bytes.ContainsAny(b, "\n\r") {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		c := b[i]
		if c == '\r' && i+1 < len(b) && b[i+1] == '\n' {
			out = append(out, ' ')
			i++
			continue
		}
		if c == '\n' || c == '\r' {
			out = append(out, ' ')
			continue
		}
		out = append(out, c)
	}
	return out
}
