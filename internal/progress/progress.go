// Package progress implements periodic rate reporting and the final
// summary (spec §4.6, component C6). Two Reporter implementations are
// provided: an interactive one driving internal/spinner's terminal
// animation, and a machine-readable one emitting NDJSON progress events —
// the latter is adapted from the teacher's internal/server NDJSONWriter,
// which guarded a json.Encoder with a mutex so concurrent RPC handlers
// could emit framed NDJSON events without interleaving partial writes;
// here the same mutex+encoder shape guards progress and summary events
// instead of RPC responses.
package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/joeblau/jsonsplit/internal/sizefmt"
	"github.com/joeblau/jsonsplit/internal/spinner"
)

// Counters is a snapshot of pipeline progress, updated on every element
// (or batch of elements) and passed to a Reporter.
type Counters struct {
	ElementsWritten int64
	BytesRead       int64
	ChunksCreated   int
	Elapsed         time.Duration
}

// ChunkSummary is one produced chunk file's path and record count, part of
// the final summary's "(if sharded) list of produced chunk files with
// their record counts" (spec §4.6).
type ChunkSummary struct {
	Path    string `json:"path"`
	Records int64  `json:"records"`
}

// Summary is the final report emitted once the pipeline completes.
type Summary struct {
	TotalElements int64          `json:"total_elements"`
	TotalBytes    int64          `json:"total_bytes"`
	ChunksCreated int            `json:"chunks_created"`
	Chunks        []ChunkSummary `json:"chunks,omitempty"`
	Duration      time.Duration  `json:"duration_ns"`
}

// Reporter receives progress updates and a final summary. The extract
// engine calls it from its single pipeline goroutine; the parallel
// writer's workers do not report. The implementations here are
// nevertheless safe for concurrent Update calls.
type Reporter interface {
	Update(Counters)
	Finish(Summary)
}

// NullReporter discards all updates; used when verbose mode is off.
type NullReporter struct{}

func (NullReporter) Update(Counters) {}
func (NullReporter) Finish(Summary)  {}

// InteractiveReporter drives a terminal spinner, throttled to at most once
// per second via golang.org/x/time/rate.Sometimes so a fast in-memory
// stream doesn't repaint the terminal on every single element.
type InteractiveReporter struct {
	sp    *spinner.Spinner
	out   io.Writer
	limit rate.Sometimes
}

// NewInteractive creates an InteractiveReporter. label is the spinner's
// initial message (e.g. "Extracting..."); summary text goes to stderr.
func NewInteractive(label string, enabled bool) *InteractiveReporter {
	r := &InteractiveReporter{
		sp:    spinner.New(label, enabled),
		out:   os.Stderr,
		limit: rate.Sometimes{Interval: time.Second},
	}
	r.sp.Start()
	return r
}

func (r *InteractiveReporter) Update(c Counters) {
	r.limit.Do(func() {
		elementRate := float64(c.ElementsWritten)
		byteRate := float64(c.BytesRead)
		if c.Elapsed > 0 {
			elementRate = float64(c.ElementsWritten) / c.Elapsed.Seconds()
			byteRate = float64(c.BytesRead) / c.Elapsed.Seconds()
		}
		r.sp.UpdateMessage(fmt.Sprintf("Extracting... %s read, %d elements (%s, %s)",
			sizefmt.FormatSize(c.BytesRead), c.ElementsWritten,
			sizefmt.FormatCount(elementRate), sizefmt.FormatRate(byteRate)))
	})
}

func (r *InteractiveReporter) Finish(s Summary) {
	r.sp.Stop()
	byteRate := float64(0)
	if s.Duration > 0 {
		byteRate = float64(s.TotalBytes) / s.Duration.Seconds()
	}
	fmt.Fprintf(stderrOrDiscard(r.out), "Done: %d elements, %s, %d chunk(s), %s, %s\n",
		s.TotalElements, sizefmt.FormatSize(s.TotalBytes), s.ChunksCreated, s.Duration.Round(time.Millisecond), sizefmt.FormatRate(byteRate))
	for _, c := range s.Chunks {
		fmt.Fprintf(stderrOrDiscard(r.out), "  %s: %d records\n", c.Path, c.Records)
	}
}

func stderrOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// machineEvent is the NDJSON frame MachineReporter emits.
type machineEvent struct {
	Type            string   `json:"type"`
	ElementsWritten int64    `json:"elements_written,omitempty"`
	BytesRead       int64    `json:"bytes_read,omitempty"`
	ChunksCreated   int      `json:"chunks_created,omitempty"`
	ElapsedMS       int64    `json:"elapsed_ms,omitempty"`
	Summary         *Summary `json:"summary,omitempty"`
}

// MachineReporter writes one NDJSON-framed progress event per Update,
// throttled to at most once per second, plus a final "summary" event on
// Finish. Safe for concurrent use.
type MachineReporter struct {
	mu    sync.Mutex
	enc   *json.Encoder
	limit rate.Sometimes
}

// NewMachine creates a MachineReporter writing to w (typically stderr, so
// stdout stays reserved for element output in single-file/stdout mode).
func NewMachine(w io.Writer) *MachineReporter {
	return &MachineReporter{
		enc:   json.NewEncoder(w),
		limit: rate.Sometimes{Interval: time.Second},
	}
}

func (m *MachineReporter) Update(c Counters) {
	m.limit.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		_ = m.enc.Encode(machineEvent{
			Type:            "progress",
			ElementsWritten: c.ElementsWritten,
			BytesRead:       c.BytesRead,
			ChunksCreated:   c.ChunksCreated,
			ElapsedMS:       c.Elapsed.Milliseconds(),
		})
	})
}

func (m *MachineReporter) Finish(s Summary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.enc.Encode(machineEvent{Type: "summary", Summary: &s})
}
