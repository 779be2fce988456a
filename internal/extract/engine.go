// Package extract orchestrates the full pipeline (spec §2's data flow:
// Input stream → C1 → C2 once → C3 → C4 → C5 if parallel → output files).
// Engine.Extract is adapted from the teacher's engine.Engine.ScanAll: a
// channel of progress Events plus a single-value done channel carrying the
// final Result, generalized from "one event per scanner group" to "one
// event per emitted element" (plus an "error" event on failure).
package extract

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/joeblau/jsonsplit/internal/buffer"
	"github.com/joeblau/jsonsplit/internal/config"
	"github.com/joeblau/jsonsplit/internal/jsonerr"
	"github.com/joeblau/jsonsplit/internal/locator"
	"github.com/joeblau/jsonsplit/internal/merge"
	"github.com/joeblau/jsonsplit/internal/parallel"
	"github.com/joeblau/jsonsplit/internal/pathguard"
	"github.com/joeblau/jsonsplit/internal/progress"
	"github.com/joeblau/jsonsplit/internal/router"
	"github.com/joeblau/jsonsplit/internal/scanner"
)

// Event reports progress during Extract, one per emitted element.
type Event struct {
	Type string // "element" or "error"
	Seq  uint64
	Err  error
}

// Result is the final outcome of Extract, delivered once on the done
// channel.
type Result struct {
	Summary progress.Summary
	Err     error
}

// Engine runs the extraction pipeline. It holds no state between runs.
type Engine struct{}

// New creates an Engine.
func New() *Engine { return &Engine{} }

// Extract reads in, locates cfg.Key's array, and streams every element
// into the sink(s) cfg selects (single file, sharded files, or the
// parallel writer + merge pass), reporting progress to reporter. It
// returns an events channel (closed when the run finishes) and a done
// channel receiving exactly one Result.
func (e *Engine) Extract(ctx context.Context, cfg config.ExtractorConfig, fs afero.Fs, in io.Reader, stdout io.Writer, reporter progress.Reporter) (<-chan Event, <-chan Result) {
	events := make(chan Event)
	done := make(chan Result, 1)

	go func() {
		defer close(events)
		defer close(done)

		if reporter == nil {
			reporter = progress.NullReporter{}
		}

		if err := guardConfig(cfg); err != nil {
			done <- Result{Err: err}
			return
		}

		start := time.Now()
		buf := buffer.New(in, cfg.BufferSize)
		if err := locator.Locate(buf, cfg.Key); err != nil {
			done <- Result{Err: err}
			return
		}
		scan := scanner.New(buf)

		var result Result
		if cfg.Parallel() {
			result = e.runParallel(ctx, cfg, fs, scan, events, reporter, start)
		} else {
			result = e.runSequential(ctx, cfg, fs, stdout, scan, events, reporter, start)
		}
		done <- result
	}()

	return events, done
}

func guardConfig(cfg config.ExtractorConfig) error {
	if err := pathguard.Check(cfg.TmpDir, "tmpdir"); err != nil {
		return err
	}
	if err := pathguard.Check(cfg.SplitPrefix, "split-prefix"); err != nil {
		return err
	}
	return nil
}

func (e *Engine) runSequential(ctx context.Context, cfg config.ExtractorConfig, fs afero.Fs, stdout io.Writer, scan *scanner.Scanner, events chan<- Event, reporter progress.Reporter, start time.Time) Result {
	var rt *router.Router
	if cfg.Sharded() {
		rt = router.NewSharded(fs, cfg.Mode, cfg.SplitPrefix, cfg.SplitLines)
	} else {
		rt = router.New(fs, cfg.Mode, cfg.Out, stdout)
	}

	var seq uint64
	for {
		if ctx.Err() != nil {
			return Result{Err: ctx.Err()}
		}
		el, more, err := scan.Next()
		if err != nil {
			sendEvent(ctx, events, Event{Type: "error", Err: err})
			return Result{Err: err}
		}
		if !more {
			break
		}
		if err := rt.WriteElement(el.Bytes); err != nil {
			sendEvent(ctx, events, Event{Type: "error", Err: err})
			return Result{Err: err}
		}
		seq = el.Seq
		sendEvent(ctx, events, Event{Type: "element", Seq: seq})
		reporter.Update(progress.Counters{
			ElementsWritten: int64(seq),
			BytesRead:       scan.BytesRead(),
			ChunksCreated:   rt.Stats().ChunksCreated,
			Elapsed:         time.Since(start),
		})
	}

	if err := rt.Close(); err != nil {
		return Result{Err: err}
	}

	stats := rt.Stats()
	summary := progress.Summary{
		TotalElements: stats.ElementsWritten,
		TotalBytes:    scan.BytesRead(),
		ChunksCreated: stats.ChunksCreated,
		Chunks:        toChunkSummaries(stats.Chunks),
		Duration:      time.Since(start),
	}
	reporter.Finish(summary)
	return Result{Summary: summary}
}

func toChunkSummaries(chunks []router.ChunkStat) []progress.ChunkSummary {
	if len(chunks) == 0 {
		return nil
	}
	out := make([]progress.ChunkSummary, len(chunks))
	for i, c := range chunks {
		out[i] = progress.ChunkSummary{Path: c.Path, Records: c.Records}
	}
	return out
}

func (e *Engine) runParallel(ctx context.Context, cfg config.ExtractorConfig, fs afero.Fs, scan *scanner.Scanner, events chan<- Event, reporter progress.Reporter, start time.Time) Result {
	// Sharded runs name temp files after the shard prefix; an unsharded
	// parallel run (spec §4.5: every element lands in chunk 1 when
	// split-lines is unset) has no split-prefix, so fall back to the
	// destination file's basename instead.
	safePrefix := filepath.Base(cfg.SplitPrefix)
	if !cfg.Sharded() {
		safePrefix = filepath.Base(cfg.Out)
	}

	// chunkPath maps a merged chunk index to its final destination: a
	// numbered shard file when sharded, or cfg.Out directly when not
	// (there is exactly one chunk index, 1, in that case).
	chunkPath := func(idx int) string {
		if cfg.Sharded() {
			return merge.FinalChunkName(cfg.SplitPrefix, idx)
		}
		return cfg.Out
	}

	// Each run gets its own uuid-named subdirectory under cfg.TmpDir so
	// concurrent jsonsplit invocations sharing a tmpdir never collide on
	// the <safe_prefix>_<chunk>_w<worker>.ndtmp naming scheme.
	runTmpDir := filepath.Join(cfg.TmpDir, uuid.NewString())
	if err := fs.MkdirAll(runTmpDir, 0o755); err != nil {
		return Result{Err: &jsonerr.IOError{Op: "mkdir " + runTmpDir, Err: err}}
	}
	defer fs.RemoveAll(runTmpDir)

	w := parallel.New(fs, runTmpDir, safePrefix, cfg.SplitLines, cfg.Workers, parallel.QueueDrain)
	w.Start()

	var seq uint64
	for {
		if ctx.Err() != nil {
			_ = w.Close()
			return Result{Err: ctx.Err()}
		}
		el, more, err := scan.Next()
		if err != nil {
			_ = w.Close()
			sendEvent(ctx, events, Event{Type: "error", Err: err})
			return Result{Err: err}
		}
		if !more {
			break
		}
		b := make([]byte, len(el.Bytes))
		copy(b, el.Bytes)
		w.Enqueue(parallel.QueueItem{Seq: el.Seq, Bytes: b})
		seq = el.Seq
		sendEvent(ctx, events, Event{Type: "element", Seq: seq})
		reporter.Update(progress.Counters{ElementsWritten: int64(seq), BytesRead: scan.BytesRead(), Elapsed: time.Since(start)})
	}

	if err := w.Close(); err != nil {
		return Result{Err: err}
	}

	mergeResult, err := merge.Merge(fs, runTmpDir, safePrefix, cfg.Workers, w.ChunkIndices(), chunkPath, func(idx int, records int64) {
		reporter.Update(progress.Counters{ElementsWritten: int64(seq), BytesRead: scan.BytesRead(), ChunksCreated: idx, Elapsed: time.Since(start)})
	})
	if err != nil {
		return Result{Err: &jsonerr.WorkerFailureError{Err: err}}
	}

	chunks := make([]progress.ChunkSummary, len(mergeResult.Chunks))
	for i, c := range mergeResult.Chunks {
		chunks[i] = progress.ChunkSummary{Path: c.Path, Records: c.Records}
	}
	summary := progress.Summary{
		TotalElements: mergeResult.RecordsMerged,
		TotalBytes:    scan.BytesRead(),
		ChunksCreated: mergeResult.ChunksMerged,
		Chunks:        chunks,
		Duration:      time.Since(start),
	}
	reporter.Finish(summary)
	return Result{Summary: summary}
}

func sendEvent(ctx context.Context, events chan<- Event, evt Event) {
	select {
	case events <- evt:
	case <-ctx.Done():
	}
}
