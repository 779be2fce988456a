// Package parallel implements the parallel writer (spec §4.5, component
// C5): a bounded queue feeding K worker goroutines, each appending element
// lines to its own per-chunk temp file, followed by the deterministic
// merge pass in internal/merge. Workers draining a shared channel is the
// idiomatic-Go rendering of spec §4.5's "bounded MPSC queue + K
// consumers": closing the channel is the natural Go equivalent of the
// spec's "enqueue K sentinels, workers exit on sentinel," since every
// worker ranging over a closed channel drains whatever remains and then
// returns on its own.
package parallel

import (
	"container/list"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/joeblau/jsonsplit/internal/jsonerr"
	"github.com/joeblau/jsonsplit/internal/merge"
	"github.com/joeblau/jsonsplit/internal/router"
)

const osAppendFlags = os.O_CREATE | os.O_WRONLY | os.O_APPEND

// QueueItem is one element handed from the parser thread to a worker.
type QueueItem struct {
	Seq   uint64
	Bytes []byte
}

// AssignmentMode selects how elements are routed to workers.
type AssignmentMode int

const (
	// QueueDrain is the default: all workers drain one shared channel, so
	// which worker handles a given seq is whatever the Go runtime's
	// channel scheduling decides (spec §4.5's documented non-ordering).
	QueueDrain AssignmentMode = iota
	// SeqModK deterministically routes seq to worker (seq-1)%K + 1,
	// enabling the reordering-free merge spec §9 describes as an
	// optional variant for callers that need it.
	SeqModK
)

const maxOpenHandlesPerWorker = 16

// Writer runs the parallel writer pipeline. Callers send elements via
// Enqueue, then call Close to signal EOF and wait for all workers to
// finish. ChunkIndices is only meaningful after Close returns.
type Writer struct {
	fs         afero.Fs
	tmpDir     string
	safePrefix string
	splitLines int
	workers    int
	mode       AssignmentMode

	shared chan QueueItem
	lanes  []chan QueueItem

	wg        sync.WaitGroup
	mu        sync.Mutex
	errs      *multierror.Error
	chunkSeen map[int]bool
	started   bool
}

// New creates a Writer. A splitLines of 0 means no sharding: every element
// goes to chunk 1.
func New(fs afero.Fs, tmpDir, safePrefix string, splitLines, workers int, mode AssignmentMode) *Writer {
	w := &Writer{
		fs:         fs,
		tmpDir:     tmpDir,
		safePrefix: safePrefix,
		splitLines: splitLines,
		workers:    workers,
		mode:       mode,
		chunkSeen:  map[int]bool{},
	}
	if mode == QueueDrain {
		w.shared = make(chan QueueItem, workers*4)
	} else {
		w.lanes = make([]chan QueueItem, workers)
		for i := range w.lanes {
			w.lanes[i] = make(chan QueueItem, 4)
		}
	}
	return w
}

// Start launches the K worker goroutines.
func (w *Writer) Start() {
	if w.started {
		return
	}
	w.started = true
	for id := 1; id <= w.workers; id++ {
		w.wg.Add(1)
		go w.runWorker(id)
	}
}

// Enqueue hands one element to the pipeline. It blocks if the queue (or,
// in SeqModK mode, the destination worker's lane) is full.
func (w *Writer) Enqueue(item QueueItem) {
	if w.mode == QueueDrain {
		w.shared <- item
		return
	}
	lane := int((item.Seq - 1) % uint64(w.workers))
	w.lanes[lane] <- item
}

// Close signals EOF to every worker and blocks until they all exit. The
// returned error is a *jsonerr.WorkerFailureError aggregating every
// worker's I/O failures, or nil.
func (w *Writer) Close() error {
	if w.mode == QueueDrain {
		close(w.shared)
	} else {
		for _, lane := range w.lanes {
			close(lane)
		}
	}
	w.wg.Wait()

	if w.errs == nil {
		return nil
	}
	return &jsonerr.WorkerFailureError{Err: w.errs.ErrorOrNil()}
}

// ChunkIndices returns every chunk index touched by any worker, suitable
// as input to merge.Merge. Only valid after Close.
func (w *Writer) ChunkIndices() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	indices := make([]int, 0, len(w.chunkSeen))
	for idx := range w.chunkSeen {
		indices = append(indices, idx)
	}
	for i := 1; i < len(indices); i++ {
		for j := i; j > 0 && indices[j-1] > indices[j]; j-- {
			indices[j-1], indices[j] = indices[j], indices[j-1]
		}
	}
	return indices
}

func (w *Writer) runWorker(id int) {
	defer w.wg.Done()
	handles := newHandleCache(w.fs, maxOpenHandlesPerWorker)
	defer handles.closeAll()

	in := w.shared
	if w.mode == SeqModK {
		in = w.lanes[id-1]
	}

	for item := range in {
		chunkIdx := 1
		if w.splitLines > 0 {
			chunkIdx = int((item.Seq+uint64(w.splitLines)-1) / uint64(w.splitLines))
		}
		path := filepath.Join(w.tmpDir, merge.TempFileName(w.safePrefix, chunkIdx, id))
		f, err := handles.get(path)
		if err != nil {
			w.recordErr(fmt.Errorf("worker %d: open %s: %w", id, path, err))
			continue
		}
		if _, err := f.Write(router.FlattenNewlines(item.Bytes)); err != nil {
			w.recordErr(fmt.Errorf("worker %d: write %s: %w", id, path, err))
			continue
		}
		if _, err := f.Write([]byte("\n")); err != nil {
			w.recordErr(fmt.Errorf("worker %d: write %s: %w", id, path, err))
			continue
		}
		w.markChunk(chunkIdx)
	}
}

func (w *Writer) recordErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errs = multierror.Append(w.errs, err)
}

func (w *Writer) markChunk(idx int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chunkSeen[idx] = true
}

// handleCache is a small LRU of open afero.File handles, since a single
// worker may touch far more chunk files over a long run than it should
// keep open simultaneously (spec §4.5: "keeping a small LRU of open
// handles").
type handleCache struct {
	fs    afero.Fs
	cap   int
	order *list.List
	items map[string]*list.Element
}

type handleEntry struct {
	path string
	file afero.File
}

func newHandleCache(fs afero.Fs, cap int) *handleCache {
	return &handleCache{fs: fs, cap: cap, order: list.New(), items: map[string]*list.Element{}}
}

func (c *handleCache) get(path string) (afero.File, error) {
	if el, ok := c.items[path]; ok {
		c.order.MoveToFront(el)
		return el.Value.(*handleEntry).file, nil
	}

	f, err := c.fs.OpenFile(path, osAppendFlags, 0o644)
	if err != nil {
		return nil, err
	}
	el := c.order.PushFront(&handleEntry{path: path, file: f})
	c.items[path] = el

	if c.order.Len() > c.cap {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		entry := oldest.Value.(*handleEntry)
		delete(c.items, entry.path)
		entry.file.Close()
	}
	return f, nil
}

func (c *handleCache) closeAll() {
	for el := c.order.Front(); el != nil; el = el.Next() {
		el.Value.(*handleEntry).file.Close()
	}
}
