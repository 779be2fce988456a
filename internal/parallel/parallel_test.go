package parallel

import (
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"go.uber.org/goleak"

	"github.com/joeblau/jsonsplit/internal/merge"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestQueueDrainWritesAllElements(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := New(fs, "/tmp", "x", 2, 3, QueueDrain)
	w.Start()

	for seq := uint64(1); seq <= 6; seq++ {
		w.Enqueue(QueueItem{Seq: seq, Bytes: []byte(fmt.Sprintf(`{"id":%d}`, seq))})
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	indices := w.ChunkIndices()
	if len(indices) != 3 {
		t.Fatalf("expected 3 chunks (S=2, N=6), got %v", indices)
	}

	total := 0
	for chunk := 1; chunk <= 3; chunk++ {
		for worker := 1; worker <= 3; worker++ {
			path := "/tmp/" + merge.TempFileName("x", chunk, worker)
			if exists, _ := afero.Exists(fs, path); exists {
				b, err := afero.ReadFile(fs, path)
				if err != nil {
					t.Fatalf("read %s: %v", path, err)
				}
				total += countLinesForTest(b)
			}
		}
	}
	if total != 6 {
		t.Fatalf("expected 6 total lines across all temp files, got %d", total)
	}
}

func TestSeqModKDeterministicRouting(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := New(fs, "/tmp", "y", 10, 2, SeqModK)
	w.Start()
	for seq := uint64(1); seq <= 4; seq++ {
		w.Enqueue(QueueItem{Seq: seq, Bytes: []byte(fmt.Sprintf("%d", seq))})
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// seq 1,3 -> worker 1 (lane (seq-1)%2==0); seq 2,4 -> worker 2.
	w1, err := afero.ReadFile(fs, "/tmp/"+merge.TempFileName("y", 1, 1))
	if err != nil {
		t.Fatalf("read worker1 chunk: %v", err)
	}
	if string(w1) != "1\n3\n" {
		t.Fatalf("got %q", w1)
	}
	w2, err := afero.ReadFile(fs, "/tmp/"+merge.TempFileName("y", 1, 2))
	if err != nil {
		t.Fatalf("read worker2 chunk: %v", err)
	}
	if string(w2) != "2\n4\n" {
		t.Fatalf("got %q", w2)
	}
}

func TestEmbeddedNewlineFlattenedInWorkerOutput(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := New(fs, "/tmp", "n", 10, 1, QueueDrain)
	w.Start()
	w.Enqueue(QueueItem{Seq: 1, Bytes: []byte("{\"a\":1,\n\"b\":2}")})
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b, err := afero.ReadFile(fs, "/tmp/"+merge.TempFileName("n", 1, 1))
	if err != nil {
		t.Fatalf("read worker chunk: %v", err)
	}
	if string(b) != "{\"a\":1, \"b\":2}\n" {
		t.Fatalf("expected flattened embedded newline, got %q", b)
	}
}

func TestWorkerFailureAborts(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	w := New(fs, "/tmp", "z", 2, 1, QueueDrain)
	w.Start()
	w.Enqueue(QueueItem{Seq: 1, Bytes: []byte("1")})
	err := w.Close()
	if err == nil {
		t.Fatal("expected WorkerFailureError writing to a read-only fs")
	}
}

func countLinesForTest(b []byte) int {
	n := 0
	for _, c := range b {
		if c == '\n' {
			n++
		}
	}
	return n
}
