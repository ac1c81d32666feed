package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/app"
	"docrag/internal/model"
)

type recordingIngester struct {
	mu     sync.Mutex
	inputs []app.IngestInput
	seen   chan string
}

func newRecordingIngester() *recordingIngester {
	return &recordingIngester{seen: make(chan string, 16)}
}

func (r *recordingIngester) Reingest(_ context.Context, input app.IngestInput) (*app.IngestResult, error) {
	r.mu.Lock()
	r.inputs = append(r.inputs, input)
	r.mu.Unlock()
	r.seen <- input.FileName
	return &app.IngestResult{Document: &model.Document{ID: "doc-" + input.FileName}, TotalChunks: 1}, nil
}

func (r *recordingIngester) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inputs)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case name := <-ch:
		return name
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for ingestion")
		return ""
	}
}

func TestHandleEvent(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	png := filepath.Join(dir, "image.png")
	hidden := filepath.Join(dir, ".draft.md")
	for _, p := range []string{txt, png, hidden} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.md"), 0o755))

	w := New(dir, newRecordingIngester(), Options{}, discard())
	cases := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"create", fsnotify.Event{Name: txt, Op: fsnotify.Create}, true},
		{"write with chmod", fsnotify.Event{Name: txt, Op: fsnotify.Write | fsnotify.Chmod}, true},
		{"chmod only", fsnotify.Event{Name: txt, Op: fsnotify.Chmod}, false},
		{"remove", fsnotify.Event{Name: txt, Op: fsnotify.Remove}, false},
		{"unsupported", fsnotify.Event{Name: png, Op: fsnotify.Create}, false},
		{"hidden", fsnotify.Event{Name: hidden, Op: fsnotify.Create}, false},
		{"directory", fsnotify.Event{Name: filepath.Join(dir, "sub.md"), Op: fsnotify.Create}, false},
		{"vanished", fsnotify.Event{Name: filepath.Join(dir, "gone.txt"), Op: fsnotify.Write}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := w.handleEvent(tc.ev)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestRunIngestsNewFilesAfterDebounce(t *testing.T) {
	dir := t.TempDir()
	ing := newRecordingIngester()
	w := New(dir, ing, Options{Debounce: 50 * time.Millisecond, OwnerID: "watcher"}, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "report.md")
	require.NoError(t, os.WriteFile(path, []byte("first"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("first and second"), 0o644))

	assert.Equal(t, "report.md", waitFor(t, ing.seen))
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, ing.count())

	ing.mu.Lock()
	assert.Equal(t, "first and second", string(ing.inputs[0].Data))
	assert.Equal(t, "watcher", ing.inputs[0].OwnerID)
	ing.mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestRunInitialScan(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.bin"), []byte("bin"), 0o644))
	ing := newRecordingIngester()
	w := New(dir, ing, Options{InitialScan: true}, discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	assert.Equal(t, "a.txt", waitFor(t, ing.seen))
}

func TestRunRejectsMissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "nope"), newRecordingIngester(), Options{}, discard())
	assert.Error(t, w.Run(context.Background()))
}
