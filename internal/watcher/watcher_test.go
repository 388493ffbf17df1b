package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recordingHandler struct {
	mu    sync.Mutex
	names []string
	seen  chan string
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{seen: make(chan string, 10)}
}

func (h *recordingHandler) handle(_ context.Context, name string) {
	h.mu.Lock()
	h.names = append(h.names, name)
	h.mu.Unlock()
	h.seen <- name
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.names)
}

func startWatcher(t *testing.T, dir string, h Handler) (context.CancelFunc, chan error) {
	t.Helper()
	w, err := New(dir, h, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()
	// Give the event loop a moment to come up.
	time.Sleep(50 * time.Millisecond)
	return cancel, done
}

func TestWatcher_TriggersOnNewTranscript(t *testing.T) {
	dir := t.TempDir()
	h := newRecordingHandler()
	cancel, _ := startWatcher(t, dir, h.handle)
	defer cancel()

	path := filepath.Join(dir, "Acme_20250503.txt")
	if err := os.WriteFile(path, []byte("meeting notes"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case name := <-h.seen:
		if name != "Acme_20250503.txt" {
			t.Errorf("handler got %q", name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler never called for new transcript")
	}
}

func TestWatcher_IgnoresNonTranscriptFiles(t *testing.T) {
	dir := t.TempDir()
	h := newRecordingHandler()
	cancel, _ := startWatcher(t, dir, h.handle)
	defer cancel()

	if err := os.WriteFile(filepath.Join(dir, "notes.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Acme-no-date.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case name := <-h.seen:
		t.Fatalf("handler called for non-transcript file %q", name)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_CoalescesRepeatedWrites(t *testing.T) {
	dir := t.TempDir()
	h := newRecordingHandler()
	cancel, _ := startWatcher(t, dir, h.handle)
	defer cancel()

	path := filepath.Join(dir, "Globex_20250110.txt")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if _, err := f.WriteString("chunk\n"); err != nil {
			t.Fatal(err)
		}
		if err := f.Sync(); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	f.Close()

	select {
	case <-h.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never called")
	}

	// No second invocation should follow the settle window.
	time.Sleep(200 * time.Millisecond)
	if got := h.count(); got != 1 {
		t.Errorf("handler called %d times, want 1", got)
	}
}

func TestWatcher_StopsOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	h := newRecordingHandler()
	cancel, done := startWatcher(t, dir, h.handle)

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Start returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestNew_MissingDirFails(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope"), func(context.Context, string) {}, 0)
	if err == nil {
		t.Fatal("New succeeded on missing directory")
	}
}
