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

	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/pdf-orders/internal/dispatch"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingSubmitter collects every submitted filename with its content.
type recordingSubmitter struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newRecordingSubmitter() *recordingSubmitter {
	return &recordingSubmitter{entries: map[string][]byte{}}
}

func (r *recordingSubmitter) Submit(_ context.Context, filename string, content []byte) (dispatch.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[filename] = content
	return dispatch.Submission{Filename: filename}, nil
}

func (r *recordingSubmitter) content(filename string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.entries[filename]
	return c, ok
}

func TestStart_RequiresFolder(t *testing.T) {
	_, _, err := Start(context.Background(), Config{}, testLogger())
	require.Error(t, err)
}

func TestStart_CreatesMissingFolder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	folder := filepath.Join(t.TempDir(), "inbox")
	_, _, err := Start(ctx, Config{Folder: folder}, testLogger())
	require.NoError(t, err)

	info, err := os.Stat(folder)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestWatcherForwardsNewFile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	folder := t.TempDir()
	events, _, err := Start(ctx, Config{Folder: folder, Debounce: 10 * time.Millisecond}, testLogger())
	require.NoError(t, err)

	sub := newRecordingSubmitter()
	go Forward(ctx, events, sub, testLogger())

	want := []byte("%PDF-1.4 watched")
	require.NoError(t, os.WriteFile(filepath.Join(folder, "incoming.pdf"), want, 0o644))

	require.Eventually(t, func() bool {
		_, ok := sub.content("incoming.pdf")
		return ok
	}, 5*time.Second, 10*time.Millisecond, "file was never submitted")

	got, _ := sub.content("incoming.pdf")
	require.Equal(t, want, got)
}

func TestWatcherIgnoresOtherExtensions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	folder := t.TempDir()
	events, _, err := Start(ctx, Config{Folder: folder, Debounce: 10 * time.Millisecond}, testLogger())
	require.NoError(t, err)

	sub := newRecordingSubmitter()
	go Forward(ctx, events, sub, testLogger())

	require.NoError(t, os.WriteFile(filepath.Join(folder, "notes.txt"), []byte("plain"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(folder, "scan.pdf"), []byte("%PDF"), 0o644))

	require.Eventually(t, func() bool {
		_, ok := sub.content("scan.pdf")
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	_, ok := sub.content("notes.txt")
	require.False(t, ok, "non-pdf files must not be submitted")
}

func TestInitialScanEmitsExistingFiles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	folder := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(folder, "backlog.pdf"), []byte("%PDF old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(folder, "skip.csv"), []byte("a,b"), 0o644))

	events, _, err := Start(ctx, Config{Folder: folder, InitialScan: true}, testLogger())
	require.NoError(t, err)

	sub := newRecordingSubmitter()
	go Forward(ctx, events, sub, testLogger())

	require.Eventually(t, func() bool {
		_, ok := sub.content("backlog.pdf")
		return ok
	}, 5*time.Second, 10*time.Millisecond, "pre-existing file was never submitted")

	_, ok := sub.content("skip.csv")
	require.False(t, ok)
}

func TestForwardStopsWhenEventsClose(t *testing.T) {
	events := make(chan string)
	close(events)

	done := make(chan struct{})
	go func() {
		defer close(done)
		Forward(context.Background(), events, newRecordingSubmitter(), testLogger())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forward loop did not exit on closed channel")
	}
}
