package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/backend"
	"docchat/internal/chat"
)

type fakeUploader struct {
	mu        sync.Mutex
	results   []error // returned by successive SubmitPaths calls
	submitted chan []string
}

func newFakeUploader(results ...error) *fakeUploader {
	return &fakeUploader{results: results, submitted: make(chan []string, 32)}
}

func (f *fakeUploader) SubmitPaths(ctx context.Context, paths []string) error {
	f.mu.Lock()
	var err error
	if len(f.results) > 0 {
		err, f.results = f.results[0], f.results[1:]
	}
	f.mu.Unlock()

	select {
	case f.submitted <- paths:
	default:
	}
	return err
}

func startWatcher(t *testing.T, dir string, up Uploader) {
	t.Helper()
	w, err := New([]string{".txt", ".PDF"}, 50*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, dir, up) }()

	t.Cleanup(func() {
		cancel()
		<-done
		w.Close()
	})

	// give Run time to register the directory
	time.Sleep(50 * time.Millisecond)
}

func waitSubmit(t *testing.T, up *fakeUploader) []string {
	t.Helper()
	select {
	case sel := <-up.submitted:
		return sel
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for upload")
		return nil
	}
}

func TestWatcherBatchesNewFiles(t *testing.T) {
	dir := t.TempDir()
	up := newFakeUploader()
	startWatcher(t, dir, up)

	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.pdf")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0600))
	require.NoError(t, os.WriteFile(b, []byte("b"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.bin"), []byte("x"), 0600))

	got := waitSubmit(t, up)
	// events can straddle a debounce window; collect until both are seen
	for len(dedupe(got)) < 2 {
		got = append(got, waitSubmit(t, up)...)
	}
	assert.ElementsMatch(t, []string{a, b}, dedupe(got))
}

func TestWatcherRetriesWhenBusy(t *testing.T) {
	dir := t.TempDir()
	up := newFakeUploader(chat.ErrBusy, nil)
	startWatcher(t, dir, up)

	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("doc"), 0600))

	first := waitSubmit(t, up)
	second := waitSubmit(t, up)
	assert.Contains(t, first, path)
	assert.Contains(t, second, path)
}

// heldBackend blocks every upload until release is closed
type heldBackend struct {
	entered chan []string
	release chan struct{}
}

func (b *heldBackend) Upload(ctx context.Context, paths []string) (*backend.UploadResponse, error) {
	b.entered <- paths
	<-b.release
	return &backend.UploadResponse{FileURI: "f", SessionID: "s"}, nil
}

func (b *heldBackend) UploadURL(ctx context.Context, url string) (*backend.TextResponse, error) {
	return nil, errors.New("not used")
}

func (b *heldBackend) Ask(ctx context.Context, question, sessionID string) (*backend.TextResponse, error) {
	return nil, errors.New("not used")
}

func TestWatcherWaitsForManualUpload(t *testing.T) {
	dir := t.TempDir()
	store := chat.NewStore()
	held := &heldBackend{entered: make(chan []string, 8), release: make(chan struct{})}

	var mu sync.Mutex
	var alerts []chat.Alert
	up := chat.NewUploadController(store, held, chat.AlerterFunc(func(a chat.Alert) {
		mu.Lock()
		alerts = append(alerts, a)
		mu.Unlock()
	}), nil, 0)

	var selections atomic.Int32
	store.Subscribe(func(ev chat.Event) {
		if ev.Type == chat.EventSelection {
			selections.Add(1)
		}
	})

	manual := []string{"/manual/user.pdf"}
	up.SelectFiles(manual)
	done := make(chan error, 1)
	go func() { done <- up.SubmitFiles(context.Background()) }()
	require.Equal(t, manual, <-held.entered)

	startWatcher(t, dir, up)
	path := filepath.Join(dir, "new.pdf")
	require.NoError(t, os.WriteFile(path, []byte("pdf"), 0600))

	// several debounce windows pass while the manual upload is held
	time.Sleep(400 * time.Millisecond)

	assert.Equal(t, manual, up.Selection())
	assert.EqualValues(t, 1, selections.Load())
	mu.Lock()
	assert.Empty(t, alerts)
	mu.Unlock()

	close(held.release)
	require.NoError(t, <-done)

	select {
	case paths := <-held.entered:
		assert.Equal(t, []string{path}, paths)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for watched upload")
	}
}

func TestIsWatchedExtension(t *testing.T) {
	w, err := New([]string{".PDF"}, 0, nil)
	require.NoError(t, err)
	defer w.Close()

	assert.True(t, w.isWatchedExtension("/x/report.pdf"))
	assert.True(t, w.isWatchedExtension("/x/REPORT.PDF"))
	assert.False(t, w.isWatchedExtension("/x/report.txt"))
}

func dedupe(in []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
