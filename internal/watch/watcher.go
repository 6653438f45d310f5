// Package watch uploads documents dropped into a directory.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"docchat/internal/chat"
)

// Uploader is the part of chat.UploadController the watcher drives.
// SubmitPaths must return chat.ErrBusy, without side effects, while another
// upload is outstanding.
type Uploader interface {
	SubmitPaths(ctx context.Context, paths []string) error
}

// Watcher batches file events and submits them as one upload
type Watcher struct {
	watcher    *fsnotify.Watcher
	extensions []string
	debounce   time.Duration
	log        *slog.Logger
}

// New creates a watcher for files with the given extensions
func New(extensions []string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	exts := make([]string, len(extensions))
	for i, e := range extensions {
		exts[i] = strings.ToLower(e)
	}

	return &Watcher{
		watcher:    w,
		extensions: exts,
		debounce:   debounce,
		log:        logger,
	}, nil
}

// Run watches dir until ctx is done. Files created or written within one
// debounce window are uploaded together. A batch that finds the upload
// controller busy is kept and retried on the next window.
func (w *Watcher) Run(ctx context.Context, dir string, up Uploader) error {
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.log.Info("watching directory", "dir", dir, "extensions", w.extensions)

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.isWatchedExtension(event.Name) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := sortedKeys(pending)
			err := up.SubmitPaths(ctx, paths)
			if errors.Is(err, chat.ErrBusy) {
				w.log.Debug("upload busy, retrying batch", "files", len(paths))
				timer.Reset(w.debounce)
				continue
			}
			if err != nil {
				w.log.Error("watched upload failed", "files", len(paths), "error", err)
			}
			clear(pending)
		}
	}
}

// Close stops the underlying watcher
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) isWatchedExtension(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
