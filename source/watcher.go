package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// defaultDebounce is how long changes accumulate before an event fires.
	defaultDebounce = 500 * time.Millisecond

	// eventChannelBuffer is the size of the change event channel.
	eventChannelBuffer = 16
)

// ContentHash returns the hex SHA-256 of content.
func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// ChangeEvent reports that the watched document has new content.
type ChangeEvent struct {
	Path string
	Hash string
}

// FileWatcher watches a single input document and emits an event each time
// its content changes. The parent directory is watched so editors that
// replace the file by rename are still seen.
type FileWatcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	mu      sync.Mutex
	pending bool
	hash    string

	events chan ChangeEvent
}

// NewFileWatcher creates a watcher for path. A zero debounce uses 500ms.
func NewFileWatcher(path string, debounce time.Duration, logger *slog.Logger) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve watch path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	w := &FileWatcher{
		path:     abs,
		debounce: debounce,
		watcher:  fsw,
		logger:   logger,
		events:   make(chan ChangeEvent, eventChannelBuffer),
	}

	// Seed the hash so the first event is a real change.
	if content, err := os.ReadFile(abs); err == nil {
		w.hash = ContentHash(content)
	}

	return w, nil
}

// Events returns the channel of change events. It is closed when the
// watcher stops.
func (w *FileWatcher) Events() <-chan ChangeEvent {
	return w.events
}

// Start begins watching. Events stop when ctx is cancelled or Stop is called.
func (w *FileWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	go w.processEvents(ctx)

	w.logger.Info("Input watcher started",
		"path", w.path,
		"debounce", w.debounce)
	return nil
}

// Stop stops the watcher.
func (w *FileWatcher) Stop() error {
	return w.watcher.Close()
}

func (w *FileWatcher) processEvents(ctx context.Context) {
	defer close(w.events)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.mu.Lock()
				w.pending = true
				w.mu.Unlock()
				w.logger.Debug("Input change detected", "op", event.Op.String())
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

func (w *FileWatcher) flushPending(ctx context.Context) {
	w.mu.Lock()
	if !w.pending {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.mu.Unlock()

	content, err := os.ReadFile(w.path)
	if err != nil {
		// Removed or mid-rename; the next create event retriggers.
		w.logger.Debug("Input not readable", "path", w.path, "error", err)
		return
	}

	hash := ContentHash(content)
	w.mu.Lock()
	unchanged := hash == w.hash
	w.hash = hash
	w.mu.Unlock()
	if unchanged {
		return
	}

	select {
	case w.events <- ChangeEvent{Path: w.path, Hash: hash}:
	case <-ctx.Done():
	default:
		w.logger.Warn("Change event channel full, dropping event", "path", w.path)
	}
}
