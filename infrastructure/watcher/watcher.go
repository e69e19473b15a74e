package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lensworks/lumen/domain/image"
)

// imageExtensions lists the file extensions the watcher and scanner treat as
// images.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
	".webp": true,
}

// IsImagePath reports whether a path has a recognised image extension.
func IsImagePath(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// Watcher follows a directory tree with fsnotify and feeds debounced image
// events to a handler. Directories created under the root are watched as
// they appear.
type Watcher struct {
	root      string
	debouncer *Debouncer
	logger    *slog.Logger
	fsw       *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// New creates a Watcher over root. Events settle in the debouncer for the
// given interval before handler is invoked.
func New(root string, interval time.Duration, handler func(image.PendingEvent), logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:      root,
		debouncer: NewDebouncer(handler, interval),
		logger:    logger,
		fsw:       fsw,
		done:      make(chan struct{}),
	}

	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}

	return w, nil
}

// Start runs the event loop until ctx is cancelled or Close is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.loop(ctx)
	w.logger.Info("watching for changes", slog.String("root", w.root))
}

// Close stops the event loop and flushes the debouncer. It is safe to call
// more than once, including concurrently.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		err := w.fsw.Close()
		if cerr := w.debouncer.Close(); err == nil {
			err = cerr
		}
		w.closeErr = err
	})
	return w.closeErr
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	// New directories need their own watch before files land in them.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory",
					slog.String("path", event.Name),
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}

	if !IsImagePath(event.Name) {
		return
	}

	kind, ok := eventKind(event.Op)
	if !ok {
		return
	}

	w.logger.Debug("filesystem event",
		slog.String("path", event.Name),
		slog.String("kind", kind.String()),
	)
	w.debouncer.Observe(image.NewPendingEvent(event.Name, kind, time.Now()))
}

// eventKind maps fsnotify operations onto domain event kinds. Rename is
// treated as a delete of the old name; the new name arrives as its own
// create event.
func eventKind(op fsnotify.Op) (image.EventKind, bool) {
	switch {
	case op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename):
		return image.EventDeleted, true
	case op.Has(fsnotify.Create):
		return image.EventCreated, true
	case op.Has(fsnotify.Write):
		return image.EventModified, true
	default:
		return 0, false
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}
