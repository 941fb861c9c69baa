// Package watch reports the metadata of files as they appear or change in
// watched directories.
//
// A Watcher observes directories with fsnotify, waits until a file has
// been quiet for the debounce interval, and then queries its metadata
// through an exiftool client. Sharing a running client between the
// watcher and other callers is safe; batches are serialized by the client.
//
//	et := exiftool.New()
//	if err := et.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer et.Terminate()
//
//	w := watch.New(et, watch.WithExtensions(".jpg", ".png"))
//	events, err := w.Run(ctx, "/photos/incoming")
//	for ev := range events {
//	    ...
//	}
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/alanlgardner/pyexiftool/exiftool"
)

// DefaultDebounce is how long a file must be quiet before it is queried.
const DefaultDebounce = 200 * time.Millisecond

// minTick bounds how often pending files are checked.
const minTick = time.Millisecond

// Querier looks up file metadata. *exiftool.ExifTool implements it.
type Querier interface {
	Metadata(ctx context.Context, paths ...string) (exiftool.View, error)
}

// Event is the outcome of querying one changed file.
type Event struct {
	Path     string
	Metadata *exiftool.FileMetadata // nil when Err is set
	Err      error
}

// Watcher turns file system changes into metadata events.
type Watcher struct {
	q        Querier
	exts     map[string]bool
	debounce time.Duration
	buffer   int
	log      *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithExtensions limits events to files with these extensions
// (case-insensitive, with or without the leading dot).
func WithExtensions(exts ...string) Option {
	return func(w *Watcher) {
		for _, ext := range exts {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			w.exts[ext] = true
		}
	}
}

// WithDebounce sets how long a file must be quiet before it is queried.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithBuffer sets the capacity of the event channel.
func WithBuffer(n int) Option {
	return func(w *Watcher) { w.buffer = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.log = l }
}

// New creates a Watcher that queries metadata through q.
func New(q Querier, opts ...Option) *Watcher {
	w := &Watcher{
		q:        q,
		exts:     make(map[string]bool),
		debounce: DefaultDebounce,
		buffer:   16,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	return w
}

// Run watches dirs until ctx is cancelled. The returned channel is closed
// when watching stops. Subdirectories are not watched.
func (w *Watcher) Run(ctx context.Context, dirs ...string) (<-chan Event, error) {
	if len(dirs) == 0 {
		return nil, errors.New("no directories to watch")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	ch := make(chan Event, w.buffer)
	go func() {
		defer close(ch)
		defer fw.Close()
		w.loop(ctx, fw, ch)
	}()

	return ch, nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, ch chan<- Event) {
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(max(w.debounce/2, minTick))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.matches(event.Name) {
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", slog.Any("error", err))

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < w.debounce {
					continue
				}
				delete(pending, path)

				ev, ok := w.query(ctx, path)
				if !ok {
					continue
				}
				select {
				case ch <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (w *Watcher) matches(path string) bool {
	if len(w.exts) == 0 {
		return true
	}
	return w.exts[strings.ToLower(filepath.Ext(path))]
}

// query looks up one settled file. Files that vanished or are not
// regular files produce no event.
func (w *Watcher) query(ctx context.Context, path string) (Event, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		w.log.Debug("skipping changed path", slog.String("path", path))
		return Event{}, false
	}

	view, err := w.q.Metadata(ctx, path)
	if err != nil {
		return Event{Path: path, Err: err}, true
	}

	for fm, err := range view.Records(ctx) {
		if err != nil {
			return Event{Path: path, Err: err}, true
		}
		return Event{Path: path, Metadata: fm}, true
	}
	return Event{Path: path, Err: fmt.Errorf("no metadata for %s", path)}, true
}
