// Package watcher listens for screenshots appearing in a directory and feeds
// them, one at a time, to the rename pipeline.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/shotnamer/internal/naming"
	"github.com/thebtf/shotnamer/pkg/models"
)

// DefaultQueueSize is the number of detected screenshots that may wait for the consumer.
const DefaultQueueSize = 64

// ErrAlreadyRunning is returned by Run when the watcher is already running.
var ErrAlreadyRunning = errors.New("watcher already running")

// Handler processes one screenshot event.
type Handler interface {
	Process(ctx context.Context, ev models.ScreenshotEvent) models.Outcome
}

// Counter is told what happened to each creation event.
type Counter interface {
	RecordDetected()
	RecordSkipped()
	RecordDropped()
}

type noopCounter struct{}

func (noopCounter) RecordDetected() {}
func (noopCounter) RecordSkipped()  {}
func (noopCounter) RecordDropped()  {}

// Config configures a Watcher.
type Config struct {
	Dir       string
	QueueSize int
}

// Watcher observes creation events directly inside one directory.
// Screenshots are queued for a single consumer; everything else is ignored.
type Watcher struct {
	dir        string
	classifier *naming.Classifier
	handler    Handler
	counter    Counter
	watcher    *fsnotify.Watcher
	queue      chan models.ScreenshotEvent

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc

	pendingMu sync.Mutex
	pending   map[string]struct{}
}

// New creates a Watcher on cfg.Dir. counter may be nil.
func New(cfg Config, classifier *naming.Classifier, handler Handler, counter Counter) (*Watcher, error) {
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if counter == nil {
		counter = noopCounter{}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Watcher{
		dir:        dir,
		classifier: classifier,
		handler:    handler,
		counter:    counter,
		watcher:    fsw,
		queue:      make(chan models.ScreenshotEvent, cfg.QueueSize),
		pending:    make(map[string]struct{}),
	}, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Run watches until ctx is cancelled or Stop is called. Screenshots still
// queued at that point are abandoned; the OS watch is always released.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	w.running = true
	w.cancel = cancel
	w.mu.Unlock()

	defer func() {
		cancel()
		if err := w.watcher.Close(); err != nil {
			log.Warn().Err(err).Str("path", w.dir).Msg("Failed to release watch")
		}
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	log.Info().Str("path", w.dir).Str("prefix", w.classifier.Prefix()).Msg("Watching for screenshots")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return w.listen(gctx)
	})
	g.Go(func() error {
		return w.consume(gctx)
	})
	err := g.Wait()

	if n := len(w.queue); n > 0 {
		log.Info().Int("count", n).Msg("Abandoning queued screenshots")
	}
	log.Info().Str("path", w.dir).Msg("Watcher stopped")
	return err
}

// Stop ends a running watcher. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running && w.cancel != nil {
		w.cancel()
	}
}

// listen is the only reader of fsnotify; it never blocks on the pipeline.
func (w *Watcher) listen(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Str("path", w.dir).Msg("Watcher error")
		}
	}
}

// consume is the only reader of the queue.
func (w *Watcher) consume(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-w.queue:
			w.handler.Process(ctx, ev)
			w.release(ev.Path)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) {
		return
	}

	path := filepath.Clean(event.Name)
	if filepath.Dir(path) != w.dir {
		return
	}
	if info, err := os.Lstat(path); err == nil && info.IsDir() {
		return
	}

	if !w.classifier.IsScreenshot(path) {
		w.counter.RecordSkipped()
		log.Debug().Str("path", path).Msg("Ignoring non-screenshot file")
		return
	}

	ev := models.NewScreenshotEvent(path)
	if !w.claim(ev.Path) {
		log.Debug().Str("path", ev.Path).Msg("Screenshot already pending")
		return
	}

	select {
	case w.queue <- ev:
		w.counter.RecordDetected()
		entry := log.Info().Str("event_id", ev.ID).Str("path", ev.Path)
		if takenAt, ok := w.classifier.TakenAt(path); ok {
			entry = entry.Time("taken_at", takenAt)
		}
		entry.Msg("Screenshot detected")
	default:
		w.release(ev.Path)
		w.counter.RecordDropped()
		log.Warn().Str("path", ev.Path).Int("queue", cap(w.queue)).Msg("Screenshot queue full, leaving file unchanged")
	}
}

// claim marks path as pending and reports whether it was free.
func (w *Watcher) claim(path string) bool {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	if _, busy := w.pending[path]; busy {
		return false
	}
	w.pending[path] = struct{}{}
	return true
}

func (w *Watcher) release(path string) {
	w.pendingMu.Lock()
	delete(w.pending, path)
	w.pendingMu.Unlock()
}

// PendingCount returns the number of screenshots queued or in flight.
func (w *Watcher) PendingCount() int {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	return len(w.pending)
}
