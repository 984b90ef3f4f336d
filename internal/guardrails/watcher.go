package guardrails

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize style guide watcher")

// Source supplies the style guide currently in force.
type Source interface {
	Current() *StyleGuide
}

// Static is a Source that never changes.
type Static struct{ Guide *StyleGuide }

// Current returns the fixed guide.
func (s Static) Current() *StyleGuide { return s.Guide }

// Watcher reloads a style guide file whenever it changes. A file that fails
// to parse is logged and ignored; the previous guide stays in force.
type Watcher struct {
	path       string
	disclosure string
	current    atomic.Pointer[StyleGuide]
	watcher    *fsnotify.Watcher
	logger     *zap.Logger
	reloads    atomic.Int64
	done       chan struct{}
}

// NewWatcher loads path and prepares to watch it. disclosure, when set,
// overrides the file's disclosure text on every load.
func NewWatcher(path, disclosure string, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	g, err := LoadStyleGuide(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	// Editors often replace files by rename, so watch the directory.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	w := &Watcher{
		path:       filepath.Clean(path),
		disclosure: disclosure,
		watcher:    fw,
		logger:     logger,
		done:       make(chan struct{}),
	}
	w.current.Store(g.WithDisclosure(disclosure))
	return w, nil
}

// Current returns the latest successfully loaded guide.
func (w *Watcher) Current() *StyleGuide { return w.current.Load() }

// Reloads counts successful reloads after the initial load.
func (w *Watcher) Reloads() int64 { return w.reloads.Load() }

// Run processes file events until ctx is done or Close is called.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("style guide watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	g, err := LoadStyleGuide(w.path)
	if err != nil {
		w.logger.Warn("style guide reload failed, keeping previous rules",
			zap.String("path", w.path), zap.Error(err))
		return
	}
	w.current.Store(g.WithDisclosure(w.disclosure))
	w.reloads.Add(1)
	w.logger.Info("style guide reloaded", zap.String("path", w.path))
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
		close(w.done)
	}
	return w.watcher.Close()
}
