package checklist

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce coalesces the burst of writes editors produce on save.
const DefaultDebounce = 150 * time.Millisecond

// Change describes a checklist file that was created, written or removed.
type Change struct {
	Filename string `json:"filename"`
	Op       string `json:"op"`
}

// Watcher evicts cached checklists when their files change and reports the change.
type Watcher struct {
	catalog  *Catalog
	watcher  *fsnotify.Watcher
	onChange func(Change)
	debounce time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	done    chan struct{}
}

// NewWatcher starts watching the catalog directory. onChange may be nil.
func NewWatcher(catalog *Catalog, onChange func(Change), logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(catalog.Dir()); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", catalog.Dir(), err)
	}
	return &Watcher{
		catalog:  catalog,
		watcher:  fw,
		onChange: onChange,
		debounce: DefaultDebounce,
		logger:   logger.With().Str("component", "checklist-watcher").Logger(),
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}, nil
}

// Run processes file events until ctx is cancelled or Close is called.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	name := filepath.Base(ev.Name)
	if !strings.HasSuffix(name, ".md") {
		return
	}

	var op string
	switch {
	case ev.Has(fsnotify.Create):
		op = "created"
	case ev.Has(fsnotify.Write):
		op = "written"
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		op = "removed"
	default:
		return
	}

	w.catalog.Invalidate(name)

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[name]; ok {
		t.Stop()
	}
	w.pending[name] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, name)
		w.mu.Unlock()

		w.catalog.Invalidate(name)
		w.logger.Info().Str("file", name).Str("op", op).Msg("Checklist changed")
		if w.onChange != nil {
			w.onChange(Change{Filename: name, Op: op})
		}
	})
}

// Close stops the watcher and any pending notifications.
func (w *Watcher) Close() error {
	w.mu.Lock()
	for _, t := range w.pending {
		t.Stop()
	}
	w.pending = map[string]*time.Timer{}
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
