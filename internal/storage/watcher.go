package storage

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Event reports an externally observed change to a stored key, e.g. another
// taskdeck process logging out. It is the explicit subscription capability
// the session store consumes instead of polling.
type Event struct {
	Key string
	Op  fsnotify.Op
}

// Watcher forwards state-directory changes as key events.
type Watcher struct {
	store  *Store
	logger *slog.Logger
	events chan Event
}

// NewWatcher wraps a store with a change subscription.
func NewWatcher(store *Store, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		store:  store,
		logger: logger,
		events: make(chan Event, 16),
	}
}

// Events returns the subscription channel. It is closed when the watcher
// stops.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start begins watching until ctx is cancelled. Events that arrive while the
// channel is full are dropped; consumers treat events as "state may be
// stale", so a dropped duplicate loses nothing.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.store.Dir()); err != nil {
		fsw.Close()
		return err
	}

	go func() {
		defer fsw.Close()
		defer close(w.events)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				key := filepath.Base(ev.Name)
				if strings.HasSuffix(key, ".tmp") {
					continue
				}
				select {
				case w.events <- Event{Key: key, Op: ev.Op}:
				default:
				}
				w.logger.Debug("stored key changed", "key", key, "op", ev.Op.String())
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.logger.Error("storage watcher error", "error", err)
			}
		}
	}()
	return nil
}
