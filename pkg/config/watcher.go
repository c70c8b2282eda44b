package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadEvent reports one reload of the watched file.
type ReloadEvent struct {
	Path  string
	Error error
}

// Watcher reloads a Manager when its config file changes on disk.
type Watcher struct {
	manager  *Manager
	path     string
	watcher  *fsnotify.Watcher
	events   chan ReloadEvent
	debounce time.Duration
	stopOnce sync.Once
	done     chan struct{}
}

// NewWatcher watches path, the file behind manager's store.
func NewWatcher(manager *Manager, path string) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		manager:  manager,
		path:     filepath.Clean(path),
		watcher:  fsWatcher,
		events:   make(chan ReloadEvent, 10),
		debounce: 100 * time.Millisecond,
		done:     make(chan struct{}),
	}, nil
}

// Events returns the channel that receives reload events. It is closed
// when the watcher stops.
func (w *Watcher) Events() <-chan ReloadEvent {
	return w.events
}

// Start watches the file's directory, so atomic replaces are seen too.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	go w.run(ctx)
	return nil
}

// Stop closes the watcher and waits for it to finish.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		err = w.watcher.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	defer close(w.events)

	var pending time.Time
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
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				pending = time.Now()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.emit(ReloadEvent{Path: w.path, Error: err})

		case <-ticker.C:
			if pending.IsZero() || time.Since(pending) < w.debounce {
				continue
			}
			pending = time.Time{}
			err := w.manager.LoadAll()
			if err != nil {
				err = fmt.Errorf("failed to reload config %s: %w", w.path, err)
			}
			w.emit(ReloadEvent{Path: w.path, Error: err})
		}
	}
}

// emit drops the event when nobody is keeping up with the channel.
func (w *Watcher) emit(ev ReloadEvent) {
	select {
	case w.events <- ev:
	default:
	}
}
