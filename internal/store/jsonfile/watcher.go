package jsonfile

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceDelay = 50 * time.Millisecond

// RouteWatcher reports changes to a route file made by any process. The
// file's directory is watched because saves replace the file by rename.
type RouteWatcher struct {
	name    string
	watcher *fsnotify.Watcher
	changes chan struct{}

	mu       sync.Mutex
	debounce *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRouteWatcher starts watching the file at path. The directory must exist.
func NewRouteWatcher(path string) (*RouteWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	rw := &RouteWatcher{
		name:    filepath.Base(path),
		watcher: watcher,
		changes: make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}

	rw.wg.Add(1)
	go rw.run()

	return rw, nil
}

// Changes receives a value after the file changed. Changes that arrive
// while one is pending collapse into it.
func (rw *RouteWatcher) Changes() <-chan struct{} {
	return rw.changes
}

// Close stops watching.
func (rw *RouteWatcher) Close() error {
	rw.cancel()

	rw.mu.Lock()
	if rw.debounce != nil {
		rw.debounce.Stop()
	}
	rw.mu.Unlock()

	err := rw.watcher.Close()
	rw.wg.Wait()
	return err
}

func (rw *RouteWatcher) run() {
	defer rw.wg.Done()

	for {
		select {
		case <-rw.ctx.Done():
			return
		case event, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			rw.handleEvent(event)
		case _, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// handleEvent ignores everything but the route file itself, so temp and
// lock files next to it never trigger.
func (rw *RouteWatcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	if filepath.Base(event.Name) != rw.name {
		return
	}

	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.debounce != nil {
		rw.debounce.Stop()
	}
	rw.debounce = time.AfterFunc(debounceDelay, rw.notify)
}

func (rw *RouteWatcher) notify() {
	if rw.ctx.Err() != nil {
		return
	}
	select {
	case rw.changes <- struct{}{}:
	default:
	}
}
