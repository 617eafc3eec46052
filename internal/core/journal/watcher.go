package journal

import (
	"context"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const debounceDelay = 50 * time.Millisecond

// dirWatcher turns filesystem events on journal files into wake-ups for the
// tailer loop. It only shortens waits; polling remains the source of truth.
type dirWatcher struct {
	pattern string
	watcher *fsnotify.Watcher
	log     zerolog.Logger

	wake chan struct{}

	mu       sync.Mutex
	debounce *time.Timer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// watchDir starts watching dir. The returned watcher's Wake channel receives
// at most one pending signal at a time.
func watchDir(dir, pattern string, log zerolog.Logger) (*dirWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	dw := &dirWatcher{
		pattern: pattern,
		watcher: w,
		log:     log,
		wake:    make(chan struct{}, 1),
		cancel:  cancel,
	}

	dw.wg.Add(1)
	go dw.run(ctx)

	return dw, nil
}

// Wake returns the wake-up channel. A nil watcher returns a nil channel,
// which blocks forever in a select.
func (dw *dirWatcher) Wake() <-chan struct{} {
	if dw == nil {
		return nil
	}
	return dw.wake
}

// Close stops the watcher.
func (dw *dirWatcher) Close() error {
	if dw == nil {
		return nil
	}
	dw.cancel()

	dw.mu.Lock()
	if dw.debounce != nil {
		dw.debounce.Stop()
	}
	dw.mu.Unlock()

	err := dw.watcher.Close()
	dw.wg.Wait()
	return err
}

func (dw *dirWatcher) run(ctx context.Context) {
	defer dw.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			dw.handleEvent(event)
		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			dw.log.Debug().Err(err).Msg("journal watcher error")
		}
	}
}

func (dw *dirWatcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	if ok, _ := doublestar.Match(path.Base(dw.pattern), filepath.Base(event.Name)); !ok {
		return
	}

	// the game writes a line in several syscalls; coalesce them
	dw.mu.Lock()
	if dw.debounce != nil {
		dw.debounce.Stop()
	}
	dw.debounce = time.AfterFunc(debounceDelay, dw.signal)
	dw.mu.Unlock()
}

func (dw *dirWatcher) signal() {
	select {
	case dw.wake <- struct{}{}:
	default:
	}
}
