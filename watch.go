package jwttai

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cicsdev/go-jwt-tai/keystore"
)

// DefaultWatchDebounce is the quiet period WatchKeySource waits for after
// the last file event before reloading.
const DefaultWatchDebounce = 250 * time.Millisecond

// ErrNoFileKeySource is returned by WatchKeySource when the interceptor was
// not initialized from a file keystore.
var ErrNoFileKeySource = errors.New("interceptor has no file key source to watch")

// WatchKeySource re-initializes the interceptor whenever path changes. path
// is the keystore file as seen on disk, that is the configured location
// joined to the base directory. Its parent directory is watched so editors
// and secret mounts that replace the file atomically are noticed.
//
// A failed reload keeps the previous anchor and is reported through Health.
// The watcher stops when ctx is done or the interceptor is closed.
func (i *Interceptor) WatchKeySource(ctx context.Context, path string, debounce time.Duration) error {
	i.mu.Lock()
	src := i.keySource
	i.mu.Unlock()

	if src == nil || src.Kind != keystore.SourceFileKeystore {
		return ErrNoFileKeySource
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not create watcher: %w", err)
	}

	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("could not watch %s: %w", filepath.Dir(path), err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	var once sync.Once
	stop := func() error {
		var err error
		once.Do(func() {
			cancel()
			<-done
			err = watcher.Close()
		})
		return err
	}
	if err := i.addCloser(stop); err != nil {
		cancel()
		_ = watcher.Close()
		return err
	}

	go i.runWatcher(ctx, watcher, path, debounce, done)
	return nil
}

func (i *Interceptor) runWatcher(ctx context.Context, w *fsnotify.Watcher, path string, debounce time.Duration, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Chmod) == 0 {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			if i.logger != nil {
				i.logger.Warn("key source watcher error", "path", path, "error", err)
			}

		case <-timer.C:
			i.reload(ctx)
		}
	}
}

func (i *Interceptor) reload(ctx context.Context) {
	i.mu.Lock()
	src := i.keySource
	i.mu.Unlock()
	if src == nil {
		return
	}

	if i.logger != nil {
		i.logger.Info("key source changed, reloading", "source", src.Describe())
	}
	// Failures are logged by the core and surface through Health.
	_ = i.Initialize(ctx, *src)
}
