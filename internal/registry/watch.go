package registry

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"parley/internal/logging"
)

const manifestDebounce = 200 * time.Millisecond

// WatchManifest invokes onChange after the manifest file is written,
// created, or replaced. The parent directory is watched so editor
// rename-over-save is caught. Returns a stop function.
func WatchManifest(ctx context.Context, path string, logger *logging.Logger, onChange func()) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	target := filepath.Clean(path)
	done := make(chan struct{})

	go func() {
		var debounce *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if debounce == nil {
					debounce = time.NewTimer(manifestDebounce)
					fire = debounce.C
				} else {
					if !debounce.Stop() {
						select {
						case <-debounce.C:
						default:
						}
					}
					debounce.Reset(manifestDebounce)
				}
			case <-fire:
				debounce = nil
				fire = nil
				if logger != nil {
					logger.Debug("manifest changed", map[string]string{"path": target})
				}
				onChange()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if logger != nil {
					logger.Warn("manifest watch error", map[string]string{"error": err.Error()})
				}
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	stop := func() {
		close(done)
		watcher.Close()
	}
	return stop, nil
}
