package cli

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// watchDebounce coalesces the bursts of events editors produce on save.
const watchDebounce = 100 * time.Millisecond

// specWatcher reports changes to .cue files under a directory.
type specWatcher struct {
	watcher *fsnotify.Watcher
	log     zerolog.Logger
}

// newSpecWatcher watches dir and every directory below it. Watches are in
// place when it returns.
func newSpecWatcher(dir string, log zerolog.Logger) (*specWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch directory: %w", err)
	}

	return &specWatcher{watcher: watcher, log: log}, nil
}

// Run calls onChange after each burst of .cue file changes until ctx is
// done, then closes the watcher.
func (w *specWatcher) Run(ctx context.Context, onChange func()) {
	defer w.watcher.Close()

	timer := time.NewTimer(watchDebounce)
	timer.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Ext(event.Name) != ".cue" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.log.Debug().
				Str("event", event.Op.String()).
				Str("file", event.Name).
				Msg("spec file changed")
			timer.Reset(watchDebounce)

		case <-timer.C:
			onChange()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("file watcher error")

		case <-ctx.Done():
			return
		}
	}
}
