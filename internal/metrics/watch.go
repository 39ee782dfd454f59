package metrics

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/livinlefevreloca/qrun/internal/table"
)

// DefaultSettle is how long Watch waits after the last change to a flat
// table before rebuilding.
const DefaultSettle = 250 * time.Millisecond

// Watch rebuilds the derived tables of a sweep whenever its flat table is
// written or replaced. It runs until ctx is cancelled.
//
// The directory is watched rather than the files because tables are
// replaced by rename. Rebuild failures are logged and watching continues.
func (b *Builder) Watch(ctx context.Context, settle time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := b.files.Dir
	if dir == "" {
		dir = "."
	}
	if err := watcher.Add(dir); err != nil {
		return err
	}

	kinds := make(map[string]table.Kind, len(table.Kinds))
	for _, k := range table.Kinds {
		kinds[filepath.Clean(b.files.Raw(k))] = k
	}

	b.logger.Info("watching flat tables", "dir", dir)

	pending := make(map[table.Kind]bool)
	timer := time.NewTimer(settle)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			k, ok := kinds[filepath.Clean(event.Name)]
			if !ok {
				continue
			}
			pending[k] = true
			timer.Reset(settle)

		case <-timer.C:
			for _, k := range table.Kinds {
				if !pending[k] {
					continue
				}
				delete(pending, k)
				if _, err := b.BuildKind(k); err != nil {
					b.logger.Error("metrics rebuild failed", "sweep", string(k), "error", err)
					continue
				}
				b.logger.Info("metrics rebuilt", "sweep", string(k))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			b.logger.Error("table watcher error", "error", err)
		}
	}
}
