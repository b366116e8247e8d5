// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package dnsmon

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"grimm.is/edgewatch/internal/errors"
)

// Watch signals wake whenever the log file is written, created, renamed or
// removed, until ctx is done. The parent directory is watched so rotation
// is seen. Sends never block; wake should be buffered.
//
// Watch returns immediately with an error if the watcher cannot be set up;
// callers then rely on polling alone.
func (m *Monitor) Watch(ctx context.Context, wake chan<- struct{}) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "create fsnotify watcher")
	}
	defer w.Close()

	target := filepath.Clean(m.path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return errors.Attr(errors.Wrap(err, errors.KindUnavailable, "watch DNS log directory"), "path", target)
	}

	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Op.Has(relevant) {
				continue
			}
			select {
			case wake <- struct{}{}:
			default:
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("DNS log watcher error", "error", err)
		}
	}
}
