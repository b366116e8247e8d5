// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"io"
	"os"
	"path/filepath"
)

// OpenFile opens path for appending and returns a writer that tees w into it.
// The returned closer releases the file. When the file cannot be opened the
// original writer is returned together with the error, so callers can keep
// logging to w.
func OpenFile(w io.Writer, path string) (io.Writer, io.Closer, error) {
	if path == "" {
		return w, nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return w, nopCloser{}, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return w, nopCloser{}, err
	}
	return io.MultiWriter(w, f), f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
