// Package localfs implements external.FileIO against the local filesystem,
// for use in tests and the demo binary where no remote object store is
// wired in. OpenOutput writes straight to its path; Rename is backed by
// os.Rename, so a caller that writes a temp path and then calls
// FileIO.Rename gets real atomicity rather than a no-op passthrough.
package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// IO is a local-filesystem-backed external.FileIO rooted at a base
// directory; every path the rest of the core hands in is resolved beneath
// it.
type IO struct {
	root string
}

// New returns an IO rooted at root, creating it if it does not exist yet.
func New(root string) (*IO, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("localfs: create root %s: %w", root, err)
	}
	return &IO{root: root}, nil
}

func (f *IO) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(f.root, path)
}

func (f *IO) OpenInput(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(f.resolve(path))
	if err != nil {
		return nil, fmt.Errorf("localfs: open %s: %w", path, err)
	}
	return file, nil
}

// OpenOutput opens path for writing, creating any parent directories it
// needs. Callers that require atomic publication write to a temp path of
// their own choosing and call Rename once the write is Sync'd and closed;
// OpenOutput itself does not stage through a temp file, since not every
// writer needs that guarantee and staging unconditionally would leave
// orphaned temp files behind for the ones that don't clean up on error.
func (f *IO) OpenOutput(ctx context.Context, path string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resolved := f.resolve(path)
	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return nil, fmt.Errorf("localfs: create parent dir for %s: %w", path, err)
	}
	file, err := os.OpenFile(resolved, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("localfs: open %s for write: %w", path, err)
	}
	return file, nil
}

func (f *IO) List(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(f.resolve(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("localfs: list %s: %w", dir, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}

func (f *IO) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(f.resolve(path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("localfs: delete %s: %w", path, err)
	}
	return nil
}

func (f *IO) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(f.resolve(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("localfs: stat %s: %w", path, err)
}

// Rename publishes oldPath under newPath via os.Rename, which is atomic
// for same-filesystem moves on every platform this core targets; the
// caller's write-then-rename idiom relies on that guarantee.
func (f *IO) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resolvedNew := f.resolve(newPath)
	if err := os.MkdirAll(filepath.Dir(resolvedNew), 0755); err != nil {
		return fmt.Errorf("localfs: create parent dir for %s: %w", newPath, err)
	}
	if err := os.Rename(f.resolve(oldPath), resolvedNew); err != nil {
		return fmt.Errorf("localfs: rename %s to %s: %w", oldPath, newPath, err)
	}
	return nil
}
