// Package deletionvector builds and caches the per-data-file bitmap of
// deleted row positions a Split carries, so the File Reader Factory can
// suppress rows without rewriting the data file they came from.
package deletionvector

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/RoaringBitmap/roaring"
	"github.com/lakestore/tablecore/cache"
	"github.com/lakestore/tablecore/core"
	"github.com/lakestore/tablecore/external"
	"github.com/lakestore/tablecore/hooks"
)

// Vector is an immutable, published deletion bitmap for one data file. Once
// returned from Factory.Get, a Vector is never mutated.
type Vector struct {
	bitmap *roaring.Bitmap
}

// Deleted reports whether the row at the given zero-based position in its
// data file has been deleted. A position beyond the bitmap's range is
// treated as not deleted, matching the append-only nature of position
// bitmaps: a file is sealed before its deletion vector is ever written.
func (v *Vector) Deleted(position uint32) bool {
	if v == nil || v.bitmap == nil {
		return false
	}
	return v.bitmap.Contains(position)
}

// Count returns the number of deleted positions recorded.
func (v *Vector) Count() uint64 {
	if v == nil || v.bitmap == nil {
		return 0
	}
	return v.bitmap.GetCardinality()
}

// Factory builds and caches Vectors for data files named in a split's
// DeletionFile list, backed by an LRU cache keyed by data-file path.
type Factory struct {
	io     external.FileIO
	cache  cache.Interface
	logger *slog.Logger
	hooks  hooks.HookManager
}

// NewFactory creates a deletion-vector Factory. cache may be nil, in which
// case vectors are rebuilt from storage on every Get.
func NewFactory(io external.FileIO, c cache.Interface, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{io: io, cache: c, logger: logger}
}

// SetHookManager attaches a hook manager whose OnDeletionVectorLoad event
// fires after every Get that finds a deletion file for the data file,
// whether the vector is served from cache or freshly loaded.
func (f *Factory) SetHookManager(hm hooks.HookManager) {
	f.hooks = hm
}

// Get returns the Vector for dataFilePath given the split's deletion-file
// index, or nil if the file has no associated deletion file (i.e. no rows
// of it have ever been deleted).
func (f *Factory) Get(ctx context.Context, dataFilePath string, deletionFiles []core.DeletionFile) (*Vector, error) {
	df, ok := findDeletionFile(dataFilePath, deletionFiles)
	if !ok {
		return nil, nil
	}

	cacheKey := dataFilePath + "@" + df.Path
	if f.cache != nil {
		if cached, ok := f.cache.Get(cacheKey); ok {
			v := cached.(*Vector)
			f.fireLoaded(ctx, dataFilePath, v, true)
			return v, nil
		}
	}

	v, err := f.load(ctx, df)
	if err != nil {
		return nil, fmt.Errorf("deletionvector: loading %s: %w", df.Path, err)
	}

	if f.cache != nil {
		f.cache.Put(cacheKey, v)
	}
	f.logger.Debug("built deletion vector", "data_file", dataFilePath, "deletion_file", df.Path, "deleted_count", v.Count())
	f.fireLoaded(ctx, dataFilePath, v, false)
	return v, nil
}

func (f *Factory) fireLoaded(ctx context.Context, dataFilePath string, v *Vector, fromCache bool) {
	if f.hooks == nil {
		return
	}
	event := hooks.NewDeletionVectorLoadEvent(hooks.DeletionVectorLoadPayload{
		DataFilePath: dataFilePath,
		RowCount:     v.Count(),
		FromCache:    fromCache,
	})
	_ = f.hooks.Trigger(ctx, event)
}

func (f *Factory) load(ctx context.Context, df core.DeletionFile) (*Vector, error) {
	r, err := f.io.OpenInput(ctx, df.Path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	section := io.NewSectionReader(asReaderAt(r), df.Offset, df.Length)
	bm := roaring.New()
	if _, err := bm.ReadFrom(section); err != nil {
		return nil, err
	}
	return &Vector{bitmap: bm}, nil
}

func findDeletionFile(dataFilePath string, files []core.DeletionFile) (core.DeletionFile, bool) {
	for _, df := range files {
		if df.DataFilePath == dataFilePath {
			return df, true
		}
	}
	return core.DeletionFile{}, false
}

// asReaderAt adapts an io.ReadCloser that also happens to implement
// io.ReaderAt (the common case for a local or object-store file handle) so
// callers can seek within it without reading the whole file.
func asReaderAt(r io.ReadCloser) io.ReaderAt {
	if ra, ok := r.(io.ReaderAt); ok {
		return ra
	}
	// Fallback: buffer the whole reader. Deletion files are small (one
	// bitmap per sealed data file), so this is acceptable when the FileIO
	// implementation doesn't expose random access.
	data, _ := io.ReadAll(r)
	return &sliceReaderAt{data: data}
}

type sliceReaderAt struct{ data []byte }

func (s *sliceReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
