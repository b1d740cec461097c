// Package sstable implements the File Reader Factory: it wraps a host-
// supplied KeyValueFileReaderFactory with deletion-vector suppression and
// best-effort predicate pushdown. The on-disk byte encoding of a data file
// is entirely the host's concern; this package never parses file bytes.
package sstable

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lakestore/tablecore/core"
	"github.com/lakestore/tablecore/deletionvector"
	"github.com/lakestore/tablecore/external"
	"github.com/lakestore/tablecore/filter"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Options configures a Factory.
type Options struct {
	Files           external.KeyValueFileReaderFactory
	DeletionVectors *deletionvector.Factory
	Tracer          trace.Tracer
	Logger          *slog.Logger
}

// Factory opens core.RecordIterator readers over individual sealed data
// files, applying deletion-vector suppression and an optional predicate.
type Factory struct {
	files  external.KeyValueFileReaderFactory
	dvs    *deletionvector.Factory
	tracer trace.Tracer
	logger *slog.Logger
}

// New builds a Factory from opts. Files must be non-nil; DeletionVectors may
// be nil if the caller never needs suppression (e.g. reading a changelog's
// before-image files, which are never subject to positional deletes).
func New(opts Options) *Factory {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		files:  opts.Files,
		dvs:    opts.DeletionVectors,
		tracer: opts.Tracer,
		logger: logger,
	}
}

// Open returns a reader over one data file's surviving, optionally
// projected and filtered rows. projectKeysOnly strips non-key fields from
// every delivered row's value; pred, if non-nil, is evaluated against the
// full (pre-projection) row and filters out rows that don't match — this is
// the "unpushed" fallback path since the injected file reader never sees
// pred itself.
func (f *Factory) Open(ctx context.Context, split core.DataSplit, meta core.DataFileMeta, projectKeysOnly bool, pred filter.Predicate) (core.RecordIterator, error) {
	var span trace.Span
	if f.tracer != nil {
		ctx, span = f.tracer.Start(ctx, "sstable.Factory.Open")
		span.SetAttributes(attribute.String("sstable.path", meta.Path), attribute.Bool("sstable.project_keys_only", projectKeysOnly))
		defer span.End()
	}

	inner, err := f.files.Open(ctx, meta.Path, meta)
	if err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, fmt.Errorf("sstable: opening %s: %w", meta.Path, err)
	}

	var dv *deletionvector.Vector
	if f.dvs != nil {
		dv, err = f.dvs.Get(ctx, meta.Path, split.DeletionFiles)
		if err != nil {
			inner.Close()
			if span != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return nil, fmt.Errorf("sstable: loading deletion vector for %s: %w", meta.Path, err)
		}
	}

	return &fileIterator{
		inner:           inner,
		dv:              dv,
		projectKeysOnly: projectKeysOnly,
		pred:            pred,
	}, nil
}

// fileIterator filters and projects the stream of KeyValues coming out of a
// host-supplied per-file reader.
type fileIterator struct {
	inner           core.RecordIterator
	dv              *deletionvector.Vector
	projectKeysOnly bool
	pred            filter.Predicate

	position uint32
	current  *core.KeyValue
	err      error
}

func (it *fileIterator) Next() bool {
	for it.inner.Next() {
		pos := it.position
		it.position++

		if it.dv.Deleted(pos) {
			continue
		}

		kv, err := it.inner.At()
		if err != nil {
			it.err = err
			return false
		}

		if it.pred != nil && !it.pred.Eval(kv.Value) {
			continue
		}

		if it.projectKeysOnly {
			kv = &core.KeyValue{Key: kv.Key, SeqNumber: kv.SeqNumber, RowKind: kv.RowKind}
		}

		it.current = kv
		return true
	}
	if err := it.inner.Error(); err != nil {
		it.err = err
	}
	return false
}

func (it *fileIterator) At() (*core.KeyValue, error) {
	return it.current, it.err
}

func (it *fileIterator) Error() error { return it.err }

func (it *fileIterator) Close() error {
	return it.inner.Close()
}
