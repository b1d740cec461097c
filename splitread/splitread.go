// Package splitread implements the Split Read Façade: given a DataSplit it
// decides between the merge and no-merge read paths, composing the
// Interval-Partition Planner, the Merge Engine, the File Reader Factory and
// predicate splitting into a single core.RecordIterator.
package splitread

import (
	"context"
	"log/slog"

	"github.com/lakestore/tablecore/core"
	"github.com/lakestore/tablecore/external"
	"github.com/lakestore/tablecore/filter"
	"github.com/lakestore/tablecore/hooks"
	"github.com/lakestore/tablecore/iterator"
	"github.com/lakestore/tablecore/levels"
	"github.com/lakestore/tablecore/sstable"
	"go.opentelemetry.io/otel/trace"
)

// Options configures a Builder for one table's reads.
type Options struct {
	KeyComparator core.KeyComparator
	Order         core.SortOrder
	UDS           iterator.UDSComparator // optional
	Merge         iterator.MergeFunc     // optional, defaults to iterator.LastWins
	Files         *sstable.Factory
	Hooks         hooks.HookManager // optional
	Logger        *slog.Logger
	Tracer        trace.Tracer
}

// Builder accumulates the per-read configuration a caller layers onto one
// table's reads (read-type projection, read-key-type projection, an
// extra filter, a force-keep-delete override, an IOManager for spill
// files) before producing a reader for one split. A Builder is reusable
// across splits; per-call state lives in the returned reader only.
type Builder struct {
	opts Options

	readType    []string // outer value projection; nil means "all value columns"
	readKeyType []string // key projection applied after merging; nil means "all key columns"
	filter      filter.Predicate
	keepDelete  bool
	ioManager   external.IOManager
}

// NewBuilder creates a Builder from table-level options.
func NewBuilder(opts Options) *Builder {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Builder{opts: opts}
}

func (b *Builder) WithReadType(fields []string) *Builder    { b.readType = fields; return b }
func (b *Builder) WithReadKeyType(fields []string) *Builder { b.readKeyType = fields; return b }
func (b *Builder) WithFilter(p filter.Predicate) *Builder   { b.filter = p; return b }
func (b *Builder) ForceKeepDelete() *Builder                { b.keepDelete = true; return b }
func (b *Builder) WithIOManager(m external.IOManager) *Builder {
	b.ioManager = m
	return b
}

// CreateReader builds a core.RecordIterator serving split, firing
// PreCreateReader/PostCreateReader hooks around the decision.
func (b *Builder) CreateReader(ctx context.Context, split core.DataSplit) (core.RecordIterator, error) {
	if b.opts.Hooks != nil {
		pre := hooks.NewPreCreateReaderEvent(hooks.PreCreateReaderPayload{Split: &split})
		if err := b.opts.Hooks.Trigger(ctx, pre); err != nil {
			return nil, err
		}
	}

	reader, usedMerge, sectionCount, err := b.createReader(ctx, split)

	if b.opts.Hooks != nil {
		post := hooks.NewPostCreateReaderEvent(hooks.PostCreateReaderPayload{
			Split:        &split,
			UsedMerge:    usedMerge,
			SectionCount: sectionCount,
			Error:        err,
		})
		_ = b.opts.Hooks.Trigger(ctx, post)
	}
	return reader, err
}

func (b *Builder) createReader(ctx context.Context, split core.DataSplit) (core.RecordIterator, bool, int, error) {
	if len(split.BeforeFiles) > 0 {
		return nil, false, 0, &core.InvalidSplitError{Reason: "merge path does not accept before-files"}
	}

	if split.IsStreaming || split.Bucket == core.PostponeBucket {
		it, err := b.noMergeReader(ctx, split)
		return it, false, 0, err
	}

	it, sectionCount, err := b.mergeReader(ctx, split)
	return it, true, sectionCount, err
}

// noMergeReader concatenates per-file readers without any k-way merge,
// used for changelog/streaming splits and postponed-bucket splits where
// row order and raw row_kind must pass through untouched. Since no merge
// ever reconciles these rows, the full configured predicate can always be
// pushed; it is narrowed to a key-only predicate only when the caller asked
// for no value columns at all (with_read_type unset).
func (b *Builder) noMergeReader(ctx context.Context, split core.DataSplit) (core.RecordIterator, error) {
	projectKeysOnly := b.readType == nil

	pred := b.filter
	if projectKeysOnly && b.opts.KeyComparator != nil {
		keyPred, _ := filter.Split(b.filter, b.opts.KeyComparator.KeyFields())
		pred = keyPred
	}

	var fileIters []core.RecordIterator
	for _, f := range split.Files {
		it, err := b.opts.Files.Open(ctx, split, f, projectKeysOnly, pred)
		if err != nil {
			closeAll(fileIters)
			return nil, err
		}
		fileIters = append(fileIters, it)
	}

	result := core.RecordIterator(newConcatIterator(fileIters))
	if b.readKeyType != nil || b.readType != nil {
		result = &projectingIterator{inner: result, keyFields: b.readKeyType, valueFields: b.readType}
	}
	return result, nil
}

// mergeReader plans the split's files into Sections, builds one reader per
// section (overlapping sections get the key-filter factory, non-overlapping
// get the full-filter factory), concatenates them, drops deletes unless
// keepDelete was forced, and finally applies key and outer projection.
func (b *Builder) mergeReader(ctx context.Context, split core.DataSplit) (core.RecordIterator, int, error) {
	sections := levels.Plan(split.Files, b.opts.KeyComparator)
	keyPred, valuePred := filter.Split(b.filter, b.opts.KeyComparator.KeyFields())

	var sectionIters []core.RecordIterator
	for _, sec := range sections {
		it, err := b.sectionReader(ctx, split, sec, keyPred, valuePred)
		if err != nil {
			closeAll(sectionIters)
			return nil, 0, err
		}
		sectionIters = append(sectionIters, it)
	}

	var result core.RecordIterator = &deleteFilterIterator{
		inner:      newConcatIterator(sectionIters),
		keepDelete: b.keepDelete,
	}
	if b.readKeyType != nil || b.readType != nil {
		result = &projectingIterator{inner: result, keyFields: b.readKeyType, valueFields: b.readType}
	}
	return result, len(sections), nil
}

func (b *Builder) sectionReader(ctx context.Context, split core.DataSplit, sec levels.Section, keyPred, valuePred filter.Predicate) (core.RecordIterator, error) {
	pred := combinePredicates(sec, keyPred, valuePred)

	var runIters []core.RecordIterator
	for _, run := range sec.Runs {
		var fileIters []core.RecordIterator
		for _, f := range run.Files {
			it, err := b.opts.Files.Open(ctx, split, f, false, pred)
			if err != nil {
				closeAll(fileIters)
				closeAll(runIters)
				return nil, err
			}
			fileIters = append(fileIters, it)
		}
		runIters = append(runIters, newConcatIterator(fileIters))
	}

	if len(runIters) == 1 {
		return runIters[0], nil
	}

	mi, err := iterator.New(runIters, iterator.Options{
		KeyComparator: b.opts.KeyComparator,
		Order:         b.opts.Order,
		UDS:           b.opts.UDS,
		Merge:         b.opts.Merge,
		KeepDelete:    true, // a single drop-delete pass happens once, over the whole split
	})
	if err != nil {
		return nil, err
	}
	return mi, nil
}

// combinePredicates picks the eligible pushdown for one section: an
// overlapping section (more than one run) must restrict to the key-only
// half, since pushing a value predicate into an individual file could
// silently drop a row a merge would otherwise keep; a non-overlapping
// section can safely use the full predicate.
func combinePredicates(sec levels.Section, keyPred, valuePred filter.Predicate) filter.Predicate {
	if sec.Overlapping() {
		return keyPred
	}
	switch {
	case keyPred != nil && valuePred != nil:
		return filter.And{keyPred, valuePred}
	case keyPred != nil:
		return keyPred
	default:
		return valuePred
	}
}

// Close releases the builder's injected IOManager, if any. Readers
// themselves are closed independently by their callers; this only
// reclaims the spill-file pool shared across reads built from this
// Builder.
func (b *Builder) Close() error {
	if b.ioManager == nil {
		return nil
	}
	return b.ioManager.Close()
}
