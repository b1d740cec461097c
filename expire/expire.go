// Package expire implements the periodic scan that identifies expired
// partitions, drops them in bounded batches, and notifies the external
// catalog.
package expire

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/caio/go-tdigest/v4"
	"github.com/lakestore/tablecore/config"
	"github.com/lakestore/tablecore/core"
	"github.com/lakestore/tablecore/external"
	"github.com/lakestore/tablecore/hooks"
	"github.com/lakestore/tablecore/partition"
	"github.com/lakestore/tablecore/snapshot"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Committer issues the OVERWRITE commit that drops a chunk of partitions.
// It is satisfied by the Commit Coordinator; expressed here as a narrow
// interface so this package never imports commit and the two collaborate
// without a cyclic dependency.
type Committer interface {
	CommitOverwrite(ctx context.Context, commitIdentifier int64, partitions []core.Partition) error
}

// Options configures a Controller. FileIO, StateDir, Registry, Partitions,
// Handler and Committer are required. An empty TimestampTemplate or
// TimestampPattern, a zero BatchSize or MaxExpires and a nil Logger fall
// back to defaults matching config.CoreOptions' own; CheckInterval and
// ExpirationTime are used as given, and zero is not replaced by a default.
type Options struct {
	FileIO     external.FileIO
	StateDir   string
	Registry   snapshot.Registry
	Partitions external.PartitionEnumerator
	Handler    external.PartitionHandler
	Committer  Committer

	PartitionSchema partition.Schema
	// TimestampTemplate composes a partition's derived-timestamp input
	// string; empty means partition.DefaultTemplate(PartitionSchema).
	TimestampTemplate string
	// TimestampPattern is the time.Parse layout; empty means
	// config.DefaultTimestampFormatter.
	TimestampPattern string

	CheckInterval  time.Duration
	ExpirationTime time.Duration
	// BatchSize is the chunk size expired partitions are committed in; 0
	// means unbounded (a single chunk).
	BatchSize int
	// MaxExpires caps how many partitions one pass will expire; 0 means
	// unbounded.
	MaxExpires int

	Hooks  hooks.HookManager
	Logger *slog.Logger
	Tracer trace.Tracer
}

// FromCoreOptions fills the option knobs config.CoreOptions exposes,
// leaving the collaborator fields (FileIO, Registry, ...) for the caller
// to set separately.
func FromCoreOptions(o *Options, opts *config.CoreOptions) {
	expTime, _ := opts.PartitionExpirationTime()
	o.ExpirationTime = expTime
	o.CheckInterval = opts.PartitionExpirationCheckInterval()
	o.TimestampPattern = opts.PartitionTimestampFormatter()
	if pattern, ok := opts.PartitionTimestampPattern(); ok {
		o.TimestampTemplate = pattern
	}
	o.BatchSize = opts.ExpirationBatchSize()
	o.MaxExpires = opts.ExpirationMaxNum()
}

// Controller holds the persistent last_check_time and drives one table's
// expire passes. A Controller is safe for concurrent use, though the
// underlying commit coordinator serializes concurrent passes on the same
// table via identifier-CAS regardless.
type Controller struct {
	opts Options

	mu            sync.Mutex
	lastCheckTime time.Time
	// haveChecked is false only for a Controller that has never recorded a
	// last_check_time, neither from a prior process's state file nor from
	// an Expire call in this one.
	haveChecked bool

	// expired tracks every partition dropped by a completed pass, keyed by
	// Partition.Key(), so the Commit Coordinator's write guard can reject a
	// commit targeting one without re-deriving timestamps itself.
	expired map[string]core.Partition

	digest *tdigest.TDigest
}

// New constructs a Controller, loading any previously persisted
// last_check_time from opts.StateDir.
func New(ctx context.Context, opts Options) (*Controller, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	td, err := tdigest.New()
	if err != nil {
		return nil, err
	}
	c := &Controller{opts: opts, digest: td, expired: make(map[string]core.Partition)}

	t, ok, err := readLastCheckTime(ctx, opts.FileIO, opts.StateDir)
	if err != nil {
		return nil, err
	}
	if ok {
		c.lastCheckTime = t
		c.haveChecked = true
	}
	return c, nil
}

// AgeQuantile returns the q-quantile (0..1) of the partition ages recorded
// by every expire pass so far (a pass records ages while it scans, before
// its commits run), and false if none have been recorded yet.
func (c *Controller) AgeQuantile(q float64) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.digest.Count() == 0 {
		return 0, false
	}
	return time.Duration(c.digest.Quantile(q)), true
}

// IsExpired reports whether p was dropped by a completed pass and has not
// since been un-expired via Forget. Used by the Commit Coordinator's write
// guard.
func (c *Controller) IsExpired(p core.Partition) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.expired[p.Key()]
	return ok
}

// Forget clears partitions from the expired set, called when a new write
// recreates one of them.
func (c *Controller) Forget(partitions []core.Partition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range partitions {
		delete(c.expired, p.Key())
	}
}

type expiredPartition struct {
	partition core.Partition
	derived   time.Time
}

// Expire runs one expire pass at wall-clock reference now, tagging any
// commits it issues with commitIdentifier. It returns false without
// scanning on the first call of a Controller that has no recorded
// last_check_time (that call only records one), and when no more than
// check_interval has passed since the last check.
func (c *Controller) Expire(ctx context.Context, now time.Time, commitIdentifier int64) (bool, error) {
	var span trace.Span
	if c.opts.Tracer != nil {
		ctx, span = c.opts.Tracer.Start(ctx, "expire.Expire")
		defer span.End()
	}

	c.mu.Lock()
	// A Controller that has never recorded a last_check_time only
	// establishes the checkpoint on its first call; it defers the scan
	// itself to the next one. This is the two-commit bootstrap: without
	// it, a table that just turned on expiration would treat its very
	// first commit as arbitrarily overdue and expire everything in one
	// shot instead of on the configured cadence.
	if !c.haveChecked {
		c.haveChecked = true
		c.lastCheckTime = now
		c.mu.Unlock()
		if err := writeLastCheckTime(ctx, c.opts.FileIO, c.opts.StateDir, now); err != nil {
			return false, err
		}
		return false, nil
	}
	// check_interval must be strictly exceeded, not merely met: a call
	// landing exactly on the cadence boundary is still a no-op.
	if now.Sub(c.lastCheckTime) <= c.opts.CheckInterval {
		c.mu.Unlock()
		return false, nil
	}
	c.lastCheckTime = now
	c.mu.Unlock()

	if err := writeLastCheckTime(ctx, c.opts.FileIO, c.opts.StateDir, now); err != nil {
		return false, err
	}

	if c.opts.Hooks != nil {
		if err := c.opts.Hooks.Trigger(ctx, hooks.NewPreExpireEvent(hooks.PreExpirePayload{Now: now})); err != nil {
			return false, err
		}
	}

	expired, err := c.runPass(ctx, now)
	if err != nil {
		c.firePostExpire(ctx, now, true, nil, err)
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return false, err
	}

	if err := c.commitExpirations(ctx, commitIdentifier, expired); err != nil {
		c.firePostExpire(ctx, now, true, nil, err)
		return false, err
	}

	dropped := make([]core.Partition, len(expired))
	for i, e := range expired {
		dropped[i] = e.partition
	}
	c.firePostExpire(ctx, now, true, dropped, nil)
	if span != nil {
		span.SetAttributes(attribute.Int("expire.dropped_count", len(dropped)))
	}
	return true, nil
}

func (c *Controller) firePostExpire(ctx context.Context, now time.Time, ran bool, dropped []core.Partition, err error) {
	if c.opts.Hooks == nil {
		return
	}
	event := hooks.NewPostExpireEvent(hooks.PostExpirePayload{
		Now:               now,
		Ran:               ran,
		ExpiredPartitions: dropped,
		Error:             err,
	})
	_ = c.opts.Hooks.Trigger(ctx, event)
}

// runPass enumerates live partitions, classifies each as expired or
// preserved, and returns the expired set sorted by ascending derived
// timestamp and capped at MaxExpires.
func (c *Controller) runPass(ctx context.Context, now time.Time) ([]expiredPartition, error) {
	snap := c.opts.Registry.Latest()
	if snap == nil {
		return nil, nil
	}
	live, err := c.opts.Partitions.LivePartitions(ctx, snap)
	if err != nil {
		return nil, err
	}

	template := c.opts.TimestampTemplate
	if template == "" {
		template = partition.DefaultTemplate(c.opts.PartitionSchema)
	}
	pattern := c.opts.TimestampPattern
	if pattern == "" {
		pattern = config.DefaultTimestampFormatter
	}

	var expired []expiredPartition
	for _, p := range live {
		derived, err := partition.ExtractTimestamp(p.Values, template, pattern)
		if err != nil {
			// Unparseable partitions are preserved, never expired.
			c.opts.Logger.Debug("partition timestamp unparseable, preserving", "partition", p.String(), "error", err)
			continue
		}

		c.mu.Lock()
		_ = c.digest.AddWeighted(float64(now.Sub(derived)), 1)
		c.mu.Unlock()

		// Strict: a partition whose retention deadline lands exactly on
		// now is not yet expired, matching the reference semantics this
		// pass is grounded on.
		if derived.Add(c.opts.ExpirationTime).Before(now) {
			expired = append(expired, expiredPartition{partition: p, derived: derived})
		}
	}

	sort.Slice(expired, func(i, j int) bool { return expired[i].derived.Before(expired[j].derived) })
	if c.opts.MaxExpires > 0 && len(expired) > c.opts.MaxExpires {
		expired = expired[:c.opts.MaxExpires]
	}
	return expired, nil
}

// commitExpirations emits the expired set in batch_size chunks, each its
// own OVERWRITE commit plus a catalog drop notification. A failure aborts
// the remaining chunks but leaves already-committed chunks in place.
func (c *Controller) commitExpirations(ctx context.Context, commitIdentifier int64, expired []expiredPartition) error {
	if len(expired) == 0 {
		return nil
	}

	chunkSize := c.opts.BatchSize
	if chunkSize <= 0 {
		chunkSize = len(expired)
	}

	for start := 0; start < len(expired); start += chunkSize {
		end := start + chunkSize
		if end > len(expired) {
			end = len(expired)
		}
		chunk := make([]core.Partition, end-start)
		for i, e := range expired[start:end] {
			chunk[i] = e.partition
		}

		if err := c.opts.Committer.CommitOverwrite(ctx, commitIdentifier, chunk); err != nil {
			return err
		}
		if err := c.opts.Handler.DropPartitions(ctx, chunk); err != nil {
			return err
		}

		c.mu.Lock()
		for _, p := range chunk {
			c.expired[p.Key()] = p
		}
		c.mu.Unlock()
	}
	return nil
}
