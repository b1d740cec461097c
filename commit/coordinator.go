// Package commit implements the narrow commit surface that publishes new
// snapshots: atomic publication under optimistic concurrency, idempotent
// retry for writers that raced an expire pass, and the write guard that
// refuses commits targeting an already-expired partition.
package commit

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/lakestore/tablecore/config"
	"github.com/lakestore/tablecore/core"
	"github.com/lakestore/tablecore/hooks"
	"github.com/lakestore/tablecore/snapshot"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ExpiredChecker reports whether a partition has already been dropped by an
// expire pass. Satisfied by *expire.Controller; expressed as a narrow
// interface so this package never imports expire.
type ExpiredChecker interface {
	IsExpired(p core.Partition) bool
}

// state names the single-commit-attempt state machine: Preparing ->
// Submitted -> (Succeeded | Conflicted | Rejected), with Conflicted looping
// back to Preparing against a fresh base snapshot.
type state int

const (
	statePreparing state = iota
	stateSubmitted
	stateSucceeded
	stateConflicted
	stateRejected
)

func (s state) String() string {
	switch s {
	case statePreparing:
		return "Preparing"
	case stateSubmitted:
		return "Submitted"
	case stateSucceeded:
		return "Succeeded"
	case stateConflicted:
		return "Conflicted"
	case stateRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

type Options struct {
	Registry snapshot.Registry
	Expired  ExpiredChecker
	Hooks    hooks.HookManager

	CommitUser     string
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Clock is consulted for each snapshot's TimestampMillis; defaults to
	// time.Now. Tests inject a fixed clock for deterministic snapshots.
	Clock func() time.Time

	Logger *slog.Logger
	Tracer trace.Tracer
}

// FromCoreOptions fills the retry knobs config.CommitConfig exposes.
func FromCoreOptions(o *Options, cfg config.CommitConfig, logger *slog.Logger) {
	o.MaxAttempts = cfg.MaxAttempts
	o.InitialBackoff = config.ParseDuration(cfg.InitialBackoff, 50*time.Millisecond, logger)
	o.MaxBackoff = config.ParseDuration(cfg.MaxBackoff, 2*time.Second, logger)
}

// Coordinator publishes snapshots for one table, serializing concurrent
// commits via the registry's identifier-CAS protocol.
type Coordinator struct {
	opts Options
}

// SetExpired wires the expired-partition checker after construction. It
// exists for the bootstrap cycle between this package and expire: a
// Committer built from a Coordinator is required to construct a
// Controller, but the Controller in turn is the natural ExpiredChecker for
// that same Coordinator, so one side must be wired in after the other
// already exists.
func (c *Coordinator) SetExpired(e ExpiredChecker) {
	c.opts.Expired = e
}

func New(opts Options) *Coordinator {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 50 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 2 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Coordinator{opts: opts}
}

// Commit publishes a new snapshot built from messages, tagged with
// identifier. The published CommitKind reflects the messages' own nature
// (APPEND or COMPACT); use CommitOverwrite for partition drops.
func (c *Coordinator) Commit(ctx context.Context, identifier int64, messages []Message) (*core.Snapshot, error) {
	return c.commit(ctx, identifier, kindOf(messages), messages, nil)
}

// CommitOverwrite publishes an OVERWRITE snapshot dropping partitions. It
// satisfies expire.Committer and bypasses the write guard: the expire
// controller is the one party allowed to write an already-expired
// partition, since dropping it is exactly the operation in progress.
func (c *Coordinator) CommitOverwrite(ctx context.Context, identifier int64, partitions []core.Partition) error {
	_, err := c.commit(ctx, identifier, core.CommitKindOverwrite, nil, partitions)
	return err
}

func (c *Coordinator) commit(ctx context.Context, identifier int64, kind core.CommitKind, messages []Message, dropped []core.Partition) (*core.Snapshot, error) {
	var span trace.Span
	if c.opts.Tracer != nil {
		ctx, span = c.opts.Tracer.Start(ctx, "commit.Commit")
		defer span.End()
		span.SetAttributes(attribute.String("commit.kind", string(kind)), attribute.Int64("commit.identifier", identifier))
	}

	// Write guard: dropping partitions is how the controller un-expires
	// nothing and expires something, so it never runs through the guard;
	// every other commit must not target a partition already dropped.
	if dropped == nil && c.opts.Expired != nil {
		var offending []core.Partition
		for _, m := range messages {
			if c.opts.Expired.IsExpired(m.Partition) {
				offending = append(offending, m.Partition)
			}
		}
		if len(offending) > 0 {
			err := &core.WritingToExpiredPartitionError{Partitions: offending}
			c.firePostCommit(ctx, identifier, 0, err)
			if span != nil {
				span.SetStatus(codes.Error, err.Error())
			}
			return nil, err
		}
	}

	if c.opts.Hooks != nil {
		if err := c.opts.Hooks.Trigger(ctx, hooks.NewPreCommitEvent(hooks.PreCommitPayload{CommitIdentifier: identifier, Kind: kind})); err != nil {
			return nil, err
		}
	}

	st := statePreparing
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.InitialBackoff
	bo.MaxInterval = c.opts.MaxBackoff

	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		base := c.opts.Registry.Latest()
		baseID := int64(0)
		if base != nil {
			baseID = base.ID
		}
		schemaID, _ := c.opts.Registry.LatestSchemaID()

		snap := &core.Snapshot{
			ID:                baseID + 1,
			CommitKind:        kind,
			SchemaID:          schemaID,
			CommitIdentifier:  identifier,
			CommitUser:        c.opts.CommitUser,
			DroppedPartitions: dropped,
			TimestampMillis:   c.opts.Clock().UnixMilli(),
		}

		st = stateSubmitted
		err := c.opts.Registry.Commit(ctx, baseID, snap)
		if err == nil {
			st = stateSucceeded
			c.firePostCommit(ctx, identifier, snap.ID, nil)
			return snap, nil
		}

		if !core.IsCommitConflict(err) {
			st = stateRejected
			c.firePostCommit(ctx, identifier, 0, err)
			return nil, err
		}

		st = stateConflicted
		var conflictErr *core.CommitConflictError
		if e, ok := err.(*core.CommitConflictError); ok {
			conflictErr = e
		}
		if c.opts.Hooks != nil && conflictErr != nil {
			_ = c.opts.Hooks.Trigger(ctx, hooks.NewCommitConflictEvent(hooks.CommitConflictPayload{
				CommitIdentifier: identifier,
				Attempt:          attempt,
				ExpectedBase:     conflictErr.ExpectedBase,
				ActualLatest:     conflictErr.ActualLatest,
			}))
		}
		c.opts.Logger.Debug("commit conflict, retrying against fresh base", "identifier", identifier, "attempt", attempt, "state", st.String())

		if attempt == c.opts.MaxAttempts {
			c.firePostCommit(ctx, identifier, 0, err)
			return nil, err
		}

		wait := bo.NextBackOff()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		st = statePreparing
	}

	return nil, fmt.Errorf("commit: exhausted %d attempts without success or terminal error", c.opts.MaxAttempts)
}

func (c *Coordinator) firePostCommit(ctx context.Context, identifier, snapshotID int64, err error) {
	if c.opts.Hooks == nil {
		return
	}
	_ = c.opts.Hooks.Trigger(ctx, hooks.NewPostCommitEvent(hooks.PostCommitPayload{
		CommitIdentifier: identifier,
		SnapshotID:       snapshotID,
		Error:            err,
	}))
}

// FilterAndCommit commits every identifier in messagesByIdentifier that the
// snapshot log does not already record as committed by this CommitUser,
// skipping the rest as already-successful idempotent retries. It never
// returns an error for an identifier whose target partitions were expired
// after the writer prepared it but whose data had already landed under a
// prior snapshot — that identifier is simply found already-committed and
// skipped before the write guard ever runs.
func (c *Coordinator) FilterAndCommit(ctx context.Context, messagesByIdentifier map[int64][]Message) error {
	identifiers := make([]int64, 0, len(messagesByIdentifier))
	for identifier := range messagesByIdentifier {
		identifiers = append(identifiers, identifier)
	}
	// Commit identifiers in ascending order: within one partition a
	// later-identifier commit must never be observed before an earlier one.
	sort.Slice(identifiers, func(i, j int) bool { return identifiers[i] < identifiers[j] })

	for _, identifier := range identifiers {
		if c.alreadyCommitted(identifier) {
			continue
		}
		if _, err := c.Commit(ctx, identifier, messagesByIdentifier[identifier]); err != nil {
			return fmt.Errorf("commit: filter_and_commit identifier %d: %w", identifier, err)
		}
	}
	return nil
}

func (c *Coordinator) alreadyCommitted(identifier int64) bool {
	found := false
	c.opts.Registry.IterSnapshots(func(s *core.Snapshot) bool {
		if s.CommitIdentifier == identifier && s.CommitUser == c.opts.CommitUser {
			found = true
			return false
		}
		return true
	})
	return found
}
