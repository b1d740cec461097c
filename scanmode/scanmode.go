// Package scanmode implements the starting-scanner and follow-up-scanner
// capabilities a batch or streaming read plans its snapshot traversal
// against: picking the snapshot a scan begins from, and then, for readers
// that keep following new snapshots, deciding which of those carry a
// changelog worth surfacing.
package scanmode

import (
	"fmt"

	"github.com/lakestore/tablecore/core"
	"github.com/lakestore/tablecore/snapshot"
)

// Mode names what a scan reads off a chosen snapshot.
type Mode int

const (
	// ModeAll reads the full live contents as of a snapshot: every data
	// file a split-read merge would surface, deletion vectors included.
	ModeAll Mode = iota
	// ModeChangelog reads only the changelog a snapshot's commit produced,
	// for readers following incremental changes rather than full state.
	ModeChangelog
)

func (m Mode) String() string {
	switch m {
	case ModeAll:
		return "all"
	case ModeChangelog:
		return "changelog"
	default:
		return "unknown"
	}
}

// StartingScanner picks the snapshot a scan begins from and the mode it
// should be read in. Implementations are named variants (FromSnapshot,
// FromTimestamp, Latest); none of them touch files, they only resolve a
// registry lookup into (snapshot, mode).
type StartingScanner interface {
	Start(reg snapshot.Registry) (*core.Snapshot, Mode, error)
}

// FromSnapshot starts a scan from an explicit snapshot id, validating it
// falls within the registry's retained range before resolving it.
type FromSnapshot struct {
	SnapshotID int64
}

func (s FromSnapshot) Start(reg snapshot.Registry) (*core.Snapshot, Mode, error) {
	snap, err := reg.TryGet(s.SnapshotID)
	if err == nil && snap != nil {
		return snap, ModeAll, nil
	}
	if err != nil && !core.IsSnapshotGone(err) {
		return nil, ModeAll, err
	}

	earliest, hasEarliest := reg.EarliestID()
	latest, hasLatest := reg.LatestID()
	if !hasEarliest || !hasLatest {
		return nil, ModeAll, fmt.Errorf("scanmode: there is currently no snapshot")
	}
	if s.SnapshotID < earliest || s.SnapshotID > latest {
		return nil, ModeAll, &core.SnapshotOutOfRangeError{ID: s.SnapshotID, Earliest: earliest, Latest: latest}
	}
	if err != nil {
		return nil, ModeAll, err
	}
	return nil, ModeAll, &core.SnapshotGoneError{ID: s.SnapshotID}
}

// FromTimestamp starts a scan from the latest snapshot committed at or
// before Millis, falling back to the earliest retained snapshot if every
// retained snapshot postdates it.
type FromTimestamp struct {
	Millis int64
}

func (s FromTimestamp) Start(reg snapshot.Registry) (*core.Snapshot, Mode, error) {
	if _, has := reg.LatestID(); !has {
		return nil, ModeAll, fmt.Errorf("scanmode: there is currently no snapshot")
	}

	var picked *core.Snapshot
	var earliest *core.Snapshot
	reg.IterSnapshots(func(snap *core.Snapshot) bool {
		if earliest == nil {
			earliest = snap
		}
		if snap.TimestampMillis <= s.Millis {
			picked = snap
			return true
		}
		return false
	})
	if picked != nil {
		return picked, ModeAll, nil
	}
	// Every retained snapshot postdates Millis: start from the earliest
	// one available rather than failing the scan outright.
	return earliest, ModeAll, nil
}

// Latest starts a scan from the registry's current latest snapshot.
type Latest struct{}

func (Latest) Start(reg snapshot.Registry) (*core.Snapshot, Mode, error) {
	snap := reg.Latest()
	if snap == nil {
		return nil, ModeAll, fmt.Errorf("scanmode: there is currently no snapshot")
	}
	return snap, ModeAll, nil
}

// FollowUp advances an already-running scan through subsequent snapshots,
// deciding for each one whether it carries content worth surfacing.
type FollowUp interface {
	// ShouldScan reports whether snap should be surfaced to the reader at
	// all, or silently skipped in favor of checking the next one.
	ShouldScan(snap *core.Snapshot) bool
	// Mode names how a surfaced snapshot should be read.
	Mode() Mode
}

// ChangelogFollowUp surfaces only snapshots whose commit produced a
// changelog, reading each one in ModeChangelog. Snapshots with no
// changelog manifest are skipped so the reader keeps walking forward
// without stalling on them.
type ChangelogFollowUp struct{}

func (ChangelogFollowUp) ShouldScan(snap *core.Snapshot) bool {
	return snap.ChangelogManifestList != ""
}

func (ChangelogFollowUp) Mode() Mode { return ModeChangelog }

// DeltaFollowUp surfaces every subsequent snapshot in ModeAll, the
// behavior wanted by readers that track the full live table rather than
// an explicit changelog stream.
type DeltaFollowUp struct{}

func (DeltaFollowUp) ShouldScan(snap *core.Snapshot) bool { return true }

func (DeltaFollowUp) Mode() Mode { return ModeAll }

// Advance walks forward from afterID (exclusive) looking for the next
// snapshot a FollowUp scanner accepts, returning it along with its read
// mode. It returns a nil snapshot, no error, when the registry currently
// holds nothing newer than afterID.
func Advance(reg snapshot.Registry, afterID int64, f FollowUp) (*core.Snapshot, Mode, error) {
	latest, has := reg.LatestID()
	if !has || latest <= afterID {
		return nil, ModeAll, nil
	}

	for id := afterID + 1; id <= latest; id++ {
		snap, err := reg.TryGet(id)
		if err != nil {
			if core.IsSnapshotGone(err) {
				continue
			}
			return nil, ModeAll, err
		}
		if snap == nil {
			continue
		}
		if f.ShouldScan(snap) {
			return snap, f.Mode(), nil
		}
	}
	return nil, ModeAll, nil
}
