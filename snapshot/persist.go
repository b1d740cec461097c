package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/lakestore/tablecore/core"
	"github.com/lakestore/tablecore/external"
)

// PersistSnapshot writes snap as a compressed JSON blob under dir, using
// the write-and-rename pattern so a crash mid-write never leaves a
// partially published snapshot pointer file behind. compressor may be nil,
// in which case the blob is stored uncompressed.
//
// This is a durability side-channel a host may use to survive process
// restarts without replaying every commit; the in-memory Registry itself
// remains the source of truth a running process reads from.
func PersistSnapshot(ctx context.Context, fio external.FileIO, dir string, snap *core.Snapshot, compressor core.Compressor) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("snapshot: marshal snapshot %d: %w", snap.ID, err)
	}
	if compressor != nil {
		payload, err = compressor.Compress(payload)
		if err != nil {
			return fmt.Errorf("snapshot: compress snapshot %d: %w", snap.ID, err)
		}
	}

	finalPath := manifestPointerPath(dir, snap.ID)
	tempPath := finalPath + ".tmp"

	w, err := fio.OpenOutput(ctx, tempPath)
	if err != nil {
		return fmt.Errorf("snapshot: open temp pointer file: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		w.Close()
		return fmt.Errorf("snapshot: write pointer file: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("snapshot: close pointer file: %w", err)
	}
	if err := fio.Rename(ctx, tempPath, finalPath); err != nil {
		return fmt.Errorf("snapshot: publish pointer file: %w", err)
	}
	return nil
}

// LoadSnapshot reads back a snapshot pointer file written by
// PersistSnapshot. compressor must match the one used to write it.
func LoadSnapshot(ctx context.Context, fio external.FileIO, dir string, id int64, compressor core.Compressor) (*core.Snapshot, error) {
	r, err := fio.OpenInput(ctx, manifestPointerPath(dir, id))
	if err != nil {
		return nil, fmt.Errorf("snapshot: open pointer file for %d: %w", id, err)
	}
	defer r.Close()

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read pointer file for %d: %w", id, err)
	}
	if compressor != nil {
		dr, err := compressor.Decompress(payload)
		if err != nil {
			return nil, fmt.Errorf("snapshot: decompress pointer file for %d: %w", id, err)
		}
		defer dr.Close()
		payload, err = io.ReadAll(dr)
		if err != nil {
			return nil, fmt.Errorf("snapshot: read decompressed pointer file for %d: %w", id, err)
		}
	}

	var snap core.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal pointer file for %d: %w", id, err)
	}
	return &snap, nil
}

func manifestPointerPath(dir string, id int64) string {
	return filepath.Join(dir, "snapshot-"+strconv.FormatInt(id, 10)+".json")
}
