package expire

import (
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"time"

	"github.com/lakestore/tablecore/external"
)

const (
	stateMagicNumber uint32 = 0x45585054 // "EXPT"
	stateFileName           = "expire_last_check.bin"
)

// writeLastCheckTime persists t under dir using the write-and-rename
// pattern: the payload lands on a temp path first, then Rename publishes it
// atomically so a crash mid-write never leaves a half-written state file.
func writeLastCheckTime(ctx context.Context, io external.FileIO, dir string, t time.Time) error {
	tempPath := filepath.Join(dir, stateFileName+".tmp")
	finalPath := filepath.Join(dir, stateFileName)

	w, err := io.OpenOutput(ctx, tempPath)
	if err != nil {
		return fmt.Errorf("expire: create temp state file: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, stateMagicNumber); err != nil {
		w.Close()
		return fmt.Errorf("expire: write state magic number: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, t.UnixNano()); err != nil {
		w.Close()
		return fmt.Errorf("expire: write last check time: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("expire: close temp state file: %w", err)
	}
	if err := io.Rename(ctx, tempPath, finalPath); err != nil {
		return fmt.Errorf("expire: publish state file: %w", err)
	}
	return nil
}

// readLastCheckTime returns the persisted last_check_time, or the zero
// time and false if no state has ever been written.
func readLastCheckTime(ctx context.Context, io external.FileIO, dir string) (time.Time, bool, error) {
	path := filepath.Join(dir, stateFileName)
	exists, err := io.Exists(ctx, path)
	if err != nil {
		return time.Time{}, false, err
	}
	if !exists {
		return time.Time{}, false, nil
	}

	r, err := io.OpenInput(ctx, path)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("expire: open state file: %w", err)
	}
	defer r.Close()

	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return time.Time{}, true, fmt.Errorf("expire: read state magic number: %w", err)
	}
	if magic != stateMagicNumber {
		return time.Time{}, true, fmt.Errorf("expire: bad state magic number: got %x want %x", magic, stateMagicNumber)
	}
	var nanos int64
	if err := binary.Read(r, binary.LittleEndian, &nanos); err != nil {
		return time.Time{}, true, fmt.Errorf("expire: read last check time: %w", err)
	}
	return time.Unix(0, nanos).UTC(), true, nil
}
