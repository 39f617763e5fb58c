package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

const gridSnapshotVersion = 1

// GridSnapshot is the on-disk form of every session's local grids
type GridSnapshot struct {
	Version  int               `msgpack:"version"`
	SavedAt  int64             `msgpack:"saved_at"`
	Sessions []SessionSnapshot `msgpack:"sessions"`
}

// SessionSnapshot holds the grids of one session
type SessionSnapshot struct {
	ID    string     `msgpack:"id"`
	Name  string     `msgpack:"name"`
	Grids []GridView `msgpack:"grids"`
}

// WriteGridSnapshot writes snap to path through a temp file and returns the
// compressed size.
func WriteGridSnapshot(path string, snap GridSnapshot) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp)

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return 0, err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	snap.Version = gridSnapshotVersion
	if err := msgpack.NewEncoder(bw).Encode(&snap); err != nil {
		enc.Close()
		f.Close()
		return 0, fmt.Errorf("msgpack encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		f.Close()
		return 0, err
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return 0, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, err
	}
	return st.Size(), nil
}

// ReadGridSnapshot reads a snapshot written by WriteGridSnapshot
func ReadGridSnapshot(path string) (GridSnapshot, error) {
	var snap GridSnapshot
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	if err := msgpack.NewDecoder(bufio.NewReaderSize(dec, 64*1024)).Decode(&snap); err != nil {
		return snap, fmt.Errorf("msgpack decode: %w", err)
	}
	if snap.Version != gridSnapshotVersion {
		return snap, fmt.Errorf("unsupported grid snapshot version %d", snap.Version)
	}
	return snap, nil
}
