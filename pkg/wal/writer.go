package wal

import (
	"bufio"
	"fmt"
	"os"
	"time"
)

// SyncMode selects when the writer forces appended records to disk.
type SyncMode uint8

const (
	// SyncEveryWrite issues a full file sync after every append.
	SyncEveryWrite SyncMode = iota
	// SyncEveryNWrites syncs after every N appends.
	SyncEveryNWrites
	// SyncInterval never syncs inline; an external timer is expected
	// to call Sync on the configured cadence.
	SyncInterval
)

// SyncPolicy configures the writer's durability behavior.
type SyncPolicy struct {
	Mode     SyncMode
	N        int           // appends between syncs for SyncEveryNWrites
	Interval time.Duration // cadence hint for SyncInterval
}

// SyncOnEveryWrite returns the strongest (and slowest) policy.
func SyncOnEveryWrite() SyncPolicy {
	return SyncPolicy{Mode: SyncEveryWrite}
}

// SyncEveryN syncs after every n appends.
func SyncEveryN(n int) SyncPolicy {
	return SyncPolicy{Mode: SyncEveryNWrites, N: n}
}

// SyncEvery leaves syncing to a timer calling Sync every d.
func SyncEvery(d time.Duration) SyncPolicy {
	return SyncPolicy{Mode: SyncInterval, Interval: d}
}

// Writer appends records to a single WAL file through a user-space
// buffer. Appends are serialized externally (by the engine write
// path) to preserve record order.
type Writer struct {
	file     *os.File
	buf      *bufio.Writer
	path     string
	offset   int64
	policy   SyncPolicy
	unsynced int
}

// NewWriter opens (or creates) the WAL file at path for appending.
func NewWriter(path string, policy SyncPolicy) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAL file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat WAL file: %w", err)
	}

	return &Writer{
		file:   file,
		buf:    bufio.NewWriter(file),
		path:   path,
		offset: stat.Size(),
		policy: policy,
	}, nil
}

// Append serializes the record, pushes it through to the kernel, and
// applies the sync policy.
func (w *Writer) Append(rec *Record) error {
	data := rec.Encode()

	if _, err := w.buf.Write(data); err != nil {
		return fmt.Errorf("failed to write WAL record: %w", err)
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush WAL buffer: %w", err)
	}
	w.offset += int64(len(data))

	switch w.policy.Mode {
	case SyncEveryWrite:
		return w.Sync()
	case SyncEveryNWrites:
		w.unsynced++
		if w.unsynced >= w.policy.N {
			return w.Sync()
		}
	case SyncInterval:
		// External timer calls Sync.
	}
	return nil
}

// Sync flushes the buffer and forces the file to disk.
func (w *Writer) Sync() error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush WAL buffer: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync WAL file: %w", err)
	}
	w.unsynced = 0
	return nil
}

// Offset returns the current byte offset in the file.
func (w *Writer) Offset() int64 {
	return w.offset
}

// Path returns the file path backing this writer.
func (w *Writer) Path() string {
	return w.path
}

// Close syncs and closes the file.
func (w *Writer) Close() error {
	if err := w.Sync(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
