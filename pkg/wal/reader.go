package wal

import (
	"fmt"
	"os"
)

// Reader replays a WAL file for recovery. The whole file is loaded up
// front — WALs are bounded by the memtable size limit.
//
// Iteration stops silently at the first record that fails to decode:
// sequential appends mean the first bad record marks a torn write
// from a crash and everything past it is garbage. Centralizing that
// policy here keeps recovery callers from having to distinguish
// expected tail corruption from real corruption.
type Reader struct {
	data    []byte
	offset  int
	current *Record
}

// OpenReader loads the WAL file at path.
func OpenReader(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read WAL file: %w", err)
	}
	return &Reader{data: data}, nil
}

// Next advances to the next record, returning false at the end of the
// readable prefix.
func (r *Reader) Next() bool {
	rec, n, err := Decode(r.data[r.offset:])
	if err != nil {
		r.current = nil
		return false
	}
	r.offset += n
	r.current = rec
	return true
}

// Record returns the record Next positioned on.
func (r *Reader) Record() *Record {
	return r.current
}
