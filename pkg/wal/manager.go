package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Manager owns the WAL directory: a single active writer, its path,
// and the next numeric file ID. WAL files are named NNNNNN.wal with
// ascending zero-padded IDs; each file pairs with one memtable
// lifetime and is removed only after the SSTable built from that
// memtable is durably persisted.
type Manager struct {
	dir    string
	writer *Writer
	nextID uint64
	policy SyncPolicy
}

// NewManager scans dir for existing WAL files, picks max ID + 1, and
// opens a fresh writer there.
func NewManager(dir string, policy SyncPolicy) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory: %w", err)
	}

	nextID := uint64(0)
	existing, err := ListFiles(dir)
	if err != nil {
		return nil, err
	}
	for _, path := range existing {
		var id uint64
		if _, err := fmt.Sscanf(filepath.Base(path), "%06d.wal", &id); err == nil {
			if id >= nextID {
				nextID = id + 1
			}
		}
	}

	m := &Manager{dir: dir, nextID: nextID, policy: policy}
	writer, err := NewWriter(m.pathFor(m.nextID), policy)
	if err != nil {
		return nil, err
	}
	m.writer = writer
	m.nextID++
	return m, nil
}

// ListFiles returns the WAL file paths in dir sorted by ascending ID.
func ListFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.wal"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan WAL directory: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

func (m *Manager) pathFor(id uint64) string {
	return filepath.Join(m.dir, fmt.Sprintf("%06d.wal", id))
}

// Append writes a record to the active WAL.
func (m *Manager) Append(rec *Record) error {
	return m.writer.Append(rec)
}

// Sync forces the active WAL to disk.
func (m *Manager) Sync() error {
	return m.writer.Sync()
}

// ActivePath returns the path of the current WAL file.
func (m *Manager) ActivePath() string {
	return m.writer.Path()
}

// Rotate syncs and closes the current WAL, opens a fresh one at the
// next ID, and returns the old path so the caller can remove it once
// the paired memtable is durable on disk.
func (m *Manager) Rotate() (string, error) {
	oldPath := m.writer.Path()
	if err := m.writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close WAL during rotation: %w", err)
	}

	writer, err := NewWriter(m.pathFor(m.nextID), m.policy)
	if err != nil {
		return "", err
	}
	m.writer = writer
	m.nextID++
	return oldPath, nil
}

// Remove deletes an old WAL file. Callers invoke this only after the
// SSTable flushed from the paired memtable has been fsynced.
func (m *Manager) Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove WAL file: %w", err)
	}
	return nil
}

// Close closes the active writer.
func (m *Manager) Close() error {
	return m.writer.Close()
}
