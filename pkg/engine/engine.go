// Package engine is the database façade over the LSM core: it wires
// the WAL, the memtable manager, the SSTables, and the background
// flush and compaction workers into put/get/delete/scan.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mnohosten/strata/pkg/cache"
	"github.com/mnohosten/strata/pkg/memtable"
	"github.com/mnohosten/strata/pkg/metrics"
	"github.com/mnohosten/strata/pkg/sstable"
	"github.com/mnohosten/strata/pkg/wal"
)

// DB is an embedded LSM key-value store.
//
// Writes append to the WAL, then land in the active memtable. A full
// memtable freezes and flushes to a level-0 SSTable in the
// background; the WAL file that backed it is deleted only after the
// table is durable. Reads go active memtable → immutable memtable →
// tables newest to oldest.
type DB struct {
	cfg        *Config
	dir        string
	memtables  *memtable.Manager
	wals       *wal.Manager
	blockCache *cache.Cache
	collector  *metrics.Collector

	// writeMu serializes the write path so WAL order matches
	// memtable apply order.
	writeMu sync.Mutex

	// flushMu serializes flushImmutable between the background worker
	// and synchronous flushes.
	flushMu sync.Mutex

	// compactMu ensures only one compaction selects victims at a time.
	compactMu sync.Mutex

	mu          sync.RWMutex // guards the fields below
	tables      []*sstable.Reader
	nextTableID uint64
	pendingWAL  string // WAL path paired with the immutable memtable
	closed      bool

	flushChan   chan struct{}
	compactChan chan struct{}
	stopChan    chan struct{}
	wg          sync.WaitGroup
}

// Open opens (or creates) the database at cfg.Dir, recovering any
// state left by a previous process: existing SSTables are loaded and
// existing WALs are replayed, flushed, and removed.
func Open(cfg *Config) (*DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("engine: nil config")
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db := &DB{
		cfg:         cfg,
		dir:         cfg.Dir,
		memtables:   memtable.NewManager(cfg.MemtableSize),
		blockCache:  cache.New(cfg.CacheSize),
		collector:   metrics.NewCollector(),
		flushChan:   make(chan struct{}, 1),
		compactChan: make(chan struct{}, 1),
		stopChan:    make(chan struct{}),
	}

	if err := db.loadTables(); err != nil {
		return nil, err
	}
	if err := db.recoverWALs(); err != nil {
		db.closeTables()
		return nil, err
	}

	wals, err := wal.NewManager(cfg.Dir, cfg.SyncPolicy)
	if err != nil {
		db.closeTables()
		return nil, err
	}
	db.wals = wals

	db.wg.Add(2)
	go db.flushWorker()
	go db.compactionWorker()
	if cfg.SyncPolicy.Mode == wal.SyncInterval {
		db.wg.Add(1)
		go db.walSyncWorker(cfg.SyncPolicy.Interval)
	}

	return db, nil
}

func (db *DB) tablePath(id uint64) string {
	return filepath.Join(db.dir, fmt.Sprintf("%06d.sst", id))
}

// Put inserts or updates a key-value pair. An empty value is
// indistinguishable from a delete: the engine stores it as a
// tombstone.
func (db *DB) Put(key, value []byte) error {
	if err := validateEntry(key, value); err != nil {
		return err
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if db.isClosed() {
		return ErrClosed
	}

	rec := wal.NewPut(key, value)
	if err := db.wals.Append(rec); err != nil {
		return err
	}
	db.collector.RecordWALBytes(uint64(rec.EncodedSize()))

	db.memtables.Put(key, value)
	db.collector.RecordPut()

	db.maybeFreeze()
	return nil
}

// Delete writes a tombstone for key. Older versions of the key in
// SSTables stay shadowed until compaction drops them.
func (db *DB) Delete(key []byte) error {
	if err := validateEntry(key, nil); err != nil {
		return err
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if db.isClosed() {
		return ErrClosed
	}

	rec := wal.NewDelete(key)
	if err := db.wals.Append(rec); err != nil {
		return err
	}
	db.collector.RecordWALBytes(uint64(rec.EncodedSize()))

	db.memtables.Delete(key)
	db.collector.RecordDelete()

	db.maybeFreeze()
	return nil
}

// Get returns the live value for key.
func (db *DB) Get(key []byte) ([]byte, bool, error) {
	if err := validateEntry(key, nil); err != nil {
		return nil, false, err
	}

	db.mu.RLock()
	if db.closed {
		db.mu.RUnlock()
		return nil, false, ErrClosed
	}
	tables := make([]*sstable.Reader, len(db.tables))
	copy(tables, db.tables)
	db.mu.RUnlock()

	// Memtables first: a tombstone here shadows every table.
	if value, found := db.memtables.Find(key); found {
		if len(value) == 0 {
			db.collector.RecordGet(false)
			return nil, false, nil
		}
		db.collector.RecordGet(true)
		return value, true, nil
	}

	for _, t := range tables {
		if !t.CouldContain(key) {
			db.collector.RecordBloomRejection()
			continue
		}
		value, found, err := t.Get(key)
		if err != nil {
			return nil, false, err
		}
		if found {
			if len(value) == 0 {
				db.collector.RecordGet(false)
				return nil, false, nil
			}
			db.collector.RecordGet(true)
			return value, true, nil
		}
	}

	db.collector.RecordGet(false)
	return nil, false, nil
}

// maybeFreeze rotates a full active memtable into the immutable slot
// and hands it to the flush worker. Called with writeMu held. If the
// previous flush is still pending, the freeze is retried on the next
// write.
func (db *DB) maybeFreeze() {
	if !db.memtables.ActiveIsFull() {
		return
	}

	if _, err := db.memtables.Freeze(); err != nil {
		// Flush backlog; the active memtable keeps absorbing writes.
		return
	}

	oldWAL, err := db.wals.Rotate()
	if err != nil {
		db.cfg.logf("strata: WAL rotation failed: %v", err)
		return
	}

	db.mu.Lock()
	db.pendingWAL = oldWAL
	db.mu.Unlock()

	select {
	case db.flushChan <- struct{}{}:
	default:
	}
}

func (db *DB) isClosed() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.closed
}

// Close stops the background workers, flushes all in-memory state,
// and releases every file handle. The WAL directory is left empty:
// everything it protected is in SSTables.
func (db *DB) Close() error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return nil
	}
	db.closed = true
	db.mu.Unlock()

	close(db.stopChan)
	db.wg.Wait()

	// Hold the write lock so no append can slip in while the WAL
	// directory is being retired.
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	// Flush the pending immutable, then the active memtable.
	if err := db.flushImmutable(); err != nil {
		return err
	}
	if db.memtables.Active().Len() > 0 {
		if _, err := db.memtables.Freeze(); err != nil {
			return err
		}
		if err := db.flushImmutable(); err != nil {
			return err
		}
	}

	if err := db.wals.Close(); err != nil {
		return err
	}

	// All WAL state is now durable in tables.
	walFiles, err := wal.ListFiles(db.dir)
	if err != nil {
		return err
	}
	for _, path := range walFiles {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove WAL file: %w", err)
		}
	}

	db.closeTables()
	return nil
}

func (db *DB) closeTables() {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, t := range db.tables {
		t.Close()
	}
	db.tables = nil
}

// validateEntry enforces the 16-bit key/value bounds of the block
// format at the API boundary.
func validateEntry(key, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if len(key) > 0xFFFF {
		return ErrKeyTooLarge
	}
	if len(value) > 0xFFFF {
		return ErrValueTooLarge
	}
	return nil
}

// walSyncWorker drives the SyncInterval policy: the WAL writer never
// syncs inline, so the engine owns the timer.
func (db *DB) walSyncWorker(interval time.Duration) {
	defer db.wg.Done()

	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			db.writeMu.Lock()
			err := db.wals.Sync()
			db.writeMu.Unlock()
			if err != nil {
				db.cfg.logf("strata: WAL sync failed: %v", err)
			}
		case <-db.stopChan:
			return
		}
	}
}
