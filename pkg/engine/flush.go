package engine

import (
	"fmt"

	"github.com/mnohosten/strata/pkg/sstable"
)

// flushWorker turns frozen memtables into level-0 SSTables in the
// background.
func (db *DB) flushWorker() {
	defer db.wg.Done()

	for {
		select {
		case <-db.flushChan:
			if err := db.flushImmutable(); err != nil {
				db.cfg.logf("strata: flush failed: %v", err)
			}
		case <-db.stopChan:
			return
		}
	}
}

// flushImmutable writes the immutable memtable to a new SSTable,
// installs the table, clears the immutable slot, and removes the WAL
// file that backed it. A failure leaves the immutable memtable and
// its WAL intact so a retry can succeed.
func (db *DB) flushImmutable() error {
	db.flushMu.Lock()
	defer db.flushMu.Unlock()

	imm := db.memtables.Immutable()
	if imm == nil {
		return nil
	}

	db.mu.Lock()
	id := db.nextTableID
	db.nextTableID++
	pendingWAL := db.pendingWAL
	db.mu.Unlock()

	// Tombstones flush too: they must shadow older values in deeper
	// tables until compaction drops them.
	meta, err := db.buildTable(imm, id)
	if err != nil {
		return err
	}

	reader, err := sstable.Open(meta.Path, sstable.ReaderOptions{ID: id, Cache: db.blockCache})
	if err != nil {
		return fmt.Errorf("failed to reopen flushed sstable: %w", err)
	}

	db.mu.Lock()
	db.tables = append([]*sstable.Reader{reader}, db.tables...)
	if db.pendingWAL == pendingWAL {
		db.pendingWAL = ""
	}
	tableCount := len(db.tables)
	db.mu.Unlock()

	db.memtables.ClearImmutable()
	db.collector.RecordFlush(meta.FileSize)

	// The memtable is durable on disk; its WAL has served its purpose.
	if pendingWAL != "" {
		if err := db.wals.Remove(pendingWAL); err != nil {
			db.cfg.logf("strata: %v", err)
		}
	}

	if tableCount > db.cfg.CompactionThreshold {
		select {
		case db.compactChan <- struct{}{}:
		default:
		}
	}
	return nil
}
