package engine

import (
	"fmt"
	"os"
	"time"

	"github.com/mnohosten/strata/pkg/iterator"
	"github.com/mnohosten/strata/pkg/sstable"
)

// compactionWorker merges old tables in the background to bound read
// amplification.
func (db *DB) compactionWorker() {
	defer db.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-db.compactChan:
			if err := db.Compact(); err != nil {
				db.cfg.logf("strata: compaction failed: %v", err)
			}
		case <-ticker.C:
			db.mu.RLock()
			needed := len(db.tables) > db.cfg.CompactionThreshold
			db.mu.RUnlock()
			if needed {
				if err := db.Compact(); err != nil {
					db.cfg.logf("strata: compaction failed: %v", err)
				}
			}
		case <-db.stopChan:
			return
		}
	}
}

// Compact merges the oldest run of tables into one. Because the run
// always ends at the oldest table, no older data can hide under a
// tombstone in it, so tombstones are dropped here; compactions that
// leave older tables behind must keep them.
func (db *DB) Compact() error {
	db.compactMu.Lock()
	defer db.compactMu.Unlock()

	db.mu.Lock()
	if db.closed || len(db.tables) <= db.cfg.CompactionThreshold {
		db.mu.Unlock()
		return nil
	}

	fanIn := db.cfg.CompactionFanIn
	if fanIn < 2 {
		fanIn = 2
	}
	if fanIn > len(db.tables) {
		fanIn = len(db.tables)
	}

	victims := make([]*sstable.Reader, fanIn)
	copy(victims, db.tables[len(db.tables)-fanIn:])

	id := db.nextTableID
	db.nextTableID++
	db.mu.Unlock()

	merged, entries, err := db.mergeTables(victims, id, false)
	if err != nil {
		return err
	}

	var replacement *sstable.Reader
	if entries > 0 {
		replacement, err = sstable.Open(merged.Path, sstable.ReaderOptions{ID: id, Cache: db.blockCache})
		if err != nil {
			return fmt.Errorf("failed to reopen compacted sstable: %w", err)
		}
	}

	// Swap the victims for the replacement. New tables may have been
	// flushed meanwhile, so rebuild rather than slice.
	db.mu.Lock()
	newList := make([]*sstable.Reader, 0, len(db.tables))
	for _, t := range db.tables {
		if !containsTable(victims, t) {
			newList = append(newList, t)
		}
	}
	if replacement != nil {
		newList = append(newList, replacement)
	}
	db.tables = newList
	db.mu.Unlock()

	for _, t := range victims {
		path := t.Path()
		t.Close()
		if err := os.Remove(path); err != nil {
			db.cfg.logf("strata: failed to remove compacted sstable: %v", err)
		}
	}

	if merged != nil {
		db.collector.RecordCompaction(merged.FileSize)
	}
	return nil
}

// mergeTables k-way-merges the given tables (newest first) into a new
// table file. keepTombstones selects write mode for compactions that
// leave older tables behind. It returns the new table's metadata and
// how many entries it holds; zero entries means the output file was
// discarded.
func (db *DB) mergeTables(tables []*sstable.Reader, id uint64, keepTombstones bool) (*sstable.Meta, int, error) {
	iters := make([]iterator.Iterator, len(tables))
	expected := 0
	for i, t := range tables {
		iters[i] = t.NewIterator()
		expected += int(t.Meta().EntryCount)
	}

	merge := iterator.NewMergeIterator(iters, keepTombstones)

	opts := sstable.BuilderOptions{
		BlockSize:    db.cfg.BlockSize,
		ExpectedKeys: expected,
		BloomFPR:     db.cfg.BloomFPR,
	}
	builder, err := sstable.NewBuilder(db.tablePath(id), id, opts)
	if err != nil {
		return nil, 0, err
	}

	entries := 0
	for merge.Valid() {
		if err := builder.Add(merge.Key(), merge.Value()); err != nil {
			builder.Abort()
			return nil, 0, err
		}
		entries++
		merge.Next()
	}

	for _, it := range iters {
		if tableIt, ok := it.(*sstable.Iterator); ok {
			if err := tableIt.Err(); err != nil {
				builder.Abort()
				return nil, 0, err
			}
		}
	}

	if entries == 0 {
		// Everything was deleted; no replacement table needed.
		builder.Abort()
		return nil, 0, nil
	}

	meta, err := builder.Finish()
	if err != nil {
		builder.Abort()
		return nil, 0, err
	}
	return meta, entries, nil
}

func containsTable(tables []*sstable.Reader, t *sstable.Reader) bool {
	for _, candidate := range tables {
		if candidate == t {
			return true
		}
	}
	return false
}
