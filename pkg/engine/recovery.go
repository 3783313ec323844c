package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mnohosten/strata/pkg/kv"
	"github.com/mnohosten/strata/pkg/memtable"
	"github.com/mnohosten/strata/pkg/sstable"
	"github.com/mnohosten/strata/pkg/wal"
)

// loadTables discovers and opens every SSTable in the directory.
// Opens hit the disk independently, so they run concurrently; the
// final list is sorted newest (highest ID) first.
func (db *DB) loadTables() error {
	matches, err := filepath.Glob(filepath.Join(db.dir, "*.sst"))
	if err != nil {
		return fmt.Errorf("failed to scan database directory: %w", err)
	}

	type loaded struct {
		id     uint64
		reader *sstable.Reader
	}

	var mu sync.Mutex
	var tables []loaded
	var g errgroup.Group

	for _, path := range matches {
		var id uint64
		if _, err := fmt.Sscanf(filepath.Base(path), "%06d.sst", &id); err != nil {
			continue
		}
		path := path
		g.Go(func() error {
			reader, err := sstable.Open(path, sstable.ReaderOptions{ID: id, Cache: db.blockCache})
			if err != nil {
				return err
			}
			mu.Lock()
			tables = append(tables, loaded{id: id, reader: reader})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, t := range tables {
			t.reader.Close()
		}
		return err
	}

	sort.Slice(tables, func(i, j int) bool {
		return tables[i].id > tables[j].id
	})

	for _, t := range tables {
		db.tables = append(db.tables, t.reader)
		if t.id >= db.nextTableID {
			db.nextTableID = t.id + 1
		}
	}
	return nil
}

// recoverWALs replays every WAL left by the previous process into a
// memtable, flushes it to a fresh SSTable, and removes the consumed
// files. Each reader stops at the first torn record, so a crash
// mid-append loses at most the suffix that never hit the kernel.
func (db *DB) recoverWALs() error {
	files, err := wal.ListFiles(db.dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}

	recovered := memtable.New(db.cfg.MemtableSize)
	for _, path := range files {
		reader, err := wal.OpenReader(path)
		if err != nil {
			return err
		}
		for reader.Next() {
			rec := reader.Record()
			switch rec.Type {
			case kv.RecordPut:
				recovered.Put(rec.Key, rec.Value)
			case kv.RecordDelete:
				recovered.Delete(rec.Key)
			}
		}
	}

	if recovered.Len() > 0 {
		db.mu.Lock()
		id := db.nextTableID
		db.nextTableID++
		db.mu.Unlock()

		meta, err := db.buildTable(recovered, id)
		if err != nil {
			return err
		}
		reader, err := sstable.Open(meta.Path, sstable.ReaderOptions{ID: id, Cache: db.blockCache})
		if err != nil {
			return fmt.Errorf("failed to reopen recovered sstable: %w", err)
		}
		db.mu.Lock()
		db.tables = append([]*sstable.Reader{reader}, db.tables...)
		db.mu.Unlock()
	}

	// The replayed state is durable (or there was none); the old WALs
	// are garbage either way.
	for _, path := range files {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove recovered WAL: %w", err)
		}
	}
	return nil
}

// buildTable flushes one memtable to a new SSTable file.
func (db *DB) buildTable(mt *memtable.Memtable, id uint64) (*sstable.Meta, error) {
	opts := sstable.BuilderOptions{
		BlockSize:    db.cfg.BlockSize,
		ExpectedKeys: mt.Len(),
		BloomFPR:     db.cfg.BloomFPR,
	}
	if opts.ExpectedKeys <= 0 {
		opts.ExpectedKeys = db.cfg.KeysPerTable
	}
	builder, err := sstable.NewBuilder(db.tablePath(id), id, opts)
	if err != nil {
		return nil, err
	}
	for it := mt.Iterator(); it.Valid(); it.Next() {
		if err := builder.Add(it.Key(), it.Value()); err != nil {
			builder.Abort()
			return nil, err
		}
	}
	meta, err := builder.Finish()
	if err != nil {
		builder.Abort()
		return nil, err
	}
	return meta, nil
}
