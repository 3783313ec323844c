package engine

import (
	"io"

	"github.com/mnohosten/strata/pkg/cache"
	"github.com/mnohosten/strata/pkg/metrics"
)

// Stats describes the engine's current shape and its counters.
type Stats struct {
	MemtableSize int64
	MemtableLen  int
	HasImmutable bool
	TableCount   int
	TableEntries uint64
	TableBytes   uint64
	Cache        cache.Stats
	Counters     metrics.Stats
	NextTableID  uint64
}

// Stats returns a snapshot of the engine state.
func (db *DB) Stats() Stats {
	db.mu.RLock()
	tableCount := len(db.tables)
	var entries, bytes uint64
	for _, t := range db.tables {
		m := t.Meta()
		entries += m.EntryCount
		bytes += m.FileSize
	}
	nextID := db.nextTableID
	db.mu.RUnlock()

	active := db.memtables.Active()
	return Stats{
		MemtableSize: active.Size(),
		MemtableLen:  active.Len(),
		HasImmutable: db.memtables.HasImmutable(),
		TableCount:   tableCount,
		TableEntries: entries,
		TableBytes:   bytes,
		Cache:        db.blockCache.Stats(),
		Counters:     db.collector.Snapshot(),
		NextTableID:  nextID,
	}
}

// Metrics returns the engine's counter collector.
func (db *DB) Metrics() *metrics.Collector {
	return db.collector
}

// WriteMetrics writes the engine counters in Prometheus text format.
func (db *DB) WriteMetrics(w io.Writer) error {
	return metrics.NewPrometheusExporter(db.collector).WriteMetrics(w)
}
