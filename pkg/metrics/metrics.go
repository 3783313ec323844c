// Package metrics collects the engine's runtime counters and exposes
// them in Prometheus text format.
package metrics

import (
	"sync/atomic"
	"time"
)

// Collector accumulates engine counters. All methods are safe for
// concurrent use.
type Collector struct {
	puts            uint64
	deletes         uint64
	gets            uint64
	getMisses       uint64
	bloomRejections uint64
	flushes         uint64
	flushedBytes    uint64
	compactions     uint64
	compactedBytes  uint64
	walBytes        uint64

	startTime time.Time
}

// NewCollector creates a collector with the uptime clock started.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// RecordPut counts a put.
func (c *Collector) RecordPut() {
	atomic.AddUint64(&c.puts, 1)
}

// RecordDelete counts a delete.
func (c *Collector) RecordDelete() {
	atomic.AddUint64(&c.deletes, 1)
}

// RecordGet counts a get and whether it found a live value.
func (c *Collector) RecordGet(hit bool) {
	atomic.AddUint64(&c.gets, 1)
	if !hit {
		atomic.AddUint64(&c.getMisses, 1)
	}
}

// RecordBloomRejection counts a table lookup skipped by its filter.
func (c *Collector) RecordBloomRejection() {
	atomic.AddUint64(&c.bloomRejections, 1)
}

// RecordFlush counts a memtable flush of the given output size.
func (c *Collector) RecordFlush(bytes uint64) {
	atomic.AddUint64(&c.flushes, 1)
	atomic.AddUint64(&c.flushedBytes, bytes)
}

// RecordCompaction counts a compaction of the given output size.
func (c *Collector) RecordCompaction(bytes uint64) {
	atomic.AddUint64(&c.compactions, 1)
	atomic.AddUint64(&c.compactedBytes, bytes)
}

// RecordWALBytes counts bytes appended to the WAL.
func (c *Collector) RecordWALBytes(n uint64) {
	atomic.AddUint64(&c.walBytes, n)
}

// Stats is a point-in-time snapshot of the counters.
type Stats struct {
	Puts            uint64
	Deletes         uint64
	Gets            uint64
	GetMisses       uint64
	BloomRejections uint64
	Flushes         uint64
	FlushedBytes    uint64
	Compactions     uint64
	CompactedBytes  uint64
	WALBytes        uint64
	Uptime          time.Duration
}

// Snapshot returns the current counter values.
func (c *Collector) Snapshot() Stats {
	return Stats{
		Puts:            atomic.LoadUint64(&c.puts),
		Deletes:         atomic.LoadUint64(&c.deletes),
		Gets:            atomic.LoadUint64(&c.gets),
		GetMisses:       atomic.LoadUint64(&c.getMisses),
		BloomRejections: atomic.LoadUint64(&c.bloomRejections),
		Flushes:         atomic.LoadUint64(&c.flushes),
		FlushedBytes:    atomic.LoadUint64(&c.flushedBytes),
		Compactions:     atomic.LoadUint64(&c.compactions),
		CompactedBytes:  atomic.LoadUint64(&c.compactedBytes),
		WALBytes:        atomic.LoadUint64(&c.walBytes),
		Uptime:          time.Since(c.startTime),
	}
}
