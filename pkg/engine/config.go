package engine

import (
	"log"

	"github.com/mnohosten/strata/pkg/wal"
)

// Config holds engine configuration.
type Config struct {
	Dir string

	// MemtableSize is the soft byte limit that freezes the active
	// memtable.
	MemtableSize int64

	// BlockSize is the target SSTable data block size in bytes.
	BlockSize int

	// BloomFPR is the bloom filter target false-positive rate.
	BloomFPR float64

	// KeysPerTable sizes each table's bloom filter when the builder
	// has no better estimate.
	KeysPerTable int

	// SyncPolicy selects WAL durability.
	SyncPolicy wal.SyncPolicy

	// CacheSize bounds the block cache in bytes; 0 disables it.
	CacheSize int64

	// CompactionThreshold is the table count that triggers a
	// background compaction.
	CompactionThreshold int

	// CompactionFanIn is how many of the oldest tables one compaction
	// merges.
	CompactionFanIn int

	// Logf receives background-worker diagnostics. Defaults to the
	// standard logger.
	Logf func(format string, args ...interface{})
}

// DefaultConfig returns the standard configuration for dir.
func DefaultConfig(dir string) *Config {
	return &Config{
		Dir:                 dir,
		MemtableSize:        4 * 1024 * 1024,
		BlockSize:           4 * 1024,
		BloomFPR:            0.01,
		KeysPerTable:        10000,
		SyncPolicy:          wal.SyncEveryN(32),
		CacheSize:           8 * 1024 * 1024,
		CompactionThreshold: 8,
		CompactionFanIn:     4,
	}
}

func (c *Config) logf(format string, args ...interface{}) {
	if c.Logf != nil {
		c.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}
