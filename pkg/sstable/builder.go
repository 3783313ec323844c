// Package sstable implements the on-disk sorted table: 4 KiB data
// blocks, an index block keyed by each block's last key, a bloom
// filter meta block, and a fixed footer, plus the builder and reader
// around that format.
package sstable

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"github.com/mnohosten/strata/pkg/bloom"
	"github.com/mnohosten/strata/pkg/kv"
)

// DefaultBlockSize is the target data block size.
const DefaultBlockSize = 4 * 1024

// Meta describes a finished table. The engine's catalog keeps these
// to plan reads and compactions.
type Meta struct {
	ID         uint64
	Level      uint32
	MinKey     []byte
	MaxKey     []byte
	FileSize   uint64
	EntryCount uint64
	Path       string
}

// BuilderOptions configures table construction.
type BuilderOptions struct {
	BlockSize    int     // target data block size in bytes
	ExpectedKeys int     // bloom filter sizing hint
	BloomFPR     float64 // bloom filter target false-positive rate
}

// DefaultBuilderOptions returns the standard build configuration.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		BlockSize:    DefaultBlockSize,
		ExpectedKeys: 10000,
		BloomFPR:     0.01,
	}
}

// Builder streams sorted entries into an SSTable file:
// data blocks, then the bloom meta block, the index, and the footer.
type Builder struct {
	file        *os.File
	buf         *bufio.Writer
	path        string
	id          uint64
	block       *BlockBuilder
	index       []IndexEntry
	filter      *bloom.Filter
	dataOffset  uint64
	blockSize   int
	minKey      []byte
	maxKey      []byte
	entryCount  uint64
	lastInBlock []byte
}

// NewBuilder creates a builder writing the table with the given ID to
// path.
func NewBuilder(path string, id uint64, opts BuilderOptions) (*Builder, error) {
	if opts.BlockSize <= 0 {
		opts.BlockSize = DefaultBlockSize
	}
	if opts.ExpectedKeys <= 0 {
		opts.ExpectedKeys = DefaultBuilderOptions().ExpectedKeys
	}
	if opts.BloomFPR <= 0 || opts.BloomFPR >= 1 {
		opts.BloomFPR = DefaultBuilderOptions().BloomFPR
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create sstable file: %w", err)
	}

	return &Builder{
		file:      file,
		buf:       bufio.NewWriter(file),
		path:      path,
		id:        id,
		block:     NewBlockBuilder(opts.BlockSize),
		filter:    bloom.New(opts.ExpectedKeys, opts.BloomFPR),
		blockSize: opts.BlockSize,
	}, nil
}

// Add appends an entry. Keys must arrive in strictly ascending order;
// out-of-order adds are a programming error and panic.
func (b *Builder) Add(key, value []byte) error {
	if b.maxKey != nil && bytes.Compare(key, b.maxKey) <= 0 {
		panic("sstable: keys must be added in strictly ascending order")
	}

	if b.minKey == nil {
		b.minKey = kv.CloneBytes(key)
	}
	b.maxKey = kv.CloneBytes(key)
	b.entryCount++
	b.filter.Insert(key)

	if !b.block.Add(key, value) {
		if err := b.flushBlock(); err != nil {
			return err
		}
		// A fresh block always accepts its first entry.
		b.block.Add(key, value)
	}
	b.lastInBlock = b.maxKey
	return nil
}

// flushBlock serializes the current block, writes it, and records its
// index entry. An empty block is a no-op.
func (b *Builder) flushBlock() error {
	if b.block.Empty() {
		return nil
	}

	data := b.block.Build()
	b.block = NewBlockBuilder(b.blockSize)

	if _, err := b.buf.Write(data); err != nil {
		return fmt.Errorf("failed to write data block: %w", err)
	}

	b.index = append(b.index, IndexEntry{
		LastKey: b.lastInBlock,
		Offset:  b.dataOffset,
		Size:    uint64(len(data)),
	})
	b.dataOffset += uint64(len(data))
	b.lastInBlock = nil
	return nil
}

// Finish flushes the last block, writes the meta and index blocks and
// the footer, fsyncs, and returns the table metadata. On any I/O
// failure the partially written file is garbage and the caller must
// delete it.
func (b *Builder) Finish() (*Meta, error) {
	if err := b.flushBlock(); err != nil {
		return nil, err
	}

	metaOffset := b.dataOffset
	metaBlock := b.filter.Marshal()
	if _, err := b.buf.Write(metaBlock); err != nil {
		return nil, fmt.Errorf("failed to write meta block: %w", err)
	}

	indexOffset := metaOffset + uint64(len(metaBlock))
	var indexBlock []byte
	for i := range b.index {
		indexBlock = b.index[i].appendTo(indexBlock)
	}
	if _, err := b.buf.Write(indexBlock); err != nil {
		return nil, fmt.Errorf("failed to write index block: %w", err)
	}

	f := footer{
		indexOffset: indexOffset,
		indexSize:   uint64(len(indexBlock)),
		metaOffset:  metaOffset,
		metaSize:    uint64(len(metaBlock)),
	}
	if _, err := b.buf.Write(f.encode()); err != nil {
		return nil, fmt.Errorf("failed to write footer: %w", err)
	}

	if err := b.buf.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush sstable: %w", err)
	}
	if err := b.file.Sync(); err != nil {
		return nil, fmt.Errorf("failed to sync sstable: %w", err)
	}

	fileSize := indexOffset + uint64(len(indexBlock)) + footerSize
	if err := b.file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close sstable: %w", err)
	}

	return &Meta{
		ID:         b.id,
		Level:      0, // freshly flushed; promotion is the compactor's concern
		MinKey:     b.minKey,
		MaxKey:     b.maxKey,
		FileSize:   fileSize,
		EntryCount: b.entryCount,
		Path:       b.path,
	}, nil
}

// Abort closes and removes the partially written file.
func (b *Builder) Abort() {
	b.file.Close()
	os.Remove(b.path)
}
