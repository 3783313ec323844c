package sstable

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/mnohosten/strata/pkg/bloom"
	"github.com/mnohosten/strata/pkg/cache"
	"github.com/mnohosten/strata/pkg/kv"
)

// ReaderOptions configures how a table is opened.
type ReaderOptions struct {
	ID    uint64       // table identity, used as the cache key prefix
	Cache *cache.Cache // optional block cache; nil reads straight from disk
}

// Reader serves point lookups and scans from one immutable table.
// The file handle is shared behind a mutex so concurrent Gets don't
// need exclusive access to the Reader itself.
type Reader struct {
	mu     sync.Mutex // guards file seeks/reads
	file   *os.File
	path   string
	id     uint64
	index  []IndexEntry
	filter *bloom.Filter
	blocks *cache.Cache
	meta   Meta
}

// Open validates the table at path and loads its footer, index, and
// bloom filter. A table that fails validation cannot serve reads.
func Open(path string, opts ReaderOptions) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sstable: %w", err)
	}

	r, err := load(file, path, opts)
	if err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

func load(file *os.File, path string, opts ReaderOptions) (*Reader, error) {
	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat sstable: %w", err)
	}
	if stat.Size() < footerSize {
		return nil, kv.Corruptionf(path, "file too small for footer: %d bytes", stat.Size())
	}

	footerBytes := make([]byte, footerSize)
	if _, err := file.ReadAt(footerBytes, stat.Size()-footerSize); err != nil {
		return nil, fmt.Errorf("failed to read footer: %w", err)
	}
	f, err := decodeFooter(path, footerBytes)
	if err != nil {
		return nil, err
	}

	if f.indexOffset+f.indexSize > uint64(stat.Size()) || f.metaOffset+f.metaSize > uint64(stat.Size()) {
		return nil, kv.Corruptionf(path, "footer extents exceed file size")
	}

	indexBytes := make([]byte, f.indexSize)
	if _, err := file.ReadAt(indexBytes, int64(f.indexOffset)); err != nil {
		return nil, fmt.Errorf("failed to read index block: %w", err)
	}
	index, err := decodeIndex(path, indexBytes)
	if err != nil {
		return nil, err
	}

	var filter *bloom.Filter
	if f.metaSize > 0 {
		metaBytes := make([]byte, f.metaSize)
		if _, err := file.ReadAt(metaBytes, int64(f.metaOffset)); err != nil {
			return nil, fmt.Errorf("failed to read meta block: %w", err)
		}
		filter, err = bloom.Unmarshal(metaBytes)
		if err != nil {
			return nil, kv.Corruptionf(path, "bad bloom filter: %v", err)
		}
	}

	r := &Reader{
		file:   file,
		path:   path,
		id:     opts.ID,
		index:  index,
		filter: filter,
		blocks: opts.Cache,
	}

	// Derive what the footer and index expose: max key is the last
	// block's last key; min key needs the first block's first entry.
	meta := Meta{
		ID:         opts.ID,
		FileSize:   uint64(stat.Size()),
		EntryCount: 0,
		Path:       path,
	}
	if len(index) > 0 {
		meta.MaxKey = kv.CloneBytes(index[len(index)-1].LastKey)
		first, err := r.readBlock(0)
		if err != nil {
			return nil, err
		}
		if first.Len() > 0 {
			meta.MinKey = kv.CloneBytes(first.keyAt(0))
		}
		var count uint64
		for i := range index {
			block, err := r.readBlock(i)
			if err != nil {
				return nil, err
			}
			count += uint64(block.Len())
		}
		meta.EntryCount = count
	}
	r.meta = meta
	return r, nil
}

// Meta returns the table metadata derivable from the file.
func (r *Reader) Meta() Meta {
	return r.meta
}

// Path returns the file path backing this reader.
func (r *Reader) Path() string {
	return r.path
}

// readBlock loads and decodes the i-th data block, consulting the
// block cache first.
func (r *Reader) readBlock(i int) (*Block, error) {
	entry := r.index[i]

	if data, ok := r.blocks.Get(r.id, entry.Offset); ok {
		return DecodeBlock(data)
	}

	data := make([]byte, entry.Size)
	r.mu.Lock()
	_, err := r.file.ReadAt(data, int64(entry.Offset))
	r.mu.Unlock()
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read block from %s: %w", r.path, err)
	}

	block, err := DecodeBlock(data)
	if err != nil {
		return nil, err
	}
	r.blocks.Put(r.id, entry.Offset, data)
	return block, nil
}

// seekBlock returns the index of the first block whose last key is
// >= key, or len(index) when key exceeds every block.
func (r *Reader) seekBlock(key []byte) int {
	return sort.Search(len(r.index), func(i int) bool {
		return bytes.Compare(r.index[i].LastKey, key) >= 0
	})
}

// CouldContain reports whether key can be in this table at all,
// using the key range and the bloom filter. False means definitely
// absent; callers use it to skip the block read entirely.
func (r *Reader) CouldContain(key []byte) bool {
	if len(r.index) == 0 {
		return false
	}
	if r.meta.MinKey != nil && bytes.Compare(key, r.meta.MinKey) < 0 {
		return false
	}
	if r.meta.MaxKey != nil && bytes.Compare(key, r.meta.MaxKey) > 0 {
		return false
	}
	if r.filter != nil && !r.filter.MayContain(key) {
		return false
	}
	return true
}

// Get returns the stored value for key. A tombstone reads as a
// present entry with an empty value; callers decide its meaning.
func (r *Reader) Get(key []byte) ([]byte, bool, error) {
	if len(r.index) == 0 {
		return nil, false, nil
	}
	if r.meta.MinKey != nil && bytes.Compare(key, r.meta.MinKey) < 0 {
		return nil, false, nil
	}
	if r.meta.MaxKey != nil && bytes.Compare(key, r.meta.MaxKey) > 0 {
		return nil, false, nil
	}

	if r.filter != nil && !r.filter.MayContain(key) {
		return nil, false, nil
	}

	i := r.seekBlock(key)
	if i == len(r.index) {
		return nil, false, nil
	}

	block, err := r.readBlock(i)
	if err != nil {
		return nil, false, err
	}
	value, found := block.Get(key)
	return value, found, nil
}

// Close releases the file handle.
func (r *Reader) Close() error {
	return r.file.Close()
}
