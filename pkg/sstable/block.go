package sstable

import (
	"bytes"
	"sort"

	"github.com/mnohosten/strata/pkg/codec"
	"github.com/mnohosten/strata/pkg/kv"
)

// Block layout on disk, all integers little-endian:
//
//	(key_len(2) | value_len(2) | key | value)* | (offset(2))* | entry_count(2)
//
// Entries are appended in sorted key order; the trailing offset array
// makes binary search possible without scanning.
const entryOverhead = 4 // key_len(2) + value_len(2)

// BlockBuilder accumulates sorted entries up to a target byte size.
type BlockBuilder struct {
	data      []byte
	offsets   []uint16
	blockSize int
}

// NewBlockBuilder creates a builder targeting blockSize bytes.
func NewBlockBuilder(blockSize int) *BlockBuilder {
	return &BlockBuilder{blockSize: blockSize}
}

// Add appends an entry. It returns false when the block is full — the
// caller finalizes this block and starts a new one. The first entry
// is always accepted even if it alone exceeds the target; bounding
// the entry-to-block ratio is an upstream concern.
func (b *BlockBuilder) Add(key, value []byte) bool {
	entrySize := entryOverhead + len(key) + len(value)
	if len(b.offsets) > 0 && b.EstimatedSize()+entrySize > b.blockSize {
		return false
	}

	if len(key) > 0xFFFF || len(value) > 0xFFFF {
		panic("sstable: block entry exceeds 16-bit length")
	}

	b.offsets = append(b.offsets, uint16(len(b.data)))
	b.data = codec.AppendUint16(b.data, uint16(len(key)))
	b.data = codec.AppendUint16(b.data, uint16(len(value)))
	b.data = append(b.data, key...)
	b.data = append(b.data, value...)
	return true
}

// Empty reports whether no entries have been added.
func (b *BlockBuilder) Empty() bool {
	return len(b.offsets) == 0
}

// EstimatedSize returns the encoded size if the block were built now.
func (b *BlockBuilder) EstimatedSize() int {
	return len(b.data) + 2*len(b.offsets) + 2
}

// Build appends the offset array and entry count and returns the
// finished block bytes.
func (b *BlockBuilder) Build() []byte {
	buf := b.data
	for _, offset := range b.offsets {
		buf = codec.AppendUint16(buf, offset)
	}
	buf = codec.AppendUint16(buf, uint16(len(b.offsets)))
	return buf
}

// Block is a decoded read-only block.
type Block struct {
	data    []byte // entry region
	offsets []uint16
}

// DecodeBlock validates and parses block bytes.
func DecodeBlock(data []byte) (*Block, error) {
	if len(data) < 2 {
		return nil, kv.Corruptionf("", "invalid block: %d bytes", len(data))
	}

	count := int(codec.Uint16(data[len(data)-2:]))
	trailer := 2 * count
	if len(data) < 2+trailer {
		return nil, kv.Corruptionf("", "invalid block: offset array exceeds block")
	}

	entriesEnd := len(data) - 2 - trailer
	offsets := make([]uint16, count)
	for i := 0; i < count; i++ {
		offsets[i] = codec.Uint16(data[entriesEnd+2*i:])
	}

	for i, offset := range offsets {
		if i == 0 && offset != 0 {
			return nil, kv.Corruptionf("", "invalid block: first offset not zero")
		}
		if i > 0 && offset <= offsets[i-1] {
			return nil, kv.Corruptionf("", "invalid block: offsets not increasing")
		}
		if int(offset)+entryOverhead > entriesEnd {
			return nil, kv.Corruptionf("", "invalid block: offset out of range")
		}
		keyLen := int(codec.Uint16(data[offset:]))
		valueLen := int(codec.Uint16(data[int(offset)+2:]))
		if int(offset)+entryOverhead+keyLen+valueLen > entriesEnd {
			return nil, kv.Corruptionf("", "invalid block: entry exceeds block")
		}
	}

	return &Block{data: data[:entriesEnd], offsets: offsets}, nil
}

// Len returns the number of entries in the block.
func (b *Block) Len() int {
	return len(b.offsets)
}

// entryAt decodes the entry starting at offsets[i].
func (b *Block) entryAt(i int) (key, value []byte) {
	offset := int(b.offsets[i])
	keyLen := int(codec.Uint16(b.data[offset:]))
	valueLen := int(codec.Uint16(b.data[offset+2:]))
	keyStart := offset + entryOverhead
	return b.data[keyStart : keyStart+keyLen], b.data[keyStart+keyLen : keyStart+keyLen+valueLen]
}

// keyAt decodes just the key of entry i.
func (b *Block) keyAt(i int) []byte {
	offset := int(b.offsets[i])
	keyLen := int(codec.Uint16(b.data[offset:]))
	return b.data[offset+entryOverhead : offset+entryOverhead+keyLen]
}

// seek returns the index of the first entry with key >= target.
func (b *Block) seek(target []byte) int {
	return sort.Search(len(b.offsets), func(i int) bool {
		return bytes.Compare(b.keyAt(i), target) >= 0
	})
}

// Get binary-searches the block for key.
func (b *Block) Get(key []byte) ([]byte, bool) {
	i := b.seek(key)
	if i >= len(b.offsets) || !bytes.Equal(b.keyAt(i), key) {
		return nil, false
	}
	_, value := b.entryAt(i)
	return value, true
}

// Iterator returns a cursor positioned at the first entry.
func (b *Block) Iterator() *BlockIterator {
	return &BlockIterator{block: b}
}

// BlockIterator is a forward cursor over a decoded block.
type BlockIterator struct {
	block *Block
	index int
}

// Valid reports whether the cursor points at an entry.
func (it *BlockIterator) Valid() bool {
	return it.index < it.block.Len()
}

// Key returns the key at the cursor. Panics if the cursor is invalid.
func (it *BlockIterator) Key() []byte {
	if !it.Valid() {
		panic("sstable: block iterator not valid")
	}
	return it.block.keyAt(it.index)
}

// Value returns the value at the cursor. Panics if the cursor is invalid.
func (it *BlockIterator) Value() []byte {
	if !it.Valid() {
		panic("sstable: block iterator not valid")
	}
	_, value := it.block.entryAt(it.index)
	return value
}

// Next advances the cursor.
func (it *BlockIterator) Next() {
	it.index++
}

// Seek positions the cursor at the first key >= target.
func (it *BlockIterator) Seek(target []byte) {
	it.index = it.block.seek(target)
}
