package sstable

import "bytes"

// Iterator is a forward cursor over every entry of one table, in key
// order. It walks the indexed blocks in sequence, loading each
// through the reader (and its cache) on demand.
type Iterator struct {
	reader   *Reader
	blockIdx int
	inner    *BlockIterator
	upper    []byte // exclusive scan bound, nil for unbounded
	err      error
}

// NewIterator returns a cursor positioned at the table's first entry.
func (r *Reader) NewIterator() *Iterator {
	it := &Iterator{reader: r}
	it.loadBlock(0)
	it.skipExhausted()
	return it
}

// NewRangeIterator returns a cursor over keys in [start, end).
// A nil start begins at the first entry; a nil end scans to the last.
func (r *Reader) NewRangeIterator(start, end []byte) *Iterator {
	it := &Iterator{reader: r, upper: end}
	if start != nil {
		it.Seek(start)
	} else {
		it.loadBlock(0)
		it.skipExhausted()
	}
	return it
}

// loadBlock positions the inner cursor at the start of block i.
func (it *Iterator) loadBlock(i int) {
	it.blockIdx = i
	it.inner = nil
	if i >= len(it.reader.index) {
		return
	}
	block, err := it.reader.readBlock(i)
	if err != nil {
		it.err = err
		return
	}
	it.inner = block.Iterator()
}

// skipExhausted moves past empty or finished blocks.
func (it *Iterator) skipExhausted() {
	for it.inner != nil && !it.inner.Valid() {
		it.loadBlock(it.blockIdx + 1)
	}
}

// Valid reports whether the cursor points at an entry inside the
// range bound.
func (it *Iterator) Valid() bool {
	if it.err != nil || it.inner == nil || !it.inner.Valid() {
		return false
	}
	return it.upper == nil || bytes.Compare(it.inner.Key(), it.upper) < 0
}

// Key returns the key at the cursor. Panics if the cursor is invalid.
func (it *Iterator) Key() []byte {
	if !it.Valid() {
		panic("sstable: iterator not valid")
	}
	return it.inner.Key()
}

// Value returns the value at the cursor. Panics if the cursor is invalid.
func (it *Iterator) Value() []byte {
	if !it.Valid() {
		panic("sstable: iterator not valid")
	}
	return it.inner.Value()
}

// Next advances the cursor, moving to the next block when the current
// one is exhausted.
func (it *Iterator) Next() {
	if it.inner == nil {
		return
	}
	it.inner.Next()
	it.skipExhausted()
}

// Seek positions the cursor at the first key >= target.
func (it *Iterator) Seek(target []byte) {
	i := it.reader.seekBlock(target)
	it.loadBlock(i)
	if it.inner != nil {
		it.inner.Seek(target)
	}
	it.skipExhausted()
}

// Err returns the first I/O or corruption error the cursor hit, if
// any; a cursor that stopped early reports why here.
func (it *Iterator) Err() error {
	return it.err
}
