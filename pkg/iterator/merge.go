package iterator

import (
	"bytes"
	"container/heap"

	"github.com/mnohosten/strata/pkg/kv"
)

// MergeIterator combines already-sorted sources into one ordered,
// deduplicated stream. Source order is priority: index 0 is the
// newest source (active memtable), then the immutable memtable, then
// tables from newest to oldest. For duplicate keys the lowest
// priority source wins; older duplicates are skipped.
//
// In read mode tombstones are filtered out. Compaction runs in write
// mode and receives tombstones unchanged so they can shadow older
// values in deeper levels.
type MergeIterator struct {
	sources        []*mergeSource
	h              mergeHeap
	keepTombstones bool
}

// NewMergeIterator builds a merge over the given cursors, each
// already positioned. keepTombstones selects write (compaction) mode.
func NewMergeIterator(iters []Iterator, keepTombstones bool) *MergeIterator {
	m := &MergeIterator{keepTombstones: keepTombstones}
	for priority, it := range iters {
		if it != nil {
			m.sources = append(m.sources, &mergeSource{iter: it, priority: priority})
		}
	}
	m.rebuild()
	m.settle()
	return m
}

// rebuild seeds the heap with the currently valid sources.
func (m *MergeIterator) rebuild() {
	m.h = m.h[:0]
	for _, src := range m.sources {
		if src.iter.Valid() {
			m.h = append(m.h, src)
		}
	}
	heap.Init(&m.h)
}

// Valid reports whether an entry is available.
func (m *MergeIterator) Valid() bool {
	return len(m.h) > 0
}

// Key returns the current key. Panics if the iterator is invalid.
func (m *MergeIterator) Key() []byte {
	if len(m.h) == 0 {
		panic("iterator: merge iterator not valid")
	}
	return m.h[0].iter.Key()
}

// Value returns the current value, taken from the newest source
// holding the key. Panics if the iterator is invalid.
func (m *MergeIterator) Value() []byte {
	if len(m.h) == 0 {
		panic("iterator: merge iterator not valid")
	}
	return m.h[0].iter.Value()
}

// Next advances past the current key, skipping the shadowed older
// duplicates in every other source.
func (m *MergeIterator) Next() {
	if len(m.h) == 0 {
		return
	}
	m.advanceKey()
	m.settle()
}

// advanceKey moves every source past the current minimum key.
func (m *MergeIterator) advanceKey() {
	current := kv.CloneBytes(m.h[0].iter.Key())
	for len(m.h) > 0 && bytes.Equal(m.h[0].iter.Key(), current) {
		src := m.h[0]
		src.iter.Next()
		if src.iter.Valid() {
			heap.Fix(&m.h, 0)
		} else {
			heap.Pop(&m.h)
		}
	}
}

// settle skips tombstoned keys in read mode.
func (m *MergeIterator) settle() {
	if m.keepTombstones {
		return
	}
	for len(m.h) > 0 && len(m.h[0].iter.Value()) == 0 {
		m.advanceKey()
	}
}

// Seek repositions every source at the first key >= target and
// rebuilds the heap.
func (m *MergeIterator) Seek(target []byte) {
	for _, src := range m.sources {
		src.iter.Seek(target)
	}
	m.rebuild()
	m.settle()
}

// mergeSource is one cursor plus its priority band.
type mergeSource struct {
	iter     Iterator
	priority int
}

// mergeHeap orders sources by (key ascending, priority ascending), so
// the newest source surfaces first among equal keys.
type mergeHeap []*mergeSource

func (h mergeHeap) Len() int { return len(h) }

func (h mergeHeap) Less(i, j int) bool {
	cmp := bytes.Compare(h[i].iter.Key(), h[j].iter.Key())
	if cmp != 0 {
		return cmp < 0
	}
	return h[i].priority < h[j].priority
}

func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x interface{}) {
	*h = append(*h, x.(*mergeSource))
}

func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
