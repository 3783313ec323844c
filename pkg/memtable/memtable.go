// Package memtable holds the engine's mutable in-memory state: a
// skip-list-backed sorted buffer and the active/immutable manager
// that lets writes continue while a frozen memtable flushes.
package memtable

import (
	"sync"

	"github.com/mnohosten/strata/pkg/kv"
)

// Memtable is the mutable sorted buffer for recent writes.
// A delete is stored as an entry with an empty value (a tombstone):
// older versions of the key may still exist in SSTables, so the
// deletion must survive until compaction reaches them.
type Memtable struct {
	mu      sync.RWMutex
	list    *SkipList
	maxSize int64
}

// New creates a memtable with the given soft size limit in bytes.
func New(maxSize int64) *Memtable {
	return &Memtable{
		list:    NewSkipList(),
		maxSize: maxSize,
	}
}

// Put inserts or updates a key-value pair.
func (mt *Memtable) Put(key, value []byte) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.list.Insert(kv.CloneBytes(key), kv.CloneBytes(value))
}

// Delete writes a tombstone for key.
func (mt *Memtable) Delete(key []byte) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.list.Insert(kv.CloneBytes(key), []byte{})
}

// Get returns the live value stored under key. A missing key and a
// tombstoned key both report absent.
func (mt *Memtable) Get(key []byte) ([]byte, bool) {
	mt.mu.RLock()
	defer mt.mu.RUnlock()

	value, found := mt.list.Get(key)
	if !found || len(value) == 0 {
		return nil, false
	}
	return value, true
}

// Find returns the raw stored value, tombstones included. The engine
// read path needs presence itself: a tombstone here must shadow older
// values in deeper sources.
func (mt *Memtable) Find(key []byte) ([]byte, bool) {
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	return mt.list.Get(key)
}

// Size returns the tracked byte size.
func (mt *Memtable) Size() int64 {
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	return mt.list.Size()
}

// Len returns the number of entries, tombstones included.
func (mt *Memtable) Len() int {
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	return mt.list.Len()
}

// IsFull reports whether the memtable has reached its size limit.
func (mt *Memtable) IsFull() bool {
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	return mt.list.Size() >= mt.maxSize
}

// Iterator returns a cursor over all entries in sorted order,
// tombstones included — a flush must propagate them.
//
// The cursor reads the skip list without holding the memtable lock;
// it is meant for frozen memtables and single-writer scans.
func (mt *Memtable) Iterator() *SkipListIterator {
	mt.mu.RLock()
	defer mt.mu.RUnlock()
	return mt.list.Iterator()
}
