// Package cache provides the byte-bounded LRU block cache consulted
// by SSTable reads. Blocks are immutable for the life of their table,
// so entries never expire — they only age out under capacity pressure.
package cache

import (
	"container/list"
	"sync"
)

// blockKey identifies one data block within one table.
type blockKey struct {
	table  uint64
	offset uint64
}

type entry struct {
	key  blockKey
	data []byte
}

// Cache is a thread-safe LRU over raw block bytes.
type Cache struct {
	mu        sync.Mutex
	capacity  int64 // bytes
	used      int64
	items     map[blockKey]*list.Element
	lruList   *list.List
	hits      uint64
	misses    uint64
	evictions uint64
}

// New creates a cache bounded to capacity bytes. A non-positive
// capacity disables caching (every Get misses, Put is a no-op).
func New(capacity int64) *Cache {
	return &Cache{
		capacity: capacity,
		items:    make(map[blockKey]*list.Element),
		lruList:  list.New(),
	}
}

// Get returns the cached block bytes for (table, offset).
// Callers must not mutate the returned slice.
func (c *Cache) Get(table, offset uint64) ([]byte, bool) {
	if c == nil || c.capacity <= 0 {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[blockKey{table, offset}]
	if !exists {
		c.misses++
		return nil, false
	}

	c.lruList.MoveToFront(elem)
	c.hits++
	return elem.Value.(*entry).data, true
}

// Put stores block bytes under (table, offset), evicting the least
// recently used blocks to stay within capacity.
func (c *Cache) Put(table, offset uint64, data []byte) {
	if c == nil || c.capacity <= 0 || int64(len(data)) > c.capacity {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := blockKey{table, offset}
	if elem, exists := c.items[key]; exists {
		// Blocks are immutable; refreshing recency is enough.
		c.lruList.MoveToFront(elem)
		return
	}

	elem := c.lruList.PushFront(&entry{key: key, data: data})
	c.items[key] = elem
	c.used += int64(len(data))

	for c.used > c.capacity {
		c.evictOldest()
	}
}

func (c *Cache) evictOldest() {
	oldest := c.lruList.Back()
	if oldest == nil {
		return
	}
	e := oldest.Value.(*entry)
	c.lruList.Remove(oldest)
	delete(c.items, e.key)
	c.used -= int64(len(e.data))
	c.evictions++
}

// Stats reports cache effectiveness counters.
type Stats struct {
	UsedBytes int64
	Blocks    int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		UsedBytes: c.used,
		Blocks:    c.lruList.Len(),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
