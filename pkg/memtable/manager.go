package memtable

import "sync"

// Manager owns the active memtable and the optional immutable one
// awaiting flush. Writers mutate only the active table; readers check
// active first, then immutable, so a get may observe a write that has
// not yet been promoted to an SSTable.
type Manager struct {
	mu        sync.RWMutex
	active    *Memtable
	immutable *Memtable // nil when no flush is pending
	maxSize   int64
}

// NewManager creates a manager whose memtables freeze at maxSize bytes.
func NewManager(maxSize int64) *Manager {
	return &Manager{
		active:  New(maxSize),
		maxSize: maxSize,
	}
}

// Put inserts into the active memtable.
func (m *Manager) Put(key, value []byte) {
	m.mu.RLock()
	active := m.active
	m.mu.RUnlock()
	active.Put(key, value)
}

// Delete writes a tombstone into the active memtable.
func (m *Manager) Delete(key []byte) {
	m.mu.RLock()
	active := m.active
	m.mu.RUnlock()
	active.Delete(key)
}

// Get returns the live value for key, checking active then immutable.
// Tombstones read as absent.
func (m *Manager) Get(key []byte) ([]byte, bool) {
	value, found := m.Find(key)
	if !found || len(value) == 0 {
		return nil, false
	}
	return value, true
}

// Find returns the raw stored value for key, tombstones included,
// checking active then immutable.
func (m *Manager) Find(key []byte) ([]byte, bool) {
	m.mu.RLock()
	active, immutable := m.active, m.immutable
	m.mu.RUnlock()

	if value, found := active.Find(key); found {
		return value, true
	}
	if immutable != nil {
		if value, found := immutable.Find(key); found {
			return value, true
		}
	}
	return nil, false
}

// Active returns the current active memtable.
func (m *Manager) Active() *Memtable {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// ActiveIsFull reports whether the active memtable has reached its
// size limit and should be frozen.
func (m *Manager) ActiveIsFull() bool {
	m.mu.RLock()
	active := m.active
	m.mu.RUnlock()
	return active.IsFull()
}

// Freeze moves the active memtable into the immutable slot and
// installs a fresh empty one. It fails with ErrFlushBacklog if the
// previous immutable has not been cleared; it never blocks on I/O.
func (m *Manager) Freeze() (*Memtable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.immutable != nil {
		return nil, ErrFlushBacklog
	}

	frozen := m.active
	m.immutable = frozen
	m.active = New(m.maxSize)
	return frozen, nil
}

// Immutable returns the memtable awaiting flush, or nil.
func (m *Manager) Immutable() *Memtable {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.immutable
}

// HasImmutable reports whether a flush is pending.
func (m *Manager) HasImmutable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.immutable != nil
}

// ClearImmutable drops the immutable memtable. The flush task calls
// this only after the SSTable built from it is durably persisted.
func (m *Manager) ClearImmutable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.immutable = nil
}
