// Package iterator defines the cursor contract shared by the
// memtable, block, and table iterators, and the merging iterator that
// combines them into a single ordered stream.
package iterator

// Iterator is a forward cursor over sorted key-value entries.
// Key and Value must only be called while Valid reports true; the
// concrete implementations panic otherwise.
type Iterator interface {
	// Valid reports whether the cursor points at an entry.
	Valid() bool
	// Key returns the key at the cursor.
	Key() []byte
	// Value returns the value at the cursor.
	Value() []byte
	// Next advances to the following entry.
	Next()
	// Seek positions the cursor at the first key >= target.
	Seek(target []byte)
}
