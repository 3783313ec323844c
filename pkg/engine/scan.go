package engine

import (
	"bytes"

	"github.com/mnohosten/strata/pkg/iterator"
	"github.com/mnohosten/strata/pkg/sstable"
)

// Scanner is a forward cursor over the live entries of the whole
// database in key order, composed from the memtables and every table
// by the merging iterator. Tombstoned keys are not yielded.
//
// A scanner observes the sources present when it was created; entries
// written afterwards may or may not appear.
type Scanner struct {
	merge *iterator.MergeIterator
	end   []byte // exclusive, nil for unbounded
}

// Scan returns a cursor over keys in [start, end). A nil start begins
// at the first key; a nil end scans to the last.
func (db *DB) Scan(start, end []byte) (*Scanner, error) {
	db.mu.RLock()
	if db.closed {
		db.mu.RUnlock()
		return nil, ErrClosed
	}
	tables := make([]*sstable.Reader, len(db.tables))
	copy(tables, db.tables)
	db.mu.RUnlock()

	iters := make([]iterator.Iterator, 0, len(tables)+2)

	active := db.memtables.Active().Iterator()
	if start != nil {
		active.Seek(start)
	}
	iters = append(iters, active)

	if imm := db.memtables.Immutable(); imm != nil {
		it := imm.Iterator()
		if start != nil {
			it.Seek(start)
		}
		iters = append(iters, it)
	}

	for _, t := range tables {
		iters = append(iters, t.NewRangeIterator(start, end))
	}

	return &Scanner{
		merge: iterator.NewMergeIterator(iters, false),
		end:   end,
	}, nil
}

// Valid reports whether the cursor points at an entry inside the
// bound.
func (s *Scanner) Valid() bool {
	if !s.merge.Valid() {
		return false
	}
	return s.end == nil || bytes.Compare(s.merge.Key(), s.end) < 0
}

// Key returns the key at the cursor. Panics if the cursor is invalid.
func (s *Scanner) Key() []byte {
	if !s.Valid() {
		panic("engine: scanner not valid")
	}
	return s.merge.Key()
}

// Value returns the value at the cursor. Panics if the cursor is invalid.
func (s *Scanner) Value() []byte {
	if !s.Valid() {
		panic("engine: scanner not valid")
	}
	return s.merge.Value()
}

// Next advances to the next live key.
func (s *Scanner) Next() {
	s.merge.Next()
}

// Seek positions the cursor at the first live key >= target.
func (s *Scanner) Seek(target []byte) {
	s.merge.Seek(target)
}
