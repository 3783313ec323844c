package memtable

import "errors"

// ErrFlushBacklog is returned by Freeze when the previous immutable
// memtable has not been flushed and cleared yet.
var ErrFlushBacklog = errors.New("immutable memtable still pending flush")
