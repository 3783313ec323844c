package engine

import (
	"io"

	"github.com/mnohosten/strata/pkg/backup"
	"github.com/mnohosten/strata/pkg/compression"
)

// Backup streams a point-in-time archive of the database to w.
// In-memory state is flushed to tables first and writes are held off
// for the duration, so the archive is a consistent snapshot.
func (db *DB) Backup(w io.Writer, cfg *compression.Config) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if db.isClosed() {
		return ErrClosed
	}

	if err := db.flushAllLocked(); err != nil {
		return err
	}
	return backup.Create(db.dir, w, cfg)
}

// Flush forces all in-memory state into SSTables. It blocks writers
// for the duration.
func (db *DB) Flush() error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if db.isClosed() {
		return ErrClosed
	}
	return db.flushAllLocked()
}

// flushAllLocked pushes the immutable and active memtables to tables.
// Called with writeMu held.
func (db *DB) flushAllLocked() error {
	if err := db.flushImmutable(); err != nil {
		return err
	}
	if db.memtables.Active().Len() == 0 {
		return nil
	}
	if _, err := db.memtables.Freeze(); err != nil {
		return err
	}
	oldWAL, err := db.wals.Rotate()
	if err != nil {
		return err
	}
	db.mu.Lock()
	db.pendingWAL = oldWAL
	db.mu.Unlock()
	return db.flushImmutable()
}

// Restore unpacks an archive created by Backup into dir. The
// directory must not already hold a database.
func Restore(r io.Reader, dir string) error {
	return backup.Restore(r, dir)
}
