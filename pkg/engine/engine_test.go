package engine

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/mnohosten/strata/pkg/wal"
)

func testConfig(dir string) *Config {
	cfg := DefaultConfig(dir)
	cfg.SyncPolicy = wal.SyncOnEveryWrite()
	cfg.Logf = func(string, ...interface{}) {}
	return cfg
}

func TestPutGetDelete(t *testing.T) {
	db, err := Open(testConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer db.Close()

	if err := db.Put([]byte("k"), []byte("first")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	value, found, err := db.Get([]byte("k"))
	if err != nil || !found || string(value) != "first" {
		t.Fatalf("get: %q found=%v err=%v", value, found, err)
	}

	if err := db.Delete([]byte("k")); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, found, _ := db.Get([]byte("k")); found {
		t.Fatal("deleted key should be absent")
	}

	if err := db.Put([]byte("k"), []byte("second")); err != nil {
		t.Fatalf("re-put failed: %v", err)
	}
	value, found, _ = db.Get([]byte("k"))
	if !found || string(value) != "second" {
		t.Fatalf("expected second, got %q found=%v", value, found)
	}
}

func TestValidation(t *testing.T) {
	db, err := Open(testConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer db.Close()

	if err := db.Put(nil, []byte("v")); err != ErrEmptyKey {
		t.Fatalf("expected ErrEmptyKey, got %v", err)
	}
	if err := db.Put(make([]byte, 70000), []byte("v")); err != ErrKeyTooLarge {
		t.Fatalf("expected ErrKeyTooLarge, got %v", err)
	}
	if err := db.Put([]byte("k"), make([]byte, 70000)); err != ErrValueTooLarge {
		t.Fatalf("expected ErrValueTooLarge, got %v", err)
	}
}

func TestFlushMovesDataToTables(t *testing.T) {
	db, err := Open(testConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer db.Close()

	for i := 0; i < 100; i++ {
		key := []byte(fmt.Sprintf("key-%04d", i))
		if err := db.Put(key, []byte(fmt.Sprintf("val-%04d", i))); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}

	if err := db.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	stats := db.Stats()
	if stats.TableCount != 1 {
		t.Fatalf("expected 1 table after flush, got %d", stats.TableCount)
	}
	if stats.MemtableLen != 0 {
		t.Fatalf("memtable should be empty after flush, holds %d", stats.MemtableLen)
	}
	if stats.TableEntries != 100 {
		t.Fatalf("expected 100 table entries, got %d", stats.TableEntries)
	}

	for i := 0; i < 100; i++ {
		key := []byte(fmt.Sprintf("key-%04d", i))
		value, found, err := db.Get(key)
		if err != nil || !found {
			t.Fatalf("get %s after flush: found=%v err=%v", key, found, err)
		}
		if string(value) != fmt.Sprintf("val-%04d", i) {
			t.Fatalf("get %s after flush: wrong value %q", key, value)
		}
	}
}

func TestTombstoneShadowsFlushedValue(t *testing.T) {
	db, err := Open(testConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer db.Close()

	if err := db.Put([]byte("k"), []byte("flushed")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := db.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	// The delete lives in the memtable, the value in a table.
	if err := db.Delete([]byte("k")); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, found, _ := db.Get([]byte("k")); found {
		t.Fatal("memtable tombstone should shadow the flushed value")
	}

	// And it keeps shadowing after it is flushed itself.
	if err := db.Flush(); err != nil {
		t.Fatalf("second flush failed: %v", err)
	}
	if _, found, _ := db.Get([]byte("k")); found {
		t.Fatal("flushed tombstone should shadow the older table")
	}
}

func TestReopenAfterCleanClose(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(testConfig(dir))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	for i := 0; i < 50; i++ {
		if err := db.Put([]byte(fmt.Sprintf("key-%03d", i)), []byte("v")); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}
	db.Delete([]byte("key-007"))
	if err := db.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	db2, err := Open(testConfig(dir))
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db2.Close()

	for i := 0; i < 50; i++ {
		key := []byte(fmt.Sprintf("key-%03d", i))
		_, found, err := db2.Get(key)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if i == 7 {
			if found {
				t.Fatal("deleted key resurfaced after reopen")
			}
			continue
		}
		if !found {
			t.Fatalf("key %s lost across reopen", key)
		}
	}
}

func TestRecoveryFromWAL(t *testing.T) {
	dir := t.TempDir()

	// Simulate a crash: write durably, never close.
	crashed, err := Open(testConfig(dir))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	for i := 0; i < 20; i++ {
		if err := crashed.Put([]byte(fmt.Sprintf("key-%03d", i)), []byte(fmt.Sprintf("val-%03d", i))); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}
	if err := crashed.Delete([]byte("key-003")); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	db, err := Open(testConfig(dir))
	if err != nil {
		t.Fatalf("recovery open failed: %v", err)
	}
	defer db.Close()

	for i := 0; i < 20; i++ {
		key := []byte(fmt.Sprintf("key-%03d", i))
		value, found, err := db.Get(key)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if i == 3 {
			if found {
				t.Fatal("deleted key resurfaced after recovery")
			}
			continue
		}
		if !found || string(value) != fmt.Sprintf("val-%03d", i) {
			t.Fatalf("key %s wrong after recovery: %q found=%v", key, value, found)
		}
	}

	// Recovery flushed the replayed WAL into a table.
	if stats := db.Stats(); stats.TableCount != 1 {
		t.Fatalf("expected 1 recovered table, got %d", stats.TableCount)
	}
}

func TestScan(t *testing.T) {
	db, err := Open(testConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer db.Close()

	for _, key := range []string{"a", "b", "c", "d", "e"} {
		if err := db.Put([]byte(key), []byte("val-"+key)); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}
	// Push the data into a table, then overwrite and delete in the
	// memtable, so the scan crosses sources.
	if err := db.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if err := db.Delete([]byte("c")); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := db.Put([]byte("b"), []byte("fresh-b")); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	scanner, err := db.Scan(nil, nil)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	var got []string
	for ; scanner.Valid(); scanner.Next() {
		got = append(got, fmt.Sprintf("%s=%s", scanner.Key(), scanner.Value()))
	}
	want := "[a=val-a b=fresh-b d=val-d e=val-e]"
	if fmt.Sprint(got) != want {
		t.Fatalf("full scan got %v, want %v", got, want)
	}

	ranged, err := db.Scan([]byte("b"), []byte("e"))
	if err != nil {
		t.Fatalf("range scan failed: %v", err)
	}
	got = nil
	for ; ranged.Valid(); ranged.Next() {
		got = append(got, string(ranged.Key()))
	}
	if fmt.Sprint(got) != "[b d]" {
		t.Fatalf("range scan got %v, want [b d]", got)
	}
}

func TestCompaction(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.CompactionThreshold = 1
	cfg.CompactionFanIn = 2

	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer db.Close()

	// Table 1: old value and a key that will be deleted.
	db.Put([]byte("stable"), []byte("old"))
	db.Put([]byte("doomed"), []byte("x"))
	if err := db.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	// Table 2: newer value and the tombstone.
	db.Put([]byte("stable"), []byte("new"))
	db.Delete([]byte("doomed"))
	if err := db.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	if stats := db.Stats(); stats.TableCount != 2 {
		t.Fatalf("expected 2 tables before compaction, got %d", stats.TableCount)
	}

	if err := db.Compact(); err != nil {
		t.Fatalf("compact failed: %v", err)
	}

	stats := db.Stats()
	if stats.TableCount != 1 {
		t.Fatalf("expected 1 table after compaction, got %d", stats.TableCount)
	}

	value, found, err := db.Get([]byte("stable"))
	if err != nil || !found || string(value) != "new" {
		t.Fatalf("newest value should win: %q found=%v err=%v", value, found, err)
	}
	if _, found, _ := db.Get([]byte("doomed")); found {
		t.Fatal("tombstoned key should stay gone after compaction")
	}

	// The full merge dropped both the tombstone and the dead value.
	if stats.TableEntries != 1 {
		t.Fatalf("expected 1 surviving entry, got %d", stats.TableEntries)
	}
}

func TestBackupRestore(t *testing.T) {
	srcDir := t.TempDir()
	db, err := Open(testConfig(srcDir))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	for i := 0; i < 30; i++ {
		if err := db.Put([]byte(fmt.Sprintf("key-%03d", i)), []byte(fmt.Sprintf("val-%03d", i))); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}

	var archive bytes.Buffer
	if err := db.Backup(&archive, nil); err != nil {
		t.Fatalf("backup failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	dstDir := t.TempDir()
	if err := Restore(bytes.NewReader(archive.Bytes()), dstDir); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	restored, err := Open(testConfig(dstDir))
	if err != nil {
		t.Fatalf("open restored failed: %v", err)
	}
	defer restored.Close()

	for i := 0; i < 30; i++ {
		key := []byte(fmt.Sprintf("key-%03d", i))
		value, found, err := restored.Get(key)
		if err != nil || !found {
			t.Fatalf("restored get %s: found=%v err=%v", key, found, err)
		}
		if string(value) != fmt.Sprintf("val-%03d", i) {
			t.Fatalf("restored get %s: wrong value %q", key, value)
		}
	}
}

func TestMetricsExposition(t *testing.T) {
	db, err := Open(testConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer db.Close()

	db.Put([]byte("k"), []byte("v"))
	db.Get([]byte("k"))
	db.Get([]byte("missing"))

	var buf strings.Builder
	if err := db.WriteMetrics(&buf); err != nil {
		t.Fatalf("write metrics failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"strata_puts_total 1",
		"strata_gets_total 2",
		"strata_get_misses_total 1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics missing %q:\n%s", want, out)
		}
	}
}

func TestOperationsAfterClose(t *testing.T) {
	db, err := Open(testConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if err := db.Put([]byte("k"), []byte("v")); err != ErrClosed {
		t.Fatalf("expected ErrClosed from put, got %v", err)
	}
	if _, _, err := db.Get([]byte("k")); err != ErrClosed {
		t.Fatalf("expected ErrClosed from get, got %v", err)
	}
	if _, err := db.Scan(nil, nil); err != ErrClosed {
		t.Fatalf("expected ErrClosed from scan, got %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}
}
