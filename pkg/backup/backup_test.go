package backup

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/mnohosten/strata/pkg/compression"
	"github.com/mnohosten/strata/pkg/kv"
)

func seedEngineDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	files := map[string][]byte{
		"000001.sst": bytes.Repeat([]byte("sstable-one "), 100),
		"000002.sst": bytes.Repeat([]byte("sstable-two "), 50),
		"000003.wal": []byte("wal contents"),
		"notes.txt":  []byte("not an engine file"),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			t.Fatalf("failed to seed %s: %v", name, err)
		}
	}
	return dir
}

func TestCreateAndRestore(t *testing.T) {
	src := seedEngineDir(t)

	var archive bytes.Buffer
	if err := Create(src, &archive, compression.DefaultConfig()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	dst := t.TempDir()
	if err := Restore(bytes.NewReader(archive.Bytes()), dst); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	for _, name := range []string{"000001.sst", "000002.sst", "000003.wal"} {
		want, err := os.ReadFile(filepath.Join(src, name))
		if err != nil {
			t.Fatalf("read source %s: %v", name, err)
		}
		got, err := os.ReadFile(filepath.Join(dst, name))
		if err != nil {
			t.Fatalf("restored %s missing: %v", name, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("%s changed in round trip", name)
		}
	}

	// Non-engine files are not archived.
	if _, err := os.Stat(filepath.Join(dst, "notes.txt")); !os.IsNotExist(err) {
		t.Fatal("notes.txt should not be restored")
	}
}

func TestRestoreRejectsTamperedArchive(t *testing.T) {
	src := seedEngineDir(t)

	var archive bytes.Buffer
	if err := Create(src, &archive, &compression.Config{Algorithm: compression.AlgorithmNone}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	data := archive.Bytes()
	// Flip a byte deep inside the first file's contents.
	data[len(data)/2] ^= 0xFF

	err := Restore(bytes.NewReader(data), t.TempDir())
	if err == nil {
		t.Fatal("expected error for tampered archive")
	}
	if !kv.IsCorruption(err) {
		t.Fatalf("expected corruption kind, got %v", err)
	}
}

func TestRestoreRejectsBadMagic(t *testing.T) {
	err := Restore(bytes.NewReader([]byte("NOTANARCHIVE")), t.TempDir())
	if err == nil || !kv.IsCorruption(err) {
		t.Fatalf("expected corruption for bad magic, got %v", err)
	}
}

func TestRestoreRefusesNonEmptyDir(t *testing.T) {
	src := seedEngineDir(t)

	var archive bytes.Buffer
	if err := Create(src, &archive, compression.DefaultConfig()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := Restore(bytes.NewReader(archive.Bytes()), src); err == nil {
		t.Fatal("restore into a live database directory should fail")
	}
}
