// Package backup writes and restores point-in-time archives of a
// database directory. An archive is a single stream:
//
//	magic "STRATBK1" | algorithm(1)
//	( path_len(2) | path | raw_size(8) | compressed_size(8) | crc32(4) | bytes )*
//	path_len(2) == 0
//
// The CRC covers the uncompressed file contents, so restore detects
// both transport corruption and codec bugs. Only engine-owned files
// (*.sst, *.wal) are archived.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/mnohosten/strata/pkg/codec"
	"github.com/mnohosten/strata/pkg/compression"
	"github.com/mnohosten/strata/pkg/kv"
)

var archiveMagic = []byte("STRATBK1")

// Create archives every engine file under dir into w.
func Create(dir string, w io.Writer, cfg *compression.Config) error {
	comp, err := compression.NewCompressor(cfg)
	if err != nil {
		return err
	}
	defer comp.Close()

	header := append([]byte(nil), archiveMagic...)
	header = append(header, byte(comp.Algorithm()))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write archive header: %w", err)
	}

	files, err := engineFiles(dir)
	if err != nil {
		return err
	}

	for _, path := range files {
		if err := writeFile(dir, path, w, comp); err != nil {
			return err
		}
	}

	// Zero-length path terminates the archive.
	if _, err := w.Write(codec.AppendUint16(nil, 0)); err != nil {
		return fmt.Errorf("failed to write archive trailer: %w", err)
	}
	return nil
}

// engineFiles lists the archive members sorted by name.
func engineFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.sst", "*.wal"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

func writeFile(dir, path string, w io.Writer, comp *compression.Compressor) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	compressed, err := comp.Compress(data)
	if err != nil {
		return fmt.Errorf("failed to compress %s: %w", path, err)
	}

	name := filepath.Base(path)
	entry := codec.AppendBytes16(nil, []byte(name))
	entry = codec.AppendUint64(entry, uint64(len(data)))
	entry = codec.AppendUint64(entry, uint64(len(compressed)))
	entry = codec.AppendUint32(entry, codec.Checksum(data))

	if _, err := w.Write(entry); err != nil {
		return fmt.Errorf("failed to write archive entry for %s: %w", name, err)
	}
	if _, err := w.Write(compressed); err != nil {
		return fmt.Errorf("failed to write archive data for %s: %w", name, err)
	}
	return nil
}

// Restore unpacks an archive into dir, which must not already contain
// engine files — restoring over a live database would interleave two
// histories.
func Restore(r io.Reader, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create restore directory: %w", err)
	}
	existing, err := engineFiles(dir)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return fmt.Errorf("restore directory %s already contains engine files", dir)
	}

	header := make([]byte, len(archiveMagic)+1)
	if _, err := io.ReadFull(r, header); err != nil {
		return kv.Corruptionf("", "archive header truncated")
	}
	for i, b := range archiveMagic {
		if header[i] != b {
			return kv.Corruptionf("", "bad archive magic")
		}
	}

	alg := compression.Algorithm(header[len(archiveMagic)])
	comp, err := compression.NewDecompressor(alg)
	if err != nil {
		return kv.Corruptionf("", "unknown archive compression: %d", alg)
	}
	defer comp.Close()

	for {
		done, err := restoreFile(r, dir, comp)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func restoreFile(r io.Reader, dir string, comp *compression.Compressor) (bool, error) {
	lenBuf := make([]byte, 2)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return false, kv.Corruptionf("", "archive entry truncated")
	}
	pathLen := int(codec.Uint16(lenBuf))
	if pathLen == 0 {
		return true, nil
	}

	head := make([]byte, pathLen+20)
	if _, err := io.ReadFull(r, head); err != nil {
		return false, kv.Corruptionf("", "archive entry truncated")
	}
	name := string(head[:pathLen])
	rawSize := codec.Uint64(head[pathLen:])
	compSize := codec.Uint64(head[pathLen+8:])
	sum := codec.Uint32(head[pathLen+16:])

	if name != filepath.Base(name) || name == "." || name == ".." {
		return false, kv.Corruptionf("", "archive entry has unsafe path %q", name)
	}

	compressed := make([]byte, compSize)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return false, kv.Corruptionf("", "archive data truncated for %s", name)
	}

	data, err := comp.Decompress(compressed)
	if err != nil {
		return false, kv.Corruptionf("", "failed to decompress %s: %v", name, err)
	}
	if uint64(len(data)) != rawSize {
		return false, kv.Corruptionf("", "size mismatch for %s: %d, want %d", name, len(data), rawSize)
	}
	if codec.Checksum(data) != sum {
		return false, kv.Corruptionf("", "checksum mismatch for %s", name)
	}

	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", name, err)
	}
	return false, nil
}
