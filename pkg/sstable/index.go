package sstable

import (
	"github.com/mnohosten/strata/pkg/codec"
	"github.com/mnohosten/strata/pkg/kv"
)

// IndexEntry maps a data block's last key to its location in the
// file. The index block is the concatenation of these entries sorted
// by last key:
//
//	key_len(2) | last_key | offset(8) | size(8)
type IndexEntry struct {
	LastKey []byte
	Offset  uint64
	Size    uint64
}

// appendTo encodes the entry onto buf.
func (e *IndexEntry) appendTo(buf []byte) []byte {
	buf = codec.AppendBytes16(buf, e.LastKey)
	buf = codec.AppendUint64(buf, e.Offset)
	buf = codec.AppendUint64(buf, e.Size)
	return buf
}

// decodeIndex parses the index block into its entries.
func decodeIndex(path string, data []byte) ([]IndexEntry, error) {
	var entries []IndexEntry
	for offset := 0; offset < len(data); {
		if offset+2 > len(data) {
			return nil, kv.Corruptionf(path, "index entry truncated")
		}
		keyLen := int(codec.Uint16(data[offset:]))
		offset += 2

		if offset+keyLen+16 > len(data) {
			return nil, kv.Corruptionf(path, "index entry truncated")
		}
		entry := IndexEntry{
			LastKey: kv.CloneBytes(data[offset : offset+keyLen]),
			Offset:  codec.Uint64(data[offset+keyLen:]),
			Size:    codec.Uint64(data[offset+keyLen+8:]),
		}
		offset += keyLen + 16
		entries = append(entries, entry)
	}
	return entries, nil
}
