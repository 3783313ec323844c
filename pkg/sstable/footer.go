package sstable

import (
	"github.com/mnohosten/strata/pkg/codec"
	"github.com/mnohosten/strata/pkg/kv"
)

// Magic identifies SSTable files ("LSM_SST\0").
const Magic uint64 = 0x4C534D5F53535400

// footerSize is the fixed trailer length at the end of every table:
// index_offset(8) | index_size(8) | meta_offset(8) | meta_size(8) | magic(8).
const footerSize = 40

// footer locates the index and meta blocks.
type footer struct {
	indexOffset uint64
	indexSize   uint64
	metaOffset  uint64
	metaSize    uint64
}

func (f *footer) encode() []byte {
	buf := make([]byte, 0, footerSize)
	buf = codec.AppendUint64(buf, f.indexOffset)
	buf = codec.AppendUint64(buf, f.indexSize)
	buf = codec.AppendUint64(buf, f.metaOffset)
	buf = codec.AppendUint64(buf, f.metaSize)
	buf = codec.AppendUint64(buf, Magic)
	return buf
}

func decodeFooter(path string, data []byte) (*footer, error) {
	if len(data) != footerSize {
		return nil, kv.Corruptionf(path, "footer is %d bytes, want %d", len(data), footerSize)
	}
	if magic := codec.Uint64(data[32:]); magic != Magic {
		return nil, kv.Corruptionf(path, "bad magic %#016x", magic)
	}
	return &footer{
		indexOffset: codec.Uint64(data),
		indexSize:   codec.Uint64(data[8:]),
		metaOffset:  codec.Uint64(data[16:]),
		metaSize:    codec.Uint64(data[24:]),
	}, nil
}
