// Package codec holds the byte-level primitives shared by the WAL,
// block, index and footer encoders: little-endian integers,
// length-prefixed byte strings, and the CRC-32 checksum.
package codec

import (
	"encoding/binary"
	"hash/crc32"
)

// AppendUint16 appends v to buf in little-endian order.
func AppendUint16(buf []byte, v uint16) []byte {
	return binary.LittleEndian.AppendUint16(buf, v)
}

// AppendUint32 appends v to buf in little-endian order.
func AppendUint32(buf []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(buf, v)
}

// AppendUint64 appends v to buf in little-endian order.
func AppendUint64(buf []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(buf, v)
}

// Uint16 decodes a little-endian uint16 from the start of b.
func Uint16(b []byte) uint16 {
	return binary.LittleEndian.Uint16(b)
}

// Uint32 decodes a little-endian uint32 from the start of b.
func Uint32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

// Uint64 decodes a little-endian uint64 from the start of b.
func Uint64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

// PutUint32 encodes v into b[0:4] in little-endian order.
func PutUint32(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b, v)
}

// AppendBytes16 appends a 16-bit length prefix followed by b.
// Panics if b exceeds 65535 bytes; block entries and index keys are
// bounded to 16-bit lengths by the file format.
func AppendBytes16(buf, b []byte) []byte {
	if len(b) > 0xFFFF {
		panic("codec: byte string exceeds 16-bit length")
	}
	buf = AppendUint16(buf, uint16(len(b)))
	return append(buf, b...)
}

// Checksum computes the CRC-32 (IEEE polynomial) of data. It matches
// the checksum the WAL records carry on disk.
func Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
