// Package wal implements the write-ahead log: a CRC-protected,
// append-only record stream with configurable durability and
// crash-truncation-safe recovery.
package wal

import (
	"github.com/mnohosten/strata/pkg/codec"
	"github.com/mnohosten/strata/pkg/kv"
)

// On-disk record layout, all integers little-endian:
//
//	CRC(4) | payload_len(4) | type(1) | key_len(4) | key | value
//
// The value length is implied: payload_len - 1 - 4 - key_len.
// The CRC covers every byte after itself. A mismatch on read means a
// partial write from a crash; recovery stops there and everything
// before it is valid.
const (
	crcSize    = 4
	lenSize    = 4
	typeSize   = 1
	keyLenSize = 4
	headerSize = crcSize + lenSize + typeSize + keyLenSize
)

// Record is a single WAL entry.
type Record struct {
	Type  kv.RecordType
	Key   []byte
	Value []byte
}

// NewPut builds a put record.
func NewPut(key, value []byte) *Record {
	return &Record{Type: kv.RecordPut, Key: key, Value: value}
}

// NewDelete builds a delete record. Deletes carry no value.
func NewDelete(key []byte) *Record {
	return &Record{Type: kv.RecordDelete, Key: key}
}

// EncodedSize returns the record's on-disk size in bytes.
func (r *Record) EncodedSize() int {
	return headerSize + len(r.Key) + len(r.Value)
}

// Encode serializes the record, CRC included.
func (r *Record) Encode() []byte {
	payloadLen := typeSize + keyLenSize + len(r.Key) + len(r.Value)

	buf := make([]byte, crcSize, crcSize+lenSize+payloadLen)
	buf = codec.AppendUint32(buf, uint32(payloadLen))
	buf = append(buf, byte(r.Type))
	buf = codec.AppendUint32(buf, uint32(len(r.Key)))
	buf = append(buf, r.Key...)
	buf = append(buf, r.Value...)

	codec.PutUint32(buf[:crcSize], codec.Checksum(buf[crcSize:]))
	return buf
}

// Decode parses one record from the start of data and returns it with
// its encoded size. It fails with a corruption error on a short
// buffer, a CRC mismatch, or an unknown record type.
func Decode(data []byte) (*Record, int, error) {
	if len(data) < headerSize {
		return nil, 0, kv.Corruptionf("", "record truncated")
	}

	storedCRC := codec.Uint32(data)
	payloadLen := int(codec.Uint32(data[crcSize:]))

	totalLen := crcSize + lenSize + payloadLen
	if payloadLen < typeSize+keyLenSize || len(data) < totalLen {
		return nil, 0, kv.Corruptionf("", "record truncated")
	}

	if codec.Checksum(data[crcSize:totalLen]) != storedCRC {
		return nil, 0, kv.Corruptionf("", "CRC mismatch")
	}

	offset := crcSize + lenSize
	recordType := kv.RecordType(data[offset])
	if !recordType.Valid() {
		return nil, 0, kv.Corruptionf("", "invalid record type: %d", data[offset])
	}
	offset += typeSize

	keyLen := int(codec.Uint32(data[offset:]))
	offset += keyLenSize
	if offset+keyLen > totalLen {
		return nil, 0, kv.Corruptionf("", "key length exceeds record")
	}

	key := kv.CloneBytes(data[offset : offset+keyLen])
	value := kv.CloneBytes(data[offset+keyLen : totalLen])

	return &Record{Type: recordType, Key: key, Value: value}, totalLen, nil
}
