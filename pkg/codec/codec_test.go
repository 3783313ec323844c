package codec

import (
	"bytes"
	"testing"
)

func TestIntegerRoundTrip(t *testing.T) {
	buf := AppendUint16(nil, 0xBEEF)
	buf = AppendUint32(buf, 0xDEADBEEF)
	buf = AppendUint64(buf, 0x0123456789ABCDEF)

	if got := Uint16(buf); got != 0xBEEF {
		t.Fatalf("expected 0xBEEF, got %#x", got)
	}
	if got := Uint32(buf[2:]); got != 0xDEADBEEF {
		t.Fatalf("expected 0xDEADBEEF, got %#x", got)
	}
	if got := Uint64(buf[6:]); got != 0x0123456789ABCDEF {
		t.Fatalf("expected 0x0123456789ABCDEF, got %#x", got)
	}
}

func TestLittleEndianLayout(t *testing.T) {
	buf := AppendUint32(nil, 1)
	if !bytes.Equal(buf, []byte{1, 0, 0, 0}) {
		t.Fatalf("expected little-endian layout, got %v", buf)
	}
}

func TestAppendBytes16(t *testing.T) {
	buf := AppendBytes16(nil, []byte("hello"))

	if got := Uint16(buf); got != 5 {
		t.Fatalf("expected length prefix 5, got %d", got)
	}
	if !bytes.Equal(buf[2:], []byte("hello")) {
		t.Fatalf("expected hello, got %s", buf[2:])
	}
}

func TestAppendBytes16Empty(t *testing.T) {
	buf := AppendBytes16(nil, nil)
	if len(buf) != 2 || Uint16(buf) != 0 {
		t.Fatalf("expected bare zero prefix, got %v", buf)
	}
}

func TestAppendBytes16TooLarge(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for oversized byte string")
		}
	}()
	AppendBytes16(nil, make([]byte, 0x10000))
}

func TestChecksumDetectsChange(t *testing.T) {
	data := []byte("some record payload")
	sum := Checksum(data)

	data[3] ^= 0x01
	if Checksum(data) == sum {
		t.Fatal("checksum did not change after a bit flip")
	}
}
