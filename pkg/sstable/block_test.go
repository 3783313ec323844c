package sstable

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/mnohosten/strata/pkg/kv"
)

func TestBlockRoundTrip(t *testing.T) {
	builder := NewBlockBuilder(4096)

	for i := 0; i < 50; i++ {
		key := []byte(fmt.Sprintf("key-%03d", i))
		value := []byte(fmt.Sprintf("value-%03d", i))
		if !builder.Add(key, value) {
			t.Fatalf("add %d rejected below target size", i)
		}
	}

	block, err := DecodeBlock(builder.Build())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if block.Len() != 50 {
		t.Fatalf("expected 50 entries, got %d", block.Len())
	}

	for i := 0; i < 50; i++ {
		key := []byte(fmt.Sprintf("key-%03d", i))
		value, found := block.Get(key)
		if !found {
			t.Fatalf("key %s not found", key)
		}
		want := fmt.Sprintf("value-%03d", i)
		if string(value) != want {
			t.Fatalf("key %s: expected %s, got %s", key, want, value)
		}
	}

	if _, found := block.Get([]byte("key-0505")); found {
		t.Fatal("unexpected hit for missing key")
	}
}

func TestBlockRejectsWhenFull(t *testing.T) {
	builder := NewBlockBuilder(64)

	if !builder.Add([]byte("aaaa"), []byte("1111")) {
		t.Fatal("first entry must be accepted")
	}

	accepted := 1
	for i := 0; i < 100; i++ {
		if builder.Add([]byte(fmt.Sprintf("key-%04d", i)), []byte("vvvv")) {
			accepted++
		} else {
			break
		}
	}

	if accepted == 101 {
		t.Fatal("builder never reported full")
	}
	if builder.EstimatedSize() > 64+16 {
		t.Fatalf("estimated size %d far exceeds target", builder.EstimatedSize())
	}
}

func TestBlockFirstEntryOversized(t *testing.T) {
	builder := NewBlockBuilder(16)

	big := bytes.Repeat([]byte("v"), 100)
	if !builder.Add([]byte("huge"), big) {
		t.Fatal("first entry must be accepted even beyond the target")
	}
	if builder.Add([]byte("next"), []byte("v")) {
		t.Fatal("second entry should be rejected in an overfull block")
	}
}

func TestBlockIteratorOrderAndSeek(t *testing.T) {
	builder := NewBlockBuilder(4096)
	for _, key := range []string{"b", "d", "f", "h"} {
		builder.Add([]byte(key), []byte("val-"+key))
	}

	block, err := DecodeBlock(builder.Build())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	var keys []string
	for it := block.Iterator(); it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}
	if fmt.Sprint(keys) != "[b d f h]" {
		t.Fatalf("unexpected iteration order: %v", keys)
	}

	it := block.Iterator()
	it.Seek([]byte("e"))
	if !it.Valid() || string(it.Key()) != "f" {
		t.Fatalf("seek(e): expected f")
	}
	if string(it.Value()) != "val-f" {
		t.Fatalf("seek(e): expected val-f, got %s", it.Value())
	}

	it.Seek([]byte("b"))
	if !it.Valid() || string(it.Key()) != "b" {
		t.Fatal("seek to first key failed")
	}

	it.Seek([]byte("z"))
	if it.Valid() {
		t.Fatal("seek past the end should invalidate the cursor")
	}
}

func TestBlockTombstoneEntry(t *testing.T) {
	builder := NewBlockBuilder(4096)
	builder.Add([]byte("gone"), nil)

	block, err := DecodeBlock(builder.Build())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	value, found := block.Get([]byte("gone"))
	if !found {
		t.Fatal("tombstone entry should be present")
	}
	if len(value) != 0 {
		t.Fatalf("tombstone should have empty value, got %q", value)
	}
}

func TestDecodeBlockRejectsGarbage(t *testing.T) {
	builder := NewBlockBuilder(4096)
	builder.Add([]byte("key"), []byte("value"))
	good := builder.Build()

	cases := map[string][]byte{
		"empty":           {},
		"count too large": {0xFF, 0xFF},
		"truncated":       good[:len(good)-3],
	}

	for name, data := range cases {
		if _, err := DecodeBlock(data); err == nil {
			t.Fatalf("%s: expected corruption error", name)
		} else if !kv.IsCorruption(err) {
			t.Fatalf("%s: expected corruption kind, got %v", name, err)
		}
	}
}
