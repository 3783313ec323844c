package bloom

import (
	"fmt"
	"testing"

	"github.com/mnohosten/strata/pkg/kv"
)

func TestNoFalseNegatives(t *testing.T) {
	f := New(1000, 0.01)

	for i := 0; i < 1000; i++ {
		f.Insert([]byte(fmt.Sprintf("key-%05d", i)))
	}
	for i := 0; i < 1000; i++ {
		if !f.MayContain([]byte(fmt.Sprintf("key-%05d", i))) {
			t.Fatalf("inserted key key-%05d reported absent", i)
		}
	}
}

func TestFalsePositiveRate(t *testing.T) {
	const n = 10000
	const fpr = 0.01

	f := New(n, fpr)
	for i := 0; i < n; i++ {
		f.Insert([]byte(fmt.Sprintf("member-%06d", i)))
	}

	falsePositives := 0
	for i := 0; i < n; i++ {
		if f.MayContain([]byte(fmt.Sprintf("stranger-%06d", i))) {
			falsePositives++
		}
	}

	observed := float64(falsePositives) / float64(n)
	if observed >= 2*fpr {
		t.Fatalf("observed FPR %.4f, want < %.4f", observed, 2*fpr)
	}
}

func TestSizingFormulas(t *testing.T) {
	f := New(1000, 0.01)

	// 1% FPR: ~9.57 bits/key, 7 hashes.
	if f.NumHashes() != 7 {
		t.Fatalf("expected 7 hashes for 1%% FPR, got %d", f.NumHashes())
	}
	if f.NumBits() < 9000 || f.NumBits() > 10000 {
		t.Fatalf("expected ~9570 bits, got %d", f.NumBits())
	}

	// Tiny filters are floored at 64 bits.
	small := New(1, 0.5)
	if small.NumBits() != 64 {
		t.Fatalf("expected 64-bit floor, got %d", small.NumBits())
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	f := New(500, 0.01)
	for i := 0; i < 500; i++ {
		f.Insert([]byte(fmt.Sprintf("key-%d", i)))
	}

	decoded, err := Unmarshal(f.Marshal())
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if decoded.NumHashes() != f.NumHashes() || decoded.NumBits() != f.NumBits() {
		t.Fatalf("parameters changed in round trip")
	}
	for i := 0; i < 500; i++ {
		if !decoded.MayContain([]byte(fmt.Sprintf("key-%d", i))) {
			t.Fatalf("key-%d lost in round trip", i)
		}
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	cases := map[string][]byte{
		"short":          {1, 2, 3},
		"truncated body": New(100, 0.01).Marshal()[:20],
		"extra bytes":    append(New(100, 0.01).Marshal(), 0xFF),
	}

	for name, data := range cases {
		if _, err := Unmarshal(data); err == nil {
			t.Fatalf("%s: expected corruption error", name)
		} else if !kv.IsCorruption(err) {
			t.Fatalf("%s: expected corruption kind, got %v", name, err)
		}
	}
}

func TestNewPanicsOnBadArguments(t *testing.T) {
	for name, fn := range map[string]func(){
		"zero items": func() { New(0, 0.01) },
		"fpr zero":   func() { New(10, 0) },
		"fpr one":    func() { New(10, 1) },
	} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("%s: expected panic", name)
				}
			}()
			fn()
		}()
	}
}
