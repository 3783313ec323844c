// Package bloom implements the probabilistic membership filter each
// SSTable carries in its meta block. False positives are possible at
// the configured rate; false negatives are not.
package bloom

import (
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/mnohosten/strata/pkg/codec"
	"github.com/mnohosten/strata/pkg/kv"
)

// h2Salt prefixes the second hash stream so h1 and h2 are independent
// 64-bit digests feeding the double-hashing schedule
// h_i = h1 + i*h2 (mod num_bits).
const h2Salt = 0xb7

// Filter is a bloom filter packed into 64-bit words.
type Filter struct {
	words     []uint64
	numHashes uint32
	numBits   uint32
}

// New sizes a filter for expectedItems at the target false-positive
// rate. Panics if expectedItems is not positive or fpr is outside
// (0, 1); both are programming errors.
func New(expectedItems int, fpr float64) *Filter {
	if expectedItems <= 0 {
		panic("bloom: expectedItems must be > 0")
	}
	if fpr <= 0 || fpr >= 1 {
		panic("bloom: false positive rate must be in (0, 1)")
	}

	bitsPerKey := -1.44 * math.Log2(fpr)

	numBits := uint32(math.Ceil(float64(expectedItems) * bitsPerKey))
	if numBits < 64 {
		numBits = 64
	}

	numHashes := uint32(math.Ceil(bitsPerKey * math.Ln2))
	if numHashes < 1 {
		numHashes = 1
	}

	numWords := (numBits + 63) / 64
	return &Filter{
		words:     make([]uint64, numWords),
		numHashes: numHashes,
		numBits:   numBits,
	}
}

// Insert sets the probed bits for key.
func (f *Filter) Insert(key []byte) {
	h1, h2 := hashKey(key)
	for i := uint64(0); i < uint64(f.numHashes); i++ {
		f.setBit(position(h1, h2, i, f.numBits))
	}
}

// MayContain reports whether key might be in the set: false means
// definitely absent, true means probably present.
func (f *Filter) MayContain(key []byte) bool {
	h1, h2 := hashKey(key)
	for i := uint64(0); i < uint64(f.numHashes); i++ {
		if !f.checkBit(position(h1, h2, i, f.numBits)) {
			return false
		}
	}
	return true
}

// NumHashes returns the number of probe positions per key.
func (f *Filter) NumHashes() uint32 {
	return f.numHashes
}

// NumBits returns the filter's size in bits.
func (f *Filter) NumBits() uint32 {
	return f.numBits
}

// hashKey derives the two 64-bit hash streams for double hashing.
func hashKey(key []byte) (uint64, uint64) {
	h1 := xxhash.Sum64(key)

	d := xxhash.New()
	d.Write([]byte{h2Salt})
	d.Write(key)
	h2 := d.Sum64()

	return h1, h2
}

// position computes the i-th probe with wrapping arithmetic; the
// final modulus keeps the bit index in range.
func position(h1, h2, i uint64, numBits uint32) uint32 {
	return uint32((h1 + i*h2) % uint64(numBits))
}

func (f *Filter) setBit(pos uint32) {
	f.words[pos/64] |= 1 << (pos % 64)
}

func (f *Filter) checkBit(pos uint32) bool {
	return f.words[pos/64]>>(pos%64)&1 == 1
}

// Marshal serializes the filter for the SSTable meta block:
// num_hashes(4) | num_bits(4) | num_words(4) | words x 8.
func (f *Filter) Marshal() []byte {
	buf := make([]byte, 0, 12+8*len(f.words))
	buf = codec.AppendUint32(buf, f.numHashes)
	buf = codec.AppendUint32(buf, f.numBits)
	buf = codec.AppendUint32(buf, uint32(len(f.words)))
	for _, word := range f.words {
		buf = codec.AppendUint64(buf, word)
	}
	return buf
}

// Unmarshal decodes a filter from meta-block bytes.
func Unmarshal(data []byte) (*Filter, error) {
	if len(data) < 12 {
		return nil, kv.Corruptionf("", "bloom filter too short: %d bytes", len(data))
	}

	numHashes := codec.Uint32(data)
	numBits := codec.Uint32(data[4:])
	numWords := codec.Uint32(data[8:])

	if numWords != (numBits+63)/64 {
		return nil, kv.Corruptionf("", "bloom filter word count %d does not match %d bits", numWords, numBits)
	}
	if len(data) != 12+8*int(numWords) {
		return nil, kv.Corruptionf("", "bloom filter length %d, want %d", len(data), 12+8*int(numWords))
	}

	words := make([]uint64, numWords)
	for i := range words {
		words[i] = codec.Uint64(data[12+8*i:])
	}

	return &Filter{words: words, numHashes: numHashes, numBits: numBits}, nil
}
