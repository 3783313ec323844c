// Package compression wraps the codecs used by backup archives.
package compression

import (
	"fmt"

	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
)

// Algorithm selects a compression codec.
type Algorithm uint8

const (
	// AlgorithmNone stores bytes as-is.
	AlgorithmNone Algorithm = iota
	// AlgorithmSnappy is fast with a moderate ratio.
	AlgorithmSnappy
	// AlgorithmZstd balances speed and ratio (the default).
	AlgorithmZstd
)

// String returns the algorithm name.
func (a Algorithm) String() string {
	switch a {
	case AlgorithmNone:
		return "none"
	case AlgorithmSnappy:
		return "snappy"
	case AlgorithmZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// Valid reports whether a names a known algorithm.
func (a Algorithm) Valid() bool {
	return a <= AlgorithmZstd
}

// Config holds compression configuration.
type Config struct {
	Algorithm Algorithm
	Level     int // zstd level 1..19; ignored by the other codecs
}

// DefaultConfig returns zstd at its balanced level.
func DefaultConfig() *Config {
	return &Config{Algorithm: AlgorithmZstd, Level: 3}
}

// SnappyConfig returns the fast codec.
func SnappyConfig() *Config {
	return &Config{Algorithm: AlgorithmSnappy}
}

// ZstdConfig returns zstd at the given level; a level outside 1..19
// falls back to the default level 3.
func ZstdConfig(level int) *Config {
	if level < 1 || level > 19 {
		level = 3
	}
	return &Config{Algorithm: AlgorithmZstd, Level: level}
}

// Compressor compresses and decompresses byte blocks.
type Compressor struct {
	config  *Config
	zstdEnc *zstd.Encoder
	zstdDec *zstd.Decoder
}

// NewCompressor creates a compressor for the given configuration.
func NewCompressor(config *Config) (*Compressor, error) {
	if config == nil {
		config = DefaultConfig()
	}

	c := &Compressor{config: config}

	if config.Algorithm == AlgorithmZstd {
		level := zstd.EncoderLevelFromZstd(config.Level)
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			enc.Close()
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		c.zstdEnc = enc
		c.zstdDec = dec
	}

	return c, nil
}

// NewDecompressor creates a compressor able to decode data written
// with the given algorithm.
func NewDecompressor(alg Algorithm) (*Compressor, error) {
	if !alg.Valid() {
		return nil, fmt.Errorf("unknown compression algorithm: %d", alg)
	}
	return NewCompressor(&Config{Algorithm: alg, Level: 3})
}

// Algorithm returns the configured codec.
func (c *Compressor) Algorithm() Algorithm {
	return c.config.Algorithm
}

// Compress returns the compressed form of data.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	switch c.config.Algorithm {
	case AlgorithmNone:
		return data, nil
	case AlgorithmSnappy:
		return snappy.Encode(nil, data), nil
	case AlgorithmZstd:
		return c.zstdEnc.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("unknown compression algorithm: %d", c.config.Algorithm)
	}
}

// Decompress reverses Compress.
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	switch c.config.Algorithm {
	case AlgorithmNone:
		return data, nil
	case AlgorithmSnappy:
		out, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress snappy data: %w", err)
		}
		return out, nil
	case AlgorithmZstd:
		out, err := c.zstdDec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress zstd data: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown compression algorithm: %d", c.config.Algorithm)
	}
}

// Close releases codec resources.
func (c *Compressor) Close() {
	if c.zstdEnc != nil {
		c.zstdEnc.Close()
	}
	if c.zstdDec != nil {
		c.zstdDec.Close()
	}
}
