// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package slab

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the codec applied to every slab payload of a
// file. It is fixed when the file is created and recorded in the
// header. These values are format constants.
type Compression uint32

const (
	// CompressionNone stores payloads as given.
	CompressionNone Compression = 0

	// CompressionLZ4 is LZ4 block compression. Fast, modest ratio.
	CompressionLZ4 Compression = 1

	// CompressionZstd is zstd at the default level. The archive
	// default for data and stream files.
	CompressionZstd Compression = 2
)

// String returns the name used in configuration files and flags.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(c))
	}
}

// ParseCompression parses a compression name.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (want none, lz4 or zstd)", name)
	}
}

func (c Compression) validate() error {
	if c > CompressionZstd {
		return fmt.Errorf("unsupported slab compression %d", uint32(c))
	}
	return nil
}

// lz4 payloads carry their uncompressed length and a mode byte, since
// block-mode LZ4 has no framing of its own. Incompressible input is
// stored raw behind the same prefix.
const (
	lz4PrefixSize = 5

	lz4ModeRaw   = 0
	lz4ModeBlock = 1
)

// zstd encoder and decoder are safe for concurrent use and reused
// across calls.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("slab: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("slab: zstd decoder initialization failed: " + err.Error())
	}
}

// compress encodes data with codec c. Empty input stays empty for
// every codec.
func compress(data []byte, c Compression) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		return compressLZ4(data)
	case CompressionZstd:
		return zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
	default:
		return nil, fmt.Errorf("unsupported slab compression %d", uint32(c))
	}
}

// decompress reverses compress.
func decompress(payload []byte, c Compression) ([]byte, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	switch c {
	case CompressionNone:
		return payload, nil
	case CompressionLZ4:
		return decompressLZ4(payload)
	case CompressionZstd:
		data, err := zstdDecoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported slab compression %d", uint32(c))
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	if len(data) > math.MaxUint32 {
		return nil, fmt.Errorf("lz4 compress: %d byte slab exceeds the 4 GiB limit", len(data))
	}

	output := make([]byte, lz4PrefixSize+lz4.CompressBlockBound(len(data)))
	binary.LittleEndian.PutUint32(output[0:4], uint32(len(data)))

	written, err := lz4.CompressBlock(data, output[lz4PrefixSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}

	// CompressBlock returns 0 for incompressible input.
	if written == 0 || written >= len(data) {
		output = output[:lz4PrefixSize+len(data)]
		output[4] = lz4ModeRaw
		copy(output[lz4PrefixSize:], data)
		return output, nil
	}

	output[4] = lz4ModeBlock
	return output[:lz4PrefixSize+written], nil
}

func decompressLZ4(payload []byte) ([]byte, error) {
	if len(payload) < lz4PrefixSize {
		return nil, fmt.Errorf("lz4 decompress: payload of %d bytes is shorter than its prefix", len(payload))
	}
	size := int(binary.LittleEndian.Uint32(payload[0:4]))
	body := payload[lz4PrefixSize:]

	switch payload[4] {
	case lz4ModeRaw:
		if len(body) != size {
			return nil, fmt.Errorf("lz4 decompress: raw body is %d bytes, header says %d", len(body), size)
		}
		return body, nil
	case lz4ModeBlock:
		output := make([]byte, size)
		read, err := lz4.UncompressBlock(body, output)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
		}
		return output, nil
	default:
		return nil, fmt.Errorf("lz4 decompress: unknown mode %d", payload[4])
	}
}
