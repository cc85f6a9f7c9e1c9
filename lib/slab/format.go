// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package slab

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mingnus/blk-archive/lib/hash"
)

const (
	fileVersion = 1

	// HeaderSize is the size of the fixed file header.
	HeaderSize = 16

	// FrameOverhead is the framing cost of each slab: magic, length
	// and checksum.
	FrameOverhead = 24

	frameHeaderSize = 16

	slabMagic uint64 = 0x20565137a3100a7c
)

// fileMagic is the 8-byte file signature: "BLKSLAB" plus the version
// byte.
var fileMagic = [8]byte{'B', 'L', 'K', 'S', 'L', 'A', 'B', fileVersion}

func writeHeader(w io.Writer, compression Compression) error {
	var header [HeaderSize]byte
	copy(header[:8], fileMagic[:])
	binary.LittleEndian.PutUint32(header[8:12], uint32(compression))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("writing slab file header: %w", err)
	}
	return nil
}

// readHeader reads and validates the file header, leaving r positioned
// at the first frame.
func readHeader(r io.Reader) (Compression, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, fmt.Errorf("reading slab file header: %w", err)
	}

	var magic [8]byte
	copy(magic[:], header[:8])
	if magic != fileMagic {
		if string(magic[:7]) == string(fileMagic[:7]) {
			return 0, fmt.Errorf("slab file version %d is not supported (this code supports version %d)",
				magic[7], fileVersion)
		}
		return 0, fmt.Errorf("not a slab file (invalid magic bytes %x)", magic)
	}

	compression := Compression(binary.LittleEndian.Uint32(header[8:12]))
	if err := compression.validate(); err != nil {
		return 0, err
	}
	if reserved := binary.LittleEndian.Uint32(header[12:16]); reserved != 0 {
		return 0, fmt.Errorf("slab file header has non-zero reserved bytes: %x", header[12:16])
	}
	return compression, nil
}

// encodeFrame returns the complete on-disk frame for payload.
func encodeFrame(payload []byte) []byte {
	frame := make([]byte, FrameOverhead+len(payload))
	binary.LittleEndian.PutUint64(frame[0:8], slabMagic)
	binary.LittleEndian.PutUint64(frame[8:16], uint64(len(payload)))
	copy(frame[frameHeaderSize:], payload)
	binary.LittleEndian.PutUint64(frame[frameHeaderSize+len(payload):], hash.SlabChecksum(payload))
	return frame
}

// readFrameHeader reads the magic and length of the frame at offset and
// checks that the whole frame fits below limit. It returns the payload
// length.
func readFrameHeader(r io.ReaderAt, path string, offset, limit int64) (uint64, error) {
	if limit-offset < frameHeaderSize {
		return 0, &TruncatedError{Path: path, Offset: offset, FileSize: limit}
	}

	var header [frameHeaderSize]byte
	if _, err := r.ReadAt(header[:], offset); err != nil {
		return 0, fmt.Errorf("reading frame header at offset %d of %s: %w", offset, path, err)
	}

	magic := binary.LittleEndian.Uint64(header[0:8])
	if magic != slabMagic {
		return 0, &MagicError{Path: path, Offset: offset, Found: magic}
	}

	length := binary.LittleEndian.Uint64(header[8:16])
	if length > uint64(limit-offset-FrameOverhead) || limit-offset < FrameOverhead {
		return 0, &TruncatedError{Path: path, Offset: offset, Length: length, FileSize: limit}
	}
	return length, nil
}

// readFrame reads the payload of the frame at offset. The returned bool
// reports whether the stored checksum matched.
func readFrame(r io.ReaderAt, path string, offset, limit int64) ([]byte, bool, error) {
	length, err := readFrameHeader(r, path, offset, limit)
	if err != nil {
		return nil, false, err
	}

	body := make([]byte, length+8)
	if _, err := r.ReadAt(body, offset+frameHeaderSize); err != nil {
		return nil, false, fmt.Errorf("reading %d byte frame at offset %d of %s: %w", length, offset, path, err)
	}

	payload := body[:length]
	stored := binary.LittleEndian.Uint64(body[length:])
	return payload, stored == hash.SlabChecksum(payload), nil
}
