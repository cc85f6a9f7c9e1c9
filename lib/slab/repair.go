// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package slab

import (
	"fmt"
	"os"
)

// RebuildOffsets regenerates the offsets table of the slab file at path
// by walking its frames from the header. Payloads and checksums are not
// read. A frame with the wrong magic stops the scan with a
// *MagicError; a frame running past end of file with a
// *TruncatedError.
func RebuildOffsets(path string) (*Offsets, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening slab file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat slab file: %w", err)
	}
	size := info.Size()
	adviseSequential(file)

	if _, err := readHeader(file); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var offsets []uint64
	position := int64(HeaderSize)
	for position < size {
		length, err := readFrameHeader(file, path, position, size)
		if err != nil {
			return nil, err
		}
		offsets = append(offsets, uint64(position))
		position += FrameOverhead + int64(length)
	}
	return &Offsets{offsets: offsets}, nil
}

// RepairOffsets rebuilds the offsets table of the slab file at path and
// atomically replaces its sidecar. The file can be opened immediately
// afterwards.
func RepairOffsets(path string) (*Offsets, error) {
	offsets, err := RebuildOffsets(path)
	if err != nil {
		return nil, err
	}
	if err := offsets.WriteFile(OffsetsPath(path)); err != nil {
		return nil, err
	}
	return offsets, nil
}
