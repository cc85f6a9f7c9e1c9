// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package slab

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/google/renameio"
)

// OffsetsPath returns the sidecar path for a slab file.
func OffsetsPath(path string) string {
	return path + ".offsets"
}

// Offsets is the positional index of a slab file: the byte offset of
// each slab's frame, in index order.
type Offsets struct {
	offsets []uint64
}

// NewOffsets wraps an offset list. The slice is not copied.
func NewOffsets(offsets []uint64) *Offsets {
	return &Offsets{offsets: offsets}
}

// Len returns the number of slabs described.
func (o *Offsets) Len() int {
	return len(o.offsets)
}

// At returns the frame offset of slab i.
func (o *Offsets) At(i int) uint64 {
	return o.offsets[i]
}

// Slice returns a copy of the offsets.
func (o *Offsets) Slice() []uint64 {
	return append([]uint64(nil), o.offsets...)
}

// Encode returns the sidecar file contents.
func (o *Offsets) Encode() []byte {
	data := make([]byte, 8*len(o.offsets))
	for i, offset := range o.offsets {
		binary.LittleEndian.PutUint64(data[i*8:], offset)
	}
	return data
}

// WriteFile atomically replaces the sidecar at path.
func (o *Offsets) WriteFile(path string) error {
	if err := renameio.WriteFile(path, o.Encode(), 0o644); err != nil {
		return fmt.Errorf("writing offsets file %s: %w", path, err)
	}
	return nil
}

// ReadOffsetsFile loads a sidecar. A missing file yields an error
// matching both ErrOffsetsMissing and fs.ErrNotExist.
func ReadOffsetsFile(path string) (*Offsets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrOffsetsMissing, err)
		}
		return nil, fmt.Errorf("reading offsets file %s: %w", path, err)
	}
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("%w: %s is %d bytes, not a multiple of 8", ErrOffsetsStale, path, len(data))
	}

	offsets := make([]uint64, len(data)/8)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint64(data[i*8:])
	}
	return &Offsets{offsets: offsets}, nil
}
