// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package slab

import (
	"errors"
	"fmt"
)

var (
	// ErrOffsetsMissing is returned by Open when the offsets sidecar
	// does not exist. The error also wraps fs.ErrNotExist. Rebuild the
	// sidecar with RepairOffsets.
	ErrOffsetsMissing = errors.New("slab offsets file missing")

	// ErrOffsetsStale is returned by Open when the offsets sidecar does
	// not describe the frames actually present in the file.
	ErrOffsetsStale = errors.New("slab offsets file is stale")

	// ErrReadOnly is returned by write operations on a file opened
	// without Options.Write.
	ErrReadOnly = errors.New("slab file not opened for writing")

	// ErrClosed is returned by operations on a closed file.
	ErrClosed = errors.New("slab file is closed")
)

// MagicError reports a frame whose magic number is wrong. During an
// offsets scan this is a structural error: the scan cannot resync.
type MagicError struct {
	Path   string
	Offset int64
	Found  uint64
}

func (e *MagicError) Error() string {
	return fmt.Sprintf("%s: unexpected slab magic %#x at offset %d", e.Path, e.Found, e.Offset)
}

// TruncatedError reports a frame that extends past the end of the file.
type TruncatedError struct {
	Path     string
	Offset   int64
	Length   uint64
	FileSize int64
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("%s: truncated slab at offset %d (payload length %d, file size %d)",
		e.Path, e.Offset, e.Length, e.FileSize)
}

// ChecksumError reports a slab whose payload does not match its stored
// frame checksum.
type ChecksumError struct {
	Path   string
	Index  uint32
	Offset int64
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%s: checksum mismatch for slab %d at offset %d", e.Path, e.Index, e.Offset)
}

// IndexError reports a read of a slab index that has not been written.
type IndexError struct {
	Path     string
	Index    uint32
	NumSlabs int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s: slab %d out of range (file has %d slabs)", e.Path, e.Index, e.NumSlabs)
}

// GapError is returned by Close when the reserved indices could not all
// be written contiguously.
type GapError struct {
	Path string

	// Written is the number of slabs on disk; Reserved the number of
	// indices handed out.
	Written  uint32
	Reserved uint32

	// Pending lists completions still in the reorder buffer, waiting
	// on a lower index that never arrived.
	Pending []uint32

	// Abandoned lists reservations whose channel was closed without
	// data.
	Abandoned []uint32

	// Unsupplied lists reservations that had neither data nor a closed
	// channel when Close was called.
	Unsupplied []uint32
}

func (e *GapError) Error() string {
	return fmt.Sprintf("%s: closed with a gap: %d of %d reserved slabs written (pending %v, abandoned %v, unsupplied %v)",
		e.Path, e.Written, e.Reserved, e.Pending, e.Abandoned, e.Unsupplied)
}
