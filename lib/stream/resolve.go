// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrRef is returned when resolving a Ref entry, which needs the
// referenced stream.
var ErrRef = errors.New("cannot resolve a reference to another stream")

// DataGetter reads content-store records. archive.Data implements it.
type DataGetter interface {
	// Get returns a slab payload and the range within it covering
	// nrEntries records starting at offset.
	Get(slab, offset, nrEntries uint32) ([]byte, uint32, uint32, error)
}

// fillChunk bounds the buffer used to write long fills.
const fillChunk = 64 * 1024

// Resolve writes the logical bytes described by entries to output and
// returns the number of bytes written.
func Resolve(entries []MapEntry, store DataGetter, output io.Writer) (uint64, error) {
	var written uint64
	for i, entry := range entries {
		n, err := resolveEntry(entry, store, output)
		written += n
		if err != nil {
			return written, fmt.Errorf("entry %d (%v): %w", i, entry, err)
		}
	}
	return written, nil
}

func resolveEntry(entry MapEntry, store DataGetter, output io.Writer) (uint64, error) {
	switch e := entry.(type) {
	case Fill:
		return writeRepeated(output, e.Byte, e.Len)
	case Unmapped:
		return writeRepeated(output, 0, e.Len)
	case Data:
		payload, start, end, err := store.Get(e.Slab, e.Offset, e.NrEntries)
		if err != nil {
			return 0, err
		}
		n, err := output.Write(payload[start:end])
		return uint64(n), err
	case Partial:
		payload, start, end, err := store.Get(e.Slab, e.Offset, e.NrEntries)
		if err != nil {
			return 0, err
		}
		if e.Begin > e.End || uint64(e.End) > uint64(end-start) {
			return 0, fmt.Errorf("partial range [%d, %d) outside the %d byte run", e.Begin, e.End, end-start)
		}
		n, err := output.Write(payload[start+e.Begin : start+e.End])
		return uint64(n), err
	case Ref:
		return 0, ErrRef
	default:
		return 0, fmt.Errorf("unknown map entry type %T", entry)
	}
}

func writeRepeated(output io.Writer, value byte, length uint64) (uint64, error) {
	chunk := bytes.Repeat([]byte{value}, int(min(length, fillChunk)))
	var written uint64
	for written < length {
		n, err := output.Write(chunk[:min(uint64(len(chunk)), length-written)])
		written += uint64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
