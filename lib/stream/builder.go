// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bytes"
	"fmt"
	"math"
)

// Stats summarizes the entries passed to a MappingBuilder.
type Stats struct {
	// Entries is the number of entries emitted after merging.
	Entries uint64

	// DataRecords is the number of content-store records referenced.
	DataRecords uint64

	// Size is the logical length; MappedSize, FillSize and
	// UnmappedSize break it down by kind.
	Size         uint64
	MappedSize   uint64
	FillSize     uint64
	UnmappedSize uint64
}

// MappingBuilder merges a sequence of entries into maximal runs: equal
// Fill bytes, adjacent Unmapped holes, and Data runs that continue in
// the same slab. A run is encoded once the next entry cannot extend
// it.
type MappingBuilder struct {
	pending MapEntry
	stats   Stats
}

// Next adds entry, whose logical length is length bytes. If entry does
// not extend the pending run, the pending run is encoded into buffer
// first.
func (b *MappingBuilder) Next(entry MapEntry, length uint64, buffer *bytes.Buffer) error {
	b.stats.Size += length
	switch e := entry.(type) {
	case Fill:
		if e.Len != length {
			return fmt.Errorf("%v given length %d", e, length)
		}
		b.stats.FillSize += length
	case Unmapped:
		if e.Len != length {
			return fmt.Errorf("%v given length %d", e, length)
		}
		b.stats.UnmappedSize += length
	case Data:
		b.stats.MappedSize += length
		b.stats.DataRecords += uint64(e.NrEntries)
	case Partial:
		b.stats.MappedSize += length
	case Ref:
		b.stats.MappedSize += length
	default:
		return fmt.Errorf("unknown map entry type %T", entry)
	}

	if merged, ok := merge(b.pending, entry); ok {
		b.pending = merged
		return nil
	}
	if err := b.emit(buffer); err != nil {
		return err
	}
	b.pending = entry
	return nil
}

// Complete encodes the pending run, if any.
func (b *MappingBuilder) Complete(buffer *bytes.Buffer) error {
	return b.emit(buffer)
}

// Stats returns the totals so far. Entries counts only runs already
// encoded.
func (b *MappingBuilder) Stats() Stats {
	return b.stats
}

func (b *MappingBuilder) emit(buffer *bytes.Buffer) error {
	if b.pending == nil {
		return nil
	}
	if err := Encode(buffer, b.pending); err != nil {
		return err
	}
	b.pending = nil
	b.stats.Entries++
	return nil
}

// merge returns the run covering previous followed by next, if one
// entry can express it.
func merge(previous, next MapEntry) (MapEntry, bool) {
	switch p := previous.(type) {
	case Fill:
		if n, ok := next.(Fill); ok && n.Byte == p.Byte {
			return Fill{Byte: p.Byte, Len: p.Len + n.Len}, true
		}
	case Unmapped:
		if n, ok := next.(Unmapped); ok {
			return Unmapped{Len: p.Len + n.Len}, true
		}
	case Data:
		if n, ok := next.(Data); ok && n.Slab == p.Slab && uint64(p.Offset)+uint64(p.NrEntries) == uint64(n.Offset) &&
			uint64(p.NrEntries)+uint64(n.NrEntries) <= math.MaxUint32 {
			return Data{Slab: p.Slab, Offset: p.Offset, NrEntries: p.NrEntries + n.NrEntries}, true
		}
	case Partial, Ref, nil:
	}
	return nil, false
}
