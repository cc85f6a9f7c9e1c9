// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"errors"
	"fmt"
)

// ErrRecordTooLarge is returned by Add for records that cannot be
// addressed by the 32-bit hash-index byte ranges.
var ErrRecordTooLarge = errors.New("record too large")

// CountMismatchError reports data and hash-index files that disagree
// on the number of slabs. The pairing is positional, so the store
// cannot be used until repaired.
type CountMismatchError struct {
	Archive   string
	DataSlabs uint32
	HashSlabs uint32
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("%s: number of slabs mismatch: data file has %d, hashes file has %d",
		e.Archive, e.DataSlabs, e.HashSlabs)
}

// RangeError reports a Get outside the stored slabs or records.
type RangeError struct {
	Slab      uint32
	Offset    uint32
	NrEntries uint32

	// NumSlabs is the number of slabs in the store, including the one
	// being filled. NumRecords is the record count of Slab when the
	// slab exists.
	NumSlabs   uint32
	NumRecords uint32
}

func (e *RangeError) Error() string {
	if e.Slab >= e.NumSlabs {
		return fmt.Sprintf("data slab %d out of range (store has %d slabs)", e.Slab, e.NumSlabs)
	}
	return fmt.Sprintf("records [%d, %d) of data slab %d out of range (slab has %d records)",
		e.Offset, uint64(e.Offset)+uint64(e.NrEntries), e.Slab, e.NumRecords)
}
