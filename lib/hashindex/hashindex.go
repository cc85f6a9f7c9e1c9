// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package hashindex encodes hash-index slabs: per data slab, the byte
// range and content hash of each record, in record order.
//
// Payload layout (little-endian):
//
//	count u64
//	count × { begin u32 | end u32 | hash [32]byte }
//
// begin and end are offsets into the decompressed data slab payload.
package hashindex

import (
	"encoding/binary"
	"fmt"

	"github.com/mingnus/blk-archive/lib/hash"
)

const (
	countSize = 8

	// EntrySize is the encoded size of one entry.
	EntrySize = 4 + 4 + hash.Size
)

// Entry describes one record of a data slab.
type Entry struct {
	Begin uint32
	End   uint32
	Hash  hash.Hash
}

// Len returns the record length.
func (e Entry) Len() uint32 {
	return e.End - e.Begin
}

// Builder accumulates the entries of the data slab currently being
// filled.
type Builder struct {
	entries []Entry
}

// Add appends an entry.
func (b *Builder) Add(begin, end uint32, h hash.Hash) {
	b.entries = append(b.entries, Entry{Begin: begin, End: end, Hash: h})
}

// Len returns the number of entries added since the last Reset.
func (b *Builder) Len() int {
	return len(b.entries)
}

// Get returns entry i.
func (b *Builder) Get(i int) Entry {
	return b.entries[i]
}

// Encode returns the slab payload for the accumulated entries.
func (b *Builder) Encode() []byte {
	return Encode(b.entries)
}

// Reset clears the builder for the next slab.
func (b *Builder) Reset() {
	b.entries = b.entries[:0]
}

// Encode returns the slab payload for entries.
func Encode(entries []Entry) []byte {
	payload := make([]byte, countSize+EntrySize*len(entries))
	binary.LittleEndian.PutUint64(payload, uint64(len(entries)))
	position := countSize
	for _, entry := range entries {
		binary.LittleEndian.PutUint32(payload[position:], entry.Begin)
		binary.LittleEndian.PutUint32(payload[position+4:], entry.End)
		copy(payload[position+8:position+EntrySize], entry.Hash[:])
		position += EntrySize
	}
	return payload
}

// ByIndex is a parsed view of a hash-index slab payload. Entries are
// decoded on access.
type ByIndex struct {
	payload []byte
	count   int
}

// New validates payload and returns a view over it. The payload is not
// copied.
func New(payload []byte) (*ByIndex, error) {
	if len(payload) < countSize {
		return nil, fmt.Errorf("hash index slab of %d bytes is shorter than its count", len(payload))
	}
	count := binary.LittleEndian.Uint64(payload)
	if want := uint64(countSize) + count*EntrySize; count > uint64(len(payload)) || want != uint64(len(payload)) {
		return nil, fmt.Errorf("hash index slab declares %d entries but is %d bytes", count, len(payload))
	}
	return &ByIndex{payload: payload, count: int(count)}, nil
}

// Len returns the number of entries.
func (b *ByIndex) Len() int {
	return b.count
}

// Get returns entry i. It panics if i is out of range.
func (b *ByIndex) Get(i int) Entry {
	if i < 0 || i >= b.count {
		panic(fmt.Sprintf("hashindex: entry %d out of range [0, %d)", i, b.count))
	}
	position := countSize + i*EntrySize
	var entry Entry
	entry.Begin = binary.LittleEndian.Uint32(b.payload[position:])
	entry.End = binary.LittleEndian.Uint32(b.payload[position+4:])
	copy(entry.Hash[:], b.payload[position+8:position+EntrySize])
	return entry
}

// ByHash maps content hashes to record indices within one slab. On
// duplicate hashes the first record wins.
type ByHash map[hash.Hash]int

// IndexByHash builds a ByHash from a parsed slab.
func IndexByHash(index *ByIndex) ByHash {
	byHash := make(ByHash, index.Len())
	for i := 0; i < index.Len(); i++ {
		h := index.Get(i).Hash
		if _, exists := byHash[h]; !exists {
			byHash[h] = i
		}
	}
	return byHash
}
