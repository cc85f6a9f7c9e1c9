// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"fmt"
	"time"

	"github.com/mingnus/blk-archive/lib/codec"
	"github.com/mingnus/blk-archive/lib/slab"
)

// CatalogEntry records one stream written into the archive. The
// catalog has one slab per entry, in the order streams were written.
type CatalogEntry struct {
	StreamID string `cbor:"stream_id"`

	// PackTime is stored with second precision.
	PackTime time.Time `cbor:"pack_time"`

	// Entries is the number of mapping entries in the stream file.
	Entries uint64 `cbor:"entries"`

	// DataRecords is the number of content-store records the stream
	// references.
	DataRecords uint64 `cbor:"data_records"`
}

// AppendCatalog adds entry to the catalog of the archive at root.
func AppendCatalog(root string, entry CatalogEntry) error {
	payload, err := codec.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding catalog entry: %w", err)
	}

	file, err := slab.Open(CatalogPath(root), slab.Options{Write: true})
	if err != nil {
		return fmt.Errorf("opening index file: %w", err)
	}
	if err := file.WriteSlab(payload); err != nil {
		file.Close()
		return fmt.Errorf("writing index file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing index file: %w", err)
	}
	return nil
}

// ReadCatalog returns every catalog entry of the archive at root.
func ReadCatalog(root string) ([]CatalogEntry, error) {
	file, err := slab.Open(CatalogPath(root), slab.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening index file: %w", err)
	}
	defer file.Close()

	entries := make([]CatalogEntry, 0, file.NumSlabs())
	for i := uint32(0); i < file.NumSlabs(); i++ {
		payload, err := file.Read(i)
		if err != nil {
			return nil, fmt.Errorf("reading index slab %d: %w", i, err)
		}
		var entry CatalogEntry
		if err := codec.Unmarshal(payload, &entry); err != nil {
			return nil, fmt.Errorf("decoding index slab %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
