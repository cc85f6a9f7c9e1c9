// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive implements the on-disk archive: its directory
// layout, creation, the deduplicating content store, and the stream
// catalog.
//
// Layout, relative to the archive root:
//
//	dm-archive.yaml           archive configuration
//	data/data                 data slab file
//	data/hashes               hash-index slab file, one slab per data slab
//	indexes/seen              catalog of packed streams
//	streams/<id>/stream       stream mapping slab file
//	streams/<id>/config.yaml  stream metadata
//
// Every slab file has its ".offsets" sidecar beside it. Paths are
// always joined onto the archive root explicitly; nothing here changes
// the working directory.
//
// The content store ([Data]) packs records into data slabs of about
// [SlabSizeTarget] bytes. Each data slab payload begins with a record
// length table:
//
//	count u64 | count × length u64 | record bytes...
//
// and is paired 1:1 with a hash-index slab holding each record's byte
// range within that payload and its content hash. A record is
// identified by its [Location]: the data slab index and the record's
// position within the slab. [Data.Add] stores at most one copy of any
// content hash.
package archive
