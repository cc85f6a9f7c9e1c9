// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream encodes the mapping of a logical byte stream onto the
// content store.
//
// A stream is a sequence of [MapEntry] values, each describing the
// next run of logical bytes: a repeated byte ([Fill]), a hole
// ([Unmapped]), a run of consecutive content-store records ([Data]), a
// sub-range of such a run ([Partial]), or a reference to another
// stream ([Ref]). The set of variants is closed; every consumer
// switches over all five.
//
// Entries are stored in a stream slab file, each slab payload a CBOR
// sequence of arrays:
//
//	[0, byte, len]                            Fill
//	[1, len]                                  Unmapped
//	[2, slab, offset, nr_entries]             Data
//	[3, begin, end, slab, offset, nr_entries] Partial
//	[4, len]                                  Ref
//
// [MappingBuilder] merges adjacent compatible entries before encoding;
// [Writer] packs the result into slabs of about a target size.
package stream
