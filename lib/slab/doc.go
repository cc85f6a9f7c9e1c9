// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package slab implements the slab file: an append-only container of
// variable-length, optionally compressed records ("slabs") addressed
// by a dense integer index.
//
// On-disk layout:
//
//	header (16 bytes): "BLKSLAB" + version, u32 compression, u32 reserved
//	frame*:            MAGIC u64 | LEN u64 | payload[LEN] | CHECKSUM u64
//
// All integers are little-endian. LEN is the on-disk (possibly
// compressed) payload length; CHECKSUM is [hash.SlabChecksum] of the
// on-disk payload. Random access goes through an offsets table (slab
// index to frame offset) persisted next to the file as
// "<path>.offsets". The sidecar is derived data: [RebuildOffsets]
// regenerates it from the frames alone.
//
// Writes may be reserved ahead of their data with [File.Reserve], so
// several slabs can be compressed in parallel and completed in any
// order. A single writer goroutine puts completions back into index
// order with a small reorder buffer; the file on disk is always
// index-contiguous. [File.Close] fails with a [*GapError] if any
// reserved index never arrived, rather than producing a shorter file.
package slab
