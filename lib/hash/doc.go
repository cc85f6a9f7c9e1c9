// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package hash provides the digests used by the archive storage core.
//
// All hashing is BLAKE3 in keyed mode with a fixed domain key per use,
// so the same bytes hashed for different purposes never collide:
//
//   - Record domain: the content identity of a Content Store record.
//     This is the deduplication key and the value stored in hash-index
//     slabs. Computed over an iov so callers can hash a record that is
//     split across several buffers without concatenating it first.
//
//   - Slab domain: the 8-byte frame checksum written after every slab
//     payload. Truncated to 64 bits; it detects torn or corrupted
//     frames, it is not a content address.
package hash
