// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the archive's standard CBOR configuration.
//
// Every structured on-disk record that is not a fixed binary layout is
// CBOR: stream mapping entries, catalog entries, and diagnostic dumps.
// Human-edited files (dm-archive.yaml, stream config.yaml) are YAML and
// do not go through this package.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same logical mapping always produces identical bytes and stream slabs
// written by two runs can be compared directly. Streams of records are
// CBOR sequences (RFC 8742): items concatenated with no framing.
//
//	data, err := codec.Marshal(value)
//	rest, err := codec.UnmarshalFirst(data, &value)
//
// Struct types use `cbor` tags with the toarray option where records
// are small and numerous, so field names are not repeated per item.
package codec
