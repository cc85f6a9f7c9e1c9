// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bytes"
	"fmt"
	"math"

	"github.com/mingnus/blk-archive/lib/codec"
)

// Wire kinds. These values are format constants.
const (
	kindFill     = 0
	kindUnmapped = 1
	kindData     = 2
	kindPartial  = 3
	kindRef      = 4
)

// fieldCounts is the array length of each kind, including the kind.
var fieldCounts = map[uint64]int{kindFill: 3, kindUnmapped: 2, kindData: 4, kindPartial: 6, kindRef: 2}

// Encode appends the CBOR encoding of entry to buffer.
func Encode(buffer *bytes.Buffer, entry MapEntry) error {
	var fields []uint64
	switch e := entry.(type) {
	case Fill:
		fields = []uint64{kindFill, uint64(e.Byte), e.Len}
	case Unmapped:
		fields = []uint64{kindUnmapped, e.Len}
	case Data:
		fields = []uint64{kindData, uint64(e.Slab), uint64(e.Offset), uint64(e.NrEntries)}
	case Partial:
		fields = []uint64{kindPartial, uint64(e.Begin), uint64(e.End),
			uint64(e.Slab), uint64(e.Offset), uint64(e.NrEntries)}
	case Ref:
		fields = []uint64{kindRef, e.Len}
	default:
		return fmt.Errorf("unknown map entry type %T", entry)
	}

	encoded, err := codec.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encoding %v: %w", entry, err)
	}
	buffer.Write(encoded)
	return nil
}

// Decode parses a stream slab payload into its entries.
func Decode(payload []byte) ([]MapEntry, error) {
	var entries []MapEntry
	position := 0
	for len(payload) > 0 {
		var fields []uint64
		rest, err := codec.UnmarshalFirst(payload, &fields)
		if err != nil {
			return nil, fmt.Errorf("decoding map entry at byte %d: %w", position, err)
		}
		entry, err := decodeFields(fields)
		if err != nil {
			return nil, fmt.Errorf("map entry at byte %d: %w", position, err)
		}
		entries = append(entries, entry)
		position += len(payload) - len(rest)
		payload = rest
	}
	return entries, nil
}

func decodeFields(fields []uint64) (MapEntry, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty map entry")
	}
	count, known := fieldCounts[fields[0]]
	if !known {
		return nil, fmt.Errorf("unknown map entry kind %d", fields[0])
	}
	if len(fields) != count {
		return nil, fmt.Errorf("map entry kind %d has %d fields, want %d", fields[0], len(fields), count)
	}

	switch fields[0] {
	case kindFill:
		if fields[1] > math.MaxUint8 {
			return nil, fmt.Errorf("fill byte %d out of range", fields[1])
		}
		return Fill{Byte: uint8(fields[1]), Len: fields[2]}, nil
	case kindUnmapped:
		return Unmapped{Len: fields[1]}, nil
	case kindData:
		values, err := narrow(fields[1:])
		if err != nil {
			return nil, err
		}
		return Data{Slab: values[0], Offset: values[1], NrEntries: values[2]}, nil
	case kindPartial:
		values, err := narrow(fields[1:])
		if err != nil {
			return nil, err
		}
		return Partial{Begin: values[0], End: values[1], Slab: values[2], Offset: values[3], NrEntries: values[4]}, nil
	default:
		return Ref{Len: fields[1]}, nil
	}
}

func narrow(fields []uint64) ([]uint32, error) {
	values := make([]uint32, len(fields))
	for i, field := range fields {
		if field > math.MaxUint32 {
			return nil, fmt.Errorf("field %d value %d exceeds 32 bits", i+1, field)
		}
		values[i] = uint32(field)
	}
	return values, nil
}
