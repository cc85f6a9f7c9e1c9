// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"encoding/binary"
	"fmt"
	"math"
)

// dataSlabHeaderSize returns the size of the length table for count
// records.
func dataSlabHeaderSize(count int) int {
	return 8 + 8*count
}

// Range is a record's byte range within a data slab payload.
type Range struct {
	Begin uint32
	End   uint32
}

// encodeDataSlab lays out a data slab payload from concatenated record
// bytes and their lengths, returning the payload and each record's
// range within it.
func encodeDataSlab(body []byte, lengths []uint64) ([]byte, []Range) {
	header := dataSlabHeaderSize(len(lengths))
	payload := make([]byte, header+len(body))
	binary.LittleEndian.PutUint64(payload, uint64(len(lengths)))

	ranges := make([]Range, len(lengths))
	position := uint64(header)
	for i, length := range lengths {
		binary.LittleEndian.PutUint64(payload[8+8*i:], length)
		ranges[i] = Range{Begin: uint32(position), End: uint32(position + length)}
		position += length
	}
	copy(payload[header:], body)
	return payload, ranges
}

// ParseDataSlab reads the record length table of a data slab payload
// and returns each record's byte range.
func ParseDataSlab(payload []byte) ([]Range, error) {
	if len(payload) < 8 {
		return nil, fmt.Errorf("data slab of %d bytes is shorter than its record count", len(payload))
	}
	if len(payload) > math.MaxUint32 {
		return nil, fmt.Errorf("data slab of %d bytes exceeds the addressable range", len(payload))
	}
	count := binary.LittleEndian.Uint64(payload)
	if count > uint64(len(payload)-8)/8 {
		return nil, fmt.Errorf("data slab declares %d records but is only %d bytes", count, len(payload))
	}

	header := uint64(dataSlabHeaderSize(int(count)))
	ranges := make([]Range, count)
	position := header
	for i := range ranges {
		length := binary.LittleEndian.Uint64(payload[8+8*i:])
		if length > uint64(len(payload))-position {
			return nil, fmt.Errorf("data slab record %d of length %d runs past the %d byte payload",
				i, length, len(payload))
		}
		ranges[i] = Range{Begin: uint32(position), End: uint32(position + length)}
		position += length
	}
	if position != uint64(len(payload)) {
		return nil, fmt.Errorf("data slab records end at %d but payload is %d bytes", position, len(payload))
	}
	return ranges, nil
}
