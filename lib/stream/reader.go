// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"fmt"

	"github.com/mingnus/blk-archive/lib/slab"
)

// ReadSlab decodes the entries of one stream slab.
func ReadSlab(file *slab.File, index uint32) ([]MapEntry, error) {
	payload, err := file.Read(index)
	if err != nil {
		return nil, fmt.Errorf("reading stream slab %d: %w", index, err)
	}
	entries, err := Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("stream slab %d: %w", index, err)
	}
	return entries, nil
}

// ReadEntries decodes every entry of the stream slab file at path.
func ReadEntries(path string) ([]MapEntry, error) {
	file, err := slab.Open(path, slab.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening stream file: %w", err)
	}
	defer file.Close()

	var entries []MapEntry
	for s := uint32(0); s < file.NumSlabs(); s++ {
		slabEntries, err := ReadSlab(file, s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		entries = append(entries, slabEntries...)
	}
	return entries, nil
}
