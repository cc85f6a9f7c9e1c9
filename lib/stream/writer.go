// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mingnus/blk-archive/lib/slab"
)

// Writer packs map entries into a stream slab file, starting a new slab
// whenever the encoded buffer reaches the target size.
type Writer struct {
	file    *slab.File
	target  int
	builder MappingBuilder
	buffer  bytes.Buffer
	slabs   uint32
}

// NewWriter returns a Writer appending to file. The Writer owns file
// and closes it on Close.
func NewWriter(file *slab.File, target int) *Writer {
	return &Writer{file: file, target: target}
}

// Add appends entry, whose logical length is length bytes.
func (w *Writer) Add(entry MapEntry, length uint64) error {
	if err := w.builder.Next(entry, length, &w.buffer); err != nil {
		return err
	}
	return w.completeSlab(w.target)
}

// completeSlab writes the buffer as a slab once it holds at least
// threshold bytes. A zero threshold flushes any non-empty buffer.
func (w *Writer) completeSlab(threshold int) error {
	if w.buffer.Len() == 0 || w.buffer.Len() < threshold {
		return nil
	}
	payload := bytes.Clone(w.buffer.Bytes())
	w.buffer.Reset()
	if err := w.file.WriteSlab(payload); err != nil {
		return fmt.Errorf("writing stream slab %d: %w", w.slabs, err)
	}
	w.slabs++
	return nil
}

// Stats returns the mapping totals so far.
func (w *Writer) Stats() Stats {
	return w.builder.Stats()
}

// Close encodes the pending run, writes the final partial slab, and
// closes the file.
func (w *Writer) Close() error {
	err := w.builder.Complete(&w.buffer)
	if err == nil {
		err = w.completeSlab(0)
	}
	return errors.Join(err, w.file.Close())
}
