// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import "fmt"

// MapEntry is one run of a stream mapping. Implemented only by Fill,
// Unmapped, Data, Partial and Ref.
type MapEntry interface {
	isMapEntry()
	String() string
}

// Fill is Len bytes of the value Byte.
type Fill struct {
	Byte uint8
	Len  uint64
}

// Unmapped is a hole of Len bytes, read back as zeros.
type Unmapped struct {
	Len uint64
}

// Data is NrEntries consecutive content-store records starting at
// record Offset of data slab Slab.
type Data struct {
	Slab      uint32
	Offset    uint32
	NrEntries uint32
}

// Partial is the byte range [Begin, End) of the logical extent of a
// Data run.
type Partial struct {
	Begin     uint32
	End       uint32
	Slab      uint32
	Offset    uint32
	NrEntries uint32
}

// Ref is Len bytes taken from another stream.
type Ref struct {
	Len uint64
}

func (Fill) isMapEntry()     {}
func (Unmapped) isMapEntry() {}
func (Data) isMapEntry()     {}
func (Partial) isMapEntry()  {}
func (Ref) isMapEntry()      {}

func (e Fill) String() string {
	return fmt.Sprintf("fill(%#02x, %d)", e.Byte, e.Len)
}

func (e Unmapped) String() string {
	return fmt.Sprintf("unmapped(%d)", e.Len)
}

func (e Data) String() string {
	return fmt.Sprintf("data(%d:%d+%d)", e.Slab, e.Offset, e.NrEntries)
}

func (e Partial) String() string {
	return fmt.Sprintf("partial(%d:%d+%d [%d, %d))", e.Slab, e.Offset, e.NrEntries, e.Begin, e.End)
}

func (e Ref) String() string {
	return fmt.Sprintf("ref(%d)", e.Len)
}
