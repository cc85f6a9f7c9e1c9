// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mingnus/blk-archive/lib/slab"
)

func TestWriterSplitsSlabs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream")
	file, err := slab.Create(path, slab.Options{Compression: slab.CompressionZstd})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	writer := NewWriter(file, 64)

	// Every other record skips an offset, so nothing merges.
	var want []MapEntry
	for i := range 100 {
		entry := Data{Slab: uint32(i / 10), Offset: uint32(2 * i), NrEntries: 1}
		if err := writer.Add(entry, 4096); err != nil {
			t.Fatalf("Add: %v", err)
		}
		want = append(want, entry)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if writer.Stats().Entries != 100 || writer.Stats().Size != 100*4096 {
		t.Errorf("stats = %+v", writer.Stats())
	}

	reader, err := slab.Open(path, slab.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if reader.NumSlabs() < 2 {
		t.Errorf("stream written as %d slabs, want several with a 64 byte target", reader.NumSlabs())
	}
	reader.Close()

	entries, err := ReadEntries(path)
	if err != nil {
		t.Fatalf("ReadEntries: %v", err)
	}
	if len(entries) != len(want) {
		t.Fatalf("read %d entries, want %d", len(entries), len(want))
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d = %v, want %v", i, entries[i], want[i])
		}
	}
}

type fakeStore map[uint32][][]byte

func (s fakeStore) Get(slab, offset, nrEntries uint32) ([]byte, uint32, uint32, error) {
	records, ok := s[slab]
	if !ok || int(offset+nrEntries) > len(records) {
		return nil, 0, 0, errors.New("out of range")
	}
	var payload []byte
	var start, end uint32
	for i, record := range records {
		if uint32(i) == offset {
			start = uint32(len(payload))
		}
		payload = append(payload, record...)
		if uint32(i) == offset+nrEntries-1 {
			end = uint32(len(payload))
		}
	}
	return payload, start, end, nil
}

func TestResolve(t *testing.T) {
	store := fakeStore{
		0: {[]byte("alpha"), []byte("beta"), []byte("gamma")},
		1: {[]byte("delta")},
	}
	entries := []MapEntry{
		Fill{Byte: 'x', Len: 3},
		Data{Slab: 0, Offset: 1, NrEntries: 2},
		Unmapped{Len: 2},
		Partial{Begin: 1, End: 4, Slab: 1, Offset: 0, NrEntries: 1},
	}

	var output bytes.Buffer
	written, err := Resolve(entries, store, &output)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := "xxxbetagamma\x00\x00elt"
	if output.String() != want {
		t.Errorf("Resolve wrote %q, want %q", output.String(), want)
	}
	if written != uint64(len(want)) {
		t.Errorf("Resolve returned %d, want %d", written, len(want))
	}
}

func TestResolveLongFill(t *testing.T) {
	var output bytes.Buffer
	length := uint64(3*fillChunk + 17)
	if _, err := Resolve([]MapEntry{Fill{Byte: 0xaa, Len: length}}, fakeStore{}, &output); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !bytes.Equal(output.Bytes(), bytes.Repeat([]byte{0xaa}, int(length))) {
		t.Error("long fill resolved incorrectly")
	}
}

func TestResolveRejects(t *testing.T) {
	store := fakeStore{0: {[]byte("abc")}}
	tests := []struct {
		name  string
		entry MapEntry
		is    error
	}{
		{"ref", Ref{Len: 4}, ErrRef},
		{"partial past run", Partial{Begin: 2, End: 9, Slab: 0, Offset: 0, NrEntries: 1}, nil},
		{"missing slab", Data{Slab: 5, Offset: 0, NrEntries: 1}, nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Resolve([]MapEntry{test.entry}, store, &bytes.Buffer{})
			if err == nil {
				t.Fatal("Resolve succeeded")
			}
			if test.is != nil && !errors.Is(err, test.is) {
				t.Errorf("error = %v, want %v", err, test.is)
			}
		})
	}
}
