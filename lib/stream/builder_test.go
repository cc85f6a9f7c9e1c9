// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bytes"
	"slices"
	"testing"
)

type input struct {
	entry  MapEntry
	length uint64
}

func build(t *testing.T, inputs []input) ([]MapEntry, Stats) {
	t.Helper()
	var builder MappingBuilder
	var buffer bytes.Buffer
	for _, in := range inputs {
		if err := builder.Next(in.entry, in.length, &buffer); err != nil {
			t.Fatalf("Next(%v): %v", in.entry, err)
		}
	}
	if err := builder.Complete(&buffer); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	entries, err := Decode(buffer.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return entries, builder.Stats()
}

func TestMappingBuilderMerges(t *testing.T) {
	tests := []struct {
		name   string
		inputs []input
		want   []MapEntry
	}{
		{
			name: "contiguous data",
			inputs: []input{
				{Data{Slab: 2, Offset: 0, NrEntries: 1}, 4096},
				{Data{Slab: 2, Offset: 1, NrEntries: 1}, 4096},
				{Data{Slab: 2, Offset: 2, NrEntries: 3}, 12288},
			},
			want: []MapEntry{Data{Slab: 2, Offset: 0, NrEntries: 5}},
		},
		{
			name: "data gap and slab change",
			inputs: []input{
				{Data{Slab: 2, Offset: 0, NrEntries: 1}, 4096},
				{Data{Slab: 2, Offset: 5, NrEntries: 1}, 4096},
				{Data{Slab: 3, Offset: 6, NrEntries: 1}, 4096},
			},
			want: []MapEntry{
				Data{Slab: 2, Offset: 0, NrEntries: 1},
				Data{Slab: 2, Offset: 5, NrEntries: 1},
				Data{Slab: 3, Offset: 6, NrEntries: 1},
			},
		},
		{
			name: "fills merge only on equal byte",
			inputs: []input{
				{Fill{Byte: 0, Len: 512}, 512},
				{Fill{Byte: 0, Len: 512}, 512},
				{Fill{Byte: 1, Len: 512}, 512},
			},
			want: []MapEntry{Fill{Byte: 0, Len: 1024}, Fill{Byte: 1, Len: 512}},
		},
		{
			name: "unmapped runs merge",
			inputs: []input{
				{Unmapped{Len: 100}, 100},
				{Unmapped{Len: 200}, 200},
				{Fill{Byte: 0, Len: 8}, 8},
				{Unmapped{Len: 1}, 1},
			},
			want: []MapEntry{Unmapped{Len: 300}, Fill{Byte: 0, Len: 8}, Unmapped{Len: 1}},
		},
		{
			name: "refs and partials pass through",
			inputs: []input{
				{Ref{Len: 10}, 10},
				{Ref{Len: 10}, 10},
				{Partial{Begin: 0, End: 5, Slab: 1, Offset: 0, NrEntries: 1}, 5},
			},
			want: []MapEntry{
				Ref{Len: 10},
				Ref{Len: 10},
				Partial{Begin: 0, End: 5, Slab: 1, Offset: 0, NrEntries: 1},
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			entries, stats := build(t, test.inputs)
			if !slices.Equal(entries, test.want) {
				t.Errorf("entries = %v, want %v", entries, test.want)
			}
			if stats.Entries != uint64(len(test.want)) {
				t.Errorf("stats.Entries = %d, want %d", stats.Entries, len(test.want))
			}
		})
	}
}

func TestMappingBuilderStats(t *testing.T) {
	_, stats := build(t, []input{
		{Fill{Byte: 7, Len: 100}, 100},
		{Data{Slab: 0, Offset: 0, NrEntries: 2}, 8192},
		{Unmapped{Len: 50}, 50},
	})
	want := Stats{Entries: 3, DataRecords: 2, Size: 8342, MappedSize: 8192, FillSize: 100, UnmappedSize: 50}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}

func TestMappingBuilderRejectsLengthMismatch(t *testing.T) {
	var builder MappingBuilder
	var buffer bytes.Buffer
	if err := builder.Next(Fill{Byte: 1, Len: 10}, 11, &buffer); err == nil {
		t.Fatal("Next accepted a fill whose length disagrees")
	}
}

func TestCompleteWithoutEntries(t *testing.T) {
	var builder MappingBuilder
	var buffer bytes.Buffer
	if err := builder.Complete(&buffer); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if buffer.Len() != 0 {
		t.Errorf("Complete wrote %d bytes for an empty mapping", buffer.Len())
	}
}
