// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hashindex

import (
	"testing"

	"github.com/mingnus/blk-archive/lib/hash"
)

func TestBuilderRoundtrip(t *testing.T) {
	var builder Builder
	offsets := []uint32{24, 1024, 5000, 5000, 9000}
	for i := 0; i+1 < len(offsets); i++ {
		builder.Add(offsets[i], offsets[i+1], hash.HashBytes([]byte{byte(i)}))
	}

	index, err := New(builder.Encode())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if index.Len() != 4 {
		t.Fatalf("Len = %d, want 4", index.Len())
	}
	for i := range 4 {
		entry := index.Get(i)
		if entry.Begin != offsets[i] || entry.End != offsets[i+1] {
			t.Errorf("entry %d range = [%d, %d), want [%d, %d)", i, entry.Begin, entry.End, offsets[i], offsets[i+1])
		}
		if entry.Hash != hash.HashBytes([]byte{byte(i)}) {
			t.Errorf("entry %d hash mismatch", i)
		}
	}
	if index.Get(2).Len() != 0 {
		t.Errorf("empty record length = %d", index.Get(2).Len())
	}

	builder.Reset()
	if builder.Len() != 0 {
		t.Errorf("Len after Reset = %d", builder.Len())
	}
}

func TestEmptySlab(t *testing.T) {
	index, err := New(Encode(nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if index.Len() != 0 {
		t.Errorf("Len = %d, want 0", index.Len())
	}
}

func TestNewRejectsMalformedPayload(t *testing.T) {
	valid := Encode([]Entry{{Begin: 0, End: 10}, {Begin: 10, End: 20}})
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", nil},
		{"short count", valid[:4]},
		{"truncated entry", valid[:len(valid)-1]},
		{"trailing bytes", append(append([]byte(nil), valid...), 0)},
		{"huge count", []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := New(test.payload); err == nil {
				t.Fatal("New accepted a malformed payload")
			}
		})
	}
}

func TestIndexByHashFirstWins(t *testing.T) {
	duplicate := hash.HashBytes([]byte("same"))
	index, err := New(Encode([]Entry{
		{Begin: 0, End: 4, Hash: duplicate},
		{Begin: 4, End: 8, Hash: hash.HashBytes([]byte("other"))},
		{Begin: 8, End: 12, Hash: duplicate},
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	byHash := IndexByHash(index)
	if len(byHash) != 2 {
		t.Fatalf("len = %d, want 2", len(byHash))
	}
	if byHash[duplicate] != 0 {
		t.Errorf("duplicate hash maps to record %d, want 0", byHash[duplicate])
	}
}
