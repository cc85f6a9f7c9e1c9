// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package slab

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/mingnus/blk-archive/lib/testutil"
)

func createSlabFile(t *testing.T, compression Compression) (*File, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slabs")
	file, err := Create(path, Options{Compression: compression})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return file, path
}

func slabContent(index int) []byte {
	return bytes.Repeat([]byte(fmt.Sprintf("slab %04d ", index)), 100+index)
}

func TestWriteAndRead(t *testing.T) {
	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			file, path := createSlabFile(t, compression)
			for i := range 10 {
				if err := file.WriteSlab(slabContent(i)); err != nil {
					t.Fatalf("WriteSlab(%d): %v", i, err)
				}
			}
			if err := file.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			reopened, err := Open(path, Options{CacheEntries: 4})
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer reopened.Close()

			if reopened.Compression() != compression {
				t.Errorf("Compression = %v, want %v", reopened.Compression(), compression)
			}
			if reopened.NumSlabs() != 10 {
				t.Fatalf("NumSlabs = %d, want 10", reopened.NumSlabs())
			}
			for i := range 10 {
				data, err := reopened.Read(uint32(i))
				if err != nil {
					t.Fatalf("Read(%d): %v", i, err)
				}
				if !bytes.Equal(data, slabContent(i)) {
					t.Errorf("slab %d content mismatch", i)
				}
			}
		})
	}
}

func TestEmptySlab(t *testing.T) {
	file, path := createSlabFile(t, CompressionZstd)
	if err := file.WriteSlab(nil); err != nil {
		t.Fatalf("WriteSlab: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()
	data, err := reopened.Read(0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("Read returned %d bytes, want 0", len(data))
	}
}

func TestWriteUnordered(t *testing.T) {
	// Reserve a batch of indices, complete them in reverse, and check
	// the file still comes out in index order.
	const count = 8
	path := filepath.Join(t.TempDir(), "slabs")
	file, err := Create(path, Options{Compression: CompressionLZ4, QueueDepth: count})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	submits := make([]chan<- SlabData, count)
	for i := range count {
		index, submit, err := file.Reserve()
		if err != nil {
			t.Fatalf("Reserve: %v", err)
		}
		if index != uint32(i) {
			t.Fatalf("Reserve returned index %d, want %d", index, i)
		}
		submits[i] = submit
	}
	for i := count - 1; i >= 0; i-- {
		testutil.RequireSend(t, submits[i], SlabData{Index: uint32(i), Data: slabContent(i)},
			5*time.Second, "submitting slab %d", i)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()
	for i := range count {
		data, err := reopened.Read(uint32(i))
		if err != nil {
			t.Fatalf("Read(%d): %v", i, err)
		}
		if !bytes.Equal(data, slabContent(i)) {
			t.Errorf("slab %d content mismatch", i)
		}
	}
}

func TestReserveBlocksAtQueueDepth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slabs")
	file, err := Create(path, Options{QueueDepth: 2})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Index 0 is held back, so neither slot can be released.
	_, first, err := file.Reserve()
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	_, second, err := file.Reserve()
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	second <- SlabData{Index: 1, Data: []byte("one")}

	reserved := make(chan uint32)
	go func() {
		index, submit, err := file.Reserve()
		if err != nil {
			close(reserved)
			return
		}
		submit <- SlabData{Index: index, Data: []byte("two")}
		reserved <- index
	}()

	select {
	case <-reserved:
		t.Fatal("third Reserve returned while two reservations were outstanding")
	case <-time.After(50 * time.Millisecond):
	}

	first <- SlabData{Index: 0, Data: []byte("zero")}
	index := testutil.RequireReceive(t, reserved, 5*time.Second, "waiting for third reservation")
	if index != 2 {
		t.Errorf("third reservation got index %d, want 2", index)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCloseWithUnsuppliedReservationFails(t *testing.T) {
	// Index 0 is reserved but never sent or closed. Close must not wait
	// for it.
	file, path := createSlabFile(t, CompressionNone)
	if _, _, err := file.Reserve(); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	index, later, err := file.Reserve()
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	later <- SlabData{Index: index, Data: []byte("later")}
	close(later)

	done := make(chan struct{})
	var closeErr error
	go func() {
		closeErr = file.Close()
		close(done)
	}()
	testutil.RequireClosed(t, done, 5*time.Second, "waiting for Close with an unsupplied reservation")

	var gap *GapError
	if !errors.As(closeErr, &gap) {
		t.Fatalf("Close error = %v, want *GapError", closeErr)
	}
	if !slices.Equal(gap.Unsupplied, []uint32{0}) {
		t.Errorf("gap unsupplied = %v, want [0]", gap.Unsupplied)
	}
	if !slices.Equal(gap.Pending, []uint32{1}) {
		t.Errorf("gap pending = %v, want [1]", gap.Pending)
	}
	if gap.Written != 0 || gap.Reserved != 2 {
		t.Errorf("gap written/reserved = %d/%d, want 0/2", gap.Written, gap.Reserved)
	}
	if _, err := os.Stat(OffsetsPath(path)); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("offsets sidecar written after failed close (stat error %v)", err)
	}
}

func TestCloseWithQueuedDataFails(t *testing.T) {
	// One reservation, completed with the wrong index: the completion
	// sits in the reorder buffer forever.
	file, path := createSlabFile(t, CompressionNone)
	_, submit, err := file.Reserve()
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	submit <- SlabData{Index: 1, Data: []byte("early")}

	err = file.Close()
	var gap *GapError
	if !errors.As(err, &gap) {
		t.Fatalf("Close error = %v, want *GapError", err)
	}
	if gap.Written != 0 || gap.Reserved != 1 {
		t.Errorf("gap written/reserved = %d/%d, want 0/1", gap.Written, gap.Reserved)
	}
	if !slices.Equal(gap.Pending, []uint32{1}) {
		t.Errorf("gap pending = %v, want [1]", gap.Pending)
	}

	if _, err := os.Stat(OffsetsPath(path)); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("offsets sidecar written after failed close (stat error %v)", err)
	}
}

func TestCloseWithAbandonedReservationFails(t *testing.T) {
	file, _ := createSlabFile(t, CompressionNone)
	_, abandoned, err := file.Reserve()
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	index, later, err := file.Reserve()
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	later <- SlabData{Index: index, Data: []byte("later")}
	close(abandoned)

	err = file.Close()
	var gap *GapError
	if !errors.As(err, &gap) {
		t.Fatalf("Close error = %v, want *GapError", err)
	}
	if !slices.Equal(gap.Abandoned, []uint32{0}) {
		t.Errorf("gap abandoned = %v, want [0]", gap.Abandoned)
	}
	if gap.Written != 0 || gap.Reserved != 2 {
		t.Errorf("gap written/reserved = %d/%d, want 0/2", gap.Written, gap.Reserved)
	}
}

func TestWriteReadOnlyFileFailsAtOpen(t *testing.T) {
	testutil.SkipIfRoot(t)

	file, path := createSlabFile(t, CompressionNone)
	if err := file.WriteSlab([]byte("data")); err != nil {
		t.Fatalf("WriteSlab: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := os.Chmod(path, 0o444); err != nil {
		t.Fatalf("Chmod: %v", err)
	}

	if _, err := Open(path, Options{Write: true}); !errors.Is(err, fs.ErrPermission) {
		t.Fatalf("Open for write on read-only file: error = %v, want fs.ErrPermission", err)
	}

	reader, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("read-only Open: %v", err)
	}
	defer reader.Close()
	if err := reader.WriteSlab([]byte("more")); !errors.Is(err, ErrReadOnly) {
		t.Errorf("WriteSlab on read-only handle: error = %v, want ErrReadOnly", err)
	}
}

func TestAppendAfterReopen(t *testing.T) {
	file, path := createSlabFile(t, CompressionZstd)
	for i := range 3 {
		if err := file.WriteSlab(slabContent(i)); err != nil {
			t.Fatalf("WriteSlab: %v", err)
		}
	}
	if err := file.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	appender, err := Open(path, Options{Write: true})
	if err != nil {
		t.Fatalf("Open for write: %v", err)
	}
	index, submit, err := appender.Reserve()
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if index != 3 {
		t.Fatalf("first reservation after reopen = %d, want 3", index)
	}
	submit <- SlabData{Index: index, Data: slabContent(3)}
	if err := appender.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reader, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()
	if reader.NumSlabs() != 4 {
		t.Fatalf("NumSlabs = %d, want 4", reader.NumSlabs())
	}
	data, err := reader.Read(3)
	if err != nil {
		t.Fatalf("Read(3): %v", err)
	}
	if !bytes.Equal(data, slabContent(3)) {
		t.Error("appended slab content mismatch")
	}
}

func TestOpenDetectsMissingAndStaleOffsets(t *testing.T) {
	file, path := createSlabFile(t, CompressionNone)
	for i := range 3 {
		if err := file.WriteSlab(slabContent(i)); err != nil {
			t.Fatalf("WriteSlab: %v", err)
		}
	}
	if err := file.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	stale := NewOffsets(file.Offsets().Slice()[:2])
	if err := stale.WriteFile(OffsetsPath(path)); err != nil {
		t.Fatalf("writing stale offsets: %v", err)
	}
	if _, err := Open(path, Options{}); !errors.Is(err, ErrOffsetsStale) {
		t.Errorf("Open with truncated offsets: error = %v, want ErrOffsetsStale", err)
	}

	if err := os.Remove(OffsetsPath(path)); err != nil {
		t.Fatalf("removing offsets: %v", err)
	}
	_, err := Open(path, Options{})
	if !errors.Is(err, ErrOffsetsMissing) {
		t.Errorf("Open without offsets: error = %v, want ErrOffsetsMissing", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open without offsets: error = %v, want it to wrap fs.ErrNotExist", err)
	}
}

func TestReadDetectsCorruption(t *testing.T) {
	file, path := createSlabFile(t, CompressionNone)
	if err := file.WriteSlab(slabContent(0)); err != nil {
		t.Fatalf("WriteSlab: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	raw[HeaderSize+frameHeaderSize+5] ^= 0x01
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	reader, err := Open(path, Options{CacheEntries: 1})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()

	var checksum *ChecksumError
	if _, err := reader.Read(0); !errors.As(err, &checksum) {
		t.Fatalf("Read of corrupted slab: error = %v, want *ChecksumError", err)
	}
	if checksum.Index != 0 || checksum.Offset != HeaderSize {
		t.Errorf("ChecksumError index/offset = %d/%d, want 0/%d", checksum.Index, checksum.Offset, HeaderSize)
	}

	data, valid, err := reader.ReadRaw(0)
	if err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	if valid {
		t.Error("ReadRaw reported a valid checksum for a corrupted slab")
	}
	if len(data) != len(slabContent(0)) {
		t.Errorf("ReadRaw returned %d bytes, want %d", len(data), len(slabContent(0)))
	}
}

func TestReadOutOfRange(t *testing.T) {
	file, _ := createSlabFile(t, CompressionNone)
	defer file.Close()

	var indexError *IndexError
	if _, err := file.Read(0); !errors.As(err, &indexError) {
		t.Fatalf("Read(0) on empty file: error = %v, want *IndexError", err)
	}
}

func TestCreateRefusesExistingFile(t *testing.T) {
	file, path := createSlabFile(t, CompressionNone)
	if err := file.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := Create(path, Options{}); !errors.Is(err, fs.ErrExist) {
		t.Errorf("Create over existing file: error = %v, want fs.ErrExist", err)
	}
}
