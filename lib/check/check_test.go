// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package check

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/mingnus/blk-archive/lib/archive"
	"github.com/mingnus/blk-archive/lib/config"
	"github.com/mingnus/blk-archive/lib/hashindex"
	"github.com/mingnus/blk-archive/lib/slab"
	"github.com/mingnus/blk-archive/lib/testutil"
	"github.com/mingnus/blk-archive/lib/testutil/archivetest"
)

// packedArchive returns an uncompressed archive whose data spans
// several slabs.
func packedArchive(t *testing.T) string {
	t.Helper()
	root := archivetest.New(t, nil)
	archivetest.Pack(t, root, testutil.Bytes(1, 64*4096), archivetest.PackOptions{SlabSizeTarget: 32 * 1024})
	archivetest.Pack(t, root, testutil.Bytes(2, 16*4096), archivetest.PackOptions{SlabSizeTarget: 32 * 1024})
	return root
}

func TestCheckCleanArchive(t *testing.T) {
	root := packedArchive(t)
	for _, workers := range []int{1, 3, 8, 100} {
		result, err := Check(context.Background(), root, Options{Workers: workers})
		if err != nil {
			t.Fatalf("Check with %d workers: %v", workers, err)
		}
		if result.Records != 80 {
			t.Errorf("Check with %d workers verified %d records, want 80", workers, result.Records)
		}
		if result.Slabs < 10 {
			t.Errorf("archive has %d slabs, want at least 10", result.Slabs)
		}
	}
}

func TestCheckEmptyArchive(t *testing.T) {
	root := archivetest.New(t, nil)
	result, err := Check(context.Background(), root, Options{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if result.Slabs != 0 || result.Records != 0 {
		t.Errorf("empty archive result = %+v", result)
	}
}

// corruptRecord flips one byte inside record of data slab s.
func corruptRecord(t *testing.T, root string, s uint32, record int) {
	t.Helper()
	data, err := slab.Open(archive.DataPath(root), slab.Options{})
	if err != nil {
		t.Fatalf("Open data: %v", err)
	}
	frame := data.Offsets().At(int(s))
	data.Close()

	hashes, err := slab.Open(archive.HashesPath(root), slab.Options{})
	if err != nil {
		t.Fatalf("Open hashes: %v", err)
	}
	payload, err := hashes.Read(s)
	hashes.Close()
	if err != nil {
		t.Fatalf("Read hashes: %v", err)
	}
	index, err := hashindex.New(payload)
	if err != nil {
		t.Fatalf("hashindex.New: %v", err)
	}
	entry := index.Get(record)

	file, err := os.OpenFile(archive.DataPath(root), os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer file.Close()
	position := int64(frame) + 16 + int64(entry.Begin) + int64(entry.Len()/2)
	var b [1]byte
	if _, err := file.ReadAt(b[:], position); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	b[0] ^= 0x40
	if _, err := file.WriteAt(b[:], position); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
}

func TestCheckLocatesCorruptRecord(t *testing.T) {
	root := packedArchive(t)
	corruptRecord(t, root, 5, 2)

	for _, workers := range []int{1, 4} {
		_, err := Check(context.Background(), root, Options{Workers: workers})
		var integrity *IntegrityError
		if !errors.As(err, &integrity) {
			t.Fatalf("Check with %d workers: error = %v, want *IntegrityError", workers, err)
		}
		if integrity.Slab != 5 || integrity.Record != 2 {
			t.Errorf("Check with %d workers reported slab %d index %d, want slab 5 index 2",
				workers, integrity.Slab, integrity.Record)
		}
	}
}

func TestCheckReportsFrameChecksum(t *testing.T) {
	// Corrupting the record length table leaves every record intact,
	// so only the frame checksum catches it.
	root := packedArchive(t)
	data, err := slab.Open(archive.DataPath(root), slab.Options{})
	if err != nil {
		t.Fatalf("Open data: %v", err)
	}
	frame := data.Offsets().At(1)
	data.Close()

	file, err := os.OpenFile(archive.DataPath(root), os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := file.WriteAt([]byte{0xee}, int64(frame)+16+9); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	file.Close()

	_, err = Check(context.Background(), root, Options{Workers: 2})
	var checksum *slab.ChecksumError
	if !errors.As(err, &checksum) {
		t.Fatalf("Check error = %v, want *slab.ChecksumError", err)
	}
	if checksum.Index != 1 {
		t.Errorf("checksum failure reported for slab %d, want 1", checksum.Index)
	}
}

func TestCheckCompressedFrameDamageIsSlabLevel(t *testing.T) {
	// Inside a compressed frame, a flipped byte cannot be mapped to a
	// record, so it is reported against the slab.
	cfg := config.Default()
	cfg.DataCompression = "zstd"
	root := archivetest.New(t, cfg)
	archivetest.Pack(t, root, testutil.Bytes(3, 64*4096), archivetest.PackOptions{SlabSizeTarget: 32 * 1024})

	data, err := slab.Open(archive.DataPath(root), slab.Options{})
	if err != nil {
		t.Fatalf("Open data: %v", err)
	}
	if data.NumSlabs() < 4 {
		t.Fatalf("archive has %d data slabs, want at least 4", data.NumSlabs())
	}
	offsets := data.Offsets()
	position := int64(offsets.At(2)+offsets.At(3)) / 2
	data.Close()

	file, err := os.OpenFile(archive.DataPath(root), os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	var b [1]byte
	if _, err := file.ReadAt(b[:], position); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	b[0] ^= 0x40
	if _, err := file.WriteAt(b[:], position); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	file.Close()

	for _, workers := range []int{1, 4} {
		_, err := Check(context.Background(), root, Options{Workers: workers})
		var integrity *IntegrityError
		if errors.As(err, &integrity) {
			t.Fatalf("Check with %d workers: got record-level %v, want slab-level checksum failure", workers, err)
		}
		var checksum *slab.ChecksumError
		if !errors.As(err, &checksum) {
			t.Fatalf("Check with %d workers: error = %v, want *slab.ChecksumError", workers, err)
		}
		if checksum.Index != 2 {
			t.Errorf("Check with %d workers: checksum failure reported for slab %d, want 2", workers, checksum.Index)
		}
	}
}

func TestCheckDetectsCountMismatch(t *testing.T) {
	root := packedArchive(t)
	hashes, err := slab.Open(archive.HashesPath(root), slab.Options{Write: true})
	if err != nil {
		t.Fatalf("Open hashes: %v", err)
	}
	if err := hashes.WriteSlab(hashindex.Encode(nil)); err != nil {
		t.Fatalf("WriteSlab: %v", err)
	}
	if err := hashes.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var mismatch *archive.CountMismatchError
	if _, err := Check(context.Background(), root, Options{}); !errors.As(err, &mismatch) {
		t.Fatalf("Check error = %v, want *archive.CountMismatchError", err)
	}
	if mismatch.HashSlabs != mismatch.DataSlabs+1 {
		t.Errorf("mismatch = %+v", mismatch)
	}
}

func TestCheckHonorsCancellation(t *testing.T) {
	root := packedArchive(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Check(ctx, root, Options{Workers: 2}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Check with cancelled context: error = %v, want context.Canceled", err)
	}
}

func TestPartition(t *testing.T) {
	tests := []struct {
		count   uint32
		workers int
		want    []slabRange
	}{
		{0, 4, nil},
		{10, 1, []slabRange{{0, 10}}},
		{10, 3, []slabRange{{0, 3}, {3, 6}, {6, 10}}},
		{2, 8, []slabRange{{0, 1}, {1, 2}}},
	}
	for _, test := range tests {
		got := partition(test.count, test.workers)
		if len(got) != len(test.want) {
			t.Errorf("partition(%d, %d) = %v, want %v", test.count, test.workers, got, test.want)
			continue
		}
		for i := range got {
			if got[i] != test.want[i] {
				t.Errorf("partition(%d, %d) = %v, want %v", test.count, test.workers, got, test.want)
				break
			}
		}
	}
}
