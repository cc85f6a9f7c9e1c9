// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package archivetest builds small archives for tests: create an
// archive, pack byte content into streams, and read streams back.
package archivetest

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/mingnus/blk-archive/lib/archive"
	"github.com/mingnus/blk-archive/lib/config"
	"github.com/mingnus/blk-archive/lib/hash"
	"github.com/mingnus/blk-archive/lib/stream"
)

// PackTime is the pack time recorded for every stream packed here.
var PackTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// New creates an archive under t.TempDir with cfg, or the default
// configuration with uncompressed data when cfg is nil, and returns
// its root.
func New(t *testing.T, cfg *config.Config) string {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
		cfg.DataCompression = "none"
	}
	root := filepath.Join(t.TempDir(), "archive")
	if _, err := archive.Create(root, cfg); err != nil {
		t.Fatalf("creating archive: %v", err)
	}
	return root
}

// PackOptions configures Pack.
type PackOptions struct {
	// SlabSizeTarget is the data slab target. Zero uses the archive
	// default.
	SlabSizeTarget int

	// LookbackSlabs limits deduplication against earlier streams. Zero
	// deduplicates against the whole store.
	LookbackSlabs int
}

// Pack stores content as a new stream, one record per block of the
// archive's block size. Blocks of a single repeated byte become fills.
// It returns the stream ID.
func Pack(t *testing.T, root string, content []byte, options PackOptions) string {
	t.Helper()
	cfg, err := config.Read(root)
	if err != nil {
		t.Fatalf("reading archive config: %v", err)
	}

	data, err := archive.OpenData(root, archive.DataOptions{
		Write:          true,
		SlabSizeTarget: options.SlabSizeTarget,
		LookbackSlabs:  options.LookbackSlabs,
	})
	if err != nil {
		t.Fatalf("opening content store: %v", err)
	}

	var entries []entryWithLength
	for position := 0; position < len(content); position += int(cfg.BlockSize) {
		block := content[position:min(position+int(cfg.BlockSize), len(content))]
		if isUniform(block) {
			entries = append(entries, entryWithLength{stream.Fill{Byte: block[0], Len: uint64(len(block))}, uint64(len(block))})
			continue
		}
		location, _, err := data.Add(hash.HashBytes(block), [][]byte{block}, uint64(len(block)))
		if err != nil {
			t.Fatalf("adding block at %d: %v", position, err)
		}
		entries = append(entries, entryWithLength{
			stream.Data{Slab: location.Slab, Offset: location.Offset, NrEntries: 1},
			uint64(len(block)),
		})
	}
	if err := data.Close(); err != nil {
		t.Fatalf("closing content store: %v", err)
	}
	return writeStream(t, root, cfg, entries)
}

// PackEntries stores entries verbatim as a new stream, each with its
// given logical length, and returns the stream ID. Use it to build
// streams holding entries Pack never produces.
func PackEntries(t *testing.T, root string, entries []stream.MapEntry, lengths []uint64) string {
	t.Helper()
	cfg, err := config.Read(root)
	if err != nil {
		t.Fatalf("reading archive config: %v", err)
	}
	withLengths := make([]entryWithLength, len(entries))
	for i := range entries {
		withLengths[i] = entryWithLength{entries[i], lengths[i]}
	}
	return writeStream(t, root, cfg, withLengths)
}

type entryWithLength struct {
	entry  stream.MapEntry
	length uint64
}

func writeStream(t *testing.T, root string, cfg *config.Config, entries []entryWithLength) string {
	t.Helper()
	id := archive.NewStreamID()
	file, err := archive.CreateStream(root, id, cfg.StreamCodec())
	if err != nil {
		t.Fatalf("creating stream: %v", err)
	}
	writer := stream.NewWriter(file, archive.SlabSizeTarget)
	for _, e := range entries {
		if err := writer.Add(e.entry, e.length); err != nil {
			t.Fatalf("adding %v: %v", e.entry, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("closing stream: %v", err)
	}

	stats := writer.Stats()
	streamConfig := &config.StreamConfig{
		SourcePath: "/dev/test/" + id,
		PackTime:   PackTime,
		Size:       stats.Size,
		MappedSize: stats.MappedSize,
		FillSize:   stats.FillSize,
	}
	if err := archive.WriteStreamConfig(root, id, streamConfig); err != nil {
		t.Fatalf("writing stream config: %v", err)
	}
	if err := archive.AppendCatalog(root, archive.CatalogEntry{
		StreamID:    id,
		PackTime:    PackTime,
		Entries:     stats.Entries,
		DataRecords: stats.DataRecords,
	}); err != nil {
		t.Fatalf("appending catalog entry: %v", err)
	}
	return id
}

// Content resolves stream id of the archive at root to its logical
// bytes.
func Content(t *testing.T, root, id string) []byte {
	t.Helper()
	entries, err := stream.ReadEntries(archive.StreamPath(root, id))
	if err != nil {
		t.Fatalf("reading stream %s: %v", id, err)
	}
	data, err := archive.OpenData(root, archive.DataOptions{})
	if err != nil {
		t.Fatalf("opening content store: %v", err)
	}
	defer data.Close()

	var output bytes.Buffer
	if _, err := stream.Resolve(entries, data, &output); err != nil {
		t.Fatalf("resolving stream %s: %v", id, err)
	}
	return output.Bytes()
}

func isUniform(block []byte) bool {
	for _, b := range block[1:] {
		if b != block[0] {
			return false
		}
	}
	return true
}
