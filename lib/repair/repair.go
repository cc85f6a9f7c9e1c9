// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package repair recovers an archive's derived indices after a crash
// or partial write: the offsets sidecars of its slab files, and
// optionally the whole hash-index file, which is rebuilt from the data
// slabs.
//
// Repair never patches a file in place. Offsets sidecars are replaced
// atomically; a rebuilt hash-index file is written beside the old one
// and renamed over it only once complete.
package repair

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mingnus/blk-archive/lib/archive"
	"github.com/mingnus/blk-archive/lib/hash"
	"github.com/mingnus/blk-archive/lib/hashindex"
	"github.com/mingnus/blk-archive/lib/slab"
)

// Options configures Repair.
type Options struct {
	// RebuildHashes regenerates the hash-index file from the data file
	// instead of only rebuilding its offsets.
	RebuildHashes bool

	// Logger receives progress. Nil discards.
	Logger *slog.Logger
}

// Repair rebuilds the offsets sidecars of the data, hashes and index
// files of the archive at root. Stream files are not touched.
func Repair(root string, options Options) error {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := repairOffsets(logger, "data", archive.DataPath(root)); err != nil {
		return err
	}
	if options.RebuildHashes {
		if err := RebuildHashesIndex(root, logger); err != nil {
			return err
		}
	} else if err := repairOffsets(logger, "hashes", archive.HashesPath(root)); err != nil {
		return err
	}
	return repairOffsets(logger, "index", archive.CatalogPath(root))
}

func repairOffsets(logger *slog.Logger, role, path string) error {
	offsets, err := slab.RepairOffsets(path)
	if err != nil {
		return fmt.Errorf("rebuilding %s offsets: %w", role, err)
	}
	logger.Info("offsets rebuilt", "file", role, "path", path, "slabs", offsets.Len())
	return nil
}

// RebuildHashesIndex regenerates the hash-index file of the archive at
// root from its data slabs: each slab's record length table gives the
// record ranges, and each record is rehashed. The data file's offsets
// must be valid.
func RebuildHashesIndex(root string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	hashesPath := archive.HashesPath(root)
	temporary := filepath.Join(filepath.Dir(hashesPath), "."+filepath.Base(hashesPath)+".rebuild")
	if err := slab.Remove(temporary); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing stale rebuild file: %w", err)
	}

	dataFile, err := slab.Open(archive.DataPath(root), slab.Options{})
	if err != nil {
		return fmt.Errorf("opening data file: %w", err)
	}
	defer dataFile.Close()

	rebuilt, err := slab.Create(temporary, slab.Options{Compression: slab.CompressionNone})
	if err != nil {
		return fmt.Errorf("creating hashes file: %w", err)
	}

	var records uint64
	for s := uint32(0); s < dataFile.NumSlabs(); s++ {
		payload, err := hashSlab(dataFile, s)
		if err == nil {
			err = rebuilt.WriteSlab(payload)
		}
		if err != nil {
			rebuilt.Close()
			slab.Remove(temporary)
			return err
		}
		records += uint64((len(payload) - 8) / hashindex.EntrySize)
	}
	if err := rebuilt.Close(); err != nil {
		slab.Remove(temporary)
		return fmt.Errorf("closing rebuilt hashes file: %w", err)
	}

	// A crash between the two renames leaves the sidecar and file
	// mismatched; running Repair again fixes it.
	if err := os.Rename(slab.OffsetsPath(temporary), slab.OffsetsPath(hashesPath)); err != nil {
		return fmt.Errorf("installing rebuilt hashes offsets: %w", err)
	}
	if err := os.Rename(temporary, hashesPath); err != nil {
		return fmt.Errorf("installing rebuilt hashes file: %w", err)
	}
	logger.Info("hash index rebuilt", "archive", root, "slabs", dataFile.NumSlabs(), "records", records)
	return nil
}

// hashSlab derives the hash-index slab payload for data slab s.
func hashSlab(dataFile *slab.File, s uint32) ([]byte, error) {
	data, err := dataFile.ReadUncached(s)
	if err != nil {
		return nil, fmt.Errorf("reading data slab %d: %w", s, err)
	}
	ranges, err := archive.ParseDataSlab(data)
	if err != nil {
		return nil, fmt.Errorf("data slab %d: %w", s, err)
	}

	var builder hashindex.Builder
	for _, r := range ranges {
		builder.Add(r.Begin, r.End, hash.HashBytes(data[r.Begin:r.End]))
	}
	return builder.Encode(), nil
}
