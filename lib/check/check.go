// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package check verifies an archive's content store: every record of
// every data slab is rehashed and compared with its hash-index entry.
//
// Slabs are split into contiguous ranges, one per worker. Each worker
// opens its own handles on the data and hashes files with caching
// disabled, so a stale cache entry cannot hide corruption on disk and
// workers never contend on a shared handle. The first failure cancels
// the remaining workers; Check reports it after all have stopped.
package check

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/mingnus/blk-archive/lib/archive"
	"github.com/mingnus/blk-archive/lib/clock"
	"github.com/mingnus/blk-archive/lib/hash"
	"github.com/mingnus/blk-archive/lib/hashindex"
	"github.com/mingnus/blk-archive/lib/slab"
)

// ErrTooManySlabs is returned for slab files whose slab count does not
// fit the 32-bit slab index.
var ErrTooManySlabs = errors.New("too many slabs")

// IntegrityError reports a record whose content does not match its
// hash-index entry.
type IntegrityError struct {
	Slab   uint32
	Record int

	// Reason is empty for a hash mismatch, otherwise it describes the
	// structural problem found.
	Reason string
}

func (e *IntegrityError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("slab %d index %d: %s", e.Slab, e.Record, e.Reason)
	}
	return fmt.Sprintf("unexpected hash at slab %d index %d", e.Slab, e.Record)
}

// Options configures Check.
type Options struct {
	// Workers is the number of slab ranges verified concurrently.
	// Zero means runtime.NumCPU.
	Workers int

	// Logger receives progress. Nil discards.
	Logger *slog.Logger

	// Clock times the check for the final log line. Nil uses the real
	// clock.
	Clock clock.Clock
}

// Result summarizes a successful check.
type Result struct {
	Slabs   uint32
	Records uint64
}

// Check verifies the content store of the archive at root.
func Check(ctx context.Context, root string, options Options) (*Result, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timer := options.Clock
	if timer == nil {
		timer = clock.Real()
	}

	count, err := slabCount(root)
	if err != nil {
		return nil, err
	}

	workers := options.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	ranges := partition(count, workers)
	logger.Info("checking archive", "archive", root, "slabs", count, "workers", len(ranges))
	start := timer.Now()

	records := make([]uint64, len(ranges))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, r := range ranges {
		group.Go(func() error {
			n, err := checkRange(groupCtx, root, r)
			records[i] = n
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	result := &Result{Slabs: count}
	for _, n := range records {
		result.Records += n
	}
	logger.Info("archive check passed",
		"archive", root,
		"slabs", result.Slabs,
		"records", result.Records,
		"duration", clock.Since(timer, start),
	)
	return result, nil
}

// slabCount returns the number of data slabs after checking that the
// hashes file pairs with the data file and that the count is
// addressable.
func slabCount(root string) (uint32, error) {
	dataFile, err := slab.Open(archive.DataPath(root), slab.Options{})
	if err != nil {
		return 0, fmt.Errorf("opening data file: %w", err)
	}
	defer dataFile.Close()
	hashesFile, err := slab.Open(archive.HashesPath(root), slab.Options{})
	if err != nil {
		return 0, fmt.Errorf("opening hashes file: %w", err)
	}
	defer hashesFile.Close()

	dataSlabs, hashSlabs := dataFile.Len(), hashesFile.Len()
	if uint64(dataSlabs) > math.MaxUint32 || uint64(hashSlabs) > math.MaxUint32 {
		return 0, fmt.Errorf("%s: %w (%d data slabs, %d hash slabs)", root, ErrTooManySlabs, dataSlabs, hashSlabs)
	}
	if dataSlabs != hashSlabs {
		return 0, &archive.CountMismatchError{Archive: root, DataSlabs: uint32(dataSlabs), HashSlabs: uint32(hashSlabs)}
	}
	return uint32(dataSlabs), nil
}

type slabRange struct {
	begin, end uint32
}

// partition splits [0, count) into at most workers contiguous ranges.
// The last range absorbs the remainder.
func partition(count uint32, workers int) []slabRange {
	if count == 0 {
		return nil
	}
	if uint64(workers) > uint64(count) {
		workers = int(count)
	}
	size := count / uint32(workers)
	ranges := make([]slabRange, workers)
	for i := range ranges {
		ranges[i] = slabRange{begin: uint32(i) * size, end: uint32(i+1) * size}
	}
	ranges[len(ranges)-1].end = count
	return ranges
}

func checkRange(ctx context.Context, root string, r slabRange) (uint64, error) {
	dataFile, err := slab.Open(archive.DataPath(root), slab.Options{})
	if err != nil {
		return 0, fmt.Errorf("opening data file: %w", err)
	}
	defer dataFile.Close()
	hashesFile, err := slab.Open(archive.HashesPath(root), slab.Options{})
	if err != nil {
		return 0, fmt.Errorf("opening hashes file: %w", err)
	}
	defer hashesFile.Close()

	var records uint64
	for s := r.begin; s < r.end; s++ {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		n, err := checkSlab(dataFile, hashesFile, s)
		records += uint64(n)
		if err != nil {
			return records, err
		}
	}
	return records, nil
}

// checkSlab rehashes every record of data slab s. A frame checksum
// failure is reported only when every record still matches, so
// corruption inside a record is attributed to that record.
func checkSlab(dataFile, hashesFile *slab.File, s uint32) (int, error) {
	payload, err := hashesFile.ReadUncached(s)
	if err != nil {
		return 0, fmt.Errorf("reading hashes slab %d: %w", s, err)
	}
	index, err := hashindex.New(payload)
	if err != nil {
		return 0, fmt.Errorf("hashes slab %d: %w", s, err)
	}

	data, checksumValid, err := dataFile.ReadRaw(s)
	if err != nil {
		return 0, fmt.Errorf("reading data slab %d: %w", s, err)
	}

	for i := 0; i < index.Len(); i++ {
		entry := index.Get(i)
		if entry.Begin > entry.End || uint64(entry.End) > uint64(len(data)) {
			return i, &IntegrityError{Slab: s, Record: i,
				Reason: fmt.Sprintf("range [%d, %d) outside the %d byte slab", entry.Begin, entry.End, len(data))}
		}
		if hash.HashBytes(data[entry.Begin:entry.End]) != entry.Hash {
			return i, &IntegrityError{Slab: s, Record: i}
		}
	}
	if !checksumValid {
		return index.Len(), &slab.ChecksumError{Path: dataFile.Path(), Index: s, Offset: int64(dataFile.Offsets().At(int(s)))}
	}
	return index.Len(), nil
}
