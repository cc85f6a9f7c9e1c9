// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package migrate transcodes an archive into a new one, possibly with
// a different configuration.
//
// Deduplication is re-established against the clean destination store
// rather than copied: every record a source stream references is read
// back, rehashed and added to the destination, so identical records
// from different streams, or from different source slabs, merge.
// Fill and Unmapped entries pass through unchanged. Stream metadata is
// copied with its pack time set to the migration time.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mingnus/blk-archive/lib/archive"
	"github.com/mingnus/blk-archive/lib/clock"
	"github.com/mingnus/blk-archive/lib/config"
	"github.com/mingnus/blk-archive/lib/hash"
	"github.com/mingnus/blk-archive/lib/slab"
	"github.com/mingnus/blk-archive/lib/stream"
)

var (
	// ErrUnexpectedRef is returned for a Ref entry in a source stream.
	// References between streams are never expected in packed
	// archives.
	ErrUnexpectedRef = errors.New("unexpected ref entry")

	// ErrPartialUnsupported is returned for a Partial entry in a source
	// stream: sub-range references cannot be migrated yet.
	ErrPartialUnsupported = errors.New("partial entries cannot be migrated")
)

// sourceHashCacheEntries sizes the parsed hash-index cache of the
// source store.
const sourceHashCacheEntries = 128

// writeQueueDepth is the reservation depth of the destination data and
// hashes files.
const writeQueueDepth = 128

// Options configures Migrate.
type Options struct {
	// Config is the destination configuration. Nil copies the source
	// configuration. The archive ID is always freshly assigned.
	Config *config.Config

	// Clock stamps migrated streams. Nil uses the real clock.
	Clock clock.Clock

	// Logger receives progress. Nil discards.
	Logger *slog.Logger
}

// Result summarizes a migration.
type Result struct {
	ArchiveID string
	Streams   int

	// Records is the number of record references migrated;
	// NewRecords the number of records the destination stored.
	Records    uint64
	NewRecords uint64
}

type migration struct {
	sourceRoot string
	destRoot   string
	config     *config.Config
	clock      clock.Clock
	logger     *slog.Logger

	source *archive.Data
	dest   *archive.Data
	result Result
}

// Migrate copies every stream of the archive at sourceRoot into a new
// archive created at destRoot. On failure the destination is left
// incomplete and should be discarded.
func Migrate(ctx context.Context, sourceRoot, destRoot string, options Options) (*Result, error) {
	sourceConfig, err := config.Read(sourceRoot)
	if err != nil {
		return nil, fmt.Errorf("reading source archive config: %w", err)
	}
	destConfig := *sourceConfig
	if options.Config != nil {
		destConfig = *options.Config
	}
	destConfig.ArchiveID = ""

	m := &migration{
		sourceRoot: sourceRoot,
		destRoot:   destRoot,
		clock:      options.Clock,
		logger:     options.Logger,
	}
	if m.clock == nil {
		m.clock = clock.Real()
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}

	ids, err := archive.ListStreams(sourceRoot)
	if err != nil {
		return nil, err
	}
	slices.Sort(ids)

	m.source, err = archive.OpenData(sourceRoot, archive.DataOptions{
		DataCacheEntries: config.CacheEntries(sourceConfig.DataCacheSizeMeg, archive.SlabSizeTarget),
		HashCacheEntries: sourceHashCacheEntries,
		Logger:           m.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening source content store: %w", err)
	}
	defer m.source.Close()

	m.config, err = archive.Create(destRoot, &destConfig)
	if err != nil {
		return nil, fmt.Errorf("creating destination archive: %w", err)
	}
	m.result.ArchiveID = m.config.ArchiveID

	m.dest, err = archive.OpenData(destRoot, archive.DataOptions{
		Write:      true,
		QueueDepth: writeQueueDepth,
		Logger:     m.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening destination content store: %w", err)
	}

	m.logger.Info("migrating archive",
		"source", sourceRoot,
		"destination", destRoot,
		"streams", len(ids),
		"data_compression", m.config.DataCompression,
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			m.dest.Close()
			return nil, err
		}
		if err := m.migrateStream(ctx, id); err != nil {
			m.dest.Close()
			return nil, fmt.Errorf("stream %s: %w", id, err)
		}
		m.result.Streams++
	}
	if err := m.dest.Close(); err != nil {
		return nil, fmt.Errorf("closing destination content store: %w", err)
	}

	m.logger.Info("archive migrated",
		"archive_id", m.result.ArchiveID,
		"streams", m.result.Streams,
		"records", m.result.Records,
		"new_records", m.result.NewRecords,
	)
	return &m.result, nil
}

func (m *migration) migrateStream(ctx context.Context, id string) error {
	sourceFile, err := slab.Open(archive.StreamPath(m.sourceRoot, id), slab.Options{})
	if err != nil {
		return fmt.Errorf("opening source stream file: %w", err)
	}
	defer sourceFile.Close()

	destFile, err := archive.CreateStream(m.destRoot, id, m.config.StreamCodec())
	if err != nil {
		return err
	}
	writer := stream.NewWriter(destFile, archive.SlabSizeTarget)

	for s := uint32(0); s < sourceFile.NumSlabs(); s++ {
		if err := ctx.Err(); err != nil {
			writer.Close()
			return err
		}
		entries, err := stream.ReadSlab(sourceFile, s)
		if err != nil {
			writer.Close()
			return err
		}
		for i, entry := range entries {
			if err := m.migrateEntry(entry, writer); err != nil {
				writer.Close()
				return fmt.Errorf("slab %d entry %d (%v): %w", s, i, entry, err)
			}
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing destination stream file: %w", err)
	}

	streamConfig, err := archive.ReadStreamConfig(m.sourceRoot, id)
	if err != nil {
		return err
	}
	// TODO: recompute PackedSize from the records this stream added to
	// the destination store.
	streamConfig.PackTime = m.clock.Now()
	if err := archive.WriteStreamConfig(m.destRoot, id, streamConfig); err != nil {
		return err
	}

	stats := writer.Stats()
	if err := archive.AppendCatalog(m.destRoot, archive.CatalogEntry{
		StreamID:    id,
		PackTime:    streamConfig.PackTime,
		Entries:     stats.Entries,
		DataRecords: stats.DataRecords,
	}); err != nil {
		return err
	}
	m.logger.Info("stream migrated",
		"stream", id,
		"entries", stats.Entries,
		"records", stats.DataRecords,
		"size", stats.Size,
	)
	return nil
}

func (m *migration) migrateEntry(entry stream.MapEntry, writer *stream.Writer) error {
	switch e := entry.(type) {
	case stream.Fill:
		return writer.Add(e, e.Len)
	case stream.Unmapped:
		return writer.Add(e, e.Len)
	case stream.Data:
		for offset := uint64(e.Offset); offset < uint64(e.Offset)+uint64(e.NrEntries); offset++ {
			if err := m.migrateRecord(e.Slab, uint32(offset), writer); err != nil {
				return err
			}
		}
		return nil
	case stream.Partial:
		return ErrPartialUnsupported
	case stream.Ref:
		return ErrUnexpectedRef
	default:
		return fmt.Errorf("unknown map entry type %T", entry)
	}
}

// migrateRecord copies one source record into the destination store
// and appends the entry that references it.
func (m *migration) migrateRecord(sourceSlab, offset uint32, writer *stream.Writer) error {
	payload, start, end, err := m.source.Get(sourceSlab, offset, 1)
	if err != nil {
		return err
	}
	record := payload[start:end]
	length := uint64(len(record))

	location, isNew, err := m.dest.Add(hash.HashBytes(record), [][]byte{record}, length)
	if err != nil {
		return err
	}
	m.result.Records++
	if isNew {
		m.result.NewRecords++
	}
	return writer.Add(stream.Data{Slab: location.Slab, Offset: location.Offset, NrEntries: 1}, length)
}
