// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/mingnus/blk-archive/lib/config"
	"github.com/mingnus/blk-archive/lib/slab"
)

// Create initializes an empty archive at root with configuration cfg.
// root may exist but must be empty. A fresh archive ID is assigned when
// cfg has none; the stored configuration is returned.
func Create(root string, cfg *config.Config) (*config.Config, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("archive config: %w", err)
	}

	if err := ensureEmptyDir(root); err != nil {
		return nil, err
	}

	for _, directory := range []string{
		filepath.Dir(DataPath(root)),
		filepath.Dir(CatalogPath(root)),
		StreamsDir(root),
	} {
		if err := os.MkdirAll(directory, 0o755); err != nil {
			return nil, fmt.Errorf("creating archive directory: %w", err)
		}
	}

	files := []struct {
		role        string
		path        string
		compression slab.Compression
	}{
		{"data", DataPath(root), cfg.DataCodec()},
		{"hashes", HashesPath(root), slab.CompressionNone},
		{"index", CatalogPath(root), slab.CompressionNone},
	}
	for _, file := range files {
		if err := createEmptySlabFile(file.path, file.compression); err != nil {
			return nil, fmt.Errorf("creating %s file: %w", file.role, err)
		}
	}

	stored := *cfg
	if stored.ArchiveID == "" {
		stored.ArchiveID = uuid.NewString()
	}
	if err := stored.Write(root); err != nil {
		return nil, err
	}
	return &stored, nil
}

func ensureEmptyDir(root string) error {
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return fmt.Errorf("creating archive directory: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading archive directory: %w", err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("archive directory %s is not empty", root)
	}
	return nil
}

// createEmptySlabFile creates a slab file with no slabs and its
// sidecar.
func createEmptySlabFile(path string, compression slab.Compression) error {
	file, err := slab.Create(path, slab.Options{Compression: compression})
	if err != nil {
		return err
	}
	return file.Close()
}

// CreateStream creates the directory and empty mapping slab file of a
// new stream, returning the file open for writing. It fails if the
// stream already exists.
func CreateStream(root, id string, compression slab.Compression) (*slab.File, error) {
	if err := os.Mkdir(StreamDir(root, id), 0o755); err != nil {
		return nil, fmt.Errorf("creating stream directory: %w", err)
	}
	file, err := slab.Create(StreamPath(root, id), slab.Options{Compression: compression})
	if err != nil {
		return nil, fmt.Errorf("creating stream file: %w", err)
	}
	return file, nil
}

// NewStreamID returns a random stream identifier: 16 hex digits, the
// form used for stream directory names.
func NewStreamID() string {
	id := uuid.New()
	return fmt.Sprintf("%x", id[:8])
}

// ListStreams returns the IDs of the streams stored under root, in
// directory order.
func ListStreams(root string) ([]string, error) {
	entries, err := os.ReadDir(StreamsDir(root))
	if err != nil {
		return nil, fmt.Errorf("listing streams: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	return ids, nil
}

// ReadStreamConfig loads the metadata of stream id.
func ReadStreamConfig(root, id string) (*config.StreamConfig, error) {
	return config.ReadStreamConfig(StreamConfigPath(root, id))
}

// WriteStreamConfig replaces the metadata of stream id.
func WriteStreamConfig(root, id string, cfg *config.StreamConfig) error {
	return config.WriteStreamConfig(StreamConfigPath(root, id), cfg)
}
