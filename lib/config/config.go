// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio"
	"gopkg.in/yaml.v3"

	"github.com/mingnus/blk-archive/lib/slab"
)

// ArchiveFile is the name of the archive configuration file in the
// archive root.
const ArchiveFile = "dm-archive.yaml"

// MiB is the unit of the *_cache_size_meg fields.
const MiB = 1024 * 1024

// Config is the archive configuration stored in dm-archive.yaml.
type Config struct {
	// ArchiveID uniquely identifies the archive. Assigned at creation.
	ArchiveID string `yaml:"archive_id"`

	// BlockSize is the stream block size in bytes. Must be a power of
	// two no smaller than 512.
	BlockSize uint64 `yaml:"block_size"`

	// DataCompression is the codec of the data slab file: none, lz4
	// or zstd.
	DataCompression string `yaml:"data_compression"`

	// StreamCompression is the codec of stream mapping slab files.
	StreamCompression string `yaml:"stream_compression"`

	// HashCacheSizeMeg bounds the hash-index slab cache, in MiB.
	HashCacheSizeMeg uint64 `yaml:"hash_cache_size_meg"`

	// DataCacheSizeMeg bounds the decompressed data slab cache, in
	// MiB.
	DataCacheSizeMeg uint64 `yaml:"data_cache_size_meg"`
}

// Default returns the configuration used as the base before loading a
// file and for archives created without one.
func Default() *Config {
	return &Config{
		BlockSize:         4096,
		DataCompression:   slab.CompressionZstd.String(),
		StreamCompression: slab.CompressionZstd.String(),
		HashCacheSizeMeg:  1024,
		DataCacheSizeMeg:  1024,
	}
}

// LoadFile loads configuration from a specific file path, merging the
// file over Default, and validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Read loads the configuration of the archive rooted at archiveDir.
func Read(archiveDir string) (*Config, error) {
	return LoadFile(filepath.Join(archiveDir, ArchiveFile))
}

// Write atomically replaces the configuration of the archive rooted at
// archiveDir.
func (c *Config) Write(archiveDir string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding archive config: %w", err)
	}
	path := filepath.Join(archiveDir, ArchiveFile)
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.BlockSize < 512 || c.BlockSize&(c.BlockSize-1) != 0 {
		errs = append(errs, fmt.Errorf("block_size must be a power of two >= 512, got %d", c.BlockSize))
	}
	if _, err := slab.ParseCompression(c.DataCompression); err != nil {
		errs = append(errs, fmt.Errorf("data_compression: %w", err))
	}
	if _, err := slab.ParseCompression(c.StreamCompression); err != nil {
		errs = append(errs, fmt.Errorf("stream_compression: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// DataCodec returns the parsed data file compression.
func (c *Config) DataCodec() slab.Compression {
	compression, _ := slab.ParseCompression(c.DataCompression)
	return compression
}

// StreamCodec returns the parsed stream file compression.
func (c *Config) StreamCodec() slab.Compression {
	compression, _ := slab.ParseCompression(c.StreamCompression)
	return compression
}

// CacheEntries converts a cache budget in MiB to a number of slabs of
// slabSize bytes. A zero budget disables the cache; any non-zero budget
// gets at least one entry.
func CacheEntries(meg uint64, slabSize int) int {
	if meg == 0 || slabSize <= 0 {
		return 0
	}
	entries := meg * MiB / uint64(slabSize)
	if entries == 0 {
		return 1
	}
	return int(entries)
}
