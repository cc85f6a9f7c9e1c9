// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/renameio"
	"gopkg.in/yaml.v3"
)

// StreamFile is the name of a stream's metadata file within its
// directory.
const StreamFile = "config.yaml"

// StreamConfig is the metadata recorded for each packed stream.
type StreamConfig struct {
	// Name is an optional human label.
	Name string `yaml:"name,omitempty"`

	// SourcePath is the device or file the stream was packed from.
	SourcePath string `yaml:"source_path"`

	// PackTime is when the stream was written into this archive.
	PackTime time.Time `yaml:"pack_time"`

	// Size is the logical stream length in bytes.
	Size uint64 `yaml:"size"`

	// MappedSize counts bytes backed by content-store records.
	MappedSize uint64 `yaml:"mapped_size"`

	// PackedSize is the number of new bytes the stream contributed to
	// the data file.
	PackedSize uint64 `yaml:"packed_size"`

	// FillSize counts bytes described by fill runs.
	FillSize uint64 `yaml:"fill_size"`
}

// ReadStreamConfig loads a stream metadata file.
func ReadStreamConfig(path string) (*StreamConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading stream config: %w", err)
	}
	var cfg StreamConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing stream config %s: %w", path, err)
	}
	return &cfg, nil
}

// WriteStreamConfig atomically replaces a stream metadata file.
func WriteStreamConfig(path string, cfg *StreamConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding stream config: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing stream config %s: %w", path, err)
	}
	return nil
}
