// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"path/filepath"

	"github.com/mingnus/blk-archive/lib/config"
)

// DataPath returns the data slab file of the archive at root.
func DataPath(root string) string {
	return filepath.Join(root, "data", "data")
}

// HashesPath returns the hash-index slab file.
func HashesPath(root string) string {
	return filepath.Join(root, "data", "hashes")
}

// CatalogPath returns the stream catalog slab file.
func CatalogPath(root string) string {
	return filepath.Join(root, "indexes", "seen")
}

// StreamsDir returns the directory holding one subdirectory per
// stream.
func StreamsDir(root string) string {
	return filepath.Join(root, "streams")
}

// StreamDir returns the directory of stream id.
func StreamDir(root, id string) string {
	return filepath.Join(StreamsDir(root), id)
}

// StreamPath returns the mapping slab file of stream id.
func StreamPath(root, id string) string {
	return filepath.Join(StreamDir(root, id), "stream")
}

// StreamConfigPath returns the metadata file of stream id.
func StreamConfigPath(root, id string) string {
	return filepath.Join(StreamDir(root, id), config.StreamFile)
}
