// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config reads and writes the archive's YAML metadata.
//
// Each archive has exactly one configuration file, dm-archive.yaml in
// its root, and each stream one config.yaml in its directory. There
// are no fallbacks, no search path and no environment overrides: the
// file an archive carries is the configuration it has. Tools that take
// a --config flag ([LoadFile]) use it only to configure an archive they
// are about to create.
//
// Loading starts from [Default] and merges the file over it, so a file
// naming only some fields is valid. Writes go through a temporary file
// and rename, so readers never see a half-written file.
//
// Key exports:
//
//   - [Config] -- block size, codecs and cache budgets
//   - [StreamConfig] -- per-stream metadata
//   - [CacheEntries] -- converts a MiB budget into slab-cache entries
package config
