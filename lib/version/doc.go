// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for blk-archive.
//
// Four package-level variables are injected at build time via
// -ldflags -X, for example:
//
//	go build -ldflags "-X github.com/mingnus/blk-archive/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// When they are not injected, [Current] falls back to the VCS settings
// recorded in the binary's build info, so plain "go build" and
// "go install" binaries still report their commit.
package version
