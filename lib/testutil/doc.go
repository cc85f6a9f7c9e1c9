// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for blk-archive
// packages.
//
// [RequireReceive], [RequireSend], and [RequireClosed] wrap a select
// with a time.After fallback so a test that would deadlock fails with a
// message instead of hanging until the package timeout. They are the
// only place tests use real wall-clock timeouts.
//
// [Bytes] produces deterministic pseudo-random content, and
// [SkipIfRoot] guards tests that depend on permission bits.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// Archive-level fixtures live in the archivetest subpackage.
package testutil
