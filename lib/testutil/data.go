// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"math/rand/v2"
	"os"
	"testing"
)

// Bytes returns n pseudo-random bytes determined by seed. Equal seeds
// give equal content, which tests use to build duplicate records.
func Bytes(seed uint64, n int) []byte {
	var key [32]byte
	for i := range 8 {
		key[i] = byte(seed >> (8 * i))
	}
	source := rand.NewChaCha8(key)
	data := make([]byte, n)
	_, _ = source.Read(data)
	return data
}

// SkipIfRoot skips tests that rely on file permission checks, which
// root bypasses.
func SkipIfRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
}
