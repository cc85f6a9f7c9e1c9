// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hash

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Size is the length of a Hash in bytes.
const Size = 32

// Hash is a 32-byte BLAKE3 digest.
type Hash [Size]byte

// domainKey is a 32-byte key for BLAKE3 keyed hashing. The byte values
// are the ASCII domain name, zero-padded. Changing a key invalidates
// every hash in that domain.
type domainKey [32]byte

var (
	recordDomainKey = domainKey{
		'b', 'l', 'k', '-', 'a', 'r', 'c', 'h', 'i', 'v', 'e', '.',
		'r', 'e', 'c', 'o', 'r', 'd', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	slabDomainKey = domainKey{
		'b', 'l', 'k', '-', 'a', 'r', 'c', 'h', 'i', 'v', 'e', '.',
		's', 'l', 'a', 'b', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// HashRecord computes the record-domain hash of the concatenation of
// iov. The buffers are fed to the hasher in order without copying.
func HashRecord(iov [][]byte) Hash {
	hasher := newKeyed(recordDomainKey)
	for _, buffer := range iov {
		hasher.Write(buffer)
	}
	var result Hash
	copy(result[:], hasher.Sum(nil))
	return result
}

// HashBytes is HashRecord for a single contiguous buffer.
func HashBytes(data []byte) Hash {
	return HashRecord([][]byte{data})
}

// SlabChecksum returns the frame checksum of an on-disk slab payload:
// the first 8 bytes of the slab-domain digest, little-endian.
func SlabChecksum(payload []byte) uint64 {
	hasher := newKeyed(slabDomainKey)
	hasher.Write(payload)
	var digest [Size]byte
	copy(digest[:], hasher.Sum(nil))
	return binary.LittleEndian.Uint64(digest[:8])
}

// FormatHash returns the hex encoding of a hash, the format used in
// logs and error messages.
func FormatHash(h Hash) string {
	return hex.EncodeToString(h[:])
}

// ParseHash parses a 64-character hex string into a Hash.
func ParseHash(hexString string) (Hash, error) {
	var h Hash
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return h, fmt.Errorf("parsing hash: %w", err)
	}
	if len(decoded) != Size {
		return h, fmt.Errorf("hash is %d bytes, want %d", len(decoded), Size)
	}
	copy(h[:], decoded)
	return h, nil
}

// String implements fmt.Stringer with the short form used in logs.
func (h Hash) String() string {
	return hex.EncodeToString(h[:6])
}

func newKeyed(key domainKey) *blake3.Hasher {
	// NewKeyed only fails for keys that are not 32 bytes, which
	// domainKey rules out.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("hash: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return hasher
}
