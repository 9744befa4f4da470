package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"sync"
)

// hasherPool is a package-level pool of reusable SHA-256 hash instances.
var hasherPool = sync.Pool{
	New: func() any {
		return sha256.New()
	},
}

// Hash computes the SHA-256 digest of data using a hasher pulled from the
// package hasher pool.
//
// Behavior:
//   - Retrieves a hash.Hash instance from sync.Pool
//   - Resets it, writes the data, computes the sum
//   - Resets again and returns it to the pool
//
// Example usage:
//
//	digest := utils.Hash([]byte("BEGIN:VCALENDAR..."))
func Hash(data []byte) []byte {
	h := hasherPool.Get().(hash.Hash)
	h.Reset()

	h.Write(data)
	sum := h.Sum(nil)

	h.Reset()
	hasherPool.Put(h)

	return sum
}

// ContentHash returns the hex-encoded SHA-256 digest of data. It is the
// fingerprint of filesystem items and the fallback identity of items
// without a UID.
//
// Example usage:
//
//	fp := utils.ContentHash(content)
func ContentHash(data []byte) string {
	return hex.EncodeToString(Hash(data))
}
