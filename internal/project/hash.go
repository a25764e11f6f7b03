package project

import (
	"crypto/sha256"
)

// Digest is a fixed 256-bit hash (compatible with source.File.Hash).
type Digest [32]byte

// HashBytes digests a byte slice.
func HashBytes(b []byte) Digest {
	return sha256.Sum256(b)
}

// Combine builds an aggregate hash: H( content || dep1 || dep2 ... ).
// Callers must pass deps in a deterministic order.
func Combine(content Digest, deps ...Digest) Digest {
	h := sha256.New()
	_, _ = h.Write(content[:])
	for _, d := range deps {
		_, _ = h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}
