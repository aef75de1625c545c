// Package hash computes the canonical content hashes used as the
// cross-reference currency of the provenance chain. Every derived
// artifact in the system is identified by the sha256 digest of its
// bytes, prefixed "sha256:" so hashes are self-describing on disk and
// in logs.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

// Prefix is prepended to every hex digest this package produces.
const Prefix = "sha256:"

// Bytes returns the canonical sha256 hash of b.
func Bytes(b []byte) string {
	sum := sha256.Sum256(b)
	return Prefix + hex.EncodeToString(sum[:])
}

// String returns the canonical sha256 hash of s.
func String(s string) string {
	return Bytes([]byte(s))
}

// Concat hashes the concatenation of multiple strings without an
// intermediate allocation of the joined string. Used for the FTS
// content-integrity hash, which is defined over
// "chunk_id:chunk_text_hash" pairs concatenated in id order.
func Concat(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return Prefix + hex.EncodeToString(h.Sum(nil))
}

// Equal reports whether two canonical hash strings represent the same
// digest, tolerating a missing prefix on either side.
func Equal(a, b string) bool {
	return Strip(a) == Strip(b)
}

// Strip removes the "sha256:" prefix if present, returning the bare
// hex digest. Used when comparing against hashes computed before this
// package's prefix convention was in place.
func Strip(h string) string {
	if len(h) > len(Prefix) && h[:len(Prefix)] == Prefix {
		return h[len(Prefix):]
	}
	return h
}
