// Copyright 2025 Certen Protocol
//
// Hashing primitives for the Merkle frontier.
//
// The frontier is normatively pinned to BLAKE3, and children are combined
// as the ASCII concatenation of their hex digests rather than raw bytes.
// This is a deliberate interop contract with the mesh wire format and the
// standalone proof-verify tool: both reconstruct roots by concatenating
// hex strings, not raw 32-byte buffers.

package merkle

import (
	"encoding/hex"
	"strings"

	"lukechampine.com/blake3"
)

// EmptyRoot is the sentinel root of a frontier with zero leaves: 64 "0" chars.
var EmptyRoot = strings.Repeat("0", 64)

// HashBytes returns the lowercase hex BLAKE3 digest of data.
func HashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// combine computes the parent node hash for two hex-encoded child hashes by
// hashing the ASCII concatenation of the two hex strings (not their raw
// decoded bytes). This is normative: do not "optimize" to raw-byte concat.
func combine(leftHex, rightHex string) string {
	buf := make([]byte, 0, len(leftHex)+len(rightHex))
	buf = append(buf, leftHex...)
	buf = append(buf, rightHex...)
	return HashBytes(buf)
}

// isHex32 reports whether s is exactly 64 lowercase hex characters.
func isHex32(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}
