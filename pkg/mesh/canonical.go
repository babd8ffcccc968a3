// Copyright 2025 Certen Protocol
//
// Canonical JSON + BLAKE3 digesting for mesh signatures. encoding/json
// already serializes map[string]interface{} with lexicographically
// sorted keys, so round-tripping through interface{} gives recursive key
// sorting for free without a hand-rolled canonicalizer.

package mesh

import (
	"encoding/json"

	"lukechampine.com/blake3"
)

// canonicalize decodes raw into a generic tree and re-encodes it compactly
// with every object's keys in sorted order at every nesting level.
func canonicalize(raw json.RawMessage) ([]byte, error) {
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// digestPayload returns the raw 32-byte BLAKE3 digest of the
// canonicalized payload — this is what the envelope signature is
// computed and verified over (spec.md §6).
func digestPayload(raw json.RawMessage) ([]byte, error) {
	canon, err := canonicalize(raw)
	if err != nil {
		return nil, err
	}
	sum := blake3.Sum256(canon)
	return sum[:], nil
}
