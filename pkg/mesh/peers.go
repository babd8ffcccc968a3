// Copyright 2025 Certen Protocol
//
// Peer configuration loading. spec.md §9 leaves the on-disk shape of the
// peer set unspecified beyond "loaded at startup, read-only after config
// load" — this mirrors capability.LoadTrustedIssuers's file-under-
// data-dir convention for the analogous issuer map (see DESIGN.md).

package mesh

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type peerConfigEntry struct {
	URL string `json:"url"`
	Key string `json:"key_b64"`
}

// LoadPeers reads peers.json from dataDir: an object mapping node id to
// {url, key_b64}. Absence of the file is not an error — an empty peer
// set means every mesh envelope is rejected as unknown.
func LoadPeers(dataDir string) ([]Peer, error) {
	path := filepath.Join(dataDir, "peers.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("mesh: read peers.json: %w", err)
	}

	var raw map[string]peerConfigEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("mesh: parse peers.json: %w", err)
	}

	peers := make([]Peer, 0, len(raw))
	for nodeID, entry := range raw {
		key, err := base64.StdEncoding.DecodeString(entry.Key)
		if err != nil {
			return nil, fmt.Errorf("mesh: peer %s: invalid base64 key: %w", nodeID, err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("mesh: peer %s: verifying key must decode to 32 bytes, got %d", nodeID, len(key))
		}
		peers = append(peers, Peer{NodeID: nodeID, URL: entry.URL, VerifyingKey: key})
	}
	return peers, nil
}
