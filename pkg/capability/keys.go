// Copyright 2025 Certen Protocol
//
// Key material loading for both capability flavors. PEM parsing uses
// stdlib crypto/x509: no ecosystem PEM-to-Ed25519 loader appears anywhere
// in the example corpus, so stdlib is the grounded choice (see
// SPEC_FULL.md §4.1).

package capability

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
)

// ParseEd25519PublicKeyPEM decodes a PEM block (as produced by
// x509.MarshalPKIXPublicKey) into an Ed25519 public key.
func ParseEd25519PublicKeyPEM(pemData string) (ed25519.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("capability: no PEM block found")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("capability: parse PKIX public key: %w", err)
	}
	key, ok := pub.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("capability: PEM does not contain an Ed25519 public key")
	}
	return key, nil
}

// TrustedIssuers maps issuer identifier to a 32-byte Ed25519 verifying key.
type TrustedIssuers map[string]ed25519.PublicKey

// LoadTrustedIssuers reads trusted_issuers.json from dataDir. Absence of
// the file is not an error: the map is simply empty, so every envelope
// capability then fails as "unknown issuer" (spec.md §4.1).
func LoadTrustedIssuers(dataDir string) (TrustedIssuers, error) {
	path := filepath.Join(dataDir, "trusted_issuers.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return TrustedIssuers{}, nil
		}
		return nil, fmt.Errorf("capability: read trusted_issuers.json: %w", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("capability: parse trusted_issuers.json: %w", err)
	}

	issuers := make(TrustedIssuers, len(raw))
	for id, keyHex := range raw {
		keyBytes, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("capability: issuer %s: invalid hex key: %w", id, err)
		}
		if len(keyBytes) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("capability: issuer %s: key must be 32 bytes, got %d", id, len(keyBytes))
		}
		issuers[id] = ed25519.PublicKey(keyBytes)
	}
	return issuers, nil
}
