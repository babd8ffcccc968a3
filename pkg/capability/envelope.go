// Copyright 2025 Certen Protocol
//
// Envelope-flavor capability verification. Grounded on the same
// attestation-over-canonical-bytes idiom the teacher's now-removed
// pkg/anchor_proof/signer.go used for validator attestations, adapted to
// spec.md §4.1's exact canonical unsigned view and trusted-issuer map.

package capability

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Envelope is the on-wire envelope-style capability. Field order matches
// the canonical unsigned view spec.md §4.1 requires byte-for-byte:
// {sub, scopes, constraints, issued_by, exp}. encoding/json marshals
// struct fields in declaration order, so canonicalBytes() below copies
// these fields (minus Signature) into unsignedView, which declares them
// in the same order, to reproduce the signer's exact layout.
type Envelope struct {
	Subject     string          `json:"sub"`
	Scopes      []string        `json:"scopes"`
	Constraints json.RawMessage `json:"constraints,omitempty"`
	IssuedBy    string          `json:"issued_by"`
	Expiry      int64           `json:"exp"`
	Signature   string          `json:"sig"`
}

// unsignedView is the same five fields, in the same declared order, with
// Signature dropped — this is exactly what the issuer signs.
type unsignedView struct {
	Subject     string          `json:"sub"`
	Scopes      []string        `json:"scopes"`
	Constraints json.RawMessage `json:"constraints,omitempty"`
	IssuedBy    string          `json:"issued_by"`
	Expiry      int64           `json:"exp"`
}

func (e *Envelope) canonicalBytes() ([]byte, error) {
	return json.Marshal(unsignedView{
		Subject:     e.Subject,
		Scopes:      e.Scopes,
		Constraints: e.Constraints,
		IssuedBy:    e.IssuedBy,
		Expiry:      e.Expiry,
	})
}

// VerifyEnvelope decodes, validates, and scope-checks a base64-encoded
// envelope capability. issuers is the map loaded by LoadTrustedIssuers.
func VerifyEnvelope(b64Token string, requiredScope string, issuers TrustedIssuers) (*Envelope, error) {
	raw, err := base64.StdEncoding.DecodeString(b64Token)
	if err != nil {
		return nil, &InvalidError{Reason: "malformed base64 envelope"}
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &InvalidError{Reason: "malformed envelope JSON"}
	}

	key, ok := issuers[env.IssuedBy]
	if !ok {
		return nil, &InvalidError{Reason: fmt.Sprintf("unknown issuer %q", env.IssuedBy)}
	}

	if env.Expiry <= time.Now().Unix() {
		return nil, &InvalidError{Reason: "envelope expired"}
	}

	sig, err := hex.DecodeString(env.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return nil, &InvalidError{Reason: "malformed signature"}
	}

	body, err := env.canonicalBytes()
	if err != nil {
		return nil, &InvalidError{Reason: "cannot reconstruct canonical view"}
	}

	if !ed25519.Verify(key, body, sig) {
		return nil, &InvalidError{Reason: "signature verification failed"}
	}

	if !scopeCovers(env.Scopes, requiredScope) {
		return nil, &NotAllowedError{Action: requiredScope}
	}

	return &env, nil
}

// scopeCovers reports whether scopes satisfies required, either via a
// literal match or a "prefix:*" wildcard (spec.md §4.1).
func scopeCovers(scopes []string, required string) bool {
	prefix, _, found := strings.Cut(required, ":")
	wildcard := prefix + ":*"
	for _, s := range scopes {
		if s == required || (found && s == wildcard) {
			return true
		}
	}
	return false
}
