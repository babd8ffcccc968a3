// Copyright 2025 Certen Protocol

package mesh

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/OffSec-Global/offsec-shield/pkg/eventbus"
	"github.com/OffSec-Global/offsec-shield/pkg/merkle"
)

func signEnvelope(t *testing.T, priv ed25519.PrivateKey, nodeID, kind string, payload interface{}) *Envelope {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	digest, err := digestPayload(body)
	if err != nil {
		t.Fatalf("digest payload: %v", err)
	}
	sig := ed25519.Sign(priv, digest)
	return &Envelope{
		NodeID:    nodeID,
		Timestamp: "2026-01-01T00:00:00Z",
		Kind:      kind,
		Payload:   body,
		Signature: base64.StdEncoding.EncodeToString(sig),
	}
}

func buildValidProofBundle(t *testing.T) (ProofBundlePayload, string) {
	t.Helper()
	f := merkle.New()
	leafA := merkle.HashBytes([]byte("a"))
	leafB := merkle.HashBytes([]byte("b"))
	f.Append(leafA)
	root, path, err := f.Append(leafB)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	wirePath := make([]PathStepWire, len(path))
	for i, step := range path {
		wirePath[i] = PathStepWire{Sibling: step.Sibling, Position: string(step.Position)}
	}
	return ProofBundlePayload{Leaf: leafB, Path: wirePath, Root: root, ReceiptID: "offsec-" + leafB}, leafB
}

func TestVerifyEnvelopeAcceptsKnownPeer(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	bundle, _ := buildValidProofBundle(t)
	env := signEnvelope(t, priv, "peer-1", KindProofBundle, bundle)

	v := NewVerifier([]Peer{{NodeID: "peer-1", VerifyingKey: pub}}, t.TempDir(), eventbus.New(), nil)
	if err := v.VerifyEnvelope(env, KindProofBundle); err != nil {
		t.Fatalf("expected valid envelope, got %v", err)
	}
}

func TestVerifyEnvelopeRejectsUnknownPeer(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	bundle, _ := buildValidProofBundle(t)
	env := signEnvelope(t, priv, "ghost", KindProofBundle, bundle)

	v := NewVerifier(nil, t.TempDir(), eventbus.New(), nil)
	err := v.VerifyEnvelope(env, KindProofBundle)
	if _, ok := err.(*UnknownPeerError); !ok {
		t.Fatalf("expected UnknownPeerError, got %v", err)
	}
}

func TestVerifyEnvelopeRejectsWrongKind(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	bundle, _ := buildValidProofBundle(t)
	env := signEnvelope(t, priv, "peer-1", KindProofBundle, bundle)

	v := NewVerifier([]Peer{{NodeID: "peer-1", VerifyingKey: pub}}, t.TempDir(), eventbus.New(), nil)
	err := v.VerifyEnvelope(env, KindRootAnnounce)
	if _, ok := err.(*WrongKindError); !ok {
		t.Fatalf("expected WrongKindError, got %v", err)
	}
}

func TestVerifyEnvelopeRejectsBadSignature(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	_ = priv
	bundle, _ := buildValidProofBundle(t)
	_, otherPriv, _ := ed25519.GenerateKey(nil)
	env := signEnvelope(t, otherPriv, "peer-1", KindProofBundle, bundle)

	v := NewVerifier([]Peer{{NodeID: "peer-1", VerifyingKey: pub}}, t.TempDir(), eventbus.New(), nil)
	err := v.VerifyEnvelope(env, KindProofBundle)
	if _, ok := err.(*BadSignatureError); !ok {
		t.Fatalf("expected BadSignatureError, got %v", err)
	}
}

func TestHandleProofBundlePersistsAndAccepts(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	bundle, leaf := buildValidProofBundle(t)
	env := signEnvelope(t, priv, "peer-1", KindProofBundle, bundle)

	dataDir := t.TempDir()
	bus := eventbus.New()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	v := NewVerifier([]Peer{{NodeID: "peer-1", VerifyingKey: pub}}, dataDir, bus, nil)
	if err := v.VerifyEnvelope(env, KindProofBundle); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := v.HandleProofBundle(env); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if msg := <-ch; msg == "" {
		t.Error("expected mesh.proof_received event")
	}
	if _, err := os.Stat(filepath.Join(dataDir, "mesh", "proofs", "peer-1", "offsec-"+leaf+".json")); err != nil {
		t.Errorf("expected persisted proof bundle: %v", err)
	}
}

func TestHandleProofBundleRejectsTamperedLeaf(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	bundle, originalLeaf := buildValidProofBundle(t)
	flipped := byte('0')
	if originalLeaf[len(originalLeaf)-1] == '0' {
		flipped = '1'
	}
	bundle.Leaf = originalLeaf[:len(originalLeaf)-1] + string(flipped)
	env := signEnvelope(t, priv, "peer-1", KindProofBundle, bundle)

	v := NewVerifier([]Peer{{NodeID: "peer-1", VerifyingKey: pub}}, t.TempDir(), eventbus.New(), nil)
	if err := v.VerifyEnvelope(env, KindProofBundle); err != nil {
		t.Fatalf("verify: %v", err)
	}
	err := v.HandleProofBundle(env)
	if _, ok := err.(*InvalidPayloadError); !ok {
		t.Fatalf("expected InvalidPayloadError for tampered leaf, got %v", err)
	}
}

func TestHandleRootAnnounceRejectsAnchorMismatch(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	payload := RootAnnouncePayload{
		Root:   merkle.HashBytes([]byte("root")),
		Ts:     "2026-01-01T00:00:00Z",
		Anchor: &AnchorRef{Root: merkle.HashBytes([]byte("different"))},
	}
	env := signEnvelope(t, priv, "peer-1", KindRootAnnounce, payload)

	v := NewVerifier([]Peer{{NodeID: "peer-1", VerifyingKey: pub}}, t.TempDir(), eventbus.New(), nil)
	if err := v.VerifyEnvelope(env, KindRootAnnounce); err != nil {
		t.Fatalf("verify: %v", err)
	}
	err := v.HandleRootAnnounce(env)
	if _, ok := err.(*InvalidPayloadError); !ok {
		t.Fatalf("expected InvalidPayloadError for anchor mismatch, got %v", err)
	}
}

func TestHandleRootAnnounceAcceptsConsistentAnchor(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	root := merkle.HashBytes([]byte("root"))
	payload := RootAnnouncePayload{Root: root, Ts: "2026-01-01T00:00:00Z", Anchor: &AnchorRef{Root: root}}
	env := signEnvelope(t, priv, "peer-1", KindRootAnnounce, payload)

	v := NewVerifier([]Peer{{NodeID: "peer-1", VerifyingKey: pub}}, t.TempDir(), eventbus.New(), nil)
	if err := v.VerifyEnvelope(env, KindRootAnnounce); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := v.HandleRootAnnounce(env); err != nil {
		t.Fatalf("expected accepted root announce, got %v", err)
	}
}

func TestCanonicalizeIsStableUnderKeyReordering(t *testing.T) {
	a := json.RawMessage(`{"b":2,"a":1,"c":{"z":9,"y":8}}`)
	b := json.RawMessage(`{"a":1,"c":{"y":8,"z":9},"b":2}`)

	da, err := digestPayload(a)
	if err != nil {
		t.Fatalf("digest a: %v", err)
	}
	db, err := digestPayload(b)
	if err != nil {
		t.Fatalf("digest b: %v", err)
	}
	if string(da) != string(db) {
		t.Error("canonical digest must be stable under key reordering")
	}
}
