// Copyright 2025 Certen Protocol
//
// Peer envelope verification and payload handling. Grounded on the
// register/verify idiom of the teacher's now-removed
// pkg/anchor_proof/signer.go (AttestationSigner/AttestationVerifier,
// RegisterValidator map), adapted to spec.md §4.3's two payload kinds
// and on-disk layout.

package mesh

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/OffSec-Global/offsec-shield/pkg/eventbus"
	"github.com/OffSec-Global/offsec-shield/pkg/merkle"
)

// UnknownPeerError is returned when node_id names no configured peer.
type UnknownPeerError struct{ NodeID string }

func (e *UnknownPeerError) Error() string { return fmt.Sprintf("unknown mesh peer: %s", e.NodeID) }

// BadSignatureError is returned when an envelope's signature fails
// verification under the named peer's key.
type BadSignatureError struct{}

func (e *BadSignatureError) Error() string { return "mesh signature verification failed" }

// WrongKindError is returned when an envelope's kind does not match the
// endpoint it was submitted to.
type WrongKindError struct{ Kind string }

func (e *WrongKindError) Error() string { return fmt.Sprintf("invalid mesh kind: %s", e.Kind) }

// InvalidPayloadError wraps a malformed-payload or failed-reconstruction
// cause.
type InvalidPayloadError struct{ Reason string }

func (e *InvalidPayloadError) Error() string { return e.Reason }

// Verifier validates inbound mesh envelopes and persists accepted
// proof bundles and root announcements.
type Verifier struct {
	peers   map[string]Peer
	dataDir string
	bus     *eventbus.Bus
	log     *zap.Logger
}

// NewVerifier builds a Verifier from a configured peer set.
func NewVerifier(peers []Peer, dataDir string, bus *eventbus.Bus, log *zap.Logger) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	m := make(map[string]Peer, len(peers))
	for _, p := range peers {
		m[p.NodeID] = p
	}
	return &Verifier{peers: m, dataDir: dataDir, bus: bus, log: log}
}

// VerifyEnvelope checks an envelope's peer identity and signature, and
// enforces that its kind matches expectedKind.
func (v *Verifier) VerifyEnvelope(env *Envelope, expectedKind string) error {
	peer, ok := v.peers[env.NodeID]
	if !ok {
		return &UnknownPeerError{NodeID: env.NodeID}
	}
	if env.Kind != expectedKind {
		return &WrongKindError{Kind: env.Kind}
	}

	sig, err := base64.StdEncoding.DecodeString(env.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return &BadSignatureError{}
	}

	digest, err := digestPayload(env.Payload)
	if err != nil {
		return &InvalidPayloadError{Reason: "cannot canonicalize payload"}
	}

	if !ed25519.Verify(ed25519.PublicKey(peer.VerifyingKey), digest, sig) {
		return &BadSignatureError{}
	}
	return nil
}

// HandleProofBundle validates and persists a proof_bundle envelope
// already checked by VerifyEnvelope.
func (v *Verifier) HandleProofBundle(env *Envelope) error {
	var p ProofBundlePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return &InvalidPayloadError{Reason: "malformed proof_bundle payload"}
	}
	if !isHexLower(p.Leaf) || !isHexLower(p.Root) {
		return &InvalidPayloadError{Reason: "leaf/root must be nonempty lowercase hex"}
	}

	path := make([]merkle.PathStep, 0, len(p.Path))
	for _, step := range p.Path {
		if !isHexLower(step.Sibling) {
			return &InvalidPayloadError{Reason: "path sibling must be hex"}
		}
		var side merkle.Side
		switch step.Position {
		case "left":
			side = merkle.SideLeft
		case "right":
			side = merkle.SideRight
		default:
			return &InvalidPayloadError{Reason: `path position must be "left" or "right"`}
		}
		path = append(path, merkle.PathStep{Sibling: step.Sibling, Position: side})
	}

	if !merkle.Verify(p.Leaf, path, p.Root) {
		return &InvalidPayloadError{Reason: "merkle proof verification failed"}
	}

	name := p.ReceiptID
	if name == "" {
		name = fmt.Sprintf("remote-%s-%s", env.NodeID, p.Leaf)
	}
	dir := filepath.Join(v.dataDir, "mesh", "proofs", env.NodeID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mesh: create proof dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".json"), env.Payload, 0o644); err != nil {
		return fmt.Errorf("mesh: write proof: %w", err)
	}

	v.bus.Publish(eventJSON("mesh.proof_received", env.NodeID, env.Payload))
	return nil
}

// HandleRootAnnounce validates and persists a root_announce envelope
// already checked by VerifyEnvelope.
func (v *Verifier) HandleRootAnnounce(env *Envelope) error {
	var p RootAnnouncePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return &InvalidPayloadError{Reason: "malformed root_announce payload"}
	}
	if !isHexLower(p.Root) {
		return &InvalidPayloadError{Reason: "root must be hex"}
	}
	if p.Anchor != nil && p.Anchor.Root != "" && p.Anchor.Root != p.Root {
		return &InvalidPayloadError{Reason: "anchor.root does not match root"}
	}

	safeTs := strings.ReplaceAll(p.Ts, ":", "_")
	dir := filepath.Join(v.dataDir, "mesh", "roots", env.NodeID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mesh: create roots dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, safeTs+".json"), env.Payload, 0o644); err != nil {
		return fmt.Errorf("mesh: write root announce: %w", err)
	}

	v.bus.Publish(eventJSON("mesh.root_announce", env.NodeID, env.Payload))
	return nil
}

func eventJSON(kind, nodeID string, payload json.RawMessage) string {
	body, err := json.Marshal(struct {
		Kind    string          `json:"kind"`
		NodeID  string          `json:"node_id"`
		Payload json.RawMessage `json:"payload"`
	}{Kind: kind, NodeID: nodeID, Payload: payload})
	if err != nil {
		return fmt.Sprintf(`{"kind":%q,"node_id":%q}`, kind, nodeID)
	}
	return string(body)
}

func isHexLower(s string) bool {
	if s == "" {
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
