// Copyright 2025 Certen Protocol
//
// Mesh wire types. Grounded on the validator-registration/attestation
// shapes in the teacher's now-removed pkg/anchor_proof/signer.go, adapted
// to spec.md §4.3/§6's envelope-and-two-payload-kinds contract.

package mesh

import "encoding/json"

// Peer is a configured mesh counterparty.
type Peer struct {
	NodeID       string `json:"node_id"`
	URL          string `json:"url"`
	VerifyingKey []byte `json:"-"` // decoded from base64, always 32 bytes
}

// Envelope is the signed wire message every mesh call exchanges.
type Envelope struct {
	NodeID    string          `json:"node_id"`
	Timestamp string          `json:"ts"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"sig"` // base64 of a 64-byte Ed25519 signature
}

const (
	KindProofBundle  = "proof_bundle"
	KindRootAnnounce = "root_announce"
)

// ProofBundlePayload is the payload carried by a KindProofBundle envelope.
type ProofBundlePayload struct {
	Leaf       string          `json:"leaf"`
	Path       []PathStepWire  `json:"path"`
	Root       string          `json:"root"`
	Anchor     json.RawMessage `json:"anchor,omitempty"`
	ReceiptID  string          `json:"receiptId,omitempty"`
	EventType  string          `json:"eventType,omitempty"`
	Ts         string          `json:"ts,omitempty"`
	SourceNode string          `json:"source_node,omitempty"`
	Realm      string          `json:"realm,omitempty"`
}

// PathStepWire mirrors merkle.PathStep for wire decoding without an
// import cycle; mesh converts to merkle.PathStep before verification.
type PathStepWire struct {
	Sibling  string `json:"sibling"`
	Position string `json:"position"`
}

// RootAnnouncePayload is the payload carried by a KindRootAnnounce
// envelope.
type RootAnnouncePayload struct {
	Root   string          `json:"root"`
	Ts     string          `json:"ts"`
	Anchor *AnchorRef      `json:"anchor,omitempty"`
	Extra  json.RawMessage `json:"-"`
}

// AnchorRef is the minimal shape of an external anchor snapshot the
// announce payload may reference for consistency checking.
type AnchorRef struct {
	Root string `json:"root"`
}
