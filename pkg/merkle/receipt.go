// Copyright 2025 Certen Protocol
//
// Receipt persistence. Adapted from the teacher's pkg/merkle/receipt.go
// (the Start/Anchor/Entries "portable Merkle proof" shape and its
// Validate()-by-walking-the-path idiom) and from the on-disk layout
// conventions in pkg/ledger/store.go. Here a Receipt additionally carries
// the event/identity metadata spec.md's data model requires, and
// Validate() is expressed in terms of merkle.Verify so every consumer of
// an authentication path (mesh verifier, proof-verify CLI, Validate)
// shares one reconstruction routine.

package merkle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Receipt is the immutable record produced by every accepted write.
type Receipt struct {
	ID         string                 `json:"id"`
	EventKind  string                 `json:"event_kind"`
	GuardianID string                 `json:"guardian_id,omitempty"`
	AgentID    string                 `json:"agent_id,omitempty"`
	Tags       []string               `json:"tags,omitempty"`
	Timestamp  string                 `json:"timestamp"`
	CreatedAt  string                 `json:"created_at"`
	Hash       string                 `json:"hash"`
	MerkleRoot string                 `json:"merkle_root"`
	MerklePath []PathStep             `json:"merkle_path"`
	RefID      string                 `json:"ref_id,omitempty"`
	Extra      map[string]interface{} `json:"extra,omitempty"`
}

// Validate reconstructs the root from Hash and MerklePath and confirms it
// equals MerkleRoot (spec.md invariant: reconstruction must equal root).
func (r *Receipt) Validate() error {
	if !Verify(r.Hash, r.MerklePath, r.MerkleRoot) {
		return fmt.Errorf("merkle: receipt %s fails path reconstruction", r.ID)
	}
	return nil
}

// Store owns one Frontier and persists every appended receipt to disk
// under dataDir, mirroring the directory layout spec.md §6 pins:
//
//	receipts/<namespace>/<namespace>-<leafhex>.json
//	ROOT.txt   (namespace "offsec" only)
type Store struct {
	mu        sync.Mutex
	frontier  *Frontier
	dataDir   string
	namespace string
	log       *zap.Logger
}

// NewStore creates a store rooted at dataDir, namespace "offsec", with a
// fresh, empty frontier. The frontier itself is never rebuilt from disk
// (spec.md §3: "not persisted — rebuilt implicitly from whichever leaf
// hashes are presented to it"); only the incident ledger rebuilds state
// from the receipt files this store writes.
func NewStore(dataDir string, log *zap.Logger) *Store {
	return NewNamespacedStore(dataDir, "offsec", log)
}

// NewNamespacedStore creates a store writing receipts under
// receipts/<namespace>/ instead of the default "offsec" namespace. The
// incident ledger uses this to keep infrastructure-event receipts in the
// external collaborator's own directory (spec.md §6) while still sharing
// the frontier/receipt/verify machinery.
func NewNamespacedStore(dataDir, namespace string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		frontier:  New(),
		dataDir:   dataDir,
		namespace: namespace,
		log:       log,
	}
}

// Append serializes payload with the canonical JSON encoder, computes its
// leaf hash, appends it to the frontier, and persists the resulting
// receipt. Extra must not include "prev_id" unless the caller intends to
// thread a hash-chain link (see pkg/incident).
func (s *Store) Append(eventKind, guardianID string, tags []string, payload interface{}, refID string, extra map[string]interface{}, timestamp string) (*Receipt, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("merkle: encode payload: %w", err)
	}
	leaf := HashBytes(body)

	root, path, err := s.frontier.Append(leaf)
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{
		ID:         s.namespace + "-" + leaf,
		EventKind:  eventKind,
		GuardianID: guardianID,
		AgentID:    guardianID,
		Tags:       tags,
		Timestamp:  timestamp,
		CreatedAt:  timestamp,
		Hash:       leaf,
		MerkleRoot: root,
		MerklePath: path,
		RefID:      refID,
		Extra:      extra,
	}

	if err := s.persist(receipt); err != nil {
		s.log.Error("receipt persistence failed",
			zap.String("id", receipt.ID), zap.Error(err))
		return nil, fmt.Errorf("receipt_write_failed: %w", err)
	}

	return receipt, nil
}

// persist writes the receipt file and rewrites ROOT.txt. The in-memory
// frontier has already advanced by the time this runs, so a disk failure
// here is reported to the caller but never rolls back the append: the log
// is append-only by design (spec.md §4.2, §7).
func (s *Store) persist(r *Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.dataDir, "receipts", s.namespace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(dir, r.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}

	if s.namespace != "offsec" {
		return nil
	}
	rootPath := filepath.Join(s.dataDir, "ROOT.txt")
	return os.WriteFile(rootPath, []byte(r.MerkleRoot+"\n"), 0o644)
}

// CurrentRoot returns the frontier's current root.
func (s *Store) CurrentRoot() string {
	return s.frontier.Root()
}

// Frontier exposes the store's underlying frontier. A leaf appended
// through it directly gets no receipt file and no ROOT.txt update.
func (s *Store) Frontier() *Frontier {
	return s.frontier
}

// Get loads a single receipt by id.
func (s *Store) Get(id string) (*Receipt, error) {
	path := filepath.Join(s.dataDir, "receipts", s.namespace, id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// List enumerates persisted receipts, optionally filtered by identity
// (matching either GuardianID or AgentID), sorted descending by the
// lexical Timestamp string (spec.md §4.2: ISO-8601 lexical order is
// intentional and must equal chronological order), truncated to limit.
func (s *Store) List(identity string, limit int) ([]*Receipt, error) {
	dir := filepath.Join(s.dataDir, "receipts", s.namespace)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	receipts := make([]*Receipt, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			s.log.Warn("skipping unreadable receipt", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		var r Receipt
		if err := json.Unmarshal(data, &r); err != nil {
			s.log.Warn("skipping unparseable receipt", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		if identity != "" && r.GuardianID != identity && r.AgentID != identity {
			continue
		}
		receipts = append(receipts, &r)
	}

	sort.Slice(receipts, func(i, j int) bool {
		return receipts[i].Timestamp > receipts[j].Timestamp
	})

	if limit > 0 && len(receipts) > limit {
		receipts = receipts[:limit]
	}
	return receipts, nil
}
