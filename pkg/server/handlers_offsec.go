// Copyright 2025 Certen Protocol

package server

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/OffSec-Global/offsec-shield/pkg/merkle"
)

// receiptEvent is published to the bus after every accepted
// receipt: WS subscribers observe it immediately after any action_update.
type receiptEvent struct {
	Kind    string          `json:"kind"`
	Receipt *merkle.Receipt `json:"receipt"`
}

func (s *Server) publishReceipt(r *merkle.Receipt) {
	body, err := json.Marshal(receiptEvent{Kind: "receipt", Receipt: r})
	if err != nil {
		return
	}
	s.Bus.Publish(string(body))
}

func (s *Server) publishActionUpdate(payload map[string]interface{}) {
	body, err := json.Marshal(struct {
		Kind    string                 `json:"kind"`
		Payload map[string]interface{} `json:"payload"`
	}{Kind: "action_update", Payload: payload})
	if err != nil {
		return
	}
	s.Bus.Publish(string(body))
}

func readJSONBody(r *http.Request) (map[string]interface{}, []byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, nil, err
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, nil, err
	}
	return decoded, body, nil
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// handleIngest accepts a threat event under a JWT capability covering
// the "ingest" action.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	claims, ok := s.requireJWT(w, r, "ingest")
	if !ok {
		return
	}

	event, _, err := readJSONBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_event", err.Error())
		return
	}

	receipt, err := s.Store.Append("threat_event", claims.Subject, claims.Tags, event, stringField(event, "ref_id"), nil, s.nowRFC3339())
	if err != nil {
		writeTaggedError(s.Log, w, err)
		return
	}

	s.publishReceipt(receipt)
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted", "receipt_id": receipt.ID})
}

// handleAction registers an action decision; the required action string
// is taken from the payload's "action" field.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}

	event, _, err := readJSONBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_event", err.Error())
		return
	}

	action := stringField(event, "action")
	claims, ok := s.requireJWT(w, r, action)
	if !ok {
		return
	}

	receipt, err := s.Store.Append("action_decision", claims.Subject, claims.Tags, event, stringField(event, "id"), nil, s.nowRFC3339())
	if err != nil {
		writeTaggedError(s.Log, w, err)
		return
	}

	s.publishActionUpdate(event)
	s.publishReceipt(receipt)
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// handleActionApply registers an action application, broadcasts it, and
// best-effort forwards it to the enforcement endpoint. The required
// action is payload "action_type".
func (s *Server) handleActionApply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}

	event, raw, err := readJSONBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_event", err.Error())
		return
	}

	action := stringField(event, "action_type")
	claims, ok := s.requireJWT(w, r, action)
	if !ok {
		return
	}

	receipt, err := s.Store.Append("action_apply", claims.Subject, claims.Tags, event, stringField(event, "id"), nil, s.nowRFC3339())
	if err != nil {
		writeTaggedError(s.Log, w, err)
		return
	}

	s.publishActionUpdate(event)
	s.publishReceipt(receipt)
	s.Guardian.Forward(raw)
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// handleActionUpdate is the unauthenticated result callback from the
// enforcement endpoint.
func (s *Server) handleActionUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}

	event, _, err := readJSONBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_event", err.Error())
		return
	}

	receipt, err := s.Store.Append("action_update", "", nil, event, stringField(event, "id"), nil, s.nowRFC3339())
	if err != nil {
		writeTaggedError(s.Log, w, err)
		return
	}

	s.publishReceipt(receipt)
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// handleAnchor records an external anchoring event (unauthenticated).
func (s *Server) handleAnchor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}

	event, raw, err := readJSONBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_event", err.Error())
		return
	}

	if err := os.WriteFile(filepath.Join(s.DataDir, "ANCHOR.json"), raw, 0o644); err != nil {
		s.Log.Error("anchor snapshot write failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "receipt_write_failed", err.Error())
		return
	}

	receipt, err := s.Store.Append("anchor_event", "", nil, event, "", nil, s.nowRFC3339())
	if err != nil {
		writeTaggedError(s.Log, w, err)
		return
	}

	s.publishReceipt(receipt)
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// handleReceipts lists receipts, optionally filtered by guardian_id and
// truncated to limit.
func (s *Server) handleReceipts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}

	guardianID := r.URL.Query().Get("guardian_id")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	receipts, err := s.Store.List(guardianID, limit)
	if err != nil {
		writeTaggedError(s.Log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

// handleRoot returns the current Merkle root.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"root": s.Store.CurrentRoot()})
}

// handleProof returns the proof bundle for one receipt, merging
// ANCHOR.json's contents when present.
func (s *Server) handleProof(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/offsec/proof/")
	id = strings.TrimSuffix(id, "/")
	if id == "" {
		writeError(w, http.StatusNotFound, "not_found", "")
		return
	}

	receipt, err := s.Store.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}

	bundle := map[string]interface{}{
		"leaf":    receipt.Hash,
		"path":    receipt.MerklePath,
		"root":    receipt.MerkleRoot,
		"receipt": receipt,
	}

	if anchorData, err := os.ReadFile(filepath.Join(s.DataDir, "ANCHOR.json")); err == nil {
		var anchor json.RawMessage = anchorData
		bundle["anchor"] = anchor
	}

	writeJSON(w, http.StatusOK, bundle)
}
