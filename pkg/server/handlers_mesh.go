// Copyright 2025 Certen Protocol

package server

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/OffSec-Global/offsec-shield/pkg/mesh"
)

func decodeEnvelope(r *http.Request) (*mesh.Envelope, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	var env mesh.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// handleMeshProofSubmit accepts a proof_bundle envelope from a peer.
func (s *Server) handleMeshProofSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}

	env, err := decodeEnvelope(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_envelope", err.Error())
		return
	}

	if err := s.Mesh.VerifyEnvelope(env, mesh.KindProofBundle); err != nil {
		writeTaggedError(s.Log, w, err)
		return
	}
	if err := s.Mesh.HandleProofBundle(env); err != nil {
		writeTaggedError(s.Log, w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// handleMeshProofRead reads a persisted peer proof at
// /offsec/mesh/proof/:node/:id.
func (s *Server) handleMeshProofRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/offsec/mesh/proof/")
	parts := strings.SplitN(strings.TrimSuffix(rest, "/"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		writeError(w, http.StatusNotFound, "not_found", "expected /offsec/mesh/proof/:node/:id")
		return
	}
	node, id := parts[0], parts[1]

	path := filepath.Join(s.DataDir, "mesh", "proofs", node, id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleMeshRoot accepts a root_announce envelope from a peer.
func (s *Server) handleMeshRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}

	env, err := decodeEnvelope(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_envelope", err.Error())
		return
	}

	if err := s.Mesh.VerifyEnvelope(env, mesh.KindRootAnnounce); err != nil {
		writeTaggedError(s.Log, w, err)
		return
	}
	if err := s.Mesh.HandleRootAnnounce(env); err != nil {
		writeTaggedError(s.Log, w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}
