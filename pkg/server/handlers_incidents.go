// Copyright 2025 Certen Protocol

package server

import (
	"net/http"
	"strings"
	"time"
)

// handleInfraEvent promotes an infrastructure event into the incident
// ledger. Requires an envelope capability covering scope
// "infrastructure:write" (spec.md §6).
func (s *Server) handleInfraEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}

	env, ok := s.requireEnvelopeScope(w, r, "infrastructure:write")
	if !ok {
		return
	}

	event, _, err := readJSONBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed_event", err.Error())
		return
	}

	incidentID, receiptID, err := s.Ledger.HandleEvent(env.IssuedBy, event, time.Now())
	if err != nil {
		writeTaggedError(s.Log, w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"incident_id": incidentID, "receipt_id": receiptID})
}

// handleIncidentGet fetches an incident chain by id.
func (s *Server) handleIncidentGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}

	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/offsec/incidents/"), "/")
	if id == "" {
		writeError(w, http.StatusNotFound, "not_found", "")
		return
	}

	chain := s.Ledger.GetIncident(id)
	if chain == nil {
		writeError(w, http.StatusNotFound, "not_found", "")
		return
	}

	writeJSON(w, http.StatusOK, chain)
}
