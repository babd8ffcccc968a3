// Copyright 2025 Certen Protocol
//
// Inbound capability enforcement shared by every JWT-gated handler.

package server

import (
	"encoding/json"
	"net/http"

	"github.com/OffSec-Global/offsec-shield/pkg/capability"
)

// requireJWT extracts and verifies a bearer JWT capability, ensures it
// covers action, and on any failure publishes a capability_denied event
// and writes the appropriate error response. Returns the claims and true
// on success.
func (s *Server) requireJWT(w http.ResponseWriter, r *http.Request, action string) (*capability.Claims, bool) {
	token, err := capability.ExtractBearer(r.Header.Get("Authorization"))
	if err != nil {
		s.denyAndRespond(w, action, err)
		return nil, false
	}

	claims, err := capability.VerifyJWT(token, s.JWTConfig)
	if err != nil {
		s.denyAndRespond(w, action, err)
		return nil, false
	}

	if err := capability.EnsureAction(claims, action); err != nil {
		s.denyAndRespond(w, action, err)
		return nil, false
	}

	return claims, true
}

// requireEnvelopeScope extracts a bearer envelope capability and checks
// it covers requiredScope.
func (s *Server) requireEnvelopeScope(w http.ResponseWriter, r *http.Request, requiredScope string) (*capability.Envelope, bool) {
	token, err := capability.ExtractBearer(r.Header.Get("Authorization"))
	if err != nil {
		s.denyAndRespond(w, requiredScope, err)
		return nil, false
	}

	env, err := capability.VerifyEnvelope(token, requiredScope, s.Issuers)
	if err != nil {
		s.denyAndRespond(w, requiredScope, err)
		return nil, false
	}
	return env, true
}

func (s *Server) denyAndRespond(w http.ResponseWriter, action string, err error) {
	denial := capability.NewDenialEvent(action, err.Error(), s.nowRFC3339())
	if body, marshalErr := json.Marshal(denial); marshalErr == nil {
		s.Bus.Publish(string(body))
	}
	writeTaggedError(s.Log, w, err)
}
