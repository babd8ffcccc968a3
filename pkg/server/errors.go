// Copyright 2025 Certen Protocol
//
// Response helpers and the error-tag taxonomy. writeJSON/writeError are
// grounded on the teacher's now-removed pkg/server/proof_handlers.go
// idiom of the same name; the taxonomy itself is spec.md §7's table.

package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/OffSec-Global/offsec-shield/pkg/capability"
	"github.com/OffSec-Global/offsec-shield/pkg/mesh"
)

type errorBody struct {
	Error   string  `json:"error"`
	Details *string `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, tag string, details string) {
	var d *string
	if details != "" {
		d = &details
	}
	writeJSON(w, status, errorBody{Error: tag, Details: d})
}

// writeTaggedError maps a domain error to its HTTP status and taxonomy
// tag per spec.md §7. Receipt persistence failures (merkle.Store.Append's
// "receipt_write_failed:" errors) map to 500/receipt_write_failed;
// anything else unrecognized falls back to 500/internal_error.
func writeTaggedError(log *zap.Logger, w http.ResponseWriter, err error) {
	switch e := err.(type) {
	case *capability.MissingError:
		writeError(w, http.StatusUnauthorized, "missing_capability_token", e.Error())
	case *capability.InvalidError:
		writeError(w, http.StatusUnauthorized, "invalid_capability_token", e.Error())
	case *capability.NotAllowedError:
		writeError(w, http.StatusForbidden, "action_not_allowed", e.Error())
	case *mesh.UnknownPeerError:
		writeError(w, http.StatusForbidden, "unknown mesh peer", e.Error())
	case *mesh.BadSignatureError:
		writeError(w, http.StatusForbidden, "mesh signature verification failed", e.Error())
	case *mesh.WrongKindError:
		writeError(w, http.StatusBadRequest, "invalid mesh kind", e.Error())
	case *mesh.InvalidPayloadError:
		status := http.StatusBadRequest
		writeError(w, status, e.Reason, "")
	default:
		if strings.HasPrefix(err.Error(), "receipt_write_failed") {
			writeError(w, http.StatusInternalServerError, "receipt_write_failed", err.Error())
			return
		}
		log.Error("unhandled internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
