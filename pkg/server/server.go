// Copyright 2025 Certen Protocol
//
// HTTP/WS server wiring. Grounded on the teacher's main.go router idiom
// (http.NewServeMux + mux.HandleFunc, manual path-prefix parsing for
// path parameters instead of a routing library — the teacher never
// imports one directly despite julienschmidt/httprouter riding along as
// an indirect dependency of golangci-lint, so it earns no place here).

package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/OffSec-Global/offsec-shield/pkg/capability"
	"github.com/OffSec-Global/offsec-shield/pkg/eventbus"
	"github.com/OffSec-Global/offsec-shield/pkg/incident"
	"github.com/OffSec-Global/offsec-shield/pkg/mesh"
	"github.com/OffSec-Global/offsec-shield/pkg/merkle"
)

// Server holds every collaborator an HTTP handler needs.
type Server struct {
	Store     *merkle.Store
	Ledger    *incident.Ledger
	Mesh      *mesh.Verifier
	Bus       *eventbus.Bus
	Issuers   capability.TrustedIssuers
	JWTConfig capability.JWTConfig
	Guardian  *GuardianForwarder
	DataDir   string
	Log       *zap.Logger
}

// NewServer builds a Server. Callers wire every dependency explicitly;
// there is no package-level singleton (spec.md §9's redesign flag away
// from global mutable state).
func NewServer(store *merkle.Store, ledger *incident.Ledger, meshVerifier *mesh.Verifier, bus *eventbus.Bus, issuers capability.TrustedIssuers, jwtCfg capability.JWTConfig, guardianURL string, dataDir string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		Store:     store,
		Ledger:    ledger,
		Mesh:      meshVerifier,
		Bus:       bus,
		Issuers:   issuers,
		JWTConfig: jwtCfg,
		Guardian:  NewGuardianForwarder(guardianURL, log),
		DataDir:   dataDir,
		Log:       log,
	}
}

// Router builds the full route table spec.md §6 pins.
func (s *Server) Router() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)

	mux.HandleFunc("/offsec/ingest", s.handleIngest)
	mux.HandleFunc("/offsec/action", s.handleAction)
	mux.HandleFunc("/offsec/action/apply", s.handleActionApply)
	mux.HandleFunc("/offsec/action/update", s.handleActionUpdate)
	mux.HandleFunc("/offsec/anchor", s.handleAnchor)
	mux.HandleFunc("/offsec/receipts", s.handleReceipts)
	mux.HandleFunc("/offsec/root", s.handleRoot)
	mux.HandleFunc("/offsec/proof/", s.handleProof)

	mux.HandleFunc("/offsec/mesh/proof", s.handleMeshProofSubmit)
	mux.HandleFunc("/offsec/mesh/proof/", s.handleMeshProofRead)
	mux.HandleFunc("/offsec/mesh/root", s.handleMeshRoot)

	mux.HandleFunc("/api/offsec/events", s.handleInfraEvent)
	mux.HandleFunc("/api/offsec/incidents/", s.handleIncidentGet)

	mux.HandleFunc("/offsec/ws", s.handleWebSocket)

	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
