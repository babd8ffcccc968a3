// Copyright 2025 Certen Protocol
//
// Best-effort forwarder to the external enforcement endpoint. spec.md
// §5 ("Cancellation") requires forwarding failures to be logged, never
// propagated to the caller.

package server

import (
	"bytes"
	"net/http"

	"go.uber.org/zap"
)

// GuardianForwarder posts action-apply payloads to the configured
// enforcement endpoint, swallowing every failure into a log line.
type GuardianForwarder struct {
	url    string
	client *http.Client
	log    *zap.Logger
}

// NewGuardianForwarder builds a forwarder bound to url. An empty url
// disables forwarding entirely.
func NewGuardianForwarder(url string, log *zap.Logger) *GuardianForwarder {
	if log == nil {
		log = zap.NewNop()
	}
	return &GuardianForwarder{
		url:    url,
		client: &http.Client{},
		log:    log,
	}
}

// Forward sends body to the enforcement endpoint in the background.
// Errors are logged as warnings and never surfaced to the caller.
func (g *GuardianForwarder) Forward(body []byte) {
	if g.url == "" {
		return
	}
	go func() {
		resp, err := g.client.Post(g.url, "application/json", bytes.NewReader(body))
		if err != nil {
			g.log.Warn("enforcement forward failed", zap.Error(err))
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			g.log.Warn("enforcement endpoint rejected forward", zap.Int("status", resp.StatusCode))
		}
	}()
}
