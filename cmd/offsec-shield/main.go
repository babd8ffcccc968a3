// Copyright 2025 Certen Protocol
//
// Entry point wiring config, logging, the capability/merkle/mesh/
// incident/eventbus collaborators, and the HTTP/WS server. Grounded on
// the teacher's own main.go shutdown sequence: signal.Notify on
// SIGINT/SIGTERM, a bounded-timeout http.Server.Shutdown. Invalid
// configuration, unloadable issuer/peer files, a failed index rebuild and
// a bind failure are fatal; nothing else is.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/OffSec-Global/offsec-shield/pkg/capability"
	"github.com/OffSec-Global/offsec-shield/pkg/config"
	"github.com/OffSec-Global/offsec-shield/pkg/eventbus"
	"github.com/OffSec-Global/offsec-shield/pkg/incident"
	"github.com/OffSec-Global/offsec-shield/pkg/logging"
	"github.com/OffSec-Global/offsec-shield/pkg/mesh"
	"github.com/OffSec-Global/offsec-shield/pkg/merkle"
	"github.com/OffSec-Global/offsec-shield/pkg/server"
)

func main() {
	cfg := config.Load()

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "offsec-shield: logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	jwtCfg := capability.JWTConfig{
		Audience:    cfg.CapabilityAudience,
		HS256Secret: []byte(cfg.JWTHS256Secret),
	}
	if cfg.JWTPublicKeyPEM != "" {
		key, err := capability.ParseEd25519PublicKeyPEM(cfg.JWTPublicKeyPEM)
		if err != nil {
			log.Fatal("invalid OFFSEC_JWT_PUBLIC_KEY", zap.Error(err))
		}
		jwtCfg.Ed25519Key = key
	}

	issuers, err := capability.LoadTrustedIssuers(cfg.DataDir)
	if err != nil {
		log.Fatal("failed to load trusted_issuers.json", zap.Error(err))
	}

	peers, err := mesh.LoadPeers(cfg.DataDir)
	if err != nil {
		log.Fatal("failed to load peers.json", zap.Error(err))
	}

	bus := eventbus.New()
	store := merkle.NewStore(cfg.DataDir, log)
	ledger := incident.NewLedger(cfg.DataDir, log)
	if err := ledger.RebuildIndex(); err != nil {
		log.Fatal("failed to rebuild incident index", zap.Error(err))
	}
	meshVerifier := mesh.NewVerifier(peers, cfg.DataDir, bus, log)

	srv := server.NewServer(store, ledger, meshVerifier, bus, issuers, jwtCfg, cfg.GuardianURL, cfg.DataDir, log)

	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: srv.Router(),
	}

	go func() {
		log.Info("offsec-shield listening", zap.String("addr", cfg.Listen))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down offsec-shield")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", zap.Error(err))
	}
	log.Info("offsec-shield stopped")
}
