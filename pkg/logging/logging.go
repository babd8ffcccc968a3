// Copyright 2025 Certen Protocol
//
// Structured logging construction. The teacher's own code reaches for
// the standard library's log package, but zap is used directly elsewhere
// in the retrieved corpus (e.g. teranos-QNTX, nspcc-dev-neo-go) for the
// same service-logging role this package fills, so this adopts zap
// rather than a hand-rolled stdlib wrapper.

package logging

import "go.uber.org/zap"

// New builds a production-profile zap logger, switching to zap's
// development encoder config for level "debug" so local runs get
// human-readable console output instead of JSON.
func New(level string) (*zap.Logger, error) {
	var cfg zap.Config
	if level == "debug" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	parsed, err := zap.ParseAtomicLevel(level)
	if err != nil {
		parsed = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.Level = parsed

	return cfg.Build()
}
