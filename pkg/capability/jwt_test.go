// Copyright 2025 Certen Protocol

package capability

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func signHS256(t *testing.T, claims *Claims, secret []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestVerifyJWTAcceptsValidHS256(t *testing.T) {
	secret := []byte("dev-secret")
	claims := &Claims{
		Subject:  "guardian-1",
		Audience: "offsec-portal",
		IssuedAt: time.Now().Unix(),
		Expiry:   time.Now().Add(time.Hour).Unix(),
		Actions:  []string{"ingest.write"},
	}
	tok := signHS256(t, claims, secret)

	cfg := JWTConfig{Audience: "offsec-portal", HS256Secret: secret}
	got, err := VerifyJWT(tok, cfg)
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if got.Subject != "guardian-1" {
		t.Errorf("subject mismatch: got %s", got.Subject)
	}
	if err := EnsureAction(got, "ingest.write"); err != nil {
		t.Errorf("expected action allowed, got %v", err)
	}
	if err := EnsureAction(got, "ingest.delete"); err == nil {
		t.Errorf("expected NotAllowedError for unlisted action")
	}
}

func TestVerifyJWTRejectsExpired(t *testing.T) {
	secret := []byte("dev-secret")
	claims := &Claims{
		Subject:  "guardian-1",
		Audience: "offsec-portal",
		Expiry:   time.Now().Add(-time.Minute).Unix(),
	}
	tok := signHS256(t, claims, secret)

	_, err := VerifyJWT(tok, JWTConfig{Audience: "offsec-portal", HS256Secret: secret})
	if _, ok := err.(*InvalidError); !ok {
		t.Fatalf("expected InvalidError for expired token, got %v", err)
	}
}

func TestVerifyJWTRejectsWrongAudience(t *testing.T) {
	secret := []byte("dev-secret")
	claims := &Claims{
		Subject:  "guardian-1",
		Audience: "someone-else",
		Expiry:   time.Now().Add(time.Hour).Unix(),
	}
	tok := signHS256(t, claims, secret)

	_, err := VerifyJWT(tok, JWTConfig{Audience: "offsec-portal", HS256Secret: secret})
	if _, ok := err.(*InvalidError); !ok {
		t.Fatalf("expected InvalidError for audience mismatch, got %v", err)
	}
}

func TestVerifyJWTRejectsWrongSecret(t *testing.T) {
	claims := &Claims{
		Subject:  "guardian-1",
		Audience: "offsec-portal",
		Expiry:   time.Now().Add(time.Hour).Unix(),
	}
	tok := signHS256(t, claims, []byte("dev-secret"))

	_, err := VerifyJWT(tok, JWTConfig{Audience: "offsec-portal", HS256Secret: []byte("wrong-secret")})
	if _, ok := err.(*InvalidError); !ok {
		t.Fatalf("expected InvalidError for bad signature, got %v", err)
	}
}

func TestExtractBearer(t *testing.T) {
	if _, err := ExtractBearer(""); err == nil {
		t.Error("expected MissingError for empty header")
	}
	if _, err := ExtractBearer("Basic abc123"); err == nil {
		t.Error("expected MissingError for non-Bearer scheme")
	}
	got, err := ExtractBearer("Bearer abc.def.ghi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "abc.def.ghi" {
		t.Errorf("token mismatch: got %s", got)
	}
}
