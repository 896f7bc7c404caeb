package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	cfg := &JWTConfig{
		Secret: []byte("test-secret"),
		Issuer: "chatcore-test",
		TTL:    time.Hour,
	}

	token, err := GenerateToken(cfg, "alice", "Alice Example")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ValidateToken(cfg, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "alice" || claims.FullName != "Alice Example" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	cfg := &JWTConfig{Secret: []byte("right"), TTL: time.Hour}
	token, err := GenerateToken(cfg, "alice", "")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	bad := &JWTConfig{Secret: []byte("wrong"), TTL: time.Hour}
	if _, err := ValidateToken(bad, token); err == nil {
		t.Fatal("expected validation failure with wrong secret")
	}
}

func TestValidateTokenRejectsWrongIssuer(t *testing.T) {
	cfg := &JWTConfig{Secret: []byte("s"), Issuer: "someone-else", TTL: time.Hour}
	token, err := GenerateToken(cfg, "alice", "")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	check := &JWTConfig{Secret: []byte("s"), Issuer: "chatcore"}
	if _, err := ValidateToken(check, token); err == nil {
		t.Fatal("expected validation failure with wrong issuer")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	cfg := &JWTConfig{Secret: []byte("s"), TTL: -time.Minute}
	token, err := GenerateToken(cfg, "alice", "")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := ValidateToken(cfg, token); err == nil {
		t.Fatal("expected validation failure for expired token")
	}
}
