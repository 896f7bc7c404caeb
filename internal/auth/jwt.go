// Package auth verifies the access tokens the external identity
// provider issues. The core only ever sees the resulting user identity;
// credential issuance and validation live outside this service.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the token claims this service understands.
type Claims struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name,omitempty"`
	jwt.RegisteredClaims
}

// JWTConfig holds token verification configuration.
type JWTConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// GenerateToken creates a signed token for the given user. Exists for
// tests and local tooling; production tokens come from the identity
// provider.
func GenerateToken(cfg *JWTConfig, userID, fullName string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		FullName: fullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(cfg.Secret)
}

// ValidateToken parses and validates a token, returning its claims.
func ValidateToken(cfg *JWTConfig, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cfg.Secret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if claims.UserID == "" {
		return nil, fmt.Errorf("token has no user identity")
	}

	if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
		return nil, fmt.Errorf("invalid issuer")
	}

	return claims, nil
}
