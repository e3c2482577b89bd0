package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the bearer-token claims minted by the auth subsystem.
// This service never mints these tokens itself; it only verifies them to
// recover the caller's identity.
type Claims struct {
	Identity string `json:"identity"`
	jwt.RegisteredClaims
}

// JWTConfig holds verification settings for auth-subsystem tokens.
type JWTConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
}

// Verifier validates bearer tokens and extracts the verified identity.
type Verifier struct {
	cfg *JWTConfig
}

// NewVerifier creates a Verifier with the given config.
func NewVerifier(cfg *JWTConfig) *Verifier {
	return &Verifier{cfg: cfg}
}

// Verify parses and validates a bearer token, returning its claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.cfg.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if claims.Identity == "" {
		// Fall back to the registered subject for tokens that carry only
		// standard claims.
		claims.Identity = claims.Subject
	}
	if claims.Identity == "" {
		return nil, fmt.Errorf("token carries no identity")
	}

	if v.cfg.Issuer != "" && claims.Issuer != v.cfg.Issuer {
		return nil, fmt.Errorf("invalid issuer")
	}

	if v.cfg.Audience != "" {
		validAudience := false
		for _, aud := range claims.Audience {
			if aud == v.cfg.Audience {
				validAudience = true
				break
			}
		}
		if !validAudience {
			return nil, fmt.Errorf("invalid audience")
		}
	}

	return claims, nil
}

// MintForTest creates a token the Verifier will accept. Only the test
// binaries and roomctl use this; production tokens come from the auth
// subsystem.
func MintForTest(cfg *JWTConfig, identity string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Identity: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(cfg.Secret)
}
