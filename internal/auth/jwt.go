// Package auth resolves a caller's tier from its credential and gates
// tool access against a static per-tool permission table.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Tier is one of the three recognized service tiers.
type Tier string

const (
	TierFree  Tier = "free"
	TierPro   Tier = "pro"
	TierAdmin Tier = "admin"
)

// Claims is the token payload the Verifier expects: tier replaces the
// teacher's role, alongside the user and org identifiers.
type Claims struct {
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
	Tier   string `json:"tier"`
	jwt.RegisteredClaims
}

// JWTConfig configures a Verifier.
type JWTConfig struct {
	SecretKey string
	Issuer    string
}

// Verifier decodes and validates an HS256 JWT carrying tier/user/org
// claims. It is the default identity service for development and
// single-binary deployments.
type Verifier struct {
	config JWTConfig
}

// NewVerifier builds a Verifier from cfg.
func NewVerifier(cfg JWTConfig) *Verifier {
	return &Verifier{config: cfg}
}

// Verify parses and validates tokenString, returning its claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.config.SecretKey), nil
	}, jwt.WithIssuer(v.config.Issuer))
	if err != nil {
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}

	return claims, nil
}

// Issue mints a token for tests and local tooling; production deployments
// are expected to obtain tokens from an external identity service.
func (v *Verifier) Issue(userID, orgID string, tier Tier, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		OrgID:  orgID,
		Tier:   string(tier),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.config.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(v.config.SecretKey))
}
