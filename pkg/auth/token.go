// Package auth mints and verifies the operator bearer tokens that guard the
// reconciliation endpoints. Shoppers never authenticate here; their identity
// lives in the Vendure session cookie.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
)

const clockSkew = 30 * time.Second

var (
	ErrSecretRequired  = errors.New("operator jwt secret is required")
	ErrSubjectRequired = errors.New("operator subject is required")
	ErrInvalidRole     = errors.New("invalid operator role")

	signingMethod = jwt.SigningMethodHS256
)

// MintOperatorToken signs a token valid for cfg.ExpirationMinutes from now.
func MintOperatorToken(cfg config.OperatorConfig, now time.Time, payload OperatorTokenPayload) (string, error) {
	if cfg.Secret == "" {
		return "", ErrSecretRequired
	}
	if cfg.Issuer == "" {
		return "", errors.New("operator jwt issuer is required")
	}
	if cfg.ExpirationMinutes <= 0 {
		return "", errors.New("operator jwt expiration minutes must be positive")
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	claims := OperatorClaims{
		Role: payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   strings.TrimSpace(payload.Subject),
			Audience:  jwt.ClaimStrings{OperatorAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
			ID:        jti,
		},
	}
	if err := claims.Validate(); err != nil {
		return "", err
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseOperatorToken verifies signature, issuer, audience and expiry, then
// the operator-specific claims.
func ParseOperatorToken(cfg config.OperatorConfig, tokenString string) (*OperatorClaims, error) {
	if cfg.Secret == "" {
		return nil, ErrSecretRequired
	}

	claims := &OperatorClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return []byte(cfg.Secret), nil },
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(OperatorAudience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
