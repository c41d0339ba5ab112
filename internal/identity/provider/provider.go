// Package provider adapts the managed identity service that issues the
// frontend's ID tokens. The resolver only sees the Verifier interface; the
// concrete implementation verifies RS256 tokens offline against the
// provider's published signing key.
package provider

import (
	"context"
	"crypto/rsa"
	"errors"

	"github.com/golang-jwt/jwt/v5"

	dErrors "coopmarket/pkg/domain-errors"
)

// Identity is the stable external identity a verified provider token yields.
type Identity struct {
	SubjectID     string
	Email         string
	EmailVerified bool
}

// Verifier validates an opaque provider token and yields the external
// identity encoded in it.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}

type providerClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	jwt.RegisteredClaims
}

// TokenVerifier verifies provider ID tokens signed with the provider's RSA
// key. A single verification attempt, fail fast: expired, malformed and
// badly-signed tokens all map to unauthenticated.
type TokenVerifier struct {
	publicKey *rsa.PublicKey
	issuer    string
	audience  string
}

// NewTokenVerifier parses the PEM-encoded provider public key. Issuer and
// audience are enforced when non-empty.
func NewTokenVerifier(publicKeyPEM, issuer, audience string) (*TokenVerifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, err
	}
	return &TokenVerifier{publicKey: key, issuer: issuer, audience: audience}, nil
}

func (v *TokenVerifier) Verify(_ context.Context, rawToken string) (*Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	parsed, err := jwt.ParseWithClaims(rawToken, &providerClaims{}, func(token *jwt.Token) (interface{}, error) {
		return v.publicKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*providerClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	return &Identity{
		SubjectID:     claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
	}, nil
}

// StaticVerifier resolves tokens from a fixed map. Test use only.
type StaticVerifier struct {
	Tokens map[string]Identity
}

func (v *StaticVerifier) Verify(_ context.Context, rawToken string) (*Identity, error) {
	if ident, ok := v.Tokens[rawToken]; ok {
		return &ident, nil
	}
	return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
}
