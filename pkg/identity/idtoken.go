package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// IDTokenVerifier checks bearer JWTs presented by external callers. Keys
// are fetched from the issuer's JWKS endpoint and cached with periodic
// refresh to handle rotation.
type IDTokenVerifier struct {
	jwksURL  string
	audience string
	cache    *jwk.Cache
	trusted  map[string]bool
}

// NewIDTokenVerifier registers the JWKS URL and performs an initial fetch
// so a misconfigured issuer fails at startup rather than on first request.
func NewIDTokenVerifier(ctx context.Context, jwksURL, audience string, trustedAccounts []string) (*IDTokenVerifier, error) {
	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, fmt.Errorf("failed to register JWKS URL: %w", err)
	}
	if _, err := cache.Refresh(ctx, jwksURL); err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", jwksURL, err)
	}

	trusted := make(map[string]bool, len(trustedAccounts))
	for _, acct := range trustedAccounts {
		trusted[acct] = true
	}
	return &IDTokenVerifier{
		jwksURL:  jwksURL,
		audience: audience,
		cache:    cache,
		trusted:  trusted,
	}, nil
}

// VerifyIDToken validates the token's signature, expiry and audience, then
// requires its subject or email claim to be a trusted caller. Returns the
// caller identity on success.
func (v *IDTokenVerifier) VerifyIDToken(ctx context.Context, tokenString string) (string, error) {
	keyset, err := v.cache.Get(ctx, v.jwksURL)
	if err != nil {
		return "", fmt.Errorf("failed to get JWKS: %w", err)
	}

	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKeySet(keyset),
		jwt.WithValidate(true),
		jwt.WithAudience(v.audience),
	)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	caller := token.Subject()
	if email, ok := token.Get("email"); ok {
		if emailStr, ok := email.(string); ok && emailStr != "" {
			caller = emailStr
		}
	}
	if !v.trusted[caller] {
		return "", fmt.Errorf("caller %q is not a trusted service account", caller)
	}
	return caller, nil
}
