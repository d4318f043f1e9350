// Package auth guards the admin routes of the raffle node with bearer tokens,
// either HS256 tokens signed with a shared secret or OIDC ID tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"

	"ms-raffles/internal/logger"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Verifier checks a raw bearer token and returns its subject.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (string, error)
}

// OIDCVerifier checks ID tokens issued by an OIDC provider.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCVerifier(ctx context.Context, issuer string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	// Verifier (SkipClientIDCheck → no client ID required)
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{
		SkipClientIDCheck: true,
	})}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (string, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return "", err
	}

	var claims struct {
		Sub string `json:"sub"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", errors.New("failed to parse claims")
	}
	return claims.Sub, nil
}

// NewVerifier prefers OIDC when an issuer is configured and falls back to the
// shared secret. It returns nil when neither is set.
func NewVerifier(ctx context.Context, issuer, secret string) (Verifier, error) {
	switch {
	case issuer != "":
		v, err := NewOIDCVerifier(ctx, issuer)
		if err != nil {
			return nil, err
		}
		return v, nil
	case secret != "":
		return &HMACVerifier{Secret: []byte(secret)}, nil
	default:
		return nil, nil
	}
}

// Middleware rejects requests without a valid bearer token. A nil verifier
// rejects everything.
func Middleware(v Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				log.LogSecurity("AUTH_DISABLED", fmt.Sprintf("%s %s refused: no verifier configured", r.Method, r.URL.Path))
				http.Error(w, "admin routes are disabled", http.StatusUnauthorized)
				return
			}

			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			sub, err := v.Verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("INVALID_TOKEN", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				http.Error(w, fmt.Sprintf("invalid token: %v", err), http.StatusUnauthorized)
				return
			}

			// Add user ID into context
			ctx := context.WithValue(r.Context(), userIDKey, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Helper to extract user ID in handlers
func UserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey).(string); ok {
		return uid
	}
	return ""
}
