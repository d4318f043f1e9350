package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-raffles/internal/auth"
	"ms-raffles/internal/logger"
)

const secret = "test-admin-secret"

func protected(v auth.Verifier) http.Handler {
	return auth.Middleware(v, logger.NewDiscard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(auth.UserID(r.Context())))
	}))
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	token, err := auth.IssueToken(secret, "ops@raffles", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/airdrop", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	protected(&auth.HMACVerifier{Secret: []byte(secret)}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops@raffles", rec.Body.String())
}

func TestMiddlewareRejects(t *testing.T) {
	wrongKey, err := auth.IssueToken("other-secret", "ops", time.Minute)
	require.NoError(t, err)
	expired, err := auth.IssueToken(secret, "ops", -time.Minute)
	require.NoError(t, err)
	noSubject, err := auth.IssueToken(secret, "", time.Minute)
	require.NoError(t, err)
	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "ops"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"wrong key", "Bearer " + wrongKey},
		{"expired", "Bearer " + expired},
		{"no subject", "Bearer " + noSubject},
		{"none algorithm", "Bearer " + noneAlg},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/admin/airdrop", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			protected(&auth.HMACVerifier{Secret: []byte(secret)}).ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestMiddlewareWithoutVerifier(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/admin/airdrop", nil)
	rec := httptest.NewRecorder()
	protected(nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNewVerifier(t *testing.T) {
	v, err := auth.NewVerifier(context.Background(), "", "")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = auth.NewVerifier(context.Background(), "", secret)
	require.NoError(t, err)
	assert.IsType(t, &auth.HMACVerifier{}, v)
}

func TestIssueTokenRequiresSecret(t *testing.T) {
	_, err := auth.IssueToken("", "ops", time.Minute)
	assert.Error(t, err)
}
