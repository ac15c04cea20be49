package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "github.com/rajpalom13/move-meal-sub001/pkg/xerrors"
)

func testVerifier() *Verifier {
	return NewVerifier("test-secret", "movemeal", "movemeal-api")
}

func TestVerifierRoundTrip(t *testing.T) {
	v := testVerifier()

	token, err := v.Sign("u1", "user", "female", time.Minute)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "user", claims.Role)
	assert.Equal(t, "female", claims.Gender)
}

func TestVerifierRejectsBadTokens(t *testing.T) {
	v := testVerifier()

	_, err := v.Verify("not-a-token")
	assert.ErrorIs(t, err, xerrors.ErrInvalidToken)

	// wrong signing secret
	other := NewVerifier("other-secret", "movemeal", "movemeal-api")
	token, err := other.Sign("u1", "", "", time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(token)
	assert.ErrorIs(t, err, xerrors.ErrInvalidToken)

	// wrong issuer
	foreign := NewVerifier("test-secret", "someone-else", "movemeal-api")
	token, err = foreign.Sign("u1", "", "", time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(token)
	assert.ErrorIs(t, err, xerrors.ErrInvalidToken)

	// expired well past the leeway
	token, err = v.Sign("u1", "", "", -5*time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(token)
	assert.ErrorIs(t, err, xerrors.ErrInvalidToken)
}

func TestRequireMiddleware(t *testing.T) {
	v := testVerifier()
	mw := NewMiddleware(v)

	var gotUser, gotRole string
	handler := mw.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserID(r.Context())
		gotRole = RoleOf(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// no header
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// garbage token
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer junk")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// valid token flows through with identity on the context
	token, err := v.Sign("u1", "admin", "", time.Minute)
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", gotUser)
	assert.Equal(t, "admin", gotRole)
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	// a caller-supplied id is preserved
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "corr-42")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "corr-42", seen)
	assert.Equal(t, "corr-42", rec.Header().Get("X-Request-ID"))
}
