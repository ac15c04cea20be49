package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/rajpalom13/move-meal-sub001/pkg/response"
)

type contextKey string

const (
	ContextUserID    contextKey = "user_id"
	ContextRole      contextKey = "role"
	ContextGender    contextKey = "gender"
	ContextRequestID contextKey = "request_id"
)

// RequestID tags every request with a correlation id, echoed back in the
// X-Request-ID response header. An id supplied by the caller is kept.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := context.WithValue(r.Context(), ContextRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type Middleware struct {
	verifier *Verifier
}

func NewMiddleware(verifier *Verifier) *Middleware {
	return &Middleware{verifier: verifier}
}

// Require rejects requests without a valid bearer token and puts the caller's
// identity on the request context.
func (m *Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			response.Error(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := m.verifier.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			response.Error(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), ContextUserID, claims.UserID)
		ctx = context.WithValue(ctx, ContextRole, claims.Role)
		ctx = context.WithValue(ctx, ContextGender, claims.Gender)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID pulls the authenticated user id off the context.
func UserID(ctx context.Context) string {
	v, _ := ctx.Value(ContextUserID).(string)
	return v
}

func RoleOf(ctx context.Context) string {
	v, _ := ctx.Value(ContextRole).(string)
	return v
}

func Gender(ctx context.Context) string {
	v, _ := ctx.Value(ContextGender).(string)
	return v
}

func RequestIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(ContextRequestID).(string)
	return v
}
