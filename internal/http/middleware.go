package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/fjod/go_storefront/internal/upstream"
)

type ctxKey string

const (
	credsKey     ctxKey = "credentials"
	requestIDKey ctxKey = "request_id"
)

// AuthMiddleware extracts the bearer token and the user identity header.
// Both travel verbatim to the upstream service; the token is never
// inspected here.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			respondError(w, http.StatusUnauthorized, "unauthenticated", "missing bearer token")
			return
		}

		userID, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
		if err != nil || userID <= 0 {
			respondError(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid X-User-ID header")
			return
		}

		creds := upstream.Credentials{Token: token, UserID: userID}
		ctx := context.WithValue(r.Context(), credsKey, creds)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getCredsFromContext(ctx context.Context) (upstream.Credentials, bool) {
	creds, ok := ctx.Value(credsKey).(upstream.Credentials)
	return creds, ok
}

func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}
