package main

import (
	"context"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// authMiddleware requires a valid Bearer token and puts the user id in the context.
func (a *App) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		if !strings.HasPrefix(authz, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		uid, err := parseJWT(a.cfg.JWTSecret, strings.TrimPrefix(authz, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, uid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// writeGuard applies authMiddleware to mutating requests when AUTH_REQUIRED is set.
// Reads stay open so the dashboard renders without a login.
func (a *App) writeGuard(next http.Handler) http.Handler {
	if !a.cfg.AuthRequired {
		return next
	}
	guarded := a.authMiddleware(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
		default:
			guarded.ServeHTTP(w, r)
		}
	})
}

// mustUserID returns the user id from context or NilObjectID if missing.
func mustUserID(r *http.Request) primitive.ObjectID {
	if uid, ok := r.Context().Value(userIDKey).(primitive.ObjectID); ok {
		return uid
	}
	return primitive.NilObjectID
}
