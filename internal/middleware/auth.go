// Package middleware provides HTTP middlewares for authentication, rate
// limiting and logging.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
)

type ctxKey string

const userKey ctxKey = "user"

// IdentityResolver turns a bearer token into the identity it was issued for.
type IdentityResolver interface {
	Identity(token string) (string, error)
}

var bearerRe = regexp.MustCompile(`^(?i:bearer) +([^ ]+)$`)

// BearerAuth is a middleware that requires an "Authorization: Bearer <token>"
// header carrying a valid token.
//
// On success the token's identity is stored in the request context, where
// handlers read it with GetUserIDFromContext. Missing, malformed and invalid
// credentials all get the same 401 answer.
func BearerAuth(tokens IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}
			identity, err := tokens.Identity(token)
			if err != nil || identity == "" {
				unauthorized(w)
				return
			}
			ctx := context.WithValue(r.Context(), userKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	values := r.Header.Values("Authorization")
	if len(values) != 1 {
		return "", false
	}
	m := bearerRe.FindStringSubmatch(values[0])
	if m == nil {
		return "", false
	}
	return m[1], true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"message": "Could not validate credentials",
		"success": false,
	})
}

// WithUser returns a copy of ctx carrying identity, as BearerAuth does.
func WithUser(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, userKey, identity)
}

// GetUserIDFromContext extracts the authenticated identity from the request
// context. Returns an empty string if not found.
func GetUserIDFromContext(ctx context.Context) string {
	val := ctx.Value(userKey)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}
