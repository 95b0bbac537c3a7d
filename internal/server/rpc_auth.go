package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// tokenQueryParam carries the secret for WebSocket clients that cannot set
// request headers.
const tokenQueryParam = "token"

// requireToken rejects requests without the bearer secret with a JSON-RPC
// error body. An empty secret rejects everything.
func requireToken(secret string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorized(secret, r) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0",
				"error": map[string]any{
					"code":    int(codeInvalidRequest),
					"message": "Unauthorized",
				},
				"id": nil,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func authorized(secret string, r *http.Request) bool {
	if h := r.Header.Get("Authorization"); h != "" {
		return validToken(secret, h)
	}
	if r.URL.Path == pathWebSocket {
		return validToken(secret, "Bearer "+r.URL.Query().Get(tokenQueryParam))
	}
	return false
}

// validToken compares a "Bearer <token>" header value with the secret in
// constant time.
func validToken(secret, authHeader string) bool {
	if secret == "" {
		return false
	}
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}
