package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/alexedwards/argon2id"
)

// bearerAuth checks the Authorization header against an argon2id hash of
// the admin token. An empty hash disables auth, which is only reasonable
// when the server binds to loopback.
func bearerAuth(tokenHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if tokenHash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			match, err := argon2id.ComparePasswordAndHash(token, tokenHash)
			if err != nil {
				logger.Error("token hash comparison failed", "error", err)
				writeError(w, http.StatusInternalServerError, "auth misconfigured")
				return
			}
			if !match {
				logger.Warn("rejected admin request with invalid token",
					"path", r.URL.Path, "remote", r.RemoteAddr)
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}
