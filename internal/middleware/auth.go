package middleware

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/restresource/internal/auth"
)

// publicPaths are paths that don't require authentication.
var publicPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// Auth returns a middleware that authenticates requests. Public paths and
// CORS preflight requests are let through. The change feed handshake is
// authenticated like any other GET. Read-only credentials get 403 on
// writes.
func Auth(authenticator auth.Authenticator, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			info, err := authenticator.Authenticate(r)
			if err != nil {
				logger.Warn("authentication failed",
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				setWWWAuthenticateHeader(w, err)
				writeJSONError(w, http.StatusUnauthorized, err.Error())
				return
			}

			if info.ReadOnly && !isReadMethod(r.Method) {
				logger.Warn("write rejected for read-only credentials",
					zap.String("subject", info.Subject),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				writeJSONError(w, http.StatusForbidden, auth.ErrReadOnly.Error())
				return
			}

			logger.Debug("authentication successful",
				zap.String("subject", info.Subject),
				zap.String("method", string(info.Method)),
				zap.String("path", r.URL.Path),
			)

			next.ServeHTTP(w, r.WithContext(auth.WithAuthInfo(r.Context(), info)))
		})
	}
}

// isPublicPath matches the public paths and their sub-paths, so
// /health/live is public but /healthz is not.
func isPublicPath(path string) bool {
	if publicPaths[path] {
		return true
	}

	for p := range publicPaths {
		if strings.HasPrefix(path, p+"/") {
			return true
		}
	}

	return false
}

func isReadMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

func setWWWAuthenticateHeader(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", "Basic, API-Key")
	case errors.Is(err, auth.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", `Basic realm="todos"`)
	case errors.Is(err, auth.ErrInvalidAPIKey):
		w.Header().Set("WWW-Authenticate", "API-Key")
	}
}
