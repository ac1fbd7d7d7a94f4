package middleware_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/restresource/internal/auth"
	"github.com/vyrodovalexey/restresource/internal/middleware"
)

// testAuthenticator is a mock authenticator for middleware tests.
type testAuthenticator struct {
	info *auth.AuthInfo
	err  error
}

func (a *testAuthenticator) Authenticate(_ *http.Request) (*auth.AuthInfo, error) {
	return a.info, a.err
}

func (a *testAuthenticator) Method() auth.AuthMethod {
	return auth.AuthMethodBasic
}

// subjectHandler echoes the authenticated subject.
func subjectHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := "anonymous"
		if info, ok := auth.FromContext(r.Context()); ok {
			subject = info.Subject
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(subject))
	})
}

func TestAuth(t *testing.T) {
	t.Parallel()

	writer := &testAuthenticator{info: &auth.AuthInfo{Method: auth.AuthMethodAPIKey, Subject: "todoctl"}}
	reader := &testAuthenticator{info: &auth.AuthInfo{Method: auth.AuthMethodAPIKey, Subject: "viewer", ReadOnly: true}}
	missing := &testAuthenticator{err: auth.ErrUnauthenticated}
	invalid := &testAuthenticator{err: fmt.Errorf("wrapped: %w", auth.ErrInvalidAPIKey)}

	tests := []struct {
		name          string
		authenticator auth.Authenticator
		method        string
		path          string
		upgrade       bool
		wantStatus    int
		wantBody      string
		wantChallenge string
	}{
		{name: "health is public", authenticator: missing, method: http.MethodGet, path: "/health", wantStatus: http.StatusOK, wantBody: "anonymous"},
		{name: "health sub-path is public", authenticator: missing, method: http.MethodGet, path: "/health/live", wantStatus: http.StatusOK},
		{name: "metrics is public", authenticator: missing, method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK},
		{
			name: "prefix is not public", authenticator: missing, method: http.MethodGet, path: "/healthz",
			wantStatus: http.StatusUnauthorized, wantChallenge: "Basic, API-Key",
		},
		{name: "preflight bypasses auth", authenticator: missing, method: http.MethodOptions, path: "/api/v1/todos", wantStatus: http.StatusOK},
		{name: "valid credentials", authenticator: writer, method: http.MethodPost, path: "/api/v1/todos", wantStatus: http.StatusOK, wantBody: "todoctl"},
		{
			name: "missing credentials", authenticator: missing, method: http.MethodGet, path: "/api/v1/todos",
			wantStatus: http.StatusUnauthorized, wantChallenge: "Basic, API-Key",
		},
		{
			name: "invalid key", authenticator: invalid, method: http.MethodGet, path: "/api/v1/todos",
			wantStatus: http.StatusUnauthorized, wantChallenge: "API-Key",
		},
		{
			name: "change feed needs credentials", authenticator: missing, method: http.MethodGet, path: "/ws", upgrade: true,
			wantStatus: http.StatusUnauthorized,
		},
		{name: "read-only may read", authenticator: reader, method: http.MethodGet, path: "/api/v1/todos", wantStatus: http.StatusOK, wantBody: "viewer"},
		{name: "read-only may follow the feed", authenticator: reader, method: http.MethodGet, path: "/ws", upgrade: true, wantStatus: http.StatusOK},
		{name: "read-only may not create", authenticator: reader, method: http.MethodPost, path: "/api/v1/todos", wantStatus: http.StatusForbidden},
		{name: "read-only may not delete", authenticator: reader, method: http.MethodDelete, path: "/api/v1/todos/1", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Arrange
			wrapped := middleware.Auth(tt.authenticator, zap.NewNop())(subjectHandler())
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.upgrade {
				req.Header.Set("Connection", "Upgrade")
				req.Header.Set("Upgrade", "websocket")
			}
			rr := httptest.NewRecorder()

			// Act
			wrapped.ServeHTTP(rr, req)

			// Assert
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && rr.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rr.Body.String(), tt.wantBody)
			}
			if got := rr.Header().Get("WWW-Authenticate"); got != tt.wantChallenge {
				t.Errorf("WWW-Authenticate = %q, want %q", got, tt.wantChallenge)
			}
		})
	}
}

func TestAuth_ErrorBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		authenticator auth.Authenticator
		method        string
		wantCode      int
		wantMessage   string
	}{
		{
			name:          "unauthorized",
			authenticator: &testAuthenticator{err: auth.ErrInvalidCredentials},
			method:        http.MethodGet,
			wantCode:      http.StatusUnauthorized,
			wantMessage:   auth.ErrInvalidCredentials.Error(),
		},
		{
			name:          "forbidden",
			authenticator: &testAuthenticator{info: &auth.AuthInfo{Subject: "ro", ReadOnly: true}},
			method:        http.MethodPut,
			wantCode:      http.StatusForbidden,
			wantMessage:   auth.ErrReadOnly.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Arrange
			called := false
			next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })
			rr := httptest.NewRecorder()

			// Act
			middleware.Auth(tt.authenticator, zap.NewNop())(next).
				ServeHTTP(rr, httptest.NewRequest(tt.method, "/api/v1/todos/1", nil))

			// Assert
			if called {
				t.Error("handler must not run")
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var body struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Code != tt.wantCode || body.Message != tt.wantMessage {
				t.Errorf("body = %+v", body)
			}
		})
	}
}
