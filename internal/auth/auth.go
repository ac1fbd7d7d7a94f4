// Package auth authenticates requests to the todo API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// AuthMethod represents the authentication method used.
type AuthMethod string

const (
	// AuthMethodNone disables authentication.
	AuthMethodNone AuthMethod = "none"
	// AuthMethodBasic indicates HTTP Basic authentication.
	AuthMethodBasic AuthMethod = "basic"
	// AuthMethodAPIKey indicates API key authentication.
	AuthMethodAPIKey AuthMethod = "apikey"
	// AuthMethodMulti accepts any of the configured methods.
	AuthMethodMulti AuthMethod = "multi"
)

// AuthInfo holds authenticated identity information.
type AuthInfo struct {
	Method  AuthMethod
	Subject string
	// ReadOnly credentials may list and read todos but not change them.
	ReadOnly bool
}

// Authenticator validates a request and returns auth info.
type Authenticator interface {
	Authenticate(r *http.Request) (*AuthInfo, error)
	Method() AuthMethod
}

// Sentinel errors for authentication failures.
var (
	ErrUnauthenticated    = errors.New("unauthenticated: no credentials provided")
	ErrInvalidAPIKey      = errors.New("invalid API key")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrReadOnly           = errors.New("read-only credentials cannot modify todos")
	ErrUnknownMethod      = errors.New("unknown auth method")
	ErrNoAuthenticators   = errors.New("multi auth requires basic users or API keys")
)

// readOnlySuffix marks a credential entry as read-only, e.g. "key:ci:ro".
const readOnlySuffix = "ro"

type contextKey string

const authInfoKey contextKey = "auth_info"

// FromContext retrieves AuthInfo from the context.
func FromContext(ctx context.Context) (*AuthInfo, bool) {
	info, ok := ctx.Value(authInfoKey).(*AuthInfo)
	return info, ok
}

// WithAuthInfo stores AuthInfo in the context.
func WithAuthInfo(ctx context.Context, info *AuthInfo) context.Context {
	return context.WithValue(ctx, authInfoKey, info)
}

// Settings selects and configures an authenticator.
type Settings struct {
	Method     AuthMethod
	BasicUsers string // "user:bcrypt_hash[:ro],..."
	APIKeys    string // "key:name[:ro],..."
}

// New builds the authenticator for s. It returns nil when authentication
// is disabled.
func New(s Settings) (Authenticator, error) {
	switch s.Method {
	case AuthMethodNone, "":
		return nil, nil
	case AuthMethodBasic:
		return NewBasicAuthenticator(s.BasicUsers)
	case AuthMethodAPIKey:
		return NewAPIKeyAuthenticator(s.APIKeys)
	case AuthMethodMulti:
		var authenticators []Authenticator
		if s.BasicUsers != "" {
			basic, err := NewBasicAuthenticator(s.BasicUsers)
			if err != nil {
				return nil, err
			}
			authenticators = append(authenticators, basic)
		}
		if s.APIKeys != "" {
			keys, err := NewAPIKeyAuthenticator(s.APIKeys)
			if err != nil {
				return nil, err
			}
			authenticators = append(authenticators, keys)
		}
		if len(authenticators) == 0 {
			return nil, ErrNoAuthenticators
		}
		return NewMultiAuthenticator(authenticators...), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, s.Method)
	}
}

// MultiAuthenticator tries authenticators in order. A request without
// credentials for one method falls through to the next; invalid
// credentials fail immediately.
type MultiAuthenticator struct {
	authenticators []Authenticator
}

// NewMultiAuthenticator creates a MultiAuthenticator.
func NewMultiAuthenticator(authenticators ...Authenticator) *MultiAuthenticator {
	return &MultiAuthenticator{authenticators: authenticators}
}

// Authenticate returns the first successful result.
func (a *MultiAuthenticator) Authenticate(r *http.Request) (*AuthInfo, error) {
	for _, authenticator := range a.authenticators {
		info, err := authenticator.Authenticate(r)
		if err == nil {
			return info, nil
		}
		if !errors.Is(err, ErrUnauthenticated) {
			return nil, err
		}
	}
	return nil, ErrUnauthenticated
}

// Method returns the authentication method type.
func (a *MultiAuthenticator) Method() AuthMethod {
	return AuthMethodMulti
}

// credential is one parsed "first:second[:ro]" entry.
type credential struct {
	first    string
	second   string
	readOnly bool
}

// parseCredentials parses a comma separated credential list. Each entry
// has two or three colon separated fields; the optional third must be
// "ro". firstName and secondName label the fields in error messages.
func parseCredentials(kind, config, firstName, secondName string) ([]credential, error) {
	trimmed := strings.TrimSpace(config)
	if trimmed == "" {
		return nil, fmt.Errorf("%s auth: config must not be empty", kind)
	}

	var creds []credential
	for _, entry := range strings.Split(trimmed, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.Split(entry, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("%s auth: invalid entry format, expected %s:%s[:ro]", kind, firstName, secondName)
		}

		a, b := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if a == "" || b == "" {
			return nil, fmt.Errorf("%s auth: %s and %s must not be empty", kind, firstName, secondName)
		}

		c := credential{first: a, second: b}
		if len(parts) == 3 {
			if strings.TrimSpace(parts[2]) != readOnlySuffix {
				return nil, fmt.Errorf("%s auth: unknown access flag %q", kind, parts[2])
			}
			c.readOnly = true
		}
		creds = append(creds, c)
	}

	if len(creds) == 0 {
		return nil, fmt.Errorf("%s auth: no valid entries found", kind)
	}
	return creds, nil
}
