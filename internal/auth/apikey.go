package auth

import (
	"crypto/subtle"
	"net/http"
)

// APIKeyHeader is the HTTP header name for API key authentication.
const APIKeyHeader = "X-API-Key"

type apiKey struct {
	name     string
	readOnly bool
}

// APIKeyAuthenticator authenticates requests by the X-API-Key header.
type APIKeyAuthenticator struct {
	keys map[string]apiKey
}

// NewAPIKeyAuthenticator parses "key1:name1,key2:name2:ro". Keys marked
// ro are read-only.
func NewAPIKeyAuthenticator(keysConfig string) (*APIKeyAuthenticator, error) {
	creds, err := parseCredentials("apikey", keysConfig, "key", "name")
	if err != nil {
		return nil, err
	}

	keys := make(map[string]apiKey, len(creds))
	for _, c := range creds {
		keys[c.first] = apiKey{name: c.second, readOnly: c.readOnly}
	}
	return &APIKeyAuthenticator{keys: keys}, nil
}

// Authenticate compares the header against every configured key in
// constant time.
func (a *APIKeyAuthenticator) Authenticate(r *http.Request) (*AuthInfo, error) {
	presented := r.Header.Get(APIKeyHeader)
	if presented == "" {
		return nil, ErrUnauthenticated
	}

	var (
		match apiKey
		found bool
	)
	for key, k := range a.keys {
		if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) == 1 {
			match, found = k, true
		}
	}
	if !found {
		return nil, ErrInvalidAPIKey
	}

	return &AuthInfo{
		Method:   AuthMethodAPIKey,
		Subject:  match.name,
		ReadOnly: match.readOnly,
	}, nil
}

// Method returns the authentication method type.
func (a *APIKeyAuthenticator) Method() AuthMethod {
	return AuthMethodAPIKey
}
