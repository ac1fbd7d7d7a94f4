package auth

import (
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

type basicUser struct {
	hash     []byte
	readOnly bool
}

// BasicAuthenticator authenticates requests using HTTP Basic
// authentication against bcrypt-hashed passwords.
type BasicAuthenticator struct {
	users map[string]basicUser
	// dummy is compared when the user is unknown so both failures cost
	// one bcrypt round.
	dummy []byte
}

// NewBasicAuthenticator parses "user1:hash1,user2:hash2:ro". bcrypt
// hashes never contain a colon.
func NewBasicAuthenticator(usersConfig string) (*BasicAuthenticator, error) {
	creds, err := parseCredentials("basic", usersConfig, "user", "hash")
	if err != nil {
		return nil, err
	}

	users := make(map[string]basicUser, len(creds))
	for _, c := range creds {
		users[c.first] = basicUser{hash: []byte(c.second), readOnly: c.readOnly}
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("restresource"), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("basic auth: %w", err)
	}

	return &BasicAuthenticator{users: users, dummy: dummy}, nil
}

// Authenticate verifies the Basic credentials of r.
func (a *BasicAuthenticator) Authenticate(r *http.Request) (*AuthInfo, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return nil, ErrUnauthenticated
	}

	user, exists := a.users[username]
	hash := user.hash
	if !exists {
		hash = a.dummy
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil || !exists {
		return nil, ErrInvalidCredentials
	}

	return &AuthInfo{
		Method:   AuthMethodBasic,
		Subject:  username,
		ReadOnly: user.readOnly,
	}, nil
}

// Method returns the authentication method type.
func (a *BasicAuthenticator) Method() AuthMethod {
	return AuthMethodBasic
}
