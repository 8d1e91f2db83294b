// Package session holds the credentials of the signed-in user. Token
// issuance, refresh and expiry redirects belong to the login flow; the
// store only keeps the raw bearer token and the user id embedded in it.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSubject is returned for tokens without a subject claim.
var ErrNoSubject = errors.New("session: token has no subject claim")

// Store is a concurrency-safe holder for the session credentials. It
// satisfies the chat client's Session interface.
type Store struct {
	mu     sync.RWMutex
	token  string
	userID string
}

func New() *Store {
	return &Store{}
}

// SetCredentials stores the bearer token and resolves the current user id
// from its subject claim.
func (s *Store) SetCredentials(token string) error {
	userID, err := subjectOf(token)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.userID = userID
	return nil
}

// Token returns the current bearer token, or "" when signed out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// UserID returns the signed-in user's identifier, or "" when signed out.
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Clear wipes the credentials on logout.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.userID = ""
}

// subjectOf extracts the subject claim without verifying the signature.
// The client holds no signing key; the server validates the token on every
// request.
func subjectOf(token string) (string, error) {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return "", fmt.Errorf("session: parse token: %w", err)
	}
	if claims.Subject == "" {
		return "", ErrNoSubject
	}
	return claims.Subject, nil
}
