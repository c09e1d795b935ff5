package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	// SessionCookieName is the cookie carrying the session bearer token
	SessionCookieName = "memberhub.session"

	// TokenLength is the length of generated bearer tokens in bytes
	TokenLength = 32
)

// Session is the read-only view of authentication state the core consumes.
// It is owned by the authentication layer; everything downstream (role
// resolution, navigation) only ever reads it.
type Session struct {
	// Present reports whether an authenticated principal exists
	Present bool
	// PrincipalID is the member ID of the authenticated principal, empty
	// when Present is false
	PrincipalID string
}

// Anonymous returns the session view for an unauthenticated caller.
func Anonymous() Session {
	return Session{}
}

// ForPrincipal returns the session view for an authenticated member.
func ForPrincipal(memberID string) Session {
	return Session{Present: true, PrincipalID: memberID}
}

// GenerateBearerToken generates a cryptographically secure random bearer token.
// Returns the token (hex string) and its SHA256 hash for storage.
func GenerateBearerToken() (string, string, error) {
	tokenBytes := make([]byte, TokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", "", fmt.Errorf("generate random token: %w", err)
	}

	token := hex.EncodeToString(tokenBytes)
	return token, HashToken(token), nil
}

// HashToken hashes a bearer token for storage/lookup
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateSessionToken checks expiration, revocation, and member status.
// Any failure means the request is treated as unauthenticated.
func ValidateSessionToken(expiresAt time.Time, revoked bool, memberDisabled bool) error {
	if time.Now().After(expiresAt) {
		return fmt.Errorf("session expired")
	}
	if revoked {
		return fmt.Errorf("session revoked")
	}
	if memberDisabled {
		return fmt.Errorf("member disabled")
	}
	return nil
}
