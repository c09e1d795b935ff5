package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// APITokenClaims are the verified claims of an automation bearer token.
type APITokenClaims struct {
	// Subject is the member ID the token was minted for.
	Subject string
	// JTI is the unique token ID, checked against the revocation denylist.
	JTI string
	// ExpiresAt is the token expiry.
	ExpiresAt time.Time
}

// MintAPIToken creates a signed HS256 bearer token for automation clients.
// Returns the compact token and its JTI so the caller can record or later
// revoke it.
func MintAPIToken(secret, issuer, memberID string, ttl time.Duration) (string, string, error) {
	if secret == "" {
		return "", "", fmt.Errorf("token signing secret not configured")
	}
	if ttl <= 0 {
		return "", "", fmt.Errorf("token ttl must be positive")
	}

	jti := uuid.NewString()
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   memberID,
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", "", fmt.Errorf("sign api token: %w", err)
	}
	return signed, jti, nil
}

// VerifyAPIToken parses and validates a bearer token, enforcing the HS256
// algorithm and the expected issuer. Revocation is the caller's concern.
func VerifyAPIToken(secret, issuer, tokenString string) (*APITokenClaims, error) {
	if secret == "" {
		return nil, fmt.Errorf("token signing secret not configured")
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			return []byte(secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify api token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("verify api token: token invalid")
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("verify api token: missing sub or jti claim")
	}

	return &APITokenClaims{
		Subject:   claims.Subject,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
