// Package middleware carries the HTTP middleware chain: authentication
// (session cookie first, API bearer token second), request metadata capture
// for audit rows, and role gates for protected routes.
package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/imedia765/memberhub/internal/auth"
	"github.com/imedia765/memberhub/internal/repository"
)

// AuthnDependencies are the collaborators the authentication middleware
// needs. All fields are required.
type AuthnDependencies struct {
	Members     repository.MemberRepository
	Sessions    repository.SessionRepository
	RevokedJTIs repository.RevokedJTIRepository

	TokenSigningSecret string
	TokenIssuer        string
}

// NewAuthn builds the authentication middleware. A session cookie is tried
// first, then an Authorization bearer token. Requests presenting neither
// pass through anonymous; requests presenting a credential that fails
// validation are refused outright rather than downgraded to anonymous.
func NewAuthn(deps AuthnDependencies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if cookie, err := r.Cookie(auth.SessionCookieName); err == nil && cookie.Value != "" {
				principal, ok := authenticateSession(w, r, deps, cookie.Value)
				if !ok {
					return
				}
				next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(ctx, principal)))
				return
			}

			if token, ok := bearerToken(r); ok {
				principal, ok := authenticateAPIToken(w, r, deps, token)
				if !ok {
					return
				}
				next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(ctx, principal)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func authenticateSession(w http.ResponseWriter, r *http.Request, deps AuthnDependencies, token string) (auth.Principal, bool) {
	ctx := r.Context()

	session, err := deps.Sessions.GetByTokenHash(ctx, auth.HashToken(token))
	if err != nil {
		http.Error(w, "Invalid session", http.StatusUnauthorized)
		return auth.Principal{}, false
	}

	member, err := deps.Members.GetByID(ctx, session.MemberID)
	if err != nil {
		log.Printf("authn: load member %s for session %s: %v", session.MemberID, session.ID, err)
		http.Error(w, "Authentication error", http.StatusInternalServerError)
		return auth.Principal{}, false
	}

	if err := auth.ValidateSessionToken(session.ExpiresAt, session.Revoked, member.DisabledAt != nil); err != nil {
		http.Error(w, "Session invalid: "+err.Error(), http.StatusUnauthorized)
		return auth.Principal{}, false
	}

	if err := deps.Sessions.UpdateLastUsed(ctx, session.ID); err != nil {
		log.Printf("authn: update last used for session %s: %v", session.ID, err)
	}

	return auth.Principal{
		MemberID:     member.ID,
		MemberNumber: member.MemberNumber,
		Email:        member.Email,
		Name:         member.Name,
		SessionID:    session.ID,
		Attributes:   member.Attributes(),
		Type:         auth.PrincipalTypeSession,
	}, true
}

func authenticateAPIToken(w http.ResponseWriter, r *http.Request, deps AuthnDependencies, token string) (auth.Principal, bool) {
	ctx := r.Context()

	claims, err := auth.VerifyAPIToken(deps.TokenSigningSecret, deps.TokenIssuer, token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return auth.Principal{}, false
	}

	revoked, err := deps.RevokedJTIs.IsRevoked(ctx, claims.JTI)
	if err != nil {
		log.Printf("authn: revocation check for jti %s: %v", claims.JTI, err)
		http.Error(w, "Authentication error", http.StatusInternalServerError)
		return auth.Principal{}, false
	}
	if revoked {
		http.Error(w, "Token revoked", http.StatusUnauthorized)
		return auth.Principal{}, false
	}

	member, err := deps.Members.GetByID(ctx, claims.Subject)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return auth.Principal{}, false
	}
	if member.DisabledAt != nil {
		http.Error(w, "Account disabled", http.StatusUnauthorized)
		return auth.Principal{}, false
	}

	return auth.Principal{
		MemberID:     member.ID,
		MemberNumber: member.MemberNumber,
		Email:        member.Email,
		Name:         member.Name,
		Attributes:   member.Attributes(),
		Type:         auth.PrincipalTypeAPIToken,
	}, true
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}
