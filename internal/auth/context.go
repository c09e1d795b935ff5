package auth

import "context"

// PrincipalType describes the kind of authenticated principal.
type PrincipalType string

const (
	// PrincipalTypeSession represents a member authenticated via session cookie.
	PrincipalTypeSession PrincipalType = "session"
	// PrincipalTypeAPIToken represents an automation client authenticated via bearer token.
	PrincipalTypeAPIToken PrincipalType = "api_token"
)

// Principal captures identity metadata propagated through the request context.
type Principal struct {
	// MemberID references the backing members row.
	MemberID string
	// MemberNumber is the member's public identifier.
	MemberNumber string
	// Email is the member's login email.
	Email string
	// Name is the display name.
	Name string
	// SessionID references the active session row; empty for API tokens.
	SessionID string
	// Attributes are the non-sensitive profile fields exposed to destination
	// `when` expressions.
	Attributes map[string]any
	// Type differentiates cookie sessions from API tokens.
	Type PrincipalType
}

// SessionView converts the principal into the core's read-only session view.
func (p *Principal) SessionView() Session {
	if p == nil || p.MemberID == "" {
		return Anonymous()
	}
	return ForPrincipal(p.MemberID)
}

type principalContextKey struct{}

// WithPrincipal stores the authenticated principal on the context.
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext retrieves the authenticated principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(Principal)
	return principal, ok
}

// SessionFromContext derives the session view for the current request.
// Requests without a principal yield the anonymous session.
func SessionFromContext(ctx context.Context) Session {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		return Anonymous()
	}
	return principal.SessionView()
}
