package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imedia765/memberhub/internal/auth"
	"github.com/imedia765/memberhub/internal/roles"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := LoadRegistry("")
	require.NoError(t, err)
	return reg
}

func mustGet(t *testing.T, reg *Registry, id string) *Destination {
	t.Helper()
	dest, ok := reg.Get(id)
	require.True(t, ok, "destination %q missing", id)
	return dest
}

func TestDecideAccessRules(t *testing.T) {
	reg := testRegistry(t)
	anon := auth.Anonymous()
	signedIn := auth.ForPrincipal("m1")

	tests := []struct {
		name    string
		dest    string
		session auth.Session
		rs      roles.RoleSet
		allowed bool
		reason  Reason
	}{
		{
			name:    "public destination open to anonymous",
			dest:    "login",
			session: anon,
			rs:      roles.Resolved(),
			allowed: true,
		},
		{
			name:    "authenticated destination needs a session",
			dest:    "dashboard",
			session: anon,
			rs:      roles.Resolved(),
			reason:  ReasonNotAuthenticated,
		},
		{
			name:    "missing session reported before missing role",
			dest:    "system",
			session: anon,
			rs:      roles.Resolved(),
			reason:  ReasonNotAuthenticated,
		},
		{
			name:    "authenticated destination reachable while resolving",
			dest:    "dashboard",
			session: signedIn,
			rs:      roles.Pending(),
			allowed: true,
		},
		{
			name:    "role-gated destination closed while resolving",
			dest:    "members",
			session: signedIn,
			rs:      roles.Pending(),
			reason:  ReasonLoading,
		},
		{
			name:    "failed resolution closes role-gated destination",
			dest:    "members",
			session: signedIn,
			rs:      roles.Failed(),
			reason:  ReasonLoading,
		},
		{
			name:    "matching role opens role-gated destination",
			dest:    "members",
			session: signedIn,
			rs:      roles.Resolved(roles.RoleCollector),
			allowed: true,
		},
		{
			name:    "admin role opens every role-gated destination",
			dest:    "system",
			session: signedIn,
			rs:      roles.Resolved(roles.RoleAdmin),
			allowed: true,
		},
		{
			name:    "member role does not open admin destination",
			dest:    "system",
			session: signedIn,
			rs:      roles.Resolved(roles.RoleMember),
			reason:  ReasonInsufficientRole,
		},
		{
			name:    "empty resolved set grants nothing role-gated",
			dest:    "financials",
			session: signedIn,
			rs:      roles.Resolved(),
			reason:  ReasonInsufficientRole,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(mustGet(t, reg, tt.dest), tt.session, tt.rs, nil)
			assert.Equal(t, tt.allowed, d.Allowed)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestDecideNilDestination(t *testing.T) {
	d := Decide(nil, auth.ForPrincipal("m1"), roles.Resolved(roles.RoleAdmin), nil)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonUnknownDestination, d.Reason)
}

func TestDecideUnknownAccessKindDenies(t *testing.T) {
	dest := &Destination{ID: "odd", Access: AccessKind("vip")}
	d := Decide(dest, auth.ForPrincipal("m1"), roles.Resolved(roles.RoleAdmin), nil)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonRestricted, d.Reason)
}

func TestDecideWhenConstraint(t *testing.T) {
	reg, err := ParseRegistry([]byte(`{
		"destinations": [
			{"id": "login", "title": "Login", "access": "public"},
			{"id": "dashboard", "title": "Dashboard", "access": "any-authenticated", "when": "status == active"}
		]
	}`))
	require.NoError(t, err)

	dest := mustGet(t, reg, "dashboard")
	session := auth.ForPrincipal("m1")
	rs := roles.Resolved(roles.RoleMember)

	t.Run("matching attributes allow", func(t *testing.T) {
		d := Decide(dest, session, rs, map[string]any{"status": "active"})
		assert.True(t, d.Allowed)
	})

	t.Run("mismatching attributes deny", func(t *testing.T) {
		d := Decide(dest, session, rs, map[string]any{"status": "suspended"})
		assert.False(t, d.Allowed)
		assert.Equal(t, ReasonRestricted, d.Reason)
	})

	t.Run("missing attributes deny", func(t *testing.T) {
		d := Decide(dest, session, rs, map[string]any{})
		assert.False(t, d.Allowed)
		assert.Equal(t, ReasonRestricted, d.Reason)
	})

	t.Run("constraint not evaluated for public access", func(t *testing.T) {
		pub := &Destination{ID: "promo", Access: AccessPublic, When: "status == active"}
		d := Decide(pub, auth.Anonymous(), roles.Resolved(), nil)
		assert.True(t, d.Allowed)
	})
}
