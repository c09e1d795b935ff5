package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imedia765/memberhub/internal/auth"
	"github.com/imedia765/memberhub/internal/db/models"
	"github.com/imedia765/memberhub/internal/repository"
	"github.com/imedia765/memberhub/internal/roles"
)

type fakeMembers struct {
	byID map[string]*models.Member
}

func (f *fakeMembers) GetByID(_ context.Context, id string) (*models.Member, error) {
	if m, ok := f.byID[id]; ok {
		return m, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeMembers) Create(context.Context, *models.Member) error  { return nil }
func (f *fakeMembers) Update(context.Context, *models.Member) error  { return nil }
func (f *fakeMembers) UpdateLastLogin(context.Context, string) error { return nil }
func (f *fakeMembers) GetByMemberNumber(context.Context, string) (*models.Member, error) {
	return nil, repository.ErrNotFound
}
func (f *fakeMembers) GetByEmail(context.Context, string) (*models.Member, error) {
	return nil, repository.ErrNotFound
}
func (f *fakeMembers) Search(context.Context, string) ([]models.Member, error)  { return nil, nil }
func (f *fakeMembers) Count(context.Context) (int, error)                       { return 0, nil }
func (f *fakeMembers) UpdatePasswordHash(context.Context, string, string) error { return nil }
func (f *fakeMembers) ListByCollector(context.Context, string) ([]models.Member, error) {
	return nil, nil
}
func (f *fakeMembers) ListByIDs(context.Context, []string) ([]models.Member, error) {
	return nil, nil
}

type fakeSessions struct {
	byHash   map[string]*models.Session
	lastUsed []string
}

func (f *fakeSessions) GetByTokenHash(_ context.Context, hash string) (*models.Session, error) {
	if s, ok := f.byHash[hash]; ok {
		return s, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeSessions) UpdateLastUsed(_ context.Context, id string) error {
	f.lastUsed = append(f.lastUsed, id)
	return nil
}

func (f *fakeSessions) Create(context.Context, *models.Session) error  { return nil }
func (f *fakeSessions) Revoke(context.Context, string) error           { return nil }
func (f *fakeSessions) RevokeByMemberID(context.Context, string) error { return nil }
func (f *fakeSessions) DeleteExpired(context.Context) error            { return nil }

type fakeRevoked struct {
	revoked map[string]bool
}

func (f *fakeRevoked) IsRevoked(_ context.Context, jti string) (bool, error) {
	return f.revoked[jti], nil
}

func (f *fakeRevoked) Revoke(context.Context, *models.RevokedJTI) error { return nil }
func (f *fakeRevoked) DeleteExpired(context.Context) error              { return nil }

const (
	testSecret = "test-signing-secret"
	testIssuer = "memberhub"
)

func testDeps(member *models.Member, session *models.Session) (AuthnDependencies, *fakeSessions) {
	members := &fakeMembers{byID: map[string]*models.Member{}}
	if member != nil {
		members.byID[member.ID] = member
	}
	sessions := &fakeSessions{byHash: map[string]*models.Session{}}
	if session != nil {
		sessions.byHash[session.TokenHash] = session
	}
	return AuthnDependencies{
		Members:            members,
		Sessions:           sessions,
		RevokedJTIs:        &fakeRevoked{revoked: map[string]bool{}},
		TokenSigningSecret: testSecret,
		TokenIssuer:        testIssuer,
	}, sessions
}

func principalCapture(captured *auth.Principal, found *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFromContext(r.Context())
		*captured, *found = p, ok
		w.WriteHeader(http.StatusOK)
	})
}

func activeMember() *models.Member {
	return &models.Member{
		ID:           "m1",
		MemberNumber: "MH00001",
		Email:        "m1@example.com",
		Name:         "Member One",
		Status:       "active",
	}
}

func TestAuthnSessionCookie(t *testing.T) {
	token, tokenHash, err := auth.GenerateBearerToken()
	require.NoError(t, err)

	session := &models.Session{
		ID:        "s1",
		MemberID:  "m1",
		TokenHash: tokenHash,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	deps, sessions := testDeps(activeMember(), session)

	var principal auth.Principal
	var found bool
	handler := NewAuthn(deps)(principalCapture(&principal, &found))

	req := httptest.NewRequest(http.MethodGet, "/api/nav", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, found)
	assert.Equal(t, "m1", principal.MemberID)
	assert.Equal(t, "s1", principal.SessionID)
	assert.Equal(t, auth.PrincipalTypeSession, principal.Type)
	assert.Equal(t, "MH00001", principal.Attributes["member_number"])
	assert.Equal(t, []string{"s1"}, sessions.lastUsed)
}

func TestAuthnSessionRejections(t *testing.T) {
	token, tokenHash, err := auth.GenerateBearerToken()
	require.NoError(t, err)

	now := time.Now()
	tests := []struct {
		name    string
		session *models.Session
		member  *models.Member
	}{
		{
			name:    "unknown cookie",
			session: nil,
			member:  activeMember(),
		},
		{
			name:    "expired session",
			session: &models.Session{ID: "s1", MemberID: "m1", TokenHash: tokenHash, ExpiresAt: now.Add(-time.Minute)},
			member:  activeMember(),
		},
		{
			name:    "revoked session",
			session: &models.Session{ID: "s1", MemberID: "m1", TokenHash: tokenHash, ExpiresAt: now.Add(time.Hour), Revoked: true},
			member:  activeMember(),
		},
		{
			name:    "disabled member",
			session: &models.Session{ID: "s1", MemberID: "m1", TokenHash: tokenHash, ExpiresAt: now.Add(time.Hour)},
			member: func() *models.Member {
				m := activeMember()
				m.DisabledAt = &now
				return m
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, _ := testDeps(tt.member, tt.session)
			var principal auth.Principal
			var found bool
			handler := NewAuthn(deps)(principalCapture(&principal, &found))

			req := httptest.NewRequest(http.MethodGet, "/api/nav", nil)
			req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, found, "a bad credential must not fall through as anonymous")
		})
	}
}

func TestAuthnAPIToken(t *testing.T) {
	deps, _ := testDeps(activeMember(), nil)

	t.Run("valid token authenticates", func(t *testing.T) {
		token, _, err := auth.MintAPIToken(testSecret, testIssuer, "m1", time.Hour)
		require.NoError(t, err)

		var principal auth.Principal
		var found bool
		handler := NewAuthn(deps)(principalCapture(&principal, &found))

		req := httptest.NewRequest(http.MethodGet, "/api/members", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.True(t, found)
		assert.Equal(t, "m1", principal.MemberID)
		assert.Equal(t, auth.PrincipalTypeAPIToken, principal.Type)
		assert.Empty(t, principal.SessionID)
	})

	t.Run("revoked jti is refused", func(t *testing.T) {
		token, jti, err := auth.MintAPIToken(testSecret, testIssuer, "m1", time.Hour)
		require.NoError(t, err)
		deps, _ := testDeps(activeMember(), nil)
		deps.RevokedJTIs = &fakeRevoked{revoked: map[string]bool{jti: true}}

		var principal auth.Principal
		var found bool
		handler := NewAuthn(deps)(principalCapture(&principal, &found))

		req := httptest.NewRequest(http.MethodGet, "/api/members", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, found)
	})

	t.Run("garbage token is refused", func(t *testing.T) {
		var principal auth.Principal
		var found bool
		handler := NewAuthn(deps)(principalCapture(&principal, &found))

		req := httptest.NewRequest(http.MethodGet, "/api/members", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, found)
	})
}

func TestAuthnNoCredentialPassesThroughAnonymous(t *testing.T) {
	deps, _ := testDeps(nil, nil)
	var principal auth.Principal
	var found bool
	handler := NewAuthn(deps)(principalCapture(&principal, &found))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, found)
}

type fakeRoleSource struct {
	rs roles.RoleSet
}

func (f *fakeRoleSource) Lookup(context.Context, string) roles.RoleSet { return f.rs }

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	withPrincipal := func(r *http.Request) *http.Request {
		ctx := auth.WithPrincipal(r.Context(), auth.Principal{MemberID: "m1"})
		return r.WithContext(ctx)
	}

	tests := []struct {
		name      string
		rs        roles.RoleSet
		principal bool
		want      int
	}{
		{"matching role passes", roles.Resolved(roles.RoleAdmin), true, http.StatusOK},
		{"insufficient role is forbidden", roles.Resolved(roles.RoleMember), true, http.StatusForbidden},
		{"unresolved lookup is forbidden", roles.Pending(), true, http.StatusForbidden},
		{"failed lookup is forbidden", roles.Failed(), true, http.StatusForbidden},
		{"anonymous is unauthorized", roles.Resolved(roles.RoleAdmin), false, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireRole(&fakeRoleSource{rs: tt.rs}, roles.RoleAdmin, roles.RoleCollector)(ok)

			req := httptest.NewRequest(http.MethodGet, "/api/members", nil)
			if tt.principal {
				req = withPrincipal(req)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireAuthenticated(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := RequireAuthenticated(ok)

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{MemberID: "m1"}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
