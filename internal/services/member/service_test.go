package member

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imedia765/memberhub/internal/auth"
	"github.com/imedia765/memberhub/internal/db/models"
	"github.com/imedia765/memberhub/internal/repository"
	"github.com/imedia765/memberhub/internal/roles"
)

type fakeMemberRepo struct {
	byID         map[string]*models.Member
	lastLogin    []string
	searchResult []models.Member
	byCollector  []models.Member
}

func newFakeMemberRepo(members ...*models.Member) *fakeMemberRepo {
	repo := &fakeMemberRepo{byID: map[string]*models.Member{}}
	for _, m := range members {
		repo.byID[m.ID] = m
	}
	return repo
}

func (f *fakeMemberRepo) GetByID(_ context.Context, id string) (*models.Member, error) {
	if m, ok := f.byID[id]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("member %s: %w", id, repository.ErrNotFound)
}

func (f *fakeMemberRepo) GetByMemberNumber(_ context.Context, memberNumber string) (*models.Member, error) {
	for _, m := range f.byID {
		if m.MemberNumber == memberNumber {
			return m, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeMemberRepo) GetByEmail(_ context.Context, email string) (*models.Member, error) {
	for _, m := range f.byID {
		if strings.EqualFold(m.Email, email) {
			return m, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeMemberRepo) UpdateLastLogin(_ context.Context, id string) error {
	f.lastLogin = append(f.lastLogin, id)
	return nil
}

func (f *fakeMemberRepo) Search(context.Context, string) ([]models.Member, error) {
	return f.searchResult, nil
}

func (f *fakeMemberRepo) ListByCollector(context.Context, string) ([]models.Member, error) {
	return f.byCollector, nil
}

func (f *fakeMemberRepo) ListByIDs(_ context.Context, ids []string) ([]models.Member, error) {
	out := []models.Member{}
	for _, id := range ids {
		if m, ok := f.byID[id]; ok {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMemberRepo) Count(context.Context) (int, error)                       { return len(f.byID), nil }
func (f *fakeMemberRepo) Create(context.Context, *models.Member) error             { return nil }
func (f *fakeMemberRepo) Update(context.Context, *models.Member) error             { return nil }
func (f *fakeMemberRepo) UpdatePasswordHash(context.Context, string, string) error { return nil }

type fakeSessionRepo struct {
	byHash  map[string]*models.Session
	revoked []string
	byAll   []string
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{byHash: map[string]*models.Session{}}
}

func (f *fakeSessionRepo) Create(_ context.Context, session *models.Session) error {
	f.byHash[session.TokenHash] = session
	return nil
}

func (f *fakeSessionRepo) GetByTokenHash(_ context.Context, tokenHash string) (*models.Session, error) {
	if s, ok := f.byHash[tokenHash]; ok {
		return s, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeSessionRepo) Revoke(_ context.Context, id string) error {
	f.revoked = append(f.revoked, id)
	return nil
}

func (f *fakeSessionRepo) RevokeByMemberID(_ context.Context, memberID string) error {
	f.byAll = append(f.byAll, memberID)
	return nil
}

func (f *fakeSessionRepo) UpdateLastUsed(context.Context, string) error { return nil }
func (f *fakeSessionRepo) DeleteExpired(context.Context) error          { return nil }

func newMember(t *testing.T, id, number, email, password string) *models.Member {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	return &models.Member{
		ID:           id,
		MemberNumber: number,
		Email:        email,
		Name:         "Member " + id,
		PasswordHash: hash,
		Status:       "active",
	}
}

func TestAuthenticate(t *testing.T) {
	alice := newMember(t, "m1", "MH00001", "alice@example.com", "correct-horse-1")
	repo := newFakeMemberRepo(alice)
	svc := NewService(repo, newFakeSessionRepo(), nil, time.Hour)

	t.Run("by member number", func(t *testing.T) {
		got, err := svc.Authenticate(context.Background(), "mh00001", "correct-horse-1")
		require.NoError(t, err)
		assert.Equal(t, "m1", got.ID)
		assert.Contains(t, repo.lastLogin, "m1")
	})

	t.Run("by email case-insensitively", func(t *testing.T) {
		got, err := svc.Authenticate(context.Background(), "Alice@Example.com", "correct-horse-1")
		require.NoError(t, err)
		assert.Equal(t, "m1", got.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Authenticate(context.Background(), "MH00001", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown identifier looks like wrong password", func(t *testing.T) {
		_, err := svc.Authenticate(context.Background(), "MH09999", "whatever")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("disabled account", func(t *testing.T) {
		now := time.Now()
		bob := newMember(t, "m2", "MH00002", "bob@example.com", "correct-horse-1")
		bob.DisabledAt = &now
		svc := NewService(newFakeMemberRepo(bob), newFakeSessionRepo(), nil, time.Hour)

		_, err := svc.Authenticate(context.Background(), "MH00002", "correct-horse-1")
		assert.ErrorIs(t, err, ErrAccountDisabled)
	})
}

func TestSessionLifecycle(t *testing.T) {
	sessions := newFakeSessionRepo()
	broker := auth.NewBroker()
	changes, cancel := broker.Subscribe()
	defer cancel()

	svc := NewService(newFakeMemberRepo(), sessions, broker, time.Hour)

	token, session, err := svc.CreateSession(context.Background(), "m1", "cli/1.0", "10.0.0.9")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotEqual(t, token, session.TokenHash, "plaintext token must not be stored")
	assert.Equal(t, auth.HashToken(token), session.TokenHash)
	assert.True(t, session.ExpiresAt.After(time.Now()))

	change := <-changes
	assert.Equal(t, auth.ForPrincipal("m1"), change.Session)

	require.NoError(t, svc.Logout(context.Background(), token))
	assert.Equal(t, []string{session.ID}, sessions.revoked)

	change = <-changes
	assert.False(t, change.Session.Present)
}

func TestLogoutUnknownTokenIsANoOp(t *testing.T) {
	svc := NewService(newFakeMemberRepo(), newFakeSessionRepo(), nil, time.Hour)
	assert.NoError(t, svc.Logout(context.Background(), "never-issued"))
}

func TestRevokeAllSessions(t *testing.T) {
	sessions := newFakeSessionRepo()
	svc := NewService(newFakeMemberRepo(), sessions, nil, time.Hour)

	require.NoError(t, svc.RevokeAllSessions(context.Background(), "m1"))
	assert.Equal(t, []string{"m1"}, sessions.byAll)
}

// fakeGrantSource returns a fixed holder list for one role subject.
type fakeGrantSource struct {
	subject string
	holders []string
	err     error
}

func (f *fakeGrantSource) GrantHolders(_ context.Context, roleSubject string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if roleSubject != f.subject {
		return nil, nil
	}
	return f.holders, nil
}

func TestCollectors(t *testing.T) {
	carol := newMember(t, "c1", "MH00010", "carol@example.com", "correct-horse-1")
	dan := newMember(t, "c2", "MH00011", "dan@example.com", "correct-horse-1")
	repo := newFakeMemberRepo(carol, dan, newMember(t, "m1", "MH00012", "eve@example.com", "correct-horse-1"))
	grants := &fakeGrantSource{subject: auth.RoleSubjectCollector, holders: []string{"c1", "c2"}}
	svc := NewService(repo, newFakeSessionRepo(), nil, time.Hour).WithGrantSource(grants)
	ctx := context.Background()

	t.Run("admin lists grant holders", func(t *testing.T) {
		got, err := svc.Collectors(ctx, roles.Resolved(roles.RoleAdmin))
		require.NoError(t, err)
		require.Len(t, got, 2)
	})

	t.Run("collector may list too", func(t *testing.T) {
		got, err := svc.Collectors(ctx, roles.Resolved(roles.RoleCollector))
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("plain member is refused", func(t *testing.T) {
		_, err := svc.Collectors(ctx, roles.Resolved(roles.RoleMember))
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("grant source failure surfaces", func(t *testing.T) {
		broken := NewService(repo, newFakeSessionRepo(), nil, time.Hour).
			WithGrantSource(&fakeGrantSource{err: fmt.Errorf("enforcer down")})
		_, err := broken.Collectors(ctx, roles.Resolved(roles.RoleAdmin))
		assert.Error(t, err)
	})
}

func TestDirectoryScoping(t *testing.T) {
	repo := newFakeMemberRepo()
	repo.searchResult = []models.Member{{ID: "m1"}, {ID: "m2"}, {ID: "m3"}}
	repo.byCollector = []models.Member{
		{ID: "m2", MemberNumber: "MH00002", Email: "bob@example.com", Name: "Bob"},
		{ID: "m3", MemberNumber: "MH00003", Email: "carol@example.com", Name: "Carol"},
	}
	svc := NewService(repo, newFakeSessionRepo(), nil, time.Hour)
	ctx := context.Background()

	t.Run("admin sees everyone", func(t *testing.T) {
		got, err := svc.Directory(ctx, "a1", roles.Resolved(roles.RoleAdmin), "")
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("collector sees own members", func(t *testing.T) {
		got, err := svc.Directory(ctx, "c1", roles.Resolved(roles.RoleCollector), "")
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("collector search filters locally", func(t *testing.T) {
		got, err := svc.Directory(ctx, "c1", roles.Resolved(roles.RoleCollector), "carol")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "m3", got[0].ID)
	})

	t.Run("member is refused", func(t *testing.T) {
		_, err := svc.Directory(ctx, "m2", roles.Resolved(roles.RoleMember), "")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("unresolved roles are refused", func(t *testing.T) {
		_, err := svc.Directory(ctx, "a1", roles.Pending(), "")
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestCount(t *testing.T) {
	svc := NewService(newFakeMemberRepo(), newFakeSessionRepo(), nil, time.Hour)

	_, err := svc.Count(context.Background(), roles.Resolved(roles.RoleCollector))
	assert.ErrorIs(t, err, ErrForbidden)

	n, err := svc.Count(context.Background(), roles.Resolved(roles.RoleAdmin))
	require.NoError(t, err)
	assert.Zero(t, n)
}
