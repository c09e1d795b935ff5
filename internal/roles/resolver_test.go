package roles

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/imedia765/memberhub/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowGate simulates a delayed authority response for one principal:
// entered is closed when the lookup arrives, release unblocks it.
type slowGate struct {
	entered chan struct{}
	release chan struct{}
}

func newSlowGate() *slowGate {
	return &slowGate{entered: make(chan struct{}), release: make(chan struct{})}
}

// fakeAuthority is a controllable role authority.
type fakeAuthority struct {
	mu         sync.Mutex
	admins     map[string]bool
	collectors map[string]bool
	profiles   map[string]string
	failAll    bool
	gates      map[string]*slowGate
	calls      int
}

func newFakeAuthority() *fakeAuthority {
	return &fakeAuthority{
		admins:     map[string]bool{},
		collectors: map[string]bool{},
		profiles:   map[string]string{},
		gates:      map[string]*slowGate{},
	}
}

func (f *fakeAuthority) IsAdmin(ctx context.Context, memberID string) (bool, error) {
	f.mu.Lock()
	gate := f.gates[memberID]
	f.mu.Unlock()
	if gate != nil {
		close(gate.entered)
		<-gate.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAll {
		return false, errors.New("authority unavailable")
	}
	return f.admins[memberID], nil
}

func (f *fakeAuthority) IsCollector(ctx context.Context, memberID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return false, errors.New("authority unavailable")
	}
	return f.collectors[memberID], nil
}

func (f *fakeAuthority) ProfileRole(ctx context.Context, memberID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return "", errors.New("authority unavailable")
	}
	return f.profiles[memberID], nil
}

func (f *fakeAuthority) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestResolver(t *testing.T, a *fakeAuthority) *Resolver {
	t.Helper()
	r, err := NewResolver(a, 16)
	require.NoError(t, err)
	return r
}

func TestResolve_AbsentSessionResolvesImmediately(t *testing.T) {
	r := newTestResolver(t, newFakeAuthority())

	rs := r.Resolve(context.Background(), auth.Anonymous())

	assert.Equal(t, StatusResolved, rs.Status)
	assert.Empty(t, rs.Roles)
	assert.Equal(t, StatusResolved, r.Snapshot().Status)
}

func TestResolve_PriorityOrderAdminWinsOverProfile(t *testing.T) {
	a := newFakeAuthority()
	a.admins["m1"] = true
	a.profiles["m1"] = "member" // stale profile row alongside admin grant
	r := newTestResolver(t, a)

	rs := r.Resolve(context.Background(), auth.ForPrincipal("m1"))

	assert.True(t, rs.HasRole(RoleAdmin))
	assert.False(t, rs.HasRole(RoleMember))
}

func TestResolve_CollectorBeforeProfile(t *testing.T) {
	a := newFakeAuthority()
	a.collectors["m2"] = true
	a.profiles["m2"] = "member"
	r := newTestResolver(t, a)

	rs := r.Resolve(context.Background(), auth.ForPrincipal("m2"))

	assert.True(t, rs.HasRole(RoleCollector))
}

func TestResolve_ProfileRoleThenDefaultMember(t *testing.T) {
	a := newFakeAuthority()
	a.profiles["m3"] = "collector"
	r := newTestResolver(t, a)

	assert.True(t, r.Resolve(context.Background(), auth.ForPrincipal("m3")).HasRole(RoleCollector))

	// No grants, no profile role: defaults to member.
	assert.True(t, r.Resolve(context.Background(), auth.ForPrincipal("m4")).HasRole(RoleMember))

	// Unrecognized profile role strings are not passed through.
	a.mu.Lock()
	a.profiles["m5"] = "superuser"
	a.mu.Unlock()
	rs := r.Resolve(context.Background(), auth.ForPrincipal("m5"))
	assert.True(t, rs.HasRole(RoleMember))
}

func TestResolve_AuthorityFailureFailsClosed(t *testing.T) {
	a := newFakeAuthority()
	a.failAll = true
	r := newTestResolver(t, a)

	rs := r.Resolve(context.Background(), auth.ForPrincipal("m1"))

	assert.Equal(t, StatusFailed, rs.Status)
	assert.False(t, rs.HasRole(RoleMember))
	assert.False(t, rs.HasRole(RoleAdmin))
}

func TestResolve_StaleResponseDiscardedOnPrincipalSwitch(t *testing.T) {
	a := newFakeAuthority()
	a.admins["alice"] = true
	gate := newSlowGate()
	a.gates["alice"] = gate
	r := newTestResolver(t, a)

	// Start a resolution for alice that blocks inside the authority.
	done := make(chan struct{})
	go func() {
		r.Resolve(context.Background(), auth.ForPrincipal("alice"))
		close(done)
	}()
	<-gate.entered

	// Switch to bob while alice's response is still in flight.
	rs := r.Resolve(context.Background(), auth.ForPrincipal("bob"))
	require.Equal(t, StatusResolved, rs.Status)
	assert.True(t, rs.HasRole(RoleMember))

	// Release alice's slow response; it must be discarded, not published.
	close(gate.release)
	<-done

	assert.Equal(t, "bob", r.Session().PrincipalID)
	assert.True(t, r.Snapshot().HasRole(RoleMember))
	assert.False(t, r.Snapshot().HasRole(RoleAdmin),
		"alice's late response must not overwrite bob's role set")
}

func TestLookup_MemoizesPerPrincipal(t *testing.T) {
	a := newFakeAuthority()
	a.admins["m1"] = true
	r := newTestResolver(t, a)

	first := r.Lookup(context.Background(), "m1")
	callsAfterFirst := a.callCount()
	second := r.Lookup(context.Background(), "m1")

	assert.Equal(t, first, second)
	assert.Equal(t, callsAfterFirst, a.callCount(), "memoized lookup must not re-query the authority")

	r.Invalidate("m1")
	r.Lookup(context.Background(), "m1")
	assert.Greater(t, a.callCount(), callsAfterFirst, "invalidation must force a fresh query")
}

func TestLookup_FailureIsNotMemoized(t *testing.T) {
	a := newFakeAuthority()
	a.failAll = true
	r := newTestResolver(t, a)

	assert.Equal(t, StatusFailed, r.Lookup(context.Background(), "m1").Status)

	a.mu.Lock()
	a.failAll = false
	a.admins["m1"] = true
	a.mu.Unlock()

	assert.True(t, r.Lookup(context.Background(), "m1").HasRole(RoleAdmin),
		"a failed resolution must not poison later lookups")
}

func TestLookup_MemoExpiryPicksUpRevokedGrant(t *testing.T) {
	a := newFakeAuthority()
	a.admins["m1"] = true
	r := newTestResolver(t, a)

	current := time.Now()
	r.now = func() time.Time { return current }

	require.True(t, r.Lookup(context.Background(), "m1").HasRole(RoleAdmin))

	// Revoke the grant out of band (cmd/iam, another replica). Within the
	// TTL the cached set is still served.
	a.mu.Lock()
	a.admins["m1"] = false
	a.mu.Unlock()

	assert.True(t, r.Lookup(context.Background(), "m1").HasRole(RoleAdmin))

	// Past the TTL the next lookup re-queries the authority and the
	// revoked grant stops being served.
	current = current.Add(DefaultMemoTTL + time.Second)
	rs := r.Lookup(context.Background(), "m1")
	assert.False(t, rs.HasRole(RoleAdmin), "revoked grant must not outlive the memo TTL")
	assert.True(t, rs.HasRole(RoleMember))
}

func TestLookup_ZeroTTLDisablesMemo(t *testing.T) {
	a := newFakeAuthority()
	r := newTestResolver(t, a).WithMemoTTL(0)

	r.Lookup(context.Background(), "m1")
	r.Lookup(context.Background(), "m1")
	assert.Equal(t, 2, a.callCount(), "zero TTL must query the authority every time")
}
