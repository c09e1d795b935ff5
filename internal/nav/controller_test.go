package nav

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imedia765/memberhub/internal/auth"
	"github.com/imedia765/memberhub/internal/roles"
)

// fakeAuthz is a controllable Authorizer. Resolve adopts the given session
// and returns whatever role set the test pinned.
type fakeAuthz struct {
	mu      sync.Mutex
	session auth.Session
	rs      roles.RoleSet
}

func newFakeAuthz(session auth.Session, rs roles.RoleSet) *fakeAuthz {
	return &fakeAuthz{session: session, rs: rs}
}

func (f *fakeAuthz) Session() auth.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

func (f *fakeAuthz) Snapshot() roles.RoleSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rs
}

func (f *fakeAuthz) Resolve(_ context.Context, session auth.Session) roles.RoleSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = session
	return f.rs
}

func (f *fakeAuthz) set(session auth.Session, rs roles.RoleSet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = session
	f.rs = rs
}

// eventRecorder captures controller events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func newTestController(t *testing.T, authz Authorizer) (*Controller, *eventRecorder) {
	t.Helper()
	rec := &eventRecorder{}
	return NewController(testRegistry(t), authz, nil, rec.record), rec
}

func TestControllerStartsAtReachableDestination(t *testing.T) {
	t.Run("anonymous lands on the public destination", func(t *testing.T) {
		c, rec := newTestController(t, newFakeAuthz(auth.Anonymous(), roles.Resolved()))
		assert.Equal(t, "login", c.Current())
		assert.Empty(t, rec.all())
	})

	t.Run("authenticated lands on the default destination", func(t *testing.T) {
		c, _ := newTestController(t, newFakeAuthz(auth.ForPrincipal("m1"), roles.Resolved(roles.RoleMember)))
		assert.Equal(t, DefaultDestination, c.Current())
	})
}

func TestControllerRequestNavigate(t *testing.T) {
	authz := newFakeAuthz(auth.ForPrincipal("m1"), roles.Resolved(roles.RoleMember))
	c, rec := newTestController(t, authz)

	t.Run("allowed request moves and reports", func(t *testing.T) {
		d := c.RequestNavigate("profile")
		assert.True(t, d.Allowed)
		assert.Equal(t, "profile", c.Current())

		events := rec.all()
		require.Len(t, events, 1)
		assert.Equal(t, Event{Kind: EventNavigated, Destination: "profile", From: "dashboard"}, events[0])
	})

	t.Run("denied request stays put with a reason", func(t *testing.T) {
		d := c.RequestNavigate("members")
		assert.False(t, d.Allowed)
		assert.Equal(t, ReasonInsufficientRole, d.Reason)
		assert.Equal(t, "profile", c.Current())

		events := rec.all()
		require.Len(t, events, 2)
		assert.Equal(t, Event{Kind: EventDenied, Destination: "members", From: "profile", Reason: ReasonInsufficientRole}, events[1])
	})

	t.Run("unknown destination is refused", func(t *testing.T) {
		d := c.RequestNavigate("treasure")
		assert.False(t, d.Allowed)
		assert.Equal(t, ReasonUnknownDestination, d.Reason)
		assert.Equal(t, "profile", c.Current())
	})

	t.Run("re-navigating to the current destination emits nothing", func(t *testing.T) {
		before := len(rec.all())
		d := c.RequestNavigate("profile")
		assert.True(t, d.Allowed)
		assert.Len(t, rec.all(), before)
	})
}

func TestControllerApplyRedirects(t *testing.T) {
	t.Run("role downgrade retreats to the default destination", func(t *testing.T) {
		authz := newFakeAuthz(auth.ForPrincipal("m1"), roles.Resolved(roles.RoleAdmin))
		c, rec := newTestController(t, authz)
		require.True(t, c.RequestNavigate("system").Allowed)

		authz.set(auth.ForPrincipal("m1"), roles.Resolved(roles.RoleMember))
		c.Apply()

		assert.Equal(t, DefaultDestination, c.Current())
		events := rec.all()
		require.Len(t, events, 2)
		assert.Equal(t, Event{Kind: EventRedirected, Destination: DefaultDestination, From: "system", Reason: ReasonInsufficientRole}, events[1])
	})

	t.Run("sign-out retreats to the public destination", func(t *testing.T) {
		authz := newFakeAuthz(auth.ForPrincipal("m1"), roles.Resolved(roles.RoleMember))
		c, rec := newTestController(t, authz)
		require.Equal(t, DefaultDestination, c.Current())

		authz.set(auth.Anonymous(), roles.Resolved())
		c.Apply()

		assert.Equal(t, "login", c.Current())
		events := rec.all()
		require.Len(t, events, 1)
		assert.Equal(t, Event{Kind: EventRedirected, Destination: "login", From: "dashboard", Reason: ReasonNotAuthenticated}, events[0])
	})

	t.Run("no event while the current destination stays allowed", func(t *testing.T) {
		authz := newFakeAuthz(auth.ForPrincipal("m1"), roles.Resolved(roles.RoleCollector))
		c, rec := newTestController(t, authz)
		require.True(t, c.RequestNavigate("members").Allowed)

		authz.set(auth.ForPrincipal("m1"), roles.Resolved(roles.RoleAdmin))
		c.Apply()

		assert.Equal(t, "members", c.Current())
		assert.Len(t, rec.all(), 1) // only the explicit navigation
	})
}

func TestControllerVisible(t *testing.T) {
	tests := []struct {
		name    string
		session auth.Session
		rs      roles.RoleSet
		want    []string
	}{
		{
			name:    "anonymous sees only public destinations",
			session: auth.Anonymous(),
			rs:      roles.Resolved(),
			want:    []string{"login"},
		},
		{
			name:    "resolving member sees only ungated destinations",
			session: auth.ForPrincipal("m1"),
			rs:      roles.Pending(),
			want:    []string{"login", "dashboard", "profile"},
		},
		{
			name:    "member sees no role-gated destinations",
			session: auth.ForPrincipal("m1"),
			rs:      roles.Resolved(roles.RoleMember),
			want:    []string{"login", "dashboard", "profile"},
		},
		{
			name:    "collector sees the collector surfaces",
			session: auth.ForPrincipal("m1"),
			rs:      roles.Resolved(roles.RoleCollector),
			want:    []string{"login", "dashboard", "profile", "members", "financials"},
		},
		{
			name:    "admin sees everything",
			session: auth.ForPrincipal("m1"),
			rs:      roles.Resolved(roles.RoleAdmin),
			want:    []string{"login", "dashboard", "profile", "members", "financials", "system"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestController(t, newFakeAuthz(tt.session, tt.rs))

			got := make([]string, 0)
			for _, d := range c.Visible() {
				got = append(got, d.ID)
			}
			assert.Equal(t, tt.want, got)

			// The list is stable for an unchanged state.
			again := make([]string, 0)
			for _, d := range c.Visible() {
				again = append(again, d.ID)
			}
			assert.Equal(t, got, again)
		})
	}
}

func TestControllerWatchReactsToSessionChanges(t *testing.T) {
	authz := newFakeAuthz(auth.ForPrincipal("m1"), roles.Resolved(roles.RoleAdmin))
	c, _ := newTestController(t, authz)
	require.True(t, c.RequestNavigate("system").Allowed)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := auth.NewBroker()
	changes, unsubscribe := broker.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Watch(ctx, changes)
	}()

	broker.Publish(auth.Change{Session: auth.Anonymous()})

	require.Eventually(t, func() bool {
		return c.Current() == "login"
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
