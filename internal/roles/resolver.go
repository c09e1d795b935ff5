package roles

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/imedia765/memberhub/internal/auth"
	"github.com/imedia765/memberhub/internal/authority"
)

// snapshot pairs a published role set with the session it was resolved for.
type snapshot struct {
	session auth.Session
	roleSet RoleSet
}

// Resolver owns the RoleSet for the current session. It is the only writer;
// consumers read immutable snapshots.
//
// Resolution is tagged with a generation captured when it starts. A
// resolution whose generation is stale by publish time is discarded, which
// is what prevents a slow authority response for principal A from
// overwriting the resolved roles of principal B after a session switch.
type Resolver struct {
	authority authority.RoleAuthority

	mu         sync.Mutex
	generation uint64
	session    auth.Session

	published atomic.Value // holds snapshot

	// memo caches resolved role sets per principal so that repeated
	// resolutions for the same member (page loads, API requests) do not
	// re-query the authority. Entries expire after memoTTL so grant
	// changes applied out of band (cmd/iam, another replica) converge
	// within one TTL; sign-out drops the departing principal's entry
	// eagerly.
	memo    *lru.Cache[string, memoEntry]
	memoTTL time.Duration

	now func() time.Time
}

// memoEntry timestamps a cached role set for expiry checks.
type memoEntry struct {
	roles Set
	at    time.Time
}

// DefaultMemoSize bounds the per-principal resolution cache.
const DefaultMemoSize = 512

// DefaultMemoTTL bounds how long a revoked grant can keep being served to a
// signed-in member before the next lookup re-queries the authority.
const DefaultMemoTTL = time.Minute

// NewResolver creates a resolver over the given role authority.
func NewResolver(roleAuthority authority.RoleAuthority, memoSize int) (*Resolver, error) {
	if memoSize <= 0 {
		memoSize = DefaultMemoSize
	}
	memo, err := lru.New[string, memoEntry](memoSize)
	if err != nil {
		return nil, err
	}
	r := &Resolver{
		authority: roleAuthority,
		memo:      memo,
		memoTTL:   DefaultMemoTTL,
		now:       time.Now,
	}
	r.published.Store(snapshot{session: auth.Anonymous(), roleSet: Resolved()})
	return r, nil
}

// WithMemoTTL overrides the memo expiry. Zero or negative disables
// memoization entirely; every lookup queries the authority.
func (r *Resolver) WithMemoTTL(ttl time.Duration) *Resolver {
	r.memoTTL = ttl
	return r
}

// Snapshot returns the currently published role set. The returned value is
// immutable; callers may hold it across computations without it changing
// underneath them.
func (r *Resolver) Snapshot() RoleSet {
	return r.published.Load().(snapshot).roleSet
}

// Session returns the session the published role set belongs to.
func (r *Resolver) Session() auth.Session {
	return r.published.Load().(snapshot).session
}

// HasRole reports whether the current principal definitively holds the role.
func (r *Resolver) HasRole(role Role) bool {
	return r.Snapshot().HasRole(role)
}

// Resolve recomputes the role set for the given session and publishes the
// result, unless a newer resolution started in the meantime, in which case
// the result is discarded.
//
// An absent session resolves immediately: unauthenticated is a valid, fully
// resolved state with no roles, distinct from "still loading".
func (r *Resolver) Resolve(ctx context.Context, session auth.Session) RoleSet {
	r.mu.Lock()
	r.generation++
	gen := r.generation
	prev := r.session
	r.session = session
	r.mu.Unlock()

	if !session.Present {
		// Sign-out drops the memo entry for the departing principal so a
		// later sign-in re-queries fresh grants.
		if prev.Present {
			r.Invalidate(prev.PrincipalID)
		}
		rs := Resolved()
		r.publish(gen, session, rs)
		return rs
	}

	// Mark the resolution in flight before any authority round trip.
	r.publish(gen, session, Pending())

	rs := r.Lookup(ctx, session.PrincipalID)
	r.publish(gen, session, rs)
	return rs
}

// Lookup computes the role set for a principal without touching the
// published state. Server requests use this directly; Resolve layers the
// publication and discard rules on top.
func (r *Resolver) Lookup(ctx context.Context, principalID string) RoleSet {
	if entry, ok := r.memo.Get(principalID); ok {
		if r.now().Sub(entry.at) < r.memoTTL {
			return RoleSet{Roles: entry.roles, Status: StatusResolved}
		}
		r.memo.Remove(principalID)
	}

	role, err := r.resolveRole(ctx, principalID)
	if err != nil {
		log.Printf("role resolution failed for principal %s: %v", principalID, err)
		return Failed()
	}

	roles := NewSet(role)
	r.memo.Add(principalID, memoEntry{roles: roles, at: r.now()})
	return RoleSet{Roles: roles, Status: StatusResolved}
}

// resolveRole applies the authority priority order: an explicit admin grant
// wins, then an explicit collector grant, then the profile's nominal role,
// defaulting to member. A principal may hold several grant records at once
// (say an admin flag alongside a stale profile row); the explicit grants are
// authoritative over the profile's descriptive role.
func (r *Resolver) resolveRole(ctx context.Context, principalID string) (Role, error) {
	isAdmin, err := r.authority.IsAdmin(ctx, principalID)
	if err != nil {
		return "", err
	}
	if isAdmin {
		return RoleAdmin, nil
	}

	isCollector, err := r.authority.IsCollector(ctx, principalID)
	if err != nil {
		return "", err
	}
	if isCollector {
		return RoleCollector, nil
	}

	profileRole, err := r.authority.ProfileRole(ctx, principalID)
	if err != nil {
		return "", err
	}
	if role, ok := ParseRole(profileRole); ok {
		return role, nil
	}
	return RoleMember, nil
}

// Invalidate drops the memoized role set for a principal. Called after
// grants change so the next resolution re-queries the authority.
func (r *Resolver) Invalidate(principalID string) {
	r.memo.Remove(principalID)
}

// publish stores the snapshot if no newer resolution has started.
func (r *Resolver) publish(gen uint64, session auth.Session, rs RoleSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.generation {
		// A newer resolution superseded this one; discard the stale result.
		return
	}
	r.published.Store(snapshot{session: session, roleSet: rs})
}

// Watch re-resolves on every session change until the context ends or the
// channel closes. Run it in its own goroutine.
func (r *Resolver) Watch(ctx context.Context, changes <-chan auth.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			r.Resolve(ctx, change.Session)
		}
	}
}
