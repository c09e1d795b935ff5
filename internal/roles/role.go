// Package roles derives the authoritative role set for an authenticated
// member and answers capability queries consistently while resolution is in
// flight. Resolution state is fail-closed: anything other than a resolved
// role set grants nothing.
package roles

// Role is a closed enumeration of authorization categories. Permission
// decisions only ever compare Role values, never raw strings.
type Role string

const (
	RoleMember    Role = "member"
	RoleCollector Role = "collector"
	RoleAdmin     Role = "admin"
)

// ParseRole maps a stored role string onto the closed enumeration.
// Unrecognized values are rejected rather than passed through.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleMember, RoleCollector, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

// Set is an immutable-by-convention set of roles. Mutating a Set after it
// has been published in a RoleSet is a bug.
type Set map[Role]struct{}

// NewSet builds a set from the given roles.
func NewSet(roles ...Role) Set {
	s := make(Set, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s Set) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// Intersects reports whether the two sets share any role.
func (s Set) Intersects(other Set) bool {
	for r := range s {
		if other.Has(r) {
			return true
		}
	}
	return false
}

// Slice returns the roles in a stable order for display and serialization.
func (s Set) Slice() []Role {
	ordered := []Role{RoleAdmin, RoleCollector, RoleMember}
	out := make([]Role, 0, len(s))
	for _, r := range ordered {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

// Status describes the lifecycle of a role resolution.
type Status int

const (
	// StatusPending means resolution has not completed; no access beyond
	// universally-available destinations may be granted.
	StatusPending Status = iota
	// StatusResolved means Roles is authoritative for the current principal.
	StatusResolved
	// StatusFailed means the authority could not be consulted. Consumers
	// treat this exactly like Pending for access decisions; the distinction
	// only surfaces diagnostics.
	StatusFailed
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusResolved:
		return "resolved"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// RoleSet is the resolved authorization state for a principal. Values are
// immutable snapshots: a new resolution produces a new RoleSet rather than
// mutating a published one, so capability queries are referentially stable.
type RoleSet struct {
	Roles  Set
	Status Status
}

// Pending returns the empty, unresolved role set.
func Pending() RoleSet {
	return RoleSet{Roles: NewSet(), Status: StatusPending}
}

// Failed returns the fail-closed role set for a failed resolution.
func Failed() RoleSet {
	return RoleSet{Roles: NewSet(), Status: StatusFailed}
}

// Resolved returns a resolved role set over the given roles.
func Resolved(roles ...Role) RoleSet {
	return RoleSet{Roles: NewSet(roles...), Status: StatusResolved}
}

// HasRole reports whether the principal definitively holds the role:
// true only when resolution completed and the role is present.
func (rs RoleSet) HasRole(r Role) bool {
	return rs.Status == StatusResolved && rs.Roles.Has(r)
}
