package nav

import (
	"github.com/imedia765/memberhub/internal/auth"
	"github.com/imedia765/memberhub/internal/roles"
)

// Reason explains a refused navigation.
type Reason string

const (
	// ReasonUnknownDestination means the requested id is not in the registry.
	ReasonUnknownDestination Reason = "unknown-destination"
	// ReasonNotAuthenticated means the destination needs a session and
	// there is none.
	ReasonNotAuthenticated Reason = "not-authenticated"
	// ReasonLoading means role resolution has not completed, so a
	// role-gated destination cannot be granted yet.
	ReasonLoading Reason = "loading"
	// ReasonInsufficientRole means the resolved role set shares no role
	// with the destination's requirement.
	ReasonInsufficientRole Reason = "insufficient-role"
	// ReasonRestricted means an attribute constraint on the destination
	// did not match the principal.
	ReasonRestricted Reason = "restricted"
)

// Decision is the outcome of evaluating one destination for one session.
// Reason is set only when Allowed is false.
type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(r Reason) Decision {
	return Decision{Reason: r}
}

// Decide evaluates whether the session may open the destination. It is a
// pure function of its arguments and never consults external state, which
// is what makes a sequence of decisions over one published RoleSet
// self-consistent.
//
// The rules apply in order and every non-allow path denies:
//
//  1. public destinations are open to everyone,
//  2. everything else requires a session,
//  3. role-gated destinations additionally require resolution to have
//     completed (pending and failed both deny) and a shared role,
//  4. an attribute constraint, when present, must match the principal.
func Decide(dest *Destination, session auth.Session, rs roles.RoleSet, attrs map[string]any) Decision {
	if dest == nil {
		return deny(ReasonUnknownDestination)
	}
	if dest.Access == AccessPublic {
		return allow()
	}
	if !session.Present {
		return deny(ReasonNotAuthenticated)
	}

	switch dest.Access {
	case AccessAuthenticated:
		// Reachable while role resolution is still in flight.
	case AccessRoles:
		if rs.Status != roles.StatusResolved {
			return deny(ReasonLoading)
		}
		if !dest.Roles.Intersects(rs.Roles) {
			return deny(ReasonInsufficientRole)
		}
	default:
		// Unrecognized access kinds grant nothing.
		return deny(ReasonRestricted)
	}

	if !dest.matchesWhen(attrs) {
		return deny(ReasonRestricted)
	}
	return allow()
}
