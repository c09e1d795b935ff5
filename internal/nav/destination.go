// Package nav decides which navigation destinations a session may see and
// select. The policy is a pure function over the session and the resolved
// role set; the controller layers the stateful "current destination" machine
// on top of it. Rendering is somebody else's job.
package nav

import (
	"github.com/hashicorp/go-bexpr"
	"github.com/imedia765/memberhub/internal/roles"
)

// AccessKind classifies how a destination is gated.
type AccessKind string

const (
	// AccessPublic destinations are reachable without a session.
	AccessPublic AccessKind = "public"
	// AccessAuthenticated destinations need a session but no specific role.
	// They remain reachable while role resolution is still in flight.
	AccessAuthenticated AccessKind = "any-authenticated"
	// AccessRoles destinations need at least one of the listed roles.
	AccessRoles AccessKind = "roles"
)

// Destination is a named navigable target. Destinations are static
// configuration loaded once at startup and never mutated afterwards.
type Destination struct {
	ID     string
	Title  string
	Access AccessKind
	// Roles are the required roles when Access is AccessRoles.
	Roles roles.Set
	// When is an optional attribute constraint (go-bexpr expression)
	// evaluated against the principal's profile attributes. Empty means no
	// constraint. Evaluation errors deny.
	When string

	// whenEval is the compiled form of When, built at registry load.
	whenEval *bexpr.Evaluator
}

// matchesWhen evaluates the optional attribute constraint. A destination
// without a constraint matches everything; a constraint that cannot be
// evaluated (missing attribute, type mismatch) matches nothing.
func (d *Destination) matchesWhen(attrs map[string]any) bool {
	if d.whenEval == nil {
		return true
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	ok, err := d.whenEval.Evaluate(attrs)
	if err != nil {
		return false
	}
	return ok
}
