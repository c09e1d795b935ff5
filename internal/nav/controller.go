package nav

import (
	"context"
	"sync"

	"github.com/imedia765/memberhub/internal/auth"
	"github.com/imedia765/memberhub/internal/roles"
)

// Authorizer supplies the authentication and role state that navigation
// decisions are made against. *roles.Resolver satisfies it.
type Authorizer interface {
	Session() auth.Session
	Snapshot() roles.RoleSet
	Resolve(ctx context.Context, session auth.Session) roles.RoleSet
}

// EventKind classifies controller events.
type EventKind string

const (
	// EventNavigated fires when an explicit navigation request succeeds.
	EventNavigated EventKind = "navigated"
	// EventDenied fires when an explicit navigation request is refused.
	EventDenied EventKind = "denied"
	// EventRedirected fires when the controller moves off a destination
	// that became disallowed underneath the principal. It is distinct from
	// EventDenied: the principal asked for nothing, the state changed.
	EventRedirected EventKind = "redirected"
)

// Event describes one controller transition or refusal.
type Event struct {
	Kind        EventKind
	Destination string
	From        string
	Reason      Reason
}

// Controller is the stateful navigation machine: it tracks the current
// destination, answers explicit navigation requests, and corrects the
// current destination when a session or role change invalidates it.
//
// All decisions delegate to Decide over one snapshot read, so a request
// and the visibility list it was issued against cannot disagree.
type Controller struct {
	registry *Registry
	authz    Authorizer
	attrs    func() map[string]any
	onEvent  func(Event)

	mu      sync.Mutex
	current string
}

// NewController builds a controller positioned at the best destination the
// current state allows. attrs supplies the principal's profile attributes
// for constraint evaluation and may be nil; onEvent may be nil.
func NewController(registry *Registry, authz Authorizer, attrs func() map[string]any, onEvent func(Event)) *Controller {
	c := &Controller{registry: registry, authz: authz, attrs: attrs, onEvent: onEvent}
	c.current = c.fallback(authz.Session(), authz.Snapshot(), c.attributes())
	return c
}

// Current returns the id of the current destination, empty when no
// destination is reachable at all.
func (c *Controller) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// RequestNavigate attempts an explicit navigation to the destination id.
// On success the controller moves there; on refusal it stays put and the
// returned Decision carries the reason.
func (c *Controller) RequestNavigate(id string) Decision {
	session := c.authz.Session()
	rs := c.authz.Snapshot()

	dest, ok := c.registry.Get(id)
	var d Decision
	if !ok {
		d = deny(ReasonUnknownDestination)
	} else {
		d = Decide(dest, session, rs, c.attributes())
	}

	c.mu.Lock()
	from := c.current
	if d.Allowed {
		c.current = id
	}
	c.mu.Unlock()

	if !d.Allowed {
		c.emit(Event{Kind: EventDenied, Destination: id, From: from, Reason: d.Reason})
	} else if from != id {
		c.emit(Event{Kind: EventNavigated, Destination: id, From: from})
	}
	return d
}

// Apply re-evaluates the current destination against the latest published
// state and redirects when it is no longer allowed. Sign-out lands on the
// first destination still visible (the public ones); a role downgrade
// retreats to the default destination.
func (c *Controller) Apply() {
	session := c.authz.Session()
	rs := c.authz.Snapshot()
	attrs := c.attributes()

	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()

	reason := ReasonUnknownDestination
	if dest, ok := c.registry.Get(cur); ok {
		d := Decide(dest, session, rs, attrs)
		if d.Allowed {
			return
		}
		reason = d.Reason
	}

	next := c.fallback(session, rs, attrs)

	c.mu.Lock()
	if c.current != cur {
		// A concurrent navigation won; leave its result alone.
		c.mu.Unlock()
		return
	}
	c.current = next
	c.mu.Unlock()

	if next != cur && cur != "" {
		c.emit(Event{Kind: EventRedirected, Destination: next, From: cur, Reason: reason})
	}
}

// Watch resolves roles and corrects the current destination on every
// session change until the context ends or the channel closes. Run it in
// its own goroutine against a broker subscription.
func (c *Controller) Watch(ctx context.Context, changes <-chan auth.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			c.authz.Resolve(ctx, change.Session)
			c.Apply()
		}
	}
}

// Visible returns the destinations the current state allows, in registry
// order. The slice is freshly built on every call.
func (c *Controller) Visible() []Destination {
	session := c.authz.Session()
	rs := c.authz.Snapshot()
	attrs := c.attributes()

	all := c.registry.All()
	visible := make([]Destination, 0, len(all))
	for i := range all {
		if Decide(&all[i], session, rs, attrs).Allowed {
			visible = append(visible, all[i])
		}
	}
	return visible
}

// fallback picks where to land when the current destination is untenable:
// the default destination when allowed, otherwise the first visible one.
func (c *Controller) fallback(session auth.Session, rs roles.RoleSet, attrs map[string]any) string {
	if dest, ok := c.registry.Get(DefaultDestination); ok {
		if Decide(dest, session, rs, attrs).Allowed {
			return DefaultDestination
		}
	}
	all := c.registry.All()
	for i := range all {
		if Decide(&all[i], session, rs, attrs).Allowed {
			return all[i].ID
		}
	}
	return ""
}

func (c *Controller) attributes() map[string]any {
	if c.attrs == nil {
		return nil
	}
	return c.attrs()
}

func (c *Controller) emit(e Event) {
	if c.onEvent != nil {
		c.onEvent(e)
	}
}
