package server

import (
	"context"
	"net/http"

	"github.com/imedia765/memberhub/internal/auth"
	"github.com/imedia765/memberhub/internal/nav"
	"github.com/imedia765/memberhub/internal/roles"
)

// requestAuthorizer freezes one request's session and role set so every
// decision inside the request is made against the same state.
type requestAuthorizer struct {
	session auth.Session
	rs      roles.RoleSet
}

func (a requestAuthorizer) Session() auth.Session   { return a.session }
func (a requestAuthorizer) Snapshot() roles.RoleSet { return a.rs }
func (a requestAuthorizer) Resolve(context.Context, auth.Session) roles.RoleSet {
	return a.rs
}

type destinationView struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func visibleView(c *nav.Controller) []destinationView {
	visible := c.Visible()
	out := make([]destinationView, 0, len(visible))
	for _, d := range visible {
		out = append(out, destinationView{ID: d.ID, Title: d.Title})
	}
	return out
}

func requestController(r *http.Request, registry *nav.Registry, resolver *roles.Resolver) *nav.Controller {
	principal, _ := auth.PrincipalFromContext(r.Context())
	authz := requestAuthorizer{
		session: principal.SessionView(),
		rs:      resolver.Lookup(r.Context(), principal.MemberID),
	}
	return nav.NewController(registry, authz, func() map[string]any { return principal.Attributes }, nil)
}

// HandleNavState reports the navigation state for the caller: the visible
// destinations and, when the client names its current destination, whether
// it may stay there. A client on a destination its roles no longer allow is
// told where to go instead.
func HandleNavState(registry *nav.Registry, resolver *roles.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := requestController(r, registry, resolver)

		body := map[string]any{
			"current": c.Current(),
			"visible": visibleView(c),
		}

		if requested := r.URL.Query().Get("current"); requested != "" {
			if d := c.RequestNavigate(requested); d.Allowed {
				body["current"] = c.Current()
			} else {
				body["redirected"] = true
				body["reason"] = string(d.Reason)
			}
		}

		respondJSON(w, http.StatusOK, body)
	}
}

type navigateRequest struct {
	Destination string `json:"destination"`
	// From is the client's current destination, used to report where a
	// refused navigation leaves it.
	From string `json:"from"`
}

// HandleNavigate evaluates an explicit navigation request. The decision
// travels in the body; a refusal is a valid answer, not an HTTP error.
func HandleNavigate(registry *nav.Registry, resolver *roles.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req navigateRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		if req.Destination == "" {
			respondError(w, http.StatusBadRequest, "destination is required")
			return
		}

		c := requestController(r, registry, resolver)
		if req.From != "" {
			// Position the machine where the client says it is; if that
			// place is itself disallowed the fallback stands in.
			c.RequestNavigate(req.From)
		}

		d := c.RequestNavigate(req.Destination)
		body := map[string]any{
			"allowed": d.Allowed,
			"current": c.Current(),
			"visible": visibleView(c),
		}
		if !d.Allowed {
			body["reason"] = string(d.Reason)
		}
		respondJSON(w, http.StatusOK, body)
	}
}
