package server

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/imedia765/memberhub/internal/auth"
	"github.com/imedia765/memberhub/internal/nav"
	"github.com/imedia765/memberhub/internal/roles"
	"github.com/imedia765/memberhub/internal/services/member"
)

type loginRequest struct {
	// Identifier is a member number or a login email.
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type memberView struct {
	ID           string `json:"id"`
	MemberNumber string `json:"member_number"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Status       string `json:"status"`
}

// HandleLogin authenticates a member by member number or email and issues a
// session cookie. The response carries the resolved roles and the landing
// destination so the client can route without a second round trip.
func HandleLogin(members *member.Service, resolver *roles.Resolver, registry *nav.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		if req.Identifier == "" || req.Password == "" {
			respondError(w, http.StatusBadRequest, "identifier and password are required")
			return
		}

		ctx := r.Context()
		m, err := members.Authenticate(ctx, req.Identifier, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, member.ErrInvalidCredentials):
				respondError(w, http.StatusUnauthorized, "invalid credentials")
			case errors.Is(err, member.ErrAccountDisabled):
				respondError(w, http.StatusUnauthorized, "account disabled")
			default:
				log.Printf("login: %v", err)
				respondError(w, http.StatusInternalServerError, "login failed")
			}
			return
		}

		token, session, err := members.CreateSession(ctx, m.ID, r.UserAgent(), r.RemoteAddr)
		if err != nil {
			log.Printf("login: %v", err)
			respondError(w, http.StatusInternalServerError, "login failed")
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     auth.SessionCookieName,
			Value:    token,
			Path:     "/",
			Expires:  session.ExpiresAt,
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})

		rs := resolver.Lookup(ctx, m.ID)
		respondJSON(w, http.StatusOK, map[string]any{
			"member": memberView{
				ID:           m.ID,
				MemberNumber: m.MemberNumber,
				Email:        m.Email,
				Name:         m.Name,
				Status:       m.Status,
			},
			"roles":       rs.Roles.Slice(),
			"role_status": rs.Status.String(),
			"destination": nav.DefaultDestination,
		})
	}
}

// HandleLogout revokes the session behind the cookie and clears it. Always
// succeeds from the client's point of view.
func HandleLogout(members *member.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(auth.SessionCookieName); err == nil && cookie.Value != "" {
			if err := members.Logout(r.Context(), cookie.Value); err != nil {
				log.Printf("logout: %v", err)
			}
		}

		http.SetCookie(w, &http.Cookie{
			Name:     auth.SessionCookieName,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

// HandleWhoAmI reports the authenticated principal and its resolved roles.
// Anonymous callers get a definitive "not signed in", not an error.
func HandleWhoAmI(resolver *roles.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			respondJSON(w, http.StatusOK, map[string]any{"authenticated": false})
			return
		}

		rs := resolver.Lookup(r.Context(), principal.MemberID)
		respondJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"member_id":     principal.MemberID,
			"member_number": principal.MemberNumber,
			"email":         principal.Email,
			"name":          principal.Name,
			"principal":     string(principal.Type),
			"roles":         rs.Roles.Slice(),
			"role_status":   rs.Status.String(),
		})
	}
}
