package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/imedia765/memberhub/internal/auth"
	"github.com/imedia765/memberhub/internal/db/models"
	"github.com/imedia765/memberhub/internal/roles"
	"github.com/imedia765/memberhub/internal/services/member"
)

type directoryEntry struct {
	ID           string `json:"id"`
	MemberNumber string `json:"member_number"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	Role         string `json:"role,omitempty"`
}

func directoryView(members []models.Member) []directoryEntry {
	out := make([]directoryEntry, 0, len(members))
	for i := range members {
		m := &members[i]
		out = append(out, directoryEntry{
			ID:           m.ID,
			MemberNumber: m.MemberNumber,
			Email:        m.Email,
			Name:         m.Name,
			Status:       m.Status,
			Role:         m.ProfileRole(),
		})
	}
	return out
}

// HandleMemberDirectory lists members visible to the caller. The route is
// role-gated upstream; the service applies the narrower per-role scoping.
func HandleMemberDirectory(members *member.Service, resolver *roles.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := auth.PrincipalFromContext(r.Context())
		rs := resolver.Lookup(r.Context(), principal.MemberID)

		listed, err := members.Directory(r.Context(), principal.MemberID, rs, r.URL.Query().Get("search"))
		if err != nil {
			if errors.Is(err, member.ErrForbidden) {
				respondError(w, http.StatusForbidden, "forbidden")
				return
			}
			log.Printf("member directory: %v", err)
			respondError(w, http.StatusInternalServerError, "directory unavailable")
			return
		}

		respondJSON(w, http.StatusOK, map[string]any{"members": directoryView(listed)})
	}
}

// HandleCollectors lists the members holding a collector grant.
func HandleCollectors(members *member.Service, resolver *roles.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := auth.PrincipalFromContext(r.Context())
		rs := resolver.Lookup(r.Context(), principal.MemberID)

		collectors, err := members.Collectors(r.Context(), rs)
		if err != nil {
			if errors.Is(err, member.ErrForbidden) {
				respondError(w, http.StatusForbidden, "forbidden")
				return
			}
			log.Printf("collectors: %v", err)
			respondError(w, http.StatusInternalServerError, "collectors unavailable")
			return
		}

		respondJSON(w, http.StatusOK, map[string]any{"collectors": directoryView(collectors)})
	}
}

// HandleMemberCount reports the total member count.
func HandleMemberCount(members *member.Service, resolver *roles.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := auth.PrincipalFromContext(r.Context())
		rs := resolver.Lookup(r.Context(), principal.MemberID)

		n, err := members.Count(r.Context(), rs)
		if err != nil {
			if errors.Is(err, member.ErrForbidden) {
				respondError(w, http.StatusForbidden, "forbidden")
				return
			}
			log.Printf("member count: %v", err)
			respondError(w, http.StatusInternalServerError, "count unavailable")
			return
		}

		respondJSON(w, http.StatusOK, map[string]int{"count": n})
	}
}

// HandleProfile returns the caller's own profile.
func HandleProfile(members *member.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := auth.PrincipalFromContext(r.Context())

		m, err := members.Profile(r.Context(), principal.MemberID)
		if err != nil {
			log.Printf("profile: %v", err)
			respondError(w, http.StatusInternalServerError, "profile unavailable")
			return
		}

		respondJSON(w, http.StatusOK, map[string]any{
			"id":            m.ID,
			"member_number": m.MemberNumber,
			"email":         m.Email,
			"name":          m.Name,
			"status":        m.Status,
			"role":          m.ProfileRole(),
			"has_collector": m.CollectorID != nil,
		})
	}
}
