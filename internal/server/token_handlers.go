package server

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/imedia765/memberhub/internal/auth"
	"github.com/imedia765/memberhub/internal/config"
	"github.com/imedia765/memberhub/internal/db/models"
	"github.com/imedia765/memberhub/internal/repository"
)

type mintTokenRequest struct {
	MemberID string `json:"member_id"`
	TTL      string `json:"ttl"`
}

const defaultAPITokenTTL = 24 * time.Hour

// HandleMintToken mints an API bearer token for automation clients acting
// as the given member. Admin only; the plaintext token appears exactly once
// in the response.
func HandleMintToken(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req mintTokenRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		if req.MemberID == "" {
			respondError(w, http.StatusBadRequest, "member_id is required")
			return
		}

		ttl := defaultAPITokenTTL
		if req.TTL != "" {
			parsed, err := time.ParseDuration(req.TTL)
			if err != nil || parsed <= 0 {
				respondError(w, http.StatusBadRequest, "ttl must be a positive duration")
				return
			}
			ttl = parsed
		}

		token, jti, err := auth.MintAPIToken(cfg.TokenSigningSecret, cfg.TokenIssuer, req.MemberID, ttl)
		if err != nil {
			log.Printf("mint token: %v", err)
			respondError(w, http.StatusInternalServerError, "token not minted")
			return
		}

		respondJSON(w, http.StatusCreated, map[string]any{
			"token":      token,
			"jti":        jti,
			"expires_at": time.Now().Add(ttl).Format(time.RFC3339),
		})
	}
}

// HandleRevokeToken adds a token's JTI to the denylist. Revocation is
// idempotent.
func HandleRevokeToken(revoked repository.RevokedJTIRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jti := chi.URLParam(r, "jti")
		if jti == "" {
			respondError(w, http.StatusBadRequest, "jti is required")
			return
		}

		principal, _ := auth.PrincipalFromContext(r.Context())
		// The subject is unknown from the JTI alone; the denylist works
		// without it.
		entry := &models.RevokedJTI{
			JTI:       jti,
			Subject:   "",
			Exp:       time.Now().Add(defaultAPITokenTTL),
			RevokedAt: time.Now(),
		}
		if principal.MemberID != "" {
			entry.RevokedBy = &principal.MemberID
		}
		if err := revoked.Revoke(r.Context(), entry); err != nil {
			log.Printf("revoke token %s: %v", jti, err)
			respondError(w, http.StatusInternalServerError, "token not revoked")
			return
		}

		respondJSON(w, http.StatusOK, map[string]bool{"revoked": true})
	}
}
