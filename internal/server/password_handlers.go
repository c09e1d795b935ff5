package server

import (
	"net/http"

	"github.com/imedia765/memberhub/internal/auth"
	"github.com/imedia765/memberhub/internal/authority"
	"github.com/imedia765/memberhub/internal/secure"
)

type passwordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// HandlePasswordChange runs the password change protocol for the caller.
// The executor owns retries, response validation, and notifications; this
// handler only translates the terminal result onto HTTP.
func HandlePasswordChange(executor *secure.Executor, audit *authority.DBCredentialAuthority) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := auth.PrincipalFromContext(r.Context())

		var req passwordChangeRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "malformed request body")
			return
		}

		result := executor.Execute(r.Context(), principal.MemberID, secure.PasswordChange{
			CurrentPassword: req.CurrentPassword,
			NewPassword:     req.NewPassword,
			ConfirmPassword: req.ConfirmPassword,
		})

		switch result.Outcome {
		case secure.OutcomeSucceeded:
			respondJSON(w, http.StatusOK, map[string]any{
				"outcome":  string(result.Outcome),
				"attempts": result.Attempts,
				"result":   result.Response,
			})
		case secure.OutcomeExhausted:
			audit.RecordExhausted(r.Context(), principal.MemberID)
			respondJSON(w, http.StatusServiceUnavailable, map[string]any{
				"outcome":  string(result.Outcome),
				"attempts": result.Attempts,
				"reason":   result.Reason,
			})
		default:
			respondJSON(w, statusForRejection(result.Reason), map[string]any{
				"outcome":  string(result.Outcome),
				"attempts": result.Attempts,
				"reason":   result.Reason,
			})
		}
	}
}

func statusForRejection(reason string) int {
	switch reason {
	case secure.ReasonInvalidInput:
		return http.StatusBadRequest
	case secure.ReasonAlreadyInFlight:
		return http.StatusConflict
	case secure.ReasonMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
