package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/imedia765/memberhub/internal/authority"
	"github.com/imedia765/memberhub/internal/db/models"
)

// ClientInfo attaches non-sensitive request metadata to the context so
// audit rows written further down the stack can record where and when a
// change came from. clientID names the deployment; empty omits it. Runs
// after chi's RealIP middleware, which normalizes RemoteAddr.
func ClientInfo(clientID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			if host, _, err := net.SplitHostPort(ip); err == nil {
				ip = host
			}
			info := models.ClientInfo{
				"ip":         ip,
				"user_agent": r.UserAgent(),
				"at":         time.Now().UTC().Format(time.RFC3339),
			}
			if clientID != "" {
				info["client_id"] = clientID
			}
			next.ServeHTTP(w, r.WithContext(authority.WithClientInfo(r.Context(), info)))
		})
	}
}
