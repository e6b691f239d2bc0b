package httpapi

import (
	"crypto/subtle"
	"net/http"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/infra/config"
)

const (
	// AdminTokenHeader is the header name for admin authentication token.
	AdminTokenHeader = "X-Admin-Token"
)

// NewAdminAuth wraps next so that only requests carrying the configured
// admin token reach it.
func NewAdminAuth(cfg *config.Config, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(AdminTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Admin.Token)) != 1 {
			zlog.Warn().Msgf("admin request unauthenticated: method=%s path=%s remote=%s", r.Method, r.URL.Path, r.RemoteAddr)
			writeJSON(w, http.StatusUnauthorized, ActionResponse{Message: "unauthenticated"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
