// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/eardbi/bike-builds-api/internal/auth"
	bblog "github.com/eardbi/bike-builds-api/internal/log"
)

// authMiddleware enforces API token authentication on the routes it wraps.
//
// Fail-closed: when no token is configured the middleware denies every
// request unless anonymous access was explicitly enabled.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := s.currentConfig()
		token := cfg.APIToken
		allowAnon := cfg.AllowAnonymous

		if token == "" {
			if allowAnon {
				next.ServeHTTP(w, r)
				return
			}
			bblog.FromContext(r.Context()).Error().
				Str(bblog.FieldEvent, "auth.fail_closed").
				Msg("BIKEAPI_API_TOKEN not set and BIKEAPI_ALLOW_ANONYMOUS!=true, denying access")
			RespondError(w, r, http.StatusUnauthorized, ErrUnauthorized)
			return
		}

		logger := bblog.WithComponentFromContext(r.Context(), "auth")

		reqToken := auth.ExtractToken(r)
		if reqToken == "" {
			logger.Warn().
				Str(bblog.FieldEvent, "auth.missing_token").
				Msg("authorization header/cookie missing")
			RespondError(w, r, http.StatusUnauthorized, ErrUnauthorized)
			return
		}

		if !auth.AuthorizeToken(reqToken, token) {
			logger.Warn().
				Str(bblog.FieldEvent, "auth.invalid_token").
				Msg("invalid api token")
			RespondError(w, r, http.StatusUnauthorized, ErrInvalidToken)
			return
		}

		next.ServeHTTP(w, r)
	})
}
