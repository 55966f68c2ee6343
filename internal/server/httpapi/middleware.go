package httpapi

import (
	"net/http"
	"strings"

	"github.com/dmitrijs2005/gophrelay/internal/common"
	"github.com/dmitrijs2005/gophrelay/internal/server/auth"
	"github.com/gorilla/mux"
)

// accessTokenMiddleware enforces, when tokens are required, that the request
// carries a valid access token issued to the identity named by the route
// variable pathVar. Browsers cannot set headers on a WebSocket handshake, so
// the token is also accepted as a query parameter.
func (s *HTTPServer) accessTokenMiddleware(pathVar string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.requireToken {
			next.ServeHTTP(w, r)
			return
		}

		accessToken := tokenFromRequest(r)
		if accessToken == "" {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}

		identity, err := auth.IdentityFromToken(accessToken, s.jwtSecret)
		if err != nil {
			s.logger.Debug(r.Context(), "token rejected", "error", err)
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		if identity != mux.Vars(r)[pathVar] {
			writeError(w, http.StatusForbidden, "token does not match identity")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
	}
	if t := r.Header.Get(common.AccessTokenParamName); t != "" {
		return t
	}
	return r.URL.Query().Get(common.AccessTokenParamName)
}
