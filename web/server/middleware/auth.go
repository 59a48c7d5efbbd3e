package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.hackfix.me/sqlmgr/web/server/api/util"
	"go.hackfix.me/sqlmgr/web/server/types"
)

// BearerToken requires requests to carry token in the Authorization header,
// using the Bearer scheme. If token is empty, all requests are allowed.
//
// If the token is missing or doesn't match, a response with status 401
// Unauthorized is returned. Otherwise the request is allowed to proceed.
func BearerToken(token string) Middleware {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, got, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") ||
				subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="sqlmgr"`)
				resp := types.NewBaseResponse(http.StatusUnauthorized,
					types.NewError(http.StatusUnauthorized, "unauthorized", "invalid or missing API token"))
				_ = util.WriteJSON(w, &resp)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
