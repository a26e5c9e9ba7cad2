package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/angelmondragon/stockledger/api/responses"
	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
	"github.com/angelmondragon/stockledger/pkg/logger"
)

const AdminTokenHeader = "X-Admin-Token"

// AdminToken rejects requests whose admin header does not match token.
// An empty token locks the route group entirely.
func AdminToken(token string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin routes disabled"))
				return
			}
			provided := strings.TrimSpace(r.Header.Get(AdminTokenHeader))
			if provided == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin token required"))
				return
			}
			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "invalid admin token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
