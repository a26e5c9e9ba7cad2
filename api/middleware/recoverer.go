package middleware

import (
	"fmt"
	"net/http"

	"github.com/angelmondragon/stockledger/api/responses"
	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
	"github.com/angelmondragon/stockledger/pkg/logger"
)

// Recoverer turns a handler panic into an INTERNAL_ERROR response. The error
// log already carries the stack.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err := fmt.Errorf("panic: %v", rec)
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{
						"panic":  fmt.Sprint(rec),
						"method": r.Method,
						"route":  r.URL.Path,
					})
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "handler panicked"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
