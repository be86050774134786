// Package middlewares contiene los decoradores http.Handler de la API admin.
// Se montan con chi (r.Use / r.With).
package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/memberkeys/internal/http/errors"
	"github.com/dropDatabas3/memberkeys/internal/observability/logger"
)

// Middleware decora un http.Handler; es lo que aceptan r.Use y r.With de chi.
type Middleware func(http.Handler) http.Handler

// WithRecover captura panics y devuelve un error 500 en lugar de crashear.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.From(r.Context()).Error("panic recovered",
						logger.Op("recover"),
						logger.Any("panic", rec),
					)
					errors.WriteError(w, errors.ErrInternalServerError.WithDetail("panic recovered"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
