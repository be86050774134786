package middlewares

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropDatabas3/memberkeys/internal/observability/logger"
)

const RequestIDHeader = "X-Request-ID"

// WithRequestLogger asigna un request id (o respeta el entrante), deja un logger
// con ese id en el contexto y registra una línea por request.
func WithRequestLogger(base *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := r.Header.Get(RequestIDHeader)
			if rid == "" {
				rid = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, rid)

			log := base.With(logger.RequestID(rid))
			r = r.WithContext(logger.ToContext(r.Context(), log))

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(sw, r)

			log.Info("request",
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.Status(sw.status),
				logger.Duration(time.Since(start)),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// WithNoStore agrega Cache-Control: no-store. Las respuestas con claves no se cachean.
func WithNoStore() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}
