// Package router arma el chi.Router de la API admin.
package router

import (
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dropDatabas3/memberkeys/internal/engine"
	"github.com/dropDatabas3/memberkeys/internal/http/controllers"
	mw "github.com/dropDatabas3/memberkeys/internal/http/middlewares"
	"github.com/dropDatabas3/memberkeys/internal/rate"
)

// Deps son las dependencias del router.
type Deps struct {
	Factory  *engine.Factory
	Driver   string
	Gatherer prometheus.Gatherer // nil: sin /metrics
	Logger   *zap.Logger

	// VerifyLimiter limita POST /verify por member + IP. nil: sin límite.
	VerifyLimiter rate.Limiter
	// TrustedProxies: solo desde estas redes se acepta X-Forwarded-For.
	TrustedProxies []netip.Prefix
}

// New registra:
//
//	GET  /healthz
//	GET  /metrics
//	GET  /v1/members/{memberID}/keys
//	POST /v1/members/{memberID}/verify
//	POST /v1/aliases/hash
func New(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	keysCtrl := controllers.NewKeysController(d.Factory)
	aliasCtrl := controllers.NewAliasController()
	healthCtrl := controllers.NewHealthController(d.Factory.Store(), d.Driver)

	r := chi.NewRouter()
	r.Use(mw.WithRecover())

	// Health y métricas: sin log por request (muy frecuentes).
	r.Get("/healthz", healthCtrl.Healthz)
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.WithRequestLogger(log), mw.WithNoStore())
		r.Get("/members/{memberID}/keys", keysCtrl.ListKeys)
		r.With(mw.WithRateLimit(d.VerifyLimiter, mw.MemberRateKey(d.TrustedProxies))).
			Post("/members/{memberID}/verify", keysCtrl.Verify)
		r.Post("/aliases/hash", aliasCtrl.Hash)
	})
	return r
}
