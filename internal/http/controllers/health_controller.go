package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/memberkeys/internal/keystore"
	"github.com/dropDatabas3/memberkeys/internal/observability/logger"
)

// healthMember es un member que nunca tiene claves; listar sus claves prueba la conexión al backend.
const healthMember = "__healthz__"

type HealthController struct {
	store   keystore.KeyStore
	driver  string
	timeout time.Duration
}

func NewHealthController(store keystore.KeyStore, driver string) *HealthController {
	return &HealthController{store: store, driver: driver, timeout: 2 * time.Second}
}

type healthResponse struct {
	Status string `json:"status"`
	Driver string `json:"driver"`
}

// Healthz maneja GET /healthz
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()

	if _, err := c.store.KeyList(ctx, healthMember); err != nil {
		logger.From(ctx).Warn("keystore unavailable", logger.Driver(c.driver), logger.Err(err))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Driver: c.driver})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Driver: c.driver})
}
