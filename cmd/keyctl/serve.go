package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	mw "github.com/dropDatabas3/memberkeys/internal/http/middlewares"
	"github.com/dropDatabas3/memberkeys/internal/http/router"
	"github.com/dropDatabas3/memberkeys/internal/keystore"
	"github.com/dropDatabas3/memberkeys/internal/observability/logger"
	"github.com/dropDatabas3/memberkeys/internal/rate"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta la API admin (claves públicas, verificación, alias, /healthz, /metrics)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			f, err := a.open(ctx)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			proxies, err := mw.ParseTrustedProxies(a.cfg.Server.TrustedProxies)
			if err != nil {
				return err
			}
			limiter, closeLimiter := a.verifyLimiter()
			defer closeLimiter()

			srv := &http.Server{
				Addr: addr,
				Handler: router.New(router.Deps{
					Factory:  f,
					Driver:   a.cfg.Keystore.Driver,
					Gatherer: a.registry,
					Logger:   a.log.Named("http"),

					VerifyLimiter:  limiter,
					TrustedProxies: proxies,
				}),
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.log.Info("admin api listening", logger.String("addr", addr), logger.Driver(a.cfg.Keystore.Driver))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			a.log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "dirección de escucha (default: server.addr)")
	return cmd
}

// verifyLimiter comparte el contador en Redis cuando el keystore es redis; si no, es por proceso.
func (a *app) verifyLimiter() (rate.Limiter, func()) {
	vr := a.cfg.Server.VerifyRate
	if vr.Max == 0 {
		return nil, func() {}
	}
	if a.cfg.Keystore.Driver == keystore.DriverRedis {
		client := redis.NewClient(&redis.Options{Addr: a.cfg.Redis.Addr, Password: a.cfg.Redis.Password, DB: a.cfg.Redis.DB})
		return rate.NewRedisLimiter(client, a.cfg.Redis.Prefix+":rl:", vr.Max, vr.Window), func() { _ = client.Close() }
	}
	return rate.NewMemoryLimiter(vr.Max, vr.Window), func() {}
}
