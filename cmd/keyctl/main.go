package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dropDatabas3/memberkeys/internal/config"
	"github.com/dropDatabas3/memberkeys/internal/engine"
	"github.com/dropDatabas3/memberkeys/internal/keystore"
	"github.com/dropDatabas3/memberkeys/internal/metrics"
	"github.com/dropDatabas3/memberkeys/internal/observability/logger"
)

// app se arma en PersistentPreRunE; el store se abre recién cuando un comando lo pide.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Keys

	store   keystore.KeyStore
	closer  keystore.Closer
	factory *engine.Factory

	out string
	w   io.Writer
}

func (a *app) open(ctx context.Context) (*engine.Factory, error) {
	if a.factory != nil {
		return a.factory, nil
	}
	store, closer, err := keystore.Open(ctx, a.cfg.KeystoreConfig(), keystore.WithLogger(a.log.Named("keystore")))
	if err != nil {
		return nil, err
	}
	f, err := engine.NewFactory(store,
		engine.WithAlgorithm(a.cfg.Algorithm()),
		engine.WithLogger(a.log.Named("engine")),
		engine.WithMetrics(a.metrics),
	)
	if err != nil {
		_ = closer()
		return nil, err
	}
	a.store, a.closer, a.factory = store, closer, f
	return f, nil
}

func (a *app) close() {
	if a.closer != nil {
		if err := a.closer(); err != nil && a.log != nil {
			a.log.Warn("keystore close failed", logger.Err(err))
		}
	}
	_ = logger.Sync()
}

// print escribe v como JSON indentado, o con el formateador text si --out=text.
func (a *app) print(v any, text func() string) {
	if a.out == "text" && text != nil {
		fmt.Fprintln(a.w, text())
		return
	}
	p, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(a.w, string(p))
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	var (
		cfgPath = envOr("KEYCTL_CONFIG", "")
		envFile = ".env"
	)

	root := &cobra.Command{
		Use:           "keyctl",
		Short:         "Gestión de claves por member: generar, listar, firmar, verificar y hashear alias",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				_ = godotenv.Load(envFile)
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "keyctl"})

			a.cfg = cfg
			a.w = cmd.OutOrStdout()
			a.log = logger.L()
			a.registry = prometheus.NewRegistry()
			a.metrics = metrics.NewKeys()
			return a.metrics.Register(a.registry)
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", cfgPath, "ruta a config.yaml (env KEYCTL_CONFIG); vacío = defaults + env")
	root.PersistentFlags().StringVar(&envFile, "env-file", envFile, "ruta a .env (se ignora si no existe)")
	root.PersistentFlags().StringVar(&a.out, "out", envOr("KEYCTL_OUT", "json"), "formato de salida: json|text")

	root.AddCommand(
		newGenerateCmd(a),
		newKeysCmd(a),
		newSignCmd(a),
		newVerifyCmd(a),
		newAliasHashCmd(a),
		newGenMasterKeyCmd(a),
		newServeCmd(a),
	)
	return root, a
}

func main() {
	root, a := newRootCmd()
	err := root.Execute()
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
