// Package logger provee un logger Zap singleton con scoping por contexto.
//
// # Decisiones
//
//   - Singleton: una sola instancia global inicializada con Init().
//   - Context scoping: cada operación puede llevar su logger con campos
//     (member_id, key_id, ...) sin crear un nuevo core.
//   - Entornos: "dev" usa consola con colores, "prod" usa JSON.
//   - Nunca se loguea material de clave: sólo ids, niveles y algoritmos.
//
// # Uso
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.MemberID(id), logger.Op("Engine.GenerateKey"))
//	log.Debug("key generated", logger.KeyID(k.ID))
package logger
