package logger

import (
	"time"

	"go.uber.org/zap"
)

// ─── Dominio ───

// MemberID crea un campo para el id del member dueño de las claves.
func MemberID(v string) zap.Field { return zap.String("member_id", v) }

// KeyID crea un campo para el id de una clave.
func KeyID(v string) zap.Field { return zap.String("key_id", v) }

// Level crea un campo para el nivel de una clave (usar String() del nivel).
func Level(v string) zap.Field { return zap.String("key_level", v) }

// Algorithm crea un campo para el algoritmo de firma.
func Algorithm(v string) zap.Field { return zap.String("algorithm", v) }

// Driver crea un campo para el backend del keystore.
func Driver(v string) zap.Field { return zap.String("driver", v) }

// ─── Sistema ───

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field { return zap.String("component", v) }

// Op crea un campo para la operación actual.
func Op(v string) zap.Field { return zap.String("op", v) }

// Err crea un campo para un error.
func Err(err error) zap.Field { return zap.Error(err) }

// Count crea un campo para un conteo.
func Count(v int) zap.Field { return zap.Int("count", v) }

// Path crea un campo para una ruta (archivo o HTTP).
func Path(v string) zap.Field { return zap.String("path", v) }

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field { return zap.Int("status", v) }

// Duration crea un campo para una duración.
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

// String crea un campo string genérico.
func String(key, v string) zap.Field { return zap.String(key, v) }

// Any crea un campo de tipo arbitrario (panics, payloads chicos).
func Any(key string, v any) zap.Field { return zap.Any(key, v) }

// RequestID crea un campo para el id de request HTTP.
func RequestID(v string) zap.Field { return zap.String("request_id", v) }

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field { return zap.String("method", v) }
