// Package audit emite eventos del ciclo de vida de claves por un logger dedicado.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/memberkeys/internal/observability/logger"
)

const EventKeyGenerated = "key.generated"

// Log escribe un evento estructurado con el logger del contexto (o el global) bajo "audit".
func Log(ctx context.Context, event string, fields ...zap.Field) {
	fs := make([]zap.Field, 0, len(fields)+2)
	fs = append(fs, zap.String("event", event), zap.Time("ts", time.Now().UTC()))
	fs = append(fs, fields...)
	logger.From(ctx).Named("audit").Info(event, fs...)
}
