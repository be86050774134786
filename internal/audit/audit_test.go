package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dropDatabas3/memberkeys/internal/observability/logger"
)

func TestLog_UsesContextLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := logger.ToContext(context.Background(), zap.New(core))

	Log(ctx, EventKeyGenerated, logger.KeyID("abc"))

	entries := logs.All()
	require.Len(t, entries, 1)
	e := entries[0]
	require.Equal(t, EventKeyGenerated, e.Message)
	require.Equal(t, "audit", e.LoggerName)
	m := e.ContextMap()
	require.Equal(t, EventKeyGenerated, m["event"])
	require.Equal(t, "abc", m["key_id"])
	require.Contains(t, m, "ts")
}
