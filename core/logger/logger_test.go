package logger

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		level zapcore.Level
	}{
		{"Production json", Config{Level: "info", Format: "json"}, zapcore.InfoLevel},
		{"Development console", Config{Level: "debug", Format: "console"}, zapcore.DebugLevel},
		{"Warn", Config{Level: "warn", Format: "json"}, zapcore.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(&tt.cfg)
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(tt.level))
			assert.False(t, l.Core().Enabled(tt.level-1))
		})
	}
}

func TestWithRayID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		c.Locals("ray_id", "ray-1")
		WithRayID(base, c).Info("hello")
		return nil
	})
	_, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "ray-1", logs.All()[0].ContextMap()["ray_id"])
}

func TestWithScope(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	WithScope(zap.New(core), "T1", "2024-01").Info("run started")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "T1", fields["terminal_id"])
	assert.Equal(t, "2024-01", fields["period"])
}
