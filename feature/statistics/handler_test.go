package statistics

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandlePerformance(t *testing.T) {
	app := fiber.New()
	NewHandler(NewService(setupStore(t), zap.NewNop(), time.Minute, clock)).RegisterRoutes(app)

	req := httptest.NewRequest("GET", "/statistics/performance?terminals=T1&fresh=true", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var stats PerformanceStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, int64(4), stats.TotalRecords)
	assert.InDelta(t, 1.0, stats.ReconciliationRate, 1e-9)

	req = httptest.NewRequest("GET", "/statistics/performance?from=yesterday", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "from", body["field"])
}

func TestLoader(t *testing.T) {
	feature := NewFeature(nil, zap.NewNop(), time.Minute)

	assert.Equal(t, "statistics", feature.Name())
	assert.True(t, feature.IsEnabled())
	assert.NotNil(t, feature.Service())
	assert.NoError(t, feature.Load(fiber.New()))
}
