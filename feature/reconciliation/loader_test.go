package reconciliation

import (
	"testing"

	"payment-reconciler/core/storage"
	"payment-reconciler/core/storage/mocks"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestLoader(t *testing.T) {
	feature := NewFeature(nil, failFast(), new(mocks.Client), storage.Config{Bucket: "b", ArchiveEnabled: true, ArchivePrefix: "runs"}, zap.NewNop(), Options{Defaults: testConfig()})

	assert.Equal(t, "reconciliation", feature.Name())
	assert.True(t, feature.IsEnabled())
	assert.NotNil(t, feature.Coordinator().archive)

	app := fiber.New()
	assert.NoError(t, feature.Load(app))

	disabled := NewFeature(nil, failFast(), new(mocks.Client), storage.Config{}, zap.NewNop(), Options{})
	assert.Nil(t, disabled.Coordinator().archive)
}
