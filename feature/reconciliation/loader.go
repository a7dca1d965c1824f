package reconciliation

import (
	"payment-reconciler/core/lock"
	"payment-reconciler/core/storage"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	coordinator *Coordinator
	handler     *Handler
}

// NewFeature creates the reconciliation feature. When client is nil runs are not archived.
func NewFeature(repo Repository, locker lock.Locker, client storage.Client, cfg storage.Config, logger *zap.Logger, opts Options) *Feature {
	var archive *Archive
	if client != nil && cfg.ArchiveEnabled {
		archive = NewArchive(client, cfg.Bucket, cfg.ArchivePrefix)
	}

	coordinator := NewCoordinator(repo, locker, archive, logger, opts)
	return &Feature{
		coordinator: coordinator,
		handler:     NewHandler(coordinator),
	}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "reconciliation"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return true
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}

// Coordinator exposes the coordinator for the CLI.
func (f *Feature) Coordinator() *Coordinator {
	return f.coordinator
}
