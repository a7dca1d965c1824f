package statistics

import (
	"payment-reconciler/core/logger"
	"payment-reconciler/core/server"
	"payment-reconciler/core/utils"

	"github.com/gofiber/fiber/v2"
)

// Handler handles HTTP requests for statistics.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the statistics routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/statistics")
	group.Get("/performance", h.HandlePerformance)
}

// HandlePerformance returns the performance report. fresh=true bypasses the cache.
func (h *Handler) HandlePerformance(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	q, err := ParseQuery(c.Query("terminals"), c.Query("from"), c.Query("to"))
	if err != nil {
		return server.RespondError(c, l, err)
	}
	if utils.ToBool(c.Query("fresh")) {
		h.service.Invalidate()
	}

	stats, err := h.service.Compute(c.UserContext(), q)
	if err != nil {
		return server.RespondError(c, l, err)
	}
	return c.JSON(stats)
}
