package records

import (
	"payment-reconciler/core/logger"
	"payment-reconciler/core/reconcile"
	"payment-reconciler/core/server"

	"github.com/gofiber/fiber/v2"
)

// Handler handles HTTP requests for record ingestion.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the records routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/records")
	group.Post("/sales", h.HandleIngestSales)
	group.Post("/settlements", h.HandleIngestSettlements)
	group.Get("/sales/:id", h.HandleGetSale)
	group.Get("/settlements/:id", h.HandleGetSettlement)
	group.Put("/terminals/:id", h.HandleSetProcessor)
}

// HandleIngestSales stores a batch of sales.
func (h *Handler) HandleIngestSales(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req SalesRequest
	if err := c.BodyParser(&req); err != nil {
		return server.RespondError(c, l, &reconcile.ValidationError{Field: "body", Message: err.Error()})
	}

	n, err := h.service.IngestSales(c.UserContext(), req)
	if err != nil {
		return server.RespondError(c, l, err)
	}
	return c.JSON(IngestResponse{Ingested: n})
}

// HandleIngestSettlements stores a batch of settlements.
func (h *Handler) HandleIngestSettlements(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req SettlementsRequest
	if err := c.BodyParser(&req); err != nil {
		return server.RespondError(c, l, &reconcile.ValidationError{Field: "body", Message: err.Error()})
	}

	n, err := h.service.IngestSettlements(c.UserContext(), req)
	if err != nil {
		return server.RespondError(c, l, err)
	}
	return c.JSON(IngestResponse{Ingested: n})
}

// HandleSetProcessor records the processor of a terminal.
func (h *Handler) HandleSetProcessor(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req TerminalRequest
	if err := c.BodyParser(&req); err != nil {
		return server.RespondError(c, l, &reconcile.ValidationError{Field: "body", Message: err.Error()})
	}

	if err := h.service.SetProcessor(c.UserContext(), c.Params("id"), req); err != nil {
		return server.RespondError(c, l, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleGetSale returns one sale.
func (h *Handler) HandleGetSale(c *fiber.Ctx) error {
	sale, err := h.service.Sale(c.UserContext(), c.Params("id"))
	if err != nil {
		return server.RespondError(c, logger.WithRayID(h.service.logger, c), err)
	}
	return c.JSON(sale)
}

// HandleGetSettlement returns one settlement.
func (h *Handler) HandleGetSettlement(c *fiber.Ctx) error {
	st, err := h.service.Settlement(c.UserContext(), c.Params("id"))
	if err != nil {
		return server.RespondError(c, logger.WithRayID(h.service.logger, c), err)
	}
	return c.JSON(st)
}
