package divergence

import (
	"payment-reconciler/core/logger"
	"payment-reconciler/core/reconcile"
	"payment-reconciler/core/server"

	"github.com/gofiber/fiber/v2"
)

// Handler handles HTTP requests for divergences.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the divergence routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/divergences")
	group.Get("/", h.HandleList)
	group.Get("/adjustments", h.HandleAdjustments)
	group.Get("/:id", h.HandleGet)
	group.Post("/:id/resolve", h.HandleResolve)
	group.Post("/:id/supersede", h.HandleSupersede)
}

// HandleList lists divergences.
func (h *Handler) HandleList(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var q ListQuery
	if err := c.QueryParser(&q); err != nil {
		return server.RespondError(c, l, &reconcile.ValidationError{Field: "query", Message: err.Error()})
	}
	if err := server.Validate(q); err != nil {
		return server.RespondError(c, l, err)
	}

	divs, err := h.service.List(c.UserContext(), q)
	if err != nil {
		return server.RespondError(c, l, err)
	}
	return c.JSON(divs)
}

// HandleGet returns one divergence.
func (h *Handler) HandleGet(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	d, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return server.RespondError(c, l, err)
	}
	return c.JSON(d)
}

// HandleResolve resolves a pending divergence.
func (h *Handler) HandleResolve(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req ResolveRequest
	if err := c.BodyParser(&req); err != nil {
		return server.RespondError(c, l, &reconcile.ValidationError{Field: "body", Message: err.Error()})
	}
	if err := server.Validate(req); err != nil {
		return server.RespondError(c, l, err)
	}

	d, err := h.service.Resolve(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return server.RespondError(c, l, err)
	}
	return c.JSON(d)
}

// HandleSupersede records a correction of a closed divergence.
func (h *Handler) HandleSupersede(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req SupersedeRequest
	if err := c.BodyParser(&req); err != nil {
		return server.RespondError(c, l, &reconcile.ValidationError{Field: "body", Message: err.Error()})
	}
	if err := server.Validate(req); err != nil {
		return server.RespondError(c, l, err)
	}

	d, err := h.service.Supersede(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return server.RespondError(c, l, err)
	}
	return c.Status(fiber.StatusCreated).JSON(d)
}

// HandleAdjustments returns the manual adjustment total of a scope.
func (h *Handler) HandleAdjustments(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	scope := reconcile.Scope{TerminalID: c.Query("terminal"), Period: c.Query("period")}
	total, err := h.service.AdjustmentTotal(c.UserContext(), scope)
	if err != nil {
		return server.RespondError(c, l, err)
	}
	return c.JSON(AdjustmentResponse{TerminalID: scope.TerminalID, Period: scope.Period, Total: total})
}
