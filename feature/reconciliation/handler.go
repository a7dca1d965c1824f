package reconciliation

import (
	"payment-reconciler/core/logger"
	"payment-reconciler/core/reconcile"
	"payment-reconciler/core/server"

	"github.com/gofiber/fiber/v2"
)

// Handler handles HTTP requests for reconciliation runs.
type Handler struct {
	coordinator *Coordinator
}

// NewHandler creates a new HTTP handler.
func NewHandler(coordinator *Coordinator) *Handler {
	return &Handler{coordinator: coordinator}
}

// RegisterRoutes registers the reconciliation routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/reconciliation")
	group.Post("/runs", h.HandleRun)
	group.Post("/plan", h.HandlePlan)
	group.Get("/runs", h.HandleHistory)
	group.Get("/runs/active", h.HandleActive)
	group.Get("/runs/:id", h.HandleGetRun)
	group.Get("/runs/:id/archive", h.HandleArchive)
	group.Get("/archive", h.HandleArchiveList)
}

func scopeQuery(c *fiber.Ctx) (reconcile.Scope, error) {
	scope := reconcile.Scope{TerminalID: c.Query("terminal_id"), Period: c.Query("period")}
	if scope.TerminalID == "" || scope.Period == "" {
		return scope, &reconcile.ValidationError{Field: "terminal_id", Message: "terminal_id and period required"}
	}
	return scope, nil
}

func (h *Handler) parse(c *fiber.Ctx) (reconcile.Scope, *reconcile.MatchConfig, error) {
	var req RunRequest
	if err := c.BodyParser(&req); err != nil {
		return reconcile.Scope{}, nil, &reconcile.ValidationError{Field: "body", Message: err.Error()}
	}
	if err := server.Validate(req); err != nil {
		return reconcile.Scope{}, nil, err
	}
	cfg := req.Config.apply(h.coordinator.Defaults())
	return req.Scope(), &cfg, nil
}

// HandleRun reconciles a scope and returns the committed run.
func (h *Handler) HandleRun(c *fiber.Ctx) error {
	l := logger.WithRayID(h.coordinator.logger, c)

	scope, cfg, err := h.parse(c)
	if err != nil {
		return server.RespondError(c, l, err)
	}

	run, err := h.coordinator.Run(c.UserContext(), scope, cfg)
	if err != nil {
		return server.RespondError(c, l, err)
	}
	return c.Status(fiber.StatusCreated).JSON(run)
}

// HandlePlan returns what a run would commit, without committing it.
func (h *Handler) HandlePlan(c *fiber.Ctx) error {
	l := logger.WithRayID(h.coordinator.logger, c)

	scope, cfg, err := h.parse(c)
	if err != nil {
		return server.RespondError(c, l, err)
	}

	plan, err := h.coordinator.Plan(c.UserContext(), scope, cfg)
	if err != nil {
		return server.RespondError(c, l, err)
	}
	return c.JSON(plan)
}

// HandleHistory lists the runs of a scope.
func (h *Handler) HandleHistory(c *fiber.Ctx) error {
	l := logger.WithRayID(h.coordinator.logger, c)

	scope, err := scopeQuery(c)
	if err != nil {
		return server.RespondError(c, l, err)
	}

	runs, err := h.coordinator.History(c.UserContext(), scope)
	if err != nil {
		return server.RespondError(c, l, err)
	}
	return c.JSON(runs)
}

// HandleActive lists in-flight runs with their phase.
func (h *Handler) HandleActive(c *fiber.Ctx) error {
	return c.JSON(h.coordinator.Active())
}

// HandleGetRun returns a run with its match groups.
func (h *Handler) HandleGetRun(c *fiber.Ctx) error {
	l := logger.WithRayID(h.coordinator.logger, c)

	run, groups, err := h.coordinator.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return server.RespondError(c, l, err)
	}
	return c.JSON(RunResponse{Run: run, Groups: groups})
}

// HandleArchive returns the archived snapshot of a run.
func (h *Handler) HandleArchive(c *fiber.Ctx) error {
	l := logger.WithRayID(h.coordinator.logger, c)

	snap, err := h.coordinator.Archived(c.UserContext(), c.Params("id"))
	if err != nil {
		return server.RespondError(c, l, err)
	}
	return c.JSON(snap)
}

// HandleArchiveList lists the archived snapshot keys of a scope.
func (h *Handler) HandleArchiveList(c *fiber.Ctx) error {
	l := logger.WithRayID(h.coordinator.logger, c)

	scope, err := scopeQuery(c)
	if err != nil {
		return server.RespondError(c, l, err)
	}

	keys, err := h.coordinator.ArchivedKeys(c.UserContext(), scope)
	if err != nil {
		return server.RespondError(c, l, err)
	}
	return c.JSON(keys)
}
