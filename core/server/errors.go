package server

import (
	"errors"

	"payment-reconciler/core/reconcile"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RespondError maps a domain error to its HTTP status and writes the JSON body.
// Unknown errors are logged and reported as 500.
func RespondError(c *fiber.Ctx, l *zap.Logger, err error) error {
	var (
		validation *reconcile.ValidationError
		conflict   *reconcile.ConflictError
		scope      *reconcile.InvalidScopeError
		persist    *reconcile.PersistenceError
	)

	switch {
	case errors.As(err, &validation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": validation.Message,
			"field": validation.Field,
		})
	case errors.As(err, &scope):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": scope.Error()})
	case errors.Is(err, reconcile.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	case errors.As(err, &conflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": conflict.Error()})
	case errors.As(err, &persist):
		l.Error("Persistence failure", zap.String("op", persist.Op), zap.Error(persist.Err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "no changes made, retry",
		})
	default:
		l.Error("Request failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}
