package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"leasekeeper-service/internal/app/service"
	"leasekeeper-service/internal/domain"
	"leasekeeper-service/internal/transport/httpserver/dto"
	"leasekeeper-service/internal/validator"
	"leasekeeper-service/pkg/leaselock"
)

// statusFor maps service and lock errors to an HTTP status and error code.
func statusFor(err error) (int, string) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return fiber.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, service.ErrReservedKey):
		return fiber.StatusBadRequest, "RESERVED_KEY"
	case errors.Is(err, domain.ErrInvalidMutation):
		return fiber.StatusBadRequest, "INVALID_MUTATION"
	case errors.Is(err, leaselock.ErrRetryExhausted),
		errors.Is(err, leaselock.ErrNotAcquired),
		errors.Is(err, leaselock.ErrAlreadyLocked):
		return fiber.StatusConflict, "LOCK_UNAVAILABLE"
	case errors.Is(err, leaselock.ErrSaveRejected):
		return fiber.StatusPreconditionFailed, "SAVE_REJECTED"
	case errors.Is(err, leaselock.ErrUnlock):
		return fiber.StatusLocked, "UNLOCK_FAILED"
	case errors.Is(err, service.ErrListingUnsupported):
		return fiber.StatusNotImplemented, "LISTING_UNSUPPORTED"
	default:
		return fiber.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// writeError renders err as dto.ErrorResponse. Server errors are logged and
// their message hidden from the client.
func writeError(c *fiber.Ctx, logger *zap.Logger, msg string, err error) error {
	status, code := statusFor(err)

	resp := dto.ErrorResponse{Error: err.Error(), Code: code}
	if status >= fiber.StatusInternalServerError && status != fiber.StatusNotImplemented {
		logger.Error(msg, zap.Error(err), zap.String("path", c.Path()))
		resp.Error = msg
	}

	return c.Status(status).JSON(resp)
}

func invalidKey(c *fiber.Ctx, key string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error:   "invalid key",
		Code:    "INVALID_KEY",
		Details: fiber.Map{"key": key},
	})
}
