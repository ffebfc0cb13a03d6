package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"leasekeeper-service/internal/app/service"
	"leasekeeper-service/internal/transport/httpserver/dto"
	"leasekeeper-service/internal/validator"
)

// ValueHandler handles reads and mutations of guarded values.
type ValueHandler struct {
	service   *service.LeaseService
	validator *validator.Validator
	logger    *zap.Logger
}

// NewValueHandler creates a new ValueHandler.
func NewValueHandler(svc *service.LeaseService, v *validator.Validator, logger *zap.Logger) *ValueHandler {
	return &ValueHandler{
		service:   svc,
		validator: v,
		logger:    logger,
	}
}

// Get handles GET /api/v1/values/:key
func (h *ValueHandler) Get(c *fiber.Ctx) error {
	key := c.Params("key")
	if !validator.ValidLeaseKey(key) {
		return invalidKey(c, key)
	}

	value, err := h.service.Read(c.UserContext(), key)
	if err != nil {
		return writeError(c, h.logger, "failed to read value", err)
	}

	return c.JSON(dto.FromDomainValue(value))
}

// Mutate handles POST /api/v1/values/:key/mutations
func (h *ValueHandler) Mutate(c *fiber.Ctx) error {
	key := c.Params("key")
	if !validator.ValidLeaseKey(key) {
		return invalidKey(c, key)
	}

	var req dto.MutationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_BODY",
		})
	}

	if err := h.validator.Validate(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   "validation failed",
			Code:    "VALIDATION_ERROR",
			Details: err,
		})
	}

	value, err := h.service.Mutate(c.UserContext(), key, req.ToMutation())
	if err != nil {
		return writeError(c, h.logger, "failed to mutate value", err)
	}

	return c.JSON(dto.FromDomainValue(value))
}
