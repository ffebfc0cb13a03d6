// Package handler provides HTTP handlers for the API.
package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"leasekeeper-service/internal/app/service"
	"leasekeeper-service/internal/transport/httpserver/dto"
	"leasekeeper-service/internal/validator"
)

// LeaseHandler handles lease inspection and administration.
type LeaseHandler struct {
	service *service.LeaseService
	logger  *zap.Logger
}

// NewLeaseHandler creates a new LeaseHandler.
func NewLeaseHandler(svc *service.LeaseService, logger *zap.Logger) *LeaseHandler {
	return &LeaseHandler{
		service: svc,
		logger:  logger,
	}
}

// List handles GET /api/v1/leases
func (h *LeaseHandler) List(c *fiber.Ctx) error {
	leases, err := h.service.List(c.UserContext())
	if err != nil {
		return writeError(c, h.logger, "failed to list leases", err)
	}

	return c.JSON(dto.FromDomainLeases(leases))
}

// Get handles GET /api/v1/leases/:key
func (h *LeaseHandler) Get(c *fiber.Ctx) error {
	key := c.Params("key")
	if !validator.ValidLeaseKey(key) {
		return invalidKey(c, key)
	}

	lease, err := h.service.Inspect(c.UserContext(), key)
	if err != nil {
		return writeError(c, h.logger, "failed to inspect lease", err)
	}

	return c.JSON(dto.FromDomainLease(lease))
}

// Unlock handles DELETE /api/v1/leases/:key
// Removes the lease whoever holds it.
func (h *LeaseHandler) Unlock(c *fiber.Ctx) error {
	key := c.Params("key")
	if !validator.ValidLeaseKey(key) {
		return invalidKey(c, key)
	}

	h.logger.Info("force unlock requested", zap.String("key", key), zap.String("ip", c.IP()))

	removed, err := h.service.ForceUnlock(c.UserContext(), key)
	if err != nil {
		return writeError(c, h.logger, "failed to unlock lease", err)
	}

	return c.JSON(dto.UnlockResponse{Key: key, Removed: removed})
}
