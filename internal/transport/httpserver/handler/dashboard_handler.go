package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"leasekeeper-service/internal/app/service"
	"leasekeeper-service/internal/domain"
	"leasekeeper-service/internal/transport/httpserver/dto"
)

// DashboardHandler handles dashboard-related HTTP requests.
type DashboardHandler struct {
	leaseService *service.LeaseService
	backend      string
	logger       *zap.Logger
}

// NewDashboardHandler creates a new DashboardHandler. backend names the store
// shown on the page.
func NewDashboardHandler(svc *service.LeaseService, backend string, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		leaseService: svc,
		backend:      backend,
		logger:       logger,
	}
}

// Render handles GET /dashboard
// Renders the dashboard HTML page using Fiber's template engine.
func (h *DashboardHandler) Render(c *fiber.Ctx) error {
	leases, listable := h.leases(c)

	return c.Render("pages/dashboard", fiber.Map{
		"Title":    "Leasekeeper Dashboard",
		"Stats":    dto.FromLeases(h.backend, leases),
		"Leases":   dto.FromDomainLeases(leases).Leases,
		"Listable": listable,
	}, "layouts/base")
}

// Stats handles GET /api/v1/stats
func (h *DashboardHandler) Stats(c *fiber.Ctx) error {
	leases, err := h.leaseService.List(c.UserContext())
	if err != nil {
		return writeError(c, h.logger, "failed to compute stats", err)
	}

	return c.JSON(dto.FromLeases(h.backend, leases))
}

// leases lists leases for the page. Listing errors degrade to an empty table.
func (h *DashboardHandler) leases(c *fiber.Ctx) ([]*domain.Lease, bool) {
	leases, err := h.leaseService.List(c.UserContext())
	switch {
	case errors.Is(err, service.ErrListingUnsupported):
		return nil, false
	case err != nil:
		h.logger.Warn("dashboard listing failed", zap.Error(err))
		return nil, true
	}
	return leases, true
}
