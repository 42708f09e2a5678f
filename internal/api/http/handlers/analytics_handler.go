package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-desk/internal/domain"
	"github.com/spec-kit/complaint-desk/internal/service"
)

// AnalyticsHandler serves the dashboard overview.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Overview GET /analytics/overview?range=30d&department=all.
func (h *AnalyticsHandler) Overview(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	snapshot, err := h.analytics.ComputeOverview(c.UserContext(), actor, service.OverviewQuery{
		Range:      domain.TimeRange(strings.ToLower(strings.TrimSpace(c.Query("range")))),
		Department: c.Query("department"),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": snapshot})
}
