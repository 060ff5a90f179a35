package handlers

import (
	"context"
	"time"

	"github.com/amirphl/term-insurance-analyzer/app/dto"
	"github.com/amirphl/term-insurance-analyzer/utils"
	"github.com/gofiber/fiber/v3"
)

// HealthHandler reports liveness and database reachability
type HealthHandler struct {
	baseHandler
	version string
	ping    func(ctx context.Context) error
}

// NewHealthHandler creates a health handler. ping may be nil.
func NewHealthHandler(version string, ping func(ctx context.Context) error, logger *utils.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(logger, 5*time.Second),
		version:     version,
		ping:        ping,
	}
}

// Health
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.HealthResponse} "Service is healthy"
// @Failure 503 {object} dto.APIResponse "Database unreachable"
// @Router /api/v1/health [get]
func (h *HealthHandler) Health(c fiber.Ctx) error {
	resp := dto.HealthResponse{
		Status:    "ok",
		Message:   "Term Insurance Analyzer API is running",
		Version:   h.version,
		Timestamp: utils.UTCNowRFC3339(),
	}

	if h.ping != nil {
		ctx, cancel := h.createRequestContext(c, "/api/v1/health")
		defer cancel()
		if err := h.ping(ctx); err != nil {
			h.logger.Warn("Health check failed", "error", err)
			resp.Status = "degraded"
			resp.Message = "Database is unreachable"
			return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Service is degraded", "DATABASE_UNAVAILABLE", resp)
		}
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Service is healthy", resp)
}
