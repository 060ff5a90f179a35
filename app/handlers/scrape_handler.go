package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/term-insurance-analyzer/app/dto"
	businessflow "github.com/amirphl/term-insurance-analyzer/business_flow"
	"github.com/amirphl/term-insurance-analyzer/utils"
	"github.com/gofiber/fiber/v3"
)

// ScrapeHandlerInterface defines the contract for scrape handlers
type ScrapeHandlerInterface interface {
	Trigger(c fiber.Ctx) error
	ListRuns(c fiber.Ctx) error
}

// ScrapeHandler handles manual scrape triggers and run history
type ScrapeHandler struct {
	baseHandler
	flow businessflow.ScrapeFlow
	// runTimeout bounds a waited run
	runTimeout time.Duration
}

// NewScrapeHandler creates a new scrape handler
func NewScrapeHandler(flow businessflow.ScrapeFlow, logger *utils.Logger, timeout, runTimeout time.Duration) *ScrapeHandler {
	if runTimeout <= 0 {
		runTimeout = 5 * time.Minute
	}
	return &ScrapeHandler{
		baseHandler: newBaseHandler(logger, timeout),
		flow:        flow,
		runTimeout:  runTimeout,
	}
}

// Trigger Scrape
// @Summary Trigger scrape
// @Description Run the listing adapters now. With wait=true the response carries the finished run, otherwise 202 is returned once the run has started.
// @Tags Scrape
// @Accept json
// @Produce json
// @Param wait query bool false "Wait for the run to finish"
// @Param request body dto.TriggerScrapeRequest false "Trigger options"
// @Success 200 {object} dto.APIResponse{data=dto.TriggerScrapeResponse} "Run finished"
// @Success 202 {object} dto.APIResponse{data=dto.TriggerScrapeResponse} "Run accepted"
// @Failure 409 {object} dto.APIResponse "Scrape already in progress"
// @Router /api/v1/scrape [post]
func (h *ScrapeHandler) Trigger(c fiber.Ctx) error {
	var req dto.TriggerScrapeRequest
	if len(c.Body()) > 0 {
		if ok, err := h.bindJSON(c, &req); !ok {
			return err
		}
	}
	if raw := strings.TrimSpace(c.Query("wait")); raw != "" {
		wait, err := strconv.ParseBool(raw)
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "wait must be a boolean", "INVALID_REQUEST", nil)
		}
		req.Wait = wait
	}

	timeout := h.timeout
	if req.Wait {
		timeout = h.runTimeout + h.timeout
	}
	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/scrape", timeout)
	defer cancel()

	result, err := h.flow.TriggerScrape(ctx, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to run scrape", "SCRAPE_FAILED")
	}

	if result.Accepted {
		return h.SuccessResponse(c, fiber.StatusAccepted, "Scrape started", result)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Scrape completed", result)
}

// List Scrape Runs
// @Summary List scrape runs
// @Description Recent scrape runs, newest first
// @Tags Scrape
// @Produce json
// @Param limit query int false "Maximum runs to return (1-100, default 20)"
// @Success 200 {object} dto.APIResponse{data=dto.ListScrapeRunsResponse} "Runs"
// @Failure 400 {object} dto.APIResponse "Invalid limit"
// @Router /api/v1/scrape/runs [get]
func (h *ScrapeHandler) ListRuns(c fiber.Ctx) error {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "limit must be an integer", "INVALID_LIMIT", nil)
		}
		limit = v
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/scrape/runs")
	defer cancel()

	result, err := h.flow.ListRuns(ctx, limit, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to list scrape runs", "LIST_SCRAPE_RUNS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Scrape runs retrieved successfully", result)
}
