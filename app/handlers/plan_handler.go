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

// PlanHandlerInterface defines the contract for plan handlers
type PlanHandlerInterface interface {
	List(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	Create(c fiber.Ctx) error
	Update(c fiber.Ctx) error
	Delete(c fiber.Ctx) error
	Stats(c fiber.Ctx) error
	Export(c fiber.Ctx) error
}

// PlanHandler handles plan store HTTP requests
type PlanHandler struct {
	baseHandler
	flow businessflow.PlanFlow
}

// NewPlanHandler creates a new plan handler
func NewPlanHandler(flow businessflow.PlanFlow, logger *utils.Logger, timeout time.Duration) *PlanHandler {
	return &PlanHandler{
		baseHandler: newBaseHandler(logger, timeout),
		flow:        flow,
	}
}

// List Plans
// @Summary List plans
// @Description List stored term plans, highest claim settlement ratio first
// @Tags Plans
// @Produce json
// @Param source query string false "Source tag (beshak, policybazaar, ditto, fallback, manual)"
// @Param min_csr query number false "Minimum claim settlement ratio"
// @Param search query string false "Case-insensitive match on plan name or provider"
// @Success 200 {object} dto.APIResponse{data=dto.ListPlansResponse} "Plans retrieved"
// @Failure 400 {object} dto.APIResponse "Invalid filter"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/plans [get]
func (h *PlanHandler) List(c fiber.Ctx) error {
	req, ok, err := h.listRequest(c)
	if !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/plans")
	defer cancel()

	result, err := h.flow.ListPlans(ctx, req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to list plans", "LIST_PLANS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Plans retrieved successfully", result)
}

// Get Plan
// @Summary Get plan
// @Tags Plans
// @Produce json
// @Param id path int true "Plan ID"
// @Success 200 {object} dto.APIResponse{data=dto.PlanDTO} "Plan retrieved"
// @Failure 404 {object} dto.APIResponse "Plan not found"
// @Router /api/v1/plans/{id} [get]
func (h *PlanHandler) Get(c fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid plan ID", "INVALID_PLAN_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/plans/:id")
	defer cancel()

	result, err := h.flow.GetPlan(ctx, id, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to get plan", "GET_PLAN_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Plan retrieved successfully", result)
}

// Create Plan
// @Summary Create plan
// @Description Add a plan by hand; it is stored with source "manual"
// @Tags Plans
// @Accept json
// @Produce json
// @Param request body dto.CreatePlanRequest true "Plan"
// @Success 201 {object} dto.APIResponse{data=dto.PlanDTO} "Plan created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Plan already exists"
// @Router /api/v1/plans [post]
func (h *PlanHandler) Create(c fiber.Ctx) error {
	var req dto.CreatePlanRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/plans")
	defer cancel()

	result, err := h.flow.CreatePlan(ctx, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to create plan", "CREATE_PLAN_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Plan created successfully", result)
}

// Update Plan
// @Summary Update plan
// @Description Partially update a plan; omitted fields keep their value
// @Tags Plans
// @Accept json
// @Produce json
// @Param id path int true "Plan ID"
// @Param request body dto.UpdatePlanRequest true "Changed fields"
// @Success 200 {object} dto.APIResponse{data=dto.PlanDTO} "Plan updated"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Plan not found"
// @Failure 409 {object} dto.APIResponse "Plan already exists"
// @Router /api/v1/plans/{id} [put]
func (h *PlanHandler) Update(c fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid plan ID", "INVALID_PLAN_ID", nil)
	}

	var req dto.UpdatePlanRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/plans/:id")
	defer cancel()

	result, err := h.flow.UpdatePlan(ctx, id, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to update plan", "UPDATE_PLAN_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Plan updated successfully", result)
}

// Delete Plan
// @Summary Delete plan
// @Tags Plans
// @Produce json
// @Param id path int true "Plan ID"
// @Success 200 {object} dto.APIResponse{data=dto.DeletePlanResponse} "Plan deleted"
// @Failure 404 {object} dto.APIResponse "Plan not found"
// @Router /api/v1/plans/{id} [delete]
func (h *PlanHandler) Delete(c fiber.Ctx) error {
	id, ok := parseID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid plan ID", "INVALID_PLAN_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/plans/:id")
	defer cancel()

	result, err := h.flow.DeletePlan(ctx, id, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to delete plan", "DELETE_PLAN_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Plan deleted successfully", result)
}

// Stats
// @Summary Plan store statistics
// @Description Total plans, counts per source, average claim settlement ratio, freshness and the last scrape run
// @Tags Plans
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.StatsResponse} "Statistics"
// @Router /api/v1/stats [get]
func (h *PlanHandler) Stats(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/stats")
	defer cancel()

	result, err := h.flow.Stats(ctx, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to compute statistics", "STATS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Statistics retrieved successfully", result)
}

// Export Plans
// @Summary Export plans
// @Description Download the filtered plan list as an Excel workbook
// @Tags Plans
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param source query string false "Source tag"
// @Param min_csr query number false "Minimum claim settlement ratio"
// @Param search query string false "Case-insensitive match on plan name or provider"
// @Success 200 {file} file "xlsx workbook"
// @Router /api/v1/plans/export [get]
func (h *PlanHandler) Export(c fiber.Ctx) error {
	req, ok, err := h.listRequest(c)
	if !ok {
		return err
	}

	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/plans/export", 2*h.timeout)
	defer cancel()

	filename, data, err := h.flow.ExportPlans(ctx, req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to export plans", "EXPORT_FAILED")
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Status(fiber.StatusOK).Send(data)
}

// listRequest reads the list filters from the query string
func (h *PlanHandler) listRequest(c fiber.Ctx) (*dto.ListPlansRequest, bool, error) {
	req := &dto.ListPlansRequest{}
	if source := strings.TrimSpace(c.Query("source")); source != "" {
		source = strings.ToLower(source)
		req.Source = &source
	}
	if raw := strings.TrimSpace(c.Query("min_csr")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, false, h.ErrorResponse(c, fiber.StatusBadRequest, "min_csr must be a number", "INVALID_FILTER", nil)
		}
		req.MinCSR = &v
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		req.Search = &search
	}

	if fields := h.validate(req); fields != nil {
		return nil, false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", fields)
	}
	return req, true, nil
}
