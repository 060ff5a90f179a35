package handlers

import (
	"time"

	"github.com/amirphl/term-insurance-analyzer/app/dto"
	businessflow "github.com/amirphl/term-insurance-analyzer/business_flow"
	"github.com/amirphl/term-insurance-analyzer/utils"
	"github.com/gofiber/fiber/v3"
)

// RecommendationHandlerInterface defines the contract for recommendation handlers
type RecommendationHandlerInterface interface {
	Recommend(c fiber.Ctx) error
	Compare(c fiber.Ctx) error
}

// RecommendationHandler handles recommendation HTTP requests
type RecommendationHandler struct {
	baseHandler
	flow businessflow.RecommendationFlow
}

// NewRecommendationHandler creates a new recommendation handler.
// timeout bounds the whole model chain, so it should exceed one model attempt.
func NewRecommendationHandler(flow businessflow.RecommendationFlow, logger *utils.Logger, timeout time.Duration) *RecommendationHandler {
	return &RecommendationHandler{
		baseHandler: newBaseHandler(logger, timeout),
		flow:        flow,
	}
}

// Recommend
// @Summary Recommend plans
// @Description Filter stored plans for the profile and rank the eligible ones
// @Tags Recommendations
// @Accept json
// @Produce json
// @Param request body dto.RecommendRequest true "User profile"
// @Success 200 {object} dto.APIResponse{data=dto.RecommendResponse} "Ranked plans"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/recommend [post]
func (h *RecommendationHandler) Recommend(c fiber.Ctx) error {
	var req dto.RecommendRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/recommend")
	defer cancel()

	result, err := h.flow.Recommend(ctx, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to build recommendation", "RECOMMEND_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Recommendation generated successfully", result)
}

// Compare
// @Summary Compare plans
// @Description Rank two or three named plans side by side for the profile
// @Tags Recommendations
// @Accept json
// @Produce json
// @Param request body dto.CompareRequest true "Plan names and profile"
// @Success 200 {object} dto.APIResponse{data=dto.RecommendResponse} "Ranked plans"
// @Failure 400 {object} dto.APIResponse "Validation error or fewer than two known plans"
// @Router /api/v1/compare [post]
func (h *RecommendationHandler) Compare(c fiber.Ctx) error {
	var req dto.CompareRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/compare")
	defer cancel()

	result, err := h.flow.Compare(ctx, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to compare plans", "COMPARE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Comparison generated successfully", result)
}
