package handlers

import (
	"time"

	"github.com/amirphl/term-insurance-analyzer/app/dto"
	businessflow "github.com/amirphl/term-insurance-analyzer/business_flow"
	"github.com/amirphl/term-insurance-analyzer/utils"
	"github.com/gofiber/fiber/v3"
)

// AssistantHandlerInterface defines the contract for chat and premium estimate handlers
type AssistantHandlerInterface interface {
	Chat(c fiber.Ctx) error
	PremiumEstimate(c fiber.Ctx) error
}

// AssistantHandler handles advisor HTTP requests
type AssistantHandler struct {
	baseHandler
	flow businessflow.AssistantFlow
}

func NewAssistantHandler(flow businessflow.AssistantFlow, logger *utils.Logger, timeout time.Duration) *AssistantHandler {
	return &AssistantHandler{
		baseHandler: newBaseHandler(logger, timeout),
		flow:        flow,
	}
}

// Chat
// @Summary Ask the advisor
// @Description Answer a follow-up question about stored plans
// @Tags Assistant
// @Accept json
// @Produce json
// @Param request body dto.ChatRequest true "Question and context"
// @Success 200 {object} dto.APIResponse{data=dto.ChatResponse} "Reply"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/chat [post]
func (h *AssistantHandler) Chat(c fiber.Ctx) error {
	var req dto.ChatRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/chat")
	defer cancel()

	result, err := h.flow.Chat(ctx, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to answer question", "CHAT_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Reply generated successfully", result)
}

// PremiumEstimate
// @Summary Estimate premium
// @Description Annual premium range across stored plans for an age, cover and term
// @Tags Assistant
// @Accept json
// @Produce json
// @Param request body dto.PremiumEstimateRequest true "Age, cover in lakhs and term"
// @Success 200 {object} dto.APIResponse{data=dto.PremiumEstimateResponse} "Premium range"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/premium-estimate [post]
func (h *AssistantHandler) PremiumEstimate(c fiber.Ctx) error {
	var req dto.PremiumEstimateRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/premium-estimate")
	defer cancel()

	result, err := h.flow.EstimatePremium(ctx, &req, h.clientMetadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to estimate premium", "PREMIUM_ESTIMATE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Premium estimated successfully", result)
}
