package businessflow

import (
	"context"
	"strings"

	"github.com/amirphl/term-insurance-analyzer/app/dto"
	"github.com/amirphl/term-insurance-analyzer/app/recommender"
	"github.com/amirphl/term-insurance-analyzer/models"
	"github.com/amirphl/term-insurance-analyzer/repository"
	"github.com/amirphl/term-insurance-analyzer/utils"
)

// PlanAdvisor answers follow-up questions about plans
type PlanAdvisor interface {
	Answer(ctx context.Context, q recommender.ChatQuery) *recommender.ChatAnswer
}

// AssistantFlow defines the chat and premium estimate use cases
type AssistantFlow interface {
	Chat(ctx context.Context, req *dto.ChatRequest, metadata *ClientMetadata) (*dto.ChatResponse, error)
	EstimatePremium(ctx context.Context, req *dto.PremiumEstimateRequest, metadata *ClientMetadata) (*dto.PremiumEstimateResponse, error)
}

// AssistantFlowImpl implements AssistantFlow
type AssistantFlowImpl struct {
	planRepo repository.InsurancePlanRepository
	advisor  PlanAdvisor
	logger   *utils.Logger
}

func NewAssistantFlow(planRepo repository.InsurancePlanRepository, advisor PlanAdvisor, logger *utils.Logger) AssistantFlow {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &AssistantFlowImpl{planRepo: planRepo, advisor: advisor, logger: logger.With("component", "assistant_flow")}
}

// Chat answers a question in the context of the named plans, or of the strongest stored
// plans that suit the profile when none are named
func (f *AssistantFlowImpl) Chat(ctx context.Context, req *dto.ChatRequest, metadata *ClientMetadata) (*dto.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, NewValidationError("message", "must not be blank", ErrChatMessageRequired)
	}

	query := recommender.ChatQuery{Message: message}
	if req.UserProfile != nil {
		profile := ToUserProfile(*req.UserProfile, utils.DefaultMinCSR)
		query.Profile = &profile
	}

	plans, err := f.contextPlans(ctx, req.TopPlanIDs, query.Profile)
	if err != nil {
		return nil, NewBusinessError("LIST_PLANS_FAILED", "Failed to load plans", err)
	}
	query.Plans = plans

	answer := f.advisor.Answer(ctx, query)

	f.logger.Info("Chat answered", append([]any{
		"plans", len(plans),
		"answered_by", answer.AnsweredBy,
	}, metadata.logFields()...)...)
	return &dto.ChatResponse{Reply: answer.Reply, AnsweredBy: answer.AnsweredBy}, nil
}

func (f *AssistantFlowImpl) contextPlans(ctx context.Context, ids []uint, profile *recommender.UserProfile) ([]models.InsurancePlan, error) {
	var (
		found []*models.InsurancePlan
		err   error
	)
	if len(ids) > 0 {
		found, err = f.planRepo.ByFilter(ctx, models.InsurancePlanFilter{IDs: ids}, "", 0, 0)
	} else {
		found, err = f.planRepo.ListAll(ctx)
	}
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 && profile != nil {
		return recommender.FilterEligible(*profile, found), nil
	}
	plans := make([]models.InsurancePlan, 0, len(found))
	for _, p := range found {
		plans = append(plans, *p)
	}
	return plans, nil
}

// EstimatePremium reports the annual premium range for the cover across stored plans
func (f *AssistantFlowImpl) EstimatePremium(ctx context.Context, req *dto.PremiumEstimateRequest, metadata *ClientMetadata) (*dto.PremiumEstimateResponse, error) {
	plans, err := f.planRepo.ListAll(ctx)
	if err != nil {
		return nil, NewBusinessError("LIST_PLANS_FAILED", "Failed to load plans", err)
	}

	est := recommender.EstimatePremium(req.Age, req.SumAssured, req.PolicyTerm, plans)

	f.logger.Info("Premium estimated", append([]any{
		"age", req.Age,
		"sum_assured", req.SumAssured,
		"considered", est.Considered,
	}, metadata.logFields()...)...)
	return ToPremiumEstimateResponse(est), nil
}

// ToPremiumEstimateResponse converts an estimate for responses
func ToPremiumEstimateResponse(est *recommender.PremiumEstimate) *dto.PremiumEstimateResponse {
	quotes := make([]dto.PremiumQuoteDTO, 0, len(est.Quotes))
	for _, q := range est.Quotes {
		quotes = append(quotes, dto.PremiumQuoteDTO{
			PlanID:               q.PlanID,
			PlanName:             q.PlanName,
			Provider:             q.Provider,
			ClaimSettlementRatio: q.ClaimSettlementRatio,
			EstimatedPremium:     q.EstimatedPremium,
		})
	}
	return &dto.PremiumEstimateResponse{
		Age:             est.Age,
		SumAssured:      est.SumAssured,
		PolicyTerm:      est.PolicyTerm,
		MinPremium:      est.Min,
		MaxPremium:      est.Max,
		AveragePremium:  est.Average,
		PlansConsidered: est.Considered,
		Quotes:          quotes,
		Summary:         est.Summary,
	}
}
