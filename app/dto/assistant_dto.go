package dto

// ChatRequest is a follow-up question for the advisor. TopPlanIDs are the plans the
// user is looking at, usually the top of an earlier recommendation.
type ChatRequest struct {
	Message     string            `json:"message" validate:"required,min=1,max=1000"`
	UserProfile *RecommendRequest `json:"user_profile,omitempty"`
	TopPlanIDs  []uint            `json:"top_plan_ids,omitempty" validate:"omitempty,max=10,dive,gt=0"`
}

// ChatResponse is the advisor's reply
type ChatResponse struct {
	Reply      string `json:"reply"`
	AnsweredBy string `json:"answered_by"`
}

// PremiumEstimateRequest asks for the premium range for a cover. Sum assured is in lakhs.
type PremiumEstimateRequest struct {
	Age        int     `json:"age" validate:"required,gte=18,lte=70"`
	SumAssured float64 `json:"sum_assured" validate:"required,gt=0"`
	PolicyTerm int     `json:"policy_term" validate:"required,gte=5,lte=50"`
}

// PremiumQuoteDTO is one plan's premium scaled to the requested cover
type PremiumQuoteDTO struct {
	PlanID               uint    `json:"plan_id"`
	PlanName             string  `json:"plan_name"`
	Provider             string  `json:"provider"`
	ClaimSettlementRatio float64 `json:"claim_settlement_ratio"`
	EstimatedPremium     float64 `json:"estimated_premium"`
}

// PremiumEstimateResponse is the annual premium range in INR across matching plans
type PremiumEstimateResponse struct {
	Age             int               `json:"age"`
	SumAssured      float64           `json:"sum_assured"`
	PolicyTerm      int               `json:"policy_term"`
	MinPremium      float64           `json:"min_premium"`
	MaxPremium      float64           `json:"max_premium"`
	AveragePremium  float64           `json:"average_premium"`
	PlansConsidered int               `json:"plans_considered"`
	Quotes          []PremiumQuoteDTO `json:"quotes"`
	Summary         string            `json:"summary"`
}
