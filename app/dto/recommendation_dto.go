package dto

// RecommendRequest is the user profile a recommendation is made for.
// Sum assured is in lakhs and the budget is the maximum annual premium in INR.
type RecommendRequest struct {
	Age           int      `json:"age" validate:"required,gte=18,lte=70"`
	SumAssured    float64  `json:"sum_assured" validate:"required,gt=0"`
	PremiumBudget float64  `json:"premium_budget" validate:"required,gt=0"`
	PolicyTerm    int      `json:"policy_term" validate:"required,gte=5,lte=50"`
	MinCSR        *float64 `json:"min_csr,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// CompareRequest names two or three stored plans to rank side by side
type CompareRequest struct {
	PlanNames   []string         `json:"plan_names" validate:"required,min=2,max=3,dive,required,max=255"`
	UserProfile RecommendRequest `json:"user_profile" validate:"required"`
}

// RankedPlanDTO is one plan's position in a recommendation
type RankedPlanDTO struct {
	PlanID               uint     `json:"plan_id"`
	PlanName             string   `json:"plan_name"`
	Provider             string   `json:"provider"`
	Rank                 int      `json:"rank"`
	Score                float64  `json:"score"`
	Reason               string   `json:"reason"`
	Pros                 []string `json:"pros"`
	Cons                 []string `json:"cons"`
	PremiumAnnual        float64  `json:"premium_annual"`
	ClaimSettlementRatio float64  `json:"claim_settlement_ratio"`
	WithinBudget         bool     `json:"within_budget"`
}

// RecommendResponse is the ranked answer for a profile
type RecommendResponse struct {
	OverallSummary     string          `json:"overall_summary"`
	TopPick            string          `json:"top_pick"`
	RankedPlans        []RankedPlanDTO `json:"ranked_plans"`
	TotalPlansAnalyzed int             `json:"total_plans_analyzed"`
	RankedBy           string          `json:"ranked_by"`
	Cached             bool            `json:"cached"`
}
