// Package dto contains Data Transfer Objects for API request and response structures
package dto

// CreatePlanRequest represents the payload to add a plan by hand.
// Sum assured is in lakhs, premium in INR per year.
type CreatePlanRequest struct {
	PlanName             string   `json:"plan_name" validate:"required,min=2,max=255"`
	Provider             string   `json:"provider" validate:"required,min=2,max=255"`
	SumAssuredMin        float64  `json:"sum_assured_min" validate:"gte=0"`
	SumAssuredMax        float64  `json:"sum_assured_max" validate:"gtefield=SumAssuredMin"`
	PremiumAnnual        float64  `json:"premium_annual" validate:"gte=0"`
	PolicyTermMin        int      `json:"policy_term_min" validate:"required,gte=1,lte=100"`
	PolicyTermMax        int      `json:"policy_term_max" validate:"required,gtefield=PolicyTermMin,lte=100"`
	AgeMin               int      `json:"age_min" validate:"gte=0,lte=120"`
	AgeMax               int      `json:"age_max" validate:"required,gtefield=AgeMin,lte=120"`
	ClaimSettlementRatio float64  `json:"claim_settlement_ratio" validate:"gte=0,lte=100"`
	KeyFeatures          []string `json:"key_features,omitempty" validate:"omitempty,max=20,dive,max=255"`
	SourceURL            string   `json:"source_url,omitempty" validate:"omitempty,url,max=1024"`
}

// UpdatePlanRequest represents a partial plan update; omitted fields keep their value.
// Range invariants are checked against the merged record.
type UpdatePlanRequest struct {
	PlanName             *string   `json:"plan_name,omitempty" validate:"omitempty,min=2,max=255"`
	Provider             *string   `json:"provider,omitempty" validate:"omitempty,min=2,max=255"`
	SumAssuredMin        *float64  `json:"sum_assured_min,omitempty" validate:"omitempty,gte=0"`
	SumAssuredMax        *float64  `json:"sum_assured_max,omitempty" validate:"omitempty,gte=0"`
	PremiumAnnual        *float64  `json:"premium_annual,omitempty" validate:"omitempty,gte=0"`
	PolicyTermMin        *int      `json:"policy_term_min,omitempty" validate:"omitempty,gte=1,lte=100"`
	PolicyTermMax        *int      `json:"policy_term_max,omitempty" validate:"omitempty,gte=1,lte=100"`
	AgeMin               *int      `json:"age_min,omitempty" validate:"omitempty,gte=0,lte=120"`
	AgeMax               *int      `json:"age_max,omitempty" validate:"omitempty,gte=0,lte=120"`
	ClaimSettlementRatio *float64  `json:"claim_settlement_ratio,omitempty" validate:"omitempty,gte=0,lte=100"`
	KeyFeatures          *[]string `json:"key_features,omitempty" validate:"omitempty,max=20,dive,max=255"`
	SourceURL            *string   `json:"source_url,omitempty" validate:"omitempty,max=1024"`
}

// HasChanges reports whether any field is set
func (r *UpdatePlanRequest) HasChanges() bool {
	return r.PlanName != nil || r.Provider != nil ||
		r.SumAssuredMin != nil || r.SumAssuredMax != nil ||
		r.PremiumAnnual != nil ||
		r.PolicyTermMin != nil || r.PolicyTermMax != nil ||
		r.AgeMin != nil || r.AgeMax != nil ||
		r.ClaimSettlementRatio != nil ||
		r.KeyFeatures != nil || r.SourceURL != nil
}

// ListPlansRequest holds the optional list filters taken from the query string
type ListPlansRequest struct {
	Source *string  `json:"source,omitempty" validate:"omitempty,oneof=beshak policybazaar ditto fallback manual"`
	MinCSR *float64 `json:"min_csr,omitempty" validate:"omitempty,gte=0,lte=100"`
	Search *string  `json:"search,omitempty" validate:"omitempty,max=100"`
}

// PlanDTO represents a stored plan in responses
type PlanDTO struct {
	ID                   uint     `json:"id"`
	PlanName             string   `json:"plan_name"`
	Provider             string   `json:"provider"`
	Source               string   `json:"source"`
	SumAssuredMin        float64  `json:"sum_assured_min"`
	SumAssuredMax        float64  `json:"sum_assured_max"`
	PremiumAnnual        float64  `json:"premium_annual"`
	PolicyTermMin        int      `json:"policy_term_min"`
	PolicyTermMax        int      `json:"policy_term_max"`
	AgeMin               int      `json:"age_min"`
	AgeMax               int      `json:"age_max"`
	ClaimSettlementRatio float64  `json:"claim_settlement_ratio"`
	KeyFeatures          []string `json:"key_features"`
	SourceURL            string   `json:"source_url,omitempty"`
	LastUpdated          string   `json:"last_updated"`
	CreatedAt            string   `json:"created_at"`
}

// ListPlansResponse wraps the plan list
type ListPlansResponse struct {
	Plans []PlanDTO `json:"plans"`
	Total int       `json:"total"`
}

// DeletePlanResponse confirms a deletion
type DeletePlanResponse struct {
	ID      uint `json:"id"`
	Deleted bool `json:"deleted"`
}

// StatsResponse summarizes the plan store
type StatsResponse struct {
	TotalPlans  int64            `json:"total_plans"`
	BySource    map[string]int64 `json:"by_source"`
	AverageCSR  float64          `json:"average_csr"`
	LastUpdated *string          `json:"last_updated"`
	LastRun     *ScrapeRunDTO    `json:"last_run,omitempty"`
}

// HealthResponse reports service liveness
type HealthResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}
