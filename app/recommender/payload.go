package recommender

import (
	"encoding/json"
	"sort"

	"github.com/amirphl/term-insurance-analyzer/models"
)

type payloadPlan struct {
	PlanID               uint     `json:"plan_id"`
	PlanName             string   `json:"plan_name"`
	Provider             string   `json:"provider"`
	SumAssuredMin        float64  `json:"sum_assured_min_lakhs"`
	SumAssuredMax        float64  `json:"sum_assured_max_lakhs"`
	PremiumAnnual        float64  `json:"premium_annual_inr"`
	PolicyTermMin        int      `json:"policy_term_min"`
	PolicyTermMax        int      `json:"policy_term_max"`
	AgeMin               int      `json:"age_min"`
	AgeMax               int      `json:"age_max"`
	ClaimSettlementRatio float64  `json:"claim_settlement_ratio"`
	KeyFeatures          []string `json:"key_features"`
	WithinBudget         bool     `json:"within_budget"`
}

type payload struct {
	Mode    string        `json:"mode"`
	Profile UserProfile   `json:"user_profile"`
	Plans   []payloadPlan `json:"plans"`
}

// CapPlans returns at most limit plans, highest claim settlement ratio first.
// The input slice is not modified.
func CapPlans(plans []models.InsurancePlan, limit int) []models.InsurancePlan {
	out := make([]models.InsurancePlan, len(plans))
	copy(out, plans)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ClaimSettlementRatio != out[j].ClaimSettlementRatio {
			return out[i].ClaimSettlementRatio > out[j].ClaimSettlementRatio
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// buildPayload serializes the profile and plans the model is asked to rank
func buildPayload(req RankRequest) ([]byte, error) {
	p := payload{
		Mode:    req.Mode,
		Profile: req.Profile,
		Plans:   make([]payloadPlan, 0, len(req.Plans)),
	}
	for i := range req.Plans {
		plan := &req.Plans[i]
		features := []string(plan.KeyFeatures)
		if features == nil {
			features = []string{}
		}
		p.Plans = append(p.Plans, payloadPlan{
			PlanID:               plan.ID,
			PlanName:             plan.PlanName,
			Provider:             plan.Provider,
			SumAssuredMin:        plan.SumAssuredMin,
			SumAssuredMax:        plan.SumAssuredMax,
			PremiumAnnual:        plan.PremiumAnnual,
			PolicyTermMin:        plan.PolicyTermMin,
			PolicyTermMax:        plan.PolicyTermMax,
			AgeMin:               plan.AgeMin,
			AgeMax:               plan.AgeMax,
			ClaimSettlementRatio: plan.ClaimSettlementRatio,
			KeyFeatures:          features,
			WithinBudget:         WithinBudget(req.Profile, plan),
		})
	}
	return json.Marshal(p)
}
