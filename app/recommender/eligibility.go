package recommender

import (
	"github.com/amirphl/term-insurance-analyzer/models"
)

// FilterEligible keeps the plans that accept the profile's age and policy term and
// meet its minimum claim settlement ratio. Budget is not a filter. The input order is kept.
func FilterEligible(profile UserProfile, plans []*models.InsurancePlan) []models.InsurancePlan {
	eligible := make([]models.InsurancePlan, 0, len(plans))
	for _, p := range plans {
		if p == nil {
			continue
		}
		if IsEligible(profile, p) {
			eligible = append(eligible, *p)
		}
	}
	return eligible
}

// IsEligible applies the age, term and CSR predicates to one plan
func IsEligible(profile UserProfile, p *models.InsurancePlan) bool {
	return p.AgeMin <= profile.Age && profile.Age <= p.AgeMax &&
		p.PolicyTermMin <= profile.PolicyTerm && profile.PolicyTerm <= p.PolicyTermMax &&
		p.ClaimSettlementRatio >= profile.MinCSR
}

// WithinBudget reports whether the plan's published premium fits the budget.
// A plan without a published premium is never within budget.
func WithinBudget(profile UserProfile, p *models.InsurancePlan) bool {
	return p.PremiumAnnual > 0 && p.PremiumAnnual <= profile.PremiumBudget
}
