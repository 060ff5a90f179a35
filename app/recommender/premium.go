package recommender

import (
	"fmt"
	"math"
	"sort"

	"github.com/amirphl/term-insurance-analyzer/models"
	"github.com/amirphl/term-insurance-analyzer/utils"
)

// ReferenceSumAssured is the cover, in lakhs, that stored annual premiums are quoted for
const ReferenceSumAssured = 100.0

// PremiumQuote is one plan's premium scaled to the requested cover
type PremiumQuote struct {
	PlanID               uint
	PlanName             string
	Provider             string
	ClaimSettlementRatio float64
	EstimatedPremium     float64
}

// PremiumEstimate is the premium range across the plans that accept a profile
type PremiumEstimate struct {
	Age        int
	SumAssured float64
	PolicyTerm int
	Min        float64
	Max        float64
	Average    float64
	Considered int
	Quotes     []PremiumQuote
	Summary    string
}

// AcceptsCover reports whether sumAssured lies in the plan's range.
// A plan without a published range accepts any cover.
func AcceptsCover(p *models.InsurancePlan, sumAssured float64) bool {
	if p.SumAssuredMax <= 0 {
		return true
	}
	return p.SumAssuredMin <= sumAssured && sumAssured <= p.SumAssuredMax
}

// EstimatePremium scales the published premium of every plan that accepts the age,
// term and cover linearly to sumAssured. Plans without a published premium are skipped.
// Quotes are ordered cheapest first and capped at MaxRankedPlans; the range covers all of them.
func EstimatePremium(age int, sumAssured float64, term int, plans []*models.InsurancePlan) *PremiumEstimate {
	est := &PremiumEstimate{Age: age, SumAssured: sumAssured, PolicyTerm: term, Quotes: []PremiumQuote{}}
	profile := UserProfile{Age: age, SumAssured: sumAssured, PolicyTerm: term}

	total := 0.0
	for _, p := range plans {
		if p == nil || p.PremiumAnnual <= 0 || !IsEligible(profile, p) || !AcceptsCover(p, sumAssured) {
			continue
		}
		quote := math.Round(p.PremiumAnnual * sumAssured / ReferenceSumAssured)
		est.Quotes = append(est.Quotes, PremiumQuote{
			PlanID:               p.ID,
			PlanName:             p.PlanName,
			Provider:             p.Provider,
			ClaimSettlementRatio: p.ClaimSettlementRatio,
			EstimatedPremium:     quote,
		})
		total += quote
		if est.Considered == 0 || quote < est.Min {
			est.Min = quote
		}
		if quote > est.Max {
			est.Max = quote
		}
		est.Considered++
	}

	if est.Considered == 0 {
		est.Summary = fmt.Sprintf("No stored plan with a published premium accepts age %d, a %d year term and %s lakhs of cover.",
			age, term, formatAmount(sumAssured))
		return est
	}

	est.Average = math.Round(total / float64(est.Considered))
	sort.SliceStable(est.Quotes, func(i, j int) bool {
		if est.Quotes[i].EstimatedPremium != est.Quotes[j].EstimatedPremium {
			return est.Quotes[i].EstimatedPremium < est.Quotes[j].EstimatedPremium
		}
		return est.Quotes[i].PlanID < est.Quotes[j].PlanID
	})
	if len(est.Quotes) > utils.MaxRankedPlans {
		est.Quotes = est.Quotes[:utils.MaxRankedPlans]
	}

	est.Summary = fmt.Sprintf("Across %d plans, %s lakhs of cover for %d years at age %d costs about ₹%s to ₹%s a year (average ₹%s). Cheapest: %s %s.",
		est.Considered, formatAmount(sumAssured), term, age,
		formatRupees(est.Min), formatRupees(est.Max), formatRupees(est.Average),
		est.Quotes[0].Provider, est.Quotes[0].PlanName,
	)
	return est
}
