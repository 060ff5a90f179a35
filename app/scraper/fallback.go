package scraper

import (
	"context"

	"github.com/amirphl/term-insurance-analyzer/models"
	"github.com/amirphl/term-insurance-analyzer/utils"
)

// FallbackAdapter serves a fixed set of well-known plans. It never fails.
type FallbackAdapter struct{}

func NewFallbackAdapter() *FallbackAdapter { return &FallbackAdapter{} }

func (a *FallbackAdapter) Source() string { return models.PlanSourceFallback }

// Fetch returns a fresh copy of the built-in plans stamped with the current time
func (a *FallbackAdapter) Fetch(ctx context.Context) ([]models.InsurancePlan, error) {
	now := utils.UTCNow()
	plans := make([]models.InsurancePlan, 0, len(fallbackPlans))
	for _, p := range fallbackPlans {
		p.Source = models.PlanSourceFallback
		p.KeyFeatures = append([]string(nil), p.KeyFeatures...)
		p.LastUpdated = now
		plans = append(plans, p)
	}
	return plans, nil
}

// FallbackPlanCount is the number of plans the fallback set inserts into an empty store
func FallbackPlanCount() int { return len(fallbackPlans) }

var fallbackPlans = []models.InsurancePlan{
	{
		Provider: "HDFC Life", PlanName: "Click 2 Protect Super",
		SumAssuredMin: 50, SumAssuredMax: 2000, PremiumAnnual: 8100,
		PolicyTermMin: 5, PolicyTermMax: 40, AgeMin: 18, AgeMax: 65,
		ClaimSettlementRatio: 99.5,
		KeyFeatures:          []string{"Life stage benefit", "Return of premium option", "Waiver of premium on disability"},
	},
	{
		Provider: "ICICI Prudential Life", PlanName: "iProtect Smart",
		SumAssuredMin: 50, SumAssuredMax: 2000, PremiumAnnual: 8900,
		PolicyTermMin: 5, PolicyTermMax: 40, AgeMin: 18, AgeMax: 65,
		ClaimSettlementRatio: 98.58,
		KeyFeatures:          []string{"Terminal illness cover", "Critical illness rider on 34 illnesses", "Accidental death benefit"},
	},
	{
		Provider: "Max Life Insurance", PlanName: "Smart Secure Plus",
		SumAssuredMin: 25, SumAssuredMax: 1500, PremiumAnnual: 8500,
		PolicyTermMin: 10, PolicyTermMax: 50, AgeMin: 18, AgeMax: 65,
		ClaimSettlementRatio: 99.51,
		KeyFeatures:          []string{"Special exit value", "Premium break option", "Joint life cover"},
	},
	{
		Provider: "Tata AIA Life", PlanName: "Sampoorna Raksha Supreme",
		SumAssuredMin: 50, SumAssuredMax: 2000, PremiumAnnual: 8700,
		PolicyTermMin: 10, PolicyTermMax: 40, AgeMin: 18, AgeMax: 65,
		ClaimSettlementRatio: 99.01,
		KeyFeatures:          []string{"Whole life option to age 100", "Increasing cover option", "Terminal illness benefit"},
	},
	{
		Provider: "LIC", PlanName: "Tech Term",
		SumAssuredMin: 50, SumAssuredMax: 1000, PremiumAnnual: 10500,
		PolicyTermMin: 10, PolicyTermMax: 40, AgeMin: 18, AgeMax: 65,
		ClaimSettlementRatio: 98.52,
		KeyFeatures:          []string{"Level or increasing sum assured", "Lower rates for non-smokers", "Accident benefit rider"},
	},
	{
		Provider: "SBI Life", PlanName: "eShield Next",
		SumAssuredMin: 50, SumAssuredMax: 1000, PremiumAnnual: 9800,
		PolicyTermMin: 5, PolicyTermMax: 40, AgeMin: 18, AgeMax: 65,
		ClaimSettlementRatio: 97.05,
		KeyFeatures:          []string{"Future proofing benefit", "Level cover with inbuilt accident benefit", "Better half benefit"},
	},
	{
		Provider: "Bajaj Allianz Life", PlanName: "eTouch",
		SumAssuredMin: 50, SumAssuredMax: 1000, PremiumAnnual: 7900,
		PolicyTermMin: 10, PolicyTermMax: 40, AgeMin: 18, AgeMax: 65,
		ClaimSettlementRatio: 99.02,
		KeyFeatures:          []string{"Return of premium variant", "Waiver of premium on disability", "Child education benefit"},
	},
	{
		Provider: "Kotak Mahindra Life", PlanName: "e-Term",
		SumAssuredMin: 25, SumAssuredMax: 1000, PremiumAnnual: 8300,
		PolicyTermMin: 5, PolicyTermMax: 40, AgeMin: 18, AgeMax: 65,
		ClaimSettlementRatio: 98.5,
		KeyFeatures:          []string{"Step up option at life events", "Spouse cover", "Terminal illness payout"},
	},
	{
		Provider: "Aditya Birla Sun Life", PlanName: "DigiShield Plan",
		SumAssuredMin: 30, SumAssuredMax: 1000, PremiumAnnual: 8800,
		PolicyTermMin: 5, PolicyTermMax: 40, AgeMin: 18, AgeMax: 65,
		ClaimSettlementRatio: 98.07,
		KeyFeatures:          []string{"Ten plan options", "Survival benefit option", "Decreasing cover for loans"},
	},
	{
		Provider: "PNB MetLife", PlanName: "Mera Term Plan Plus",
		SumAssuredMin: 25, SumAssuredMax: 1000, PremiumAnnual: 7600,
		PolicyTermMin: 10, PolicyTermMax: 40, AgeMin: 18, AgeMax: 65,
		ClaimSettlementRatio: 97.33,
		KeyFeatures:          []string{"Cover till age 99", "Joint life option", "Critical illness add-on"},
	},
}
