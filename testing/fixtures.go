package testing

import (
	"context"
	"fmt"

	"github.com/amirphl/term-insurance-analyzer/models"
	"github.com/amirphl/term-insurance-analyzer/repository"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// PlanOption mutates a fixture plan before it is stored
type PlanOption func(*models.InsurancePlan)

func WithCSR(csr float64) PlanOption {
	return func(p *models.InsurancePlan) { p.ClaimSettlementRatio = csr }
}

func WithPremium(premium float64) PlanOption {
	return func(p *models.InsurancePlan) { p.PremiumAnnual = premium }
}

func WithSource(source string) PlanOption {
	return func(p *models.InsurancePlan) { p.Source = source }
}

func WithAges(minAge, maxAge int) PlanOption {
	return func(p *models.InsurancePlan) { p.AgeMin, p.AgeMax = minAge, maxAge }
}

func WithTerms(minTerm, maxTerm int) PlanOption {
	return func(p *models.InsurancePlan) { p.PolicyTermMin, p.PolicyTermMax = minTerm, maxTerm }
}

func WithSumAssured(minLakhs, maxLakhs float64) PlanOption {
	return func(p *models.InsurancePlan) { p.SumAssuredMin, p.SumAssuredMax = minLakhs, maxLakhs }
}

func WithFeatures(features ...string) PlanOption {
	return func(p *models.InsurancePlan) { p.KeyFeatures = features }
}

// NewPlan builds a valid, unsaved plan
func NewPlan(provider, planName string, opts ...PlanOption) *models.InsurancePlan {
	p := &models.InsurancePlan{
		Provider:             provider,
		PlanName:             planName,
		Source:               models.PlanSourceManual,
		SumAssuredMin:        25,
		SumAssuredMax:        1000,
		PremiumAnnual:        9000,
		PolicyTermMin:        5,
		PolicyTermMax:        40,
		AgeMin:               18,
		AgeMax:               65,
		ClaimSettlementRatio: 98.5,
		KeyFeatures:          []string{"Terminal illness benefit"},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CreatePlan stores a plan built by NewPlan
func (tf *TestFixtures) CreatePlan(provider, planName string, opts ...PlanOption) (*models.InsurancePlan, error) {
	plan := NewPlan(provider, planName, opts...)
	repo := repository.NewInsurancePlanRepository(tf.DB.DB)
	if err := repo.Save(context.Background(), plan); err != nil {
		return nil, fmt.Errorf("failed to create test plan %s: %w", planName, err)
	}
	return plan, nil
}

// ScenarioPlans stores the two plans used by the 30 year old profile scenario:
// one eligible plan with CSR 99.65 and one plan below the 97 threshold.
func (tf *TestFixtures) ScenarioPlans() (eligible, lowCSR *models.InsurancePlan, err error) {
	eligible, err = tf.CreatePlan("HDFC Life", "Click 2 Protect Super",
		WithAges(18, 65), WithTerms(5, 40), WithCSR(99.65), WithPremium(8100), WithSumAssured(50, 2000))
	if err != nil {
		return nil, nil, err
	}
	lowCSR, err = tf.CreatePlan("Acme Life", "Basic Term", WithCSR(95.0), WithPremium(6000))
	if err != nil {
		return nil, nil, err
	}
	return eligible, lowCSR, nil
}
