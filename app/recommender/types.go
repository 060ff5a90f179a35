// Package recommender filters plans for a user profile and ranks them through
// an ordered chain of hosted models that ends in a local scoring rule.
package recommender

import (
	"errors"
	"fmt"

	"github.com/amirphl/term-insurance-analyzer/models"
)

// RankedByLocal names the local scoring rule in Recommendation.RankedBy
const RankedByLocal = "local"

// Ranking modes
const (
	ModeRecommend = "recommend"
	ModeCompare   = "compare"
)

// UserProfile describes what the user is looking for.
// SumAssured is in lakhs, PremiumBudget in INR per year.
type UserProfile struct {
	Age           int     `json:"age"`
	SumAssured    float64 `json:"sum_assured"`
	PremiumBudget float64 `json:"premium_budget"`
	PolicyTerm    int     `json:"policy_term"`
	MinCSR        float64 `json:"min_csr"`
}

// RankedPlan is one plan's position in a recommendation
type RankedPlan struct {
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

// Recommendation is the ranked answer for one profile
type Recommendation struct {
	RankedPlans    []RankedPlan `json:"ranked_plans"`
	OverallSummary string       `json:"overall_summary"`
	TopPick        string       `json:"top_pick"`
	TotalAnalyzed  int          `json:"total_plans_analyzed"`
	RankedBy       string       `json:"ranked_by"`
}

// RankRequest is the input handed to every ranker in the chain
type RankRequest struct {
	Mode    string
	Profile UserProfile
	Plans   []models.InsurancePlan
}

var (
	// ErrAllModelsExhausted signals that every hosted model failed and the local rule is used
	ErrAllModelsExhausted = errors.New("all ranking models exhausted")
	// ErrNoValidEntries is returned when a model answer references none of the supplied plans
	ErrNoValidEntries = errors.New("model response has no valid ranked entries")
)

// ModelError reports that one hosted model could not produce a usable ranking
type ModelError struct {
	Model string
	Err   error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model %s unavailable: %v", e.Model, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// IsModelUnavailable reports whether err came from a failing model attempt
func IsModelUnavailable(err error) bool {
	var me *ModelError
	return errors.As(err, &me)
}
