package businessflow

import (
	"time"

	"github.com/amirphl/term-insurance-analyzer/app/dto"
	"github.com/amirphl/term-insurance-analyzer/app/recommender"
	"github.com/amirphl/term-insurance-analyzer/models"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds client information used for request logging
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

func (cm *ClientMetadata) logFields() []any {
	if cm == nil {
		return nil
	}
	return []any{"ip", cm.IPAddress, "request_id", cm.RequestID}
}

// ToPlanDTO converts a stored plan for responses
func ToPlanDTO(plan models.InsurancePlan) dto.PlanDTO {
	features := make([]string, len(plan.KeyFeatures))
	copy(features, plan.KeyFeatures)

	return dto.PlanDTO{
		ID:                   plan.ID,
		PlanName:             plan.PlanName,
		Provider:             plan.Provider,
		Source:               plan.Source,
		SumAssuredMin:        plan.SumAssuredMin,
		SumAssuredMax:        plan.SumAssuredMax,
		PremiumAnnual:        plan.PremiumAnnual,
		PolicyTermMin:        plan.PolicyTermMin,
		PolicyTermMax:        plan.PolicyTermMax,
		AgeMin:               plan.AgeMin,
		AgeMax:               plan.AgeMax,
		ClaimSettlementRatio: plan.ClaimSettlementRatio,
		KeyFeatures:          features,
		SourceURL:            plan.SourceURL,
		LastUpdated:          plan.LastUpdated.UTC().Format(time.RFC3339),
		CreatedAt:            plan.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ToScrapeRunDTO converts a scrape run record for responses
func ToScrapeRunDTO(run models.ScrapeRun) dto.ScrapeRunDTO {
	sources := make([]dto.SourceResultDTO, 0, len(run.Sources))
	for _, s := range run.Sources {
		sources = append(sources, dto.SourceResultDTO{
			Source:     s.Source,
			Status:     s.Status,
			Count:      s.Count,
			Error:      s.Error,
			DurationMS: s.DurationMS,
		})
	}

	out := dto.ScrapeRunDTO{
		UUID:         run.UUID.String(),
		TriggeredBy:  run.TriggeredBy,
		Sources:      sources,
		Upserted:     run.Upserted,
		FallbackUsed: run.FallbackUsed,
		StoreSize:    run.StoreSize,
		StartedAt:    run.StartedAt.UTC().Format(time.RFC3339),
		Finished:     run.FinishedAt != nil,
	}
	if run.FinishedAt != nil {
		finished := run.FinishedAt.UTC().Format(time.RFC3339)
		out.FinishedAt = &finished
	}
	return out
}

// ToRecommendResponse converts a ranking for responses
func ToRecommendResponse(rec *recommender.Recommendation) *dto.RecommendResponse {
	ranked := make([]dto.RankedPlanDTO, 0, len(rec.RankedPlans))
	for _, rp := range rec.RankedPlans {
		ranked = append(ranked, dto.RankedPlanDTO{
			PlanID:               rp.PlanID,
			PlanName:             rp.PlanName,
			Provider:             rp.Provider,
			Rank:                 rp.Rank,
			Score:                rp.Score,
			Reason:               rp.Reason,
			Pros:                 nonNil(rp.Pros),
			Cons:                 nonNil(rp.Cons),
			PremiumAnnual:        rp.PremiumAnnual,
			ClaimSettlementRatio: rp.ClaimSettlementRatio,
			WithinBudget:         rp.WithinBudget,
		})
	}
	return &dto.RecommendResponse{
		OverallSummary:     rec.OverallSummary,
		TopPick:            rec.TopPick,
		RankedPlans:        ranked,
		TotalPlansAnalyzed: rec.TotalAnalyzed,
		RankedBy:           rec.RankedBy,
	}
}

// ToUserProfile maps the request profile onto the ranking profile.
// A missing min_csr falls back to the default threshold.
func ToUserProfile(req dto.RecommendRequest, defaultMinCSR float64) recommender.UserProfile {
	minCSR := defaultMinCSR
	if req.MinCSR != nil {
		minCSR = *req.MinCSR
	}
	return recommender.UserProfile{
		Age:           req.Age,
		SumAssured:    req.SumAssured,
		PremiumBudget: req.PremiumBudget,
		PolicyTerm:    req.PolicyTerm,
		MinCSR:        minCSR,
	}
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
