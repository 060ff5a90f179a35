package businessflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/amirphl/term-insurance-analyzer/app/dto"
	"github.com/amirphl/term-insurance-analyzer/app/recommender"
	"github.com/amirphl/term-insurance-analyzer/models"
	"github.com/amirphl/term-insurance-analyzer/repository"
	"github.com/amirphl/term-insurance-analyzer/utils"
	"github.com/redis/go-redis/v9"
)

// PlanRanker is the ranking chain used by the recommendation flow
type PlanRanker interface {
	Recommend(ctx context.Context, profile recommender.UserProfile, eligible []models.InsurancePlan) *recommender.Recommendation
	Compare(ctx context.Context, profile recommender.UserProfile, plans []models.InsurancePlan) *recommender.Recommendation
}

// RecommendationFlow defines the recommend and compare use cases
type RecommendationFlow interface {
	Recommend(ctx context.Context, req *dto.RecommendRequest, metadata *ClientMetadata) (*dto.RecommendResponse, error)
	Compare(ctx context.Context, req *dto.CompareRequest, metadata *ClientMetadata) (*dto.RecommendResponse, error)
}

// RecommendationCacheConfig controls result caching. A zero TTL disables it.
type RecommendationCacheConfig struct {
	Prefix string
	TTL    time.Duration
}

// RecommendationFlowImpl implements RecommendationFlow
type RecommendationFlowImpl struct {
	planRepo repository.InsurancePlanRepository
	ranker   PlanRanker
	rc       *redis.Client
	cacheCfg RecommendationCacheConfig
	logger   *utils.Logger
}

func NewRecommendationFlow(
	planRepo repository.InsurancePlanRepository,
	ranker PlanRanker,
	rc *redis.Client,
	cacheCfg RecommendationCacheConfig,
	logger *utils.Logger,
) RecommendationFlow {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &RecommendationFlowImpl{
		planRepo: planRepo,
		ranker:   ranker,
		rc:       rc,
		cacheCfg: cacheCfg,
		logger:   logger.With("component", "recommendation_flow"),
	}
}

func (f *RecommendationFlowImpl) Recommend(ctx context.Context, req *dto.RecommendRequest, metadata *ClientMetadata) (*dto.RecommendResponse, error) {
	profile := ToUserProfile(*req, utils.DefaultMinCSR)

	plans, err := f.planRepo.ListAll(ctx)
	if err != nil {
		return nil, NewBusinessError("LIST_PLANS_FAILED", "Failed to load plans", err)
	}
	eligible := recommender.FilterEligible(profile, plans)

	cacheKey := f.cacheKey(ctx, recommender.ModeRecommend, profile, nil)
	if cached := f.cached(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	rec := f.ranker.Recommend(ctx, profile, eligible)
	resp := ToRecommendResponse(rec)
	f.store(ctx, cacheKey, resp)

	f.logger.Info("Recommendation served", append([]any{
		"age", profile.Age,
		"eligible", len(eligible),
		"ranked_by", resp.RankedBy,
	}, metadata.logFields()...)...)
	return resp, nil
}

func (f *RecommendationFlowImpl) Compare(ctx context.Context, req *dto.CompareRequest, metadata *ClientMetadata) (*dto.RecommendResponse, error) {
	profile := ToUserProfile(req.UserProfile, utils.DefaultMinCSR)

	names := normalizePlanNames(req.PlanNames)
	if len(names) < 2 {
		return nil, NewValidationError("plan_names", "at least two distinct plan names are required", ErrNotEnoughPlansToCompare)
	}

	found, err := f.planRepo.ByFilter(ctx, models.InsurancePlanFilter{PlanNames: names}, "", 0, 0)
	if err != nil {
		return nil, NewBusinessError("LIST_PLANS_FAILED", "Failed to load plans", err)
	}
	if len(found) < 2 {
		return nil, NewValidationError("plan_names", fmt.Sprintf("only %d of the named plans exist", len(found)), ErrNotEnoughPlansToCompare)
	}

	plans := make([]models.InsurancePlan, 0, len(found))
	for _, p := range found {
		plans = append(plans, *p)
	}

	cacheKey := f.cacheKey(ctx, recommender.ModeCompare, profile, names)
	if cached := f.cached(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	rec := f.ranker.Compare(ctx, profile, plans)
	resp := ToRecommendResponse(rec)
	f.store(ctx, cacheKey, resp)

	f.logger.Info("Comparison served", append([]any{
		"plans", len(plans),
		"ranked_by", resp.RankedBy,
	}, metadata.logFields()...)...)
	return resp, nil
}

// cacheKey identifies a ranking by mode, profile, selected names and the
// store version, so any scrape or edit invalidates earlier answers.
// It returns "" when caching is off or the version cannot be read.
func (f *RecommendationFlowImpl) cacheKey(ctx context.Context, mode string, profile recommender.UserProfile, names []string) string {
	if f.rc == nil || f.cacheCfg.TTL <= 0 {
		return ""
	}

	count, err := f.planRepo.Count(ctx, models.InsurancePlanFilter{})
	if err != nil {
		return ""
	}
	lastUpdated, err := f.planRepo.LastUpdatedAt(ctx)
	if err != nil {
		return ""
	}

	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%.2f|%.2f|%d|%.2f|%d|%s|%s",
		mode,
		profile.Age,
		profile.SumAssured,
		profile.PremiumBudget,
		profile.PolicyTerm,
		profile.MinCSR,
		count,
		utils.FormatTimePtr(lastUpdated),
		strings.Join(names, "\x1f"),
	)
	return f.cacheCfg.Prefix + "recommendation:" + hex.EncodeToString(h.Sum(nil))
}

func (f *RecommendationFlowImpl) cached(ctx context.Context, key string) *dto.RecommendResponse {
	if key == "" {
		return nil
	}
	bs, err := f.rc.Get(ctx, key).Bytes()
	if err != nil || len(bs) == 0 {
		return nil
	}
	var out dto.RecommendResponse
	if err := json.Unmarshal(bs, &out); err != nil {
		return nil
	}
	out.Cached = true
	return &out
}

// store caches model rankings only. Local results are always recomputed.
func (f *RecommendationFlowImpl) store(ctx context.Context, key string, resp *dto.RecommendResponse) {
	if key == "" || resp.RankedBy == recommender.RankedByLocal || len(resp.RankedPlans) == 0 {
		return
	}
	bs, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := f.rc.Set(ctx, key, bs, f.cacheCfg.TTL).Err(); err != nil {
		f.logger.Warn("Failed to cache recommendation", "error", err)
	}
}

// normalizePlanNames trims, collapses inner whitespace and drops duplicates; the result is sorted
func normalizePlanNames(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, n := range in {
		n = strings.Join(strings.Fields(n), " ")
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
