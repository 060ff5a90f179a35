package recommender

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/amirphl/term-insurance-analyzer/models"
	"github.com/amirphl/term-insurance-analyzer/utils"
)

const maxListItems = 5

type rankingEntry struct {
	PlanID int      `json:"plan_id" jsonschema:"description=plan_id of a supplied plan"`
	Rank   int      `json:"rank" jsonschema:"minimum=1"`
	Score  float64  `json:"score" jsonschema:"minimum=0,maximum=100"`
	Reason string   `json:"reason"`
	Pros   []string `json:"pros"`
	Cons   []string `json:"cons"`
}

type rankingResponse struct {
	RankedPlans    []rankingEntry `json:"ranked_plans"`
	OverallSummary string         `json:"overall_summary"`
	TopPick        string         `json:"top_pick"`
}

// decodeResponse parses model output, tolerating code fences and surrounding prose
func decodeResponse(content string) (*rankingResponse, error) {
	s := strings.TrimSpace(content)
	if start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}'); start >= 0 && end > start {
		s = s[start : end+1]
	} else {
		return nil, errors.New("response holds no JSON object")
	}

	var resp rankingResponse
	if err := json.Unmarshal([]byte(s), &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

// repairResponse keeps the entries that reference supplied plans and normalizes the rest:
// unknown and repeated ids are dropped, scores are clamped, ranks are renumbered by
// (rank, score) and plan facts come from the store rather than the model.
func repairResponse(resp *rankingResponse, req RankRequest) (*Recommendation, error) {
	byID := make(map[uint]*models.InsurancePlan, len(req.Plans))
	for i := range req.Plans {
		byID[req.Plans[i].ID] = &req.Plans[i]
	}

	type candidate struct {
		entry rankingEntry
		plan  *models.InsurancePlan
	}
	seen := make(map[uint]struct{}, len(resp.RankedPlans))
	candidates := make([]candidate, 0, len(resp.RankedPlans))
	for _, e := range resp.RankedPlans {
		if e.PlanID <= 0 {
			continue
		}
		id := uint(e.PlanID)
		plan, ok := byID[id]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		candidates = append(candidates, candidate{entry: e, plan: plan})
	}
	if len(candidates) == 0 {
		return nil, ErrNoValidEntries
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].entry, candidates[j].entry
		ra, rb := a.Rank, b.Rank
		if ra < 1 {
			ra = len(candidates) + 1
		}
		if rb < 1 {
			rb = len(candidates) + 1
		}
		if ra != rb {
			return ra < rb
		}
		return a.Score > b.Score
	})

	ranked := make([]RankedPlan, 0, len(candidates))
	for i, c := range candidates {
		ranked = append(ranked, RankedPlan{
			PlanID:               c.plan.ID,
			PlanName:             c.plan.PlanName,
			Provider:             c.plan.Provider,
			Rank:                 i + 1,
			Score:                utils.Round(utils.Clamp(c.entry.Score, 0, 100), 1),
			Reason:               strings.TrimSpace(c.entry.Reason),
			Pros:                 cleanList(c.entry.Pros),
			Cons:                 cleanList(c.entry.Cons),
			PremiumAnnual:        c.plan.PremiumAnnual,
			ClaimSettlementRatio: c.plan.ClaimSettlementRatio,
			WithinBudget:         WithinBudget(req.Profile, c.plan),
		})
	}

	rec := &Recommendation{
		RankedPlans:    ranked,
		OverallSummary: strings.TrimSpace(resp.OverallSummary),
		TopPick:        strings.TrimSpace(resp.TopPick),
		TotalAnalyzed:  len(req.Plans),
	}
	if rec.TopPick == "" {
		rec.TopPick = ranked[0].Provider + " " + ranked[0].PlanName
	}
	if rec.OverallSummary == "" {
		rec.OverallSummary = fmt.Sprintf("%s ranks first of %d plans.", rec.TopPick, len(ranked))
	}
	return rec, nil
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
		if len(out) == maxListItems {
			break
		}
	}
	return out
}
