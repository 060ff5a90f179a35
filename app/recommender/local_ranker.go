package recommender

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/amirphl/term-insurance-analyzer/models"
	"github.com/amirphl/term-insurance-analyzer/utils"
)

// Local scoring weights; they sum to 1
const (
	weightCSR      = 0.5
	weightBudget   = 0.3
	weightCoverage = 0.2
)

// CSR bands used for normalization and for pros and cons
const (
	csrFloor    = 90.0
	csrCeiling  = 100.0
	csrStrong   = 98.0
	csrWeak     = 95.0
	maxFeatures = 2
)

// LocalRanker scores plans with a fixed rule. It never fails.
type LocalRanker struct{}

func NewLocalRanker() *LocalRanker { return &LocalRanker{} }

func (r *LocalRanker) Name() string { return RankedByLocal }

// Rank scores every plan and orders them by descending score
func (r *LocalRanker) Rank(_ context.Context, req RankRequest) (*Recommendation, error) {
	ranked := make([]RankedPlan, 0, len(req.Plans))
	for i := range req.Plans {
		ranked = append(ranked, scorePlan(req.Profile, &req.Plans[i]))
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.ClaimSettlementRatio != b.ClaimSettlementRatio {
			return a.ClaimSettlementRatio > b.ClaimSettlementRatio
		}
		return a.PlanID < b.PlanID
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	rec := &Recommendation{
		RankedPlans:   ranked,
		TotalAnalyzed: len(req.Plans),
		RankedBy:      RankedByLocal,
	}
	if len(ranked) == 0 {
		rec.OverallSummary = emptySummary(req)
		return rec, nil
	}

	top := ranked[0]
	rec.TopPick = top.Provider + " " + top.PlanName
	rec.OverallSummary = fmt.Sprintf(
		"Ranked %d plans by claim settlement ratio, premium against your ₹%s budget and cover for ₹%s lakhs. %s leads with a score of %.1f.",
		len(ranked), formatRupees(req.Profile.PremiumBudget), formatAmount(req.Profile.SumAssured), rec.TopPick, top.Score,
	)
	return rec, nil
}

func emptySummary(req RankRequest) string {
	if req.Mode == ModeCompare {
		return "None of the selected plans could be compared."
	}
	return fmt.Sprintf(
		"No stored plan accepts age %d for a %d year term with a claim settlement ratio of at least %.1f%%. Try a lower minimum CSR or a different policy term.",
		req.Profile.Age, req.Profile.PolicyTerm, req.Profile.MinCSR,
	)
}

// LocalScore is 100·(0.5·csr + 0.3·budget + 0.2·coverage) rounded to one decimal
func LocalScore(profile UserProfile, p *models.InsurancePlan) float64 {
	s := weightCSR*csrFit(p.ClaimSettlementRatio) +
		weightBudget*budgetFit(profile.PremiumBudget, p.PremiumAnnual) +
		weightCoverage*coverageFit(profile.SumAssured, p.SumAssuredMin, p.SumAssuredMax)
	return utils.Round(utils.Clamp(100*s, 0, 100), 1)
}

// csrFit maps 90..100 onto 0..1
func csrFit(csr float64) float64 {
	return utils.Clamp((csr-csrFloor)/(csrCeiling-csrFloor), 0, 1)
}

// budgetFit is 0.5..1 under budget, rising as the margin grows, and decays below 0.5 over it.
// An unknown premium or budget is neutral.
func budgetFit(budget, premium float64) float64 {
	if premium <= 0 || budget <= 0 {
		return 0.5
	}
	if premium <= budget {
		return 0.5 + 0.5*(1-premium/budget)
	}
	over := (premium - budget) / budget
	return 0.5 / (1 + 4*over)
}

// coverageFit is 1 when the desired cover lies inside the plan's range
func coverageFit(desired, lo, hi float64) float64 {
	switch {
	case desired <= 0:
		return 1
	case hi > 0 && desired > hi:
		return hi / desired
	case lo > 0 && desired < lo:
		return desired / lo
	}
	return 1
}

func scorePlan(profile UserProfile, p *models.InsurancePlan) RankedPlan {
	within := WithinBudget(profile, p)
	rp := RankedPlan{
		PlanID:               p.ID,
		PlanName:             p.PlanName,
		Provider:             p.Provider,
		Score:                LocalScore(profile, p),
		PremiumAnnual:        p.PremiumAnnual,
		ClaimSettlementRatio: p.ClaimSettlementRatio,
		WithinBudget:         within,
		Pros:                 []string{},
		Cons:                 []string{},
	}

	csr := p.ClaimSettlementRatio
	switch {
	case csr >= csrStrong:
		rp.Pros = append(rp.Pros, fmt.Sprintf("High claim settlement ratio of %.2f%%", csr))
	case csr < csrWeak:
		rp.Cons = append(rp.Cons, fmt.Sprintf("Low claim settlement ratio of %.2f%%", csr))
	}

	switch {
	case p.PremiumAnnual <= 0:
		rp.Cons = append(rp.Cons, "Premium is not published")
	case within:
		rp.Pros = append(rp.Pros, fmt.Sprintf("Premium of ₹%s is ₹%s under your budget",
			formatRupees(p.PremiumAnnual), formatRupees(profile.PremiumBudget-p.PremiumAnnual)))
	default:
		rp.Cons = append(rp.Cons, fmt.Sprintf("Premium of ₹%s exceeds your budget by ₹%s",
			formatRupees(p.PremiumAnnual), formatRupees(p.PremiumAnnual-profile.PremiumBudget)))
	}

	desired := profile.SumAssured
	switch {
	case desired > 0 && p.SumAssuredMax > 0 && desired > p.SumAssuredMax:
		rp.Cons = append(rp.Cons, fmt.Sprintf("Maximum cover of ₹%s lakhs is below the ₹%s lakhs you want",
			formatAmount(p.SumAssuredMax), formatAmount(desired)))
	case desired > 0 && desired < p.SumAssuredMin:
		rp.Cons = append(rp.Cons, fmt.Sprintf("Minimum cover of ₹%s lakhs is above the ₹%s lakhs you want",
			formatAmount(p.SumAssuredMin), formatAmount(desired)))
	case desired > 0:
		rp.Pros = append(rp.Pros, fmt.Sprintf("Offers your desired cover of ₹%s lakhs", formatAmount(desired)))
	}

	for i, f := range p.KeyFeatures {
		if i == maxFeatures {
			break
		}
		rp.Pros = append(rp.Pros, f)
	}

	budgetNote := "within budget"
	if !within {
		budgetNote = "outside your budget"
	}
	rp.Reason = fmt.Sprintf("Scores %.1f/100 with a %.2f%% claim settlement ratio and a premium %s.", rp.Score, csr, budgetNote)
	return rp
}

// formatRupees renders a whole rupee amount with Indian digit grouping, e.g. 12,34,567
func formatRupees(v float64) string {
	n := int64(math.Round(math.Abs(v)))
	s := strconv.FormatInt(n, 10)
	if len(s) > 3 {
		head, tail := s[:len(s)-3], s[len(s)-3:]
		var groups []string
		for len(head) > 2 {
			groups = append([]string{head[len(head)-2:]}, groups...)
			head = head[:len(head)-2]
		}
		if head != "" {
			groups = append([]string{head}, groups...)
		}
		s = strings.Join(groups, ",") + "," + tail
	}
	if v < 0 {
		return "-" + s
	}
	return s
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
