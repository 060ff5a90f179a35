package recommender

import (
	"context"
	"errors"
	"time"

	"github.com/amirphl/term-insurance-analyzer/app/services"
	"github.com/amirphl/term-insurance-analyzer/models"
	"github.com/amirphl/term-insurance-analyzer/utils"
)

// Ranker orders plans for a profile
type Ranker interface {
	Name() string
	Rank(ctx context.Context, req RankRequest) (*Recommendation, error)
}

// Composer tries each hosted model in order and falls through to the local rule
type Composer struct {
	chain          []Ranker
	attemptTimeout time.Duration
	maxPlans       int
	logger         *utils.Logger
}

// NewComposer builds the ranking chain. The local ranker is always appended as the
// terminal element, so the chain can never come up empty.
func NewComposer(modelRankers []Ranker, attemptTimeout time.Duration, maxPlans int, logger *utils.Logger) *Composer {
	if maxPlans <= 0 {
		maxPlans = utils.MaxRankedPlans
	}
	if attemptTimeout <= 0 {
		attemptTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	chain := make([]Ranker, 0, len(modelRankers)+1)
	chain = append(chain, modelRankers...)
	chain = append(chain, NewLocalRanker())
	return &Composer{
		chain:          chain,
		attemptTimeout: attemptTimeout,
		maxPlans:       maxPlans,
		logger:         logger.With("component", "recommender"),
	}
}

// Recommend ranks eligible plans for the profile. It never fails; an empty input
// yields an empty ranking with an explanatory summary.
func (c *Composer) Recommend(ctx context.Context, profile UserProfile, eligible []models.InsurancePlan) *Recommendation {
	return c.rank(ctx, RankRequest{Mode: ModeRecommend, Profile: profile, Plans: eligible})
}

// Compare ranks a hand-picked set of plans side by side without the eligibility filter
func (c *Composer) Compare(ctx context.Context, profile UserProfile, plans []models.InsurancePlan) *Recommendation {
	return c.rank(ctx, RankRequest{Mode: ModeCompare, Profile: profile, Plans: plans})
}

func (c *Composer) rank(ctx context.Context, req RankRequest) *Recommendation {
	total := len(req.Plans)
	req.Plans = CapPlans(req.Plans, c.maxPlans)

	if len(req.Plans) == 0 {
		rec, _ := c.terminal().Rank(ctx, req)
		recommendationsTotal.WithLabelValues(req.Mode, RankedByLocal).Inc()
		return rec
	}

	last := len(c.chain) - 1
	for i, r := range c.chain {
		if i == last {
			if last > 0 {
				c.logger.Warn("Falling back to local ranking", "error", ErrAllModelsExhausted, "models", last)
			}
			break
		}

		rec, err := c.attempt(ctx, r, req)
		if err != nil {
			switch attemptOutcome(err) {
			case outcomeRateLimited:
				c.logger.Warn("Ranking model rate limited", "model", r.Name(), "error", err)
			case outcomeRejected:
				c.logger.Warn("Ranking model rejected the request", "model", r.Name(), "error", err, "retryable", false)
			default:
				c.logger.Warn("Ranking model unavailable", "model", r.Name(), "error", err)
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}
		rec.TotalAnalyzed = total
		recommendationsTotal.WithLabelValues(req.Mode, "model").Inc()
		return rec
	}

	// the local rule needs no deadline and cannot fail
	rec, _ := c.terminal().Rank(context.WithoutCancel(ctx), req)
	rec.TotalAnalyzed = total
	recommendationsTotal.WithLabelValues(req.Mode, RankedByLocal).Inc()
	return rec
}

func (c *Composer) terminal() Ranker {
	return c.chain[len(c.chain)-1]
}

// attempt runs one model ranker under the per-attempt deadline
func (c *Composer) attempt(ctx context.Context, r Ranker, req RankRequest) (rec *Recommendation, err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			rec, err = nil, &ModelError{Model: r.Name(), Err: errors.New("ranker panicked")}
		}
		rankingAttemptsTotal.WithLabelValues(r.Name(), attemptOutcome(err)).Inc()
		rankingAttemptDuration.WithLabelValues(r.Name()).Observe(time.Since(start).Seconds())
	}()

	rec, err = r.Rank(attemptCtx, req)
	if err != nil {
		if !IsModelUnavailable(err) {
			err = &ModelError{Model: r.Name(), Err: err}
		}
		return nil, err
	}
	if rec == nil || len(rec.RankedPlans) == 0 {
		return nil, &ModelError{Model: r.Name(), Err: ErrNoValidEntries}
	}
	return rec, nil
}

const (
	outcomeOK          = "ok"
	outcomeFailed      = "failed"
	outcomeRateLimited = "rate_limited"
	outcomeRejected    = "rejected"
)

// attemptOutcome labels a model attempt. Rejected means the endpoint refused the
// request outright (bad key, malformed request) rather than failing transiently.
func attemptOutcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case services.IsRateLimited(err):
		return outcomeRateLimited
	case errors.Is(err, context.Canceled):
		return outcomeFailed
	case !services.IsRetryable(err):
		return outcomeRejected
	default:
		return outcomeFailed
	}
}
