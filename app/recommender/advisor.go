package recommender

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/term-insurance-analyzer/app/services"
	"github.com/amirphl/term-insurance-analyzer/models"
	"github.com/amirphl/term-insurance-analyzer/utils"
)

// ModeChat marks the payload sent with a follow-up question
const ModeChat = "chat"

// advisorContextPlans bounds how many plans are quoted in a chat prompt or a local reply
const advisorContextPlans = 5

const advisorPrompt = `You are an independent advisor on Indian term life insurance.
Answer the customer's question in plain language in at most six sentences.
Use only the plan data supplied; say so when it does not cover the question.
Premiums are annual and in INR. Sum assured figures are in lakhs.
Never invent plans, insurers or figures.`

// ChatQuery is one follow-up question with the context it was asked in
type ChatQuery struct {
	Message string
	Profile *UserProfile
	Plans   []models.InsurancePlan
}

// ChatAnswer is the reply and who produced it
type ChatAnswer struct {
	Reply      string
	AnsweredBy string
}

// Advisor answers follow-up questions through the same model order as the ranking
// chain. When every model fails it replies from the supplied plans.
type Advisor struct {
	client         services.RankingClient
	models         []string
	attemptTimeout time.Duration
	logger         *utils.Logger
}

// NewAdvisor creates an advisor. client may be nil, in which case every answer is local.
func NewAdvisor(client services.RankingClient, modelIDs []string, attemptTimeout time.Duration, logger *utils.Logger) *Advisor {
	if attemptTimeout <= 0 {
		attemptTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	a := &Advisor{
		client:         client,
		attemptTimeout: attemptTimeout,
		logger:         logger.With("component", "advisor"),
	}
	if client != nil {
		for _, id := range modelIDs {
			if id != "" {
				a.models = append(a.models, id)
			}
		}
	}
	return a
}

// Answer never fails; the local reply is used when no model answers
func (a *Advisor) Answer(ctx context.Context, q ChatQuery) *ChatAnswer {
	q.Plans = CapPlans(q.Plans, advisorContextPlans)

	if len(a.models) > 0 {
		prompt, err := chatPrompt(q)
		if err != nil {
			a.logger.Warn("Failed to build chat prompt", "error", err)
		} else {
			for _, model := range a.models {
				reply, err := a.attempt(ctx, model, prompt)
				if err == nil {
					chatRepliesTotal.WithLabelValues("model").Inc()
					return &ChatAnswer{Reply: reply, AnsweredBy: model}
				}
				a.logger.Warn("Chat model unavailable", "model", model, "error", err, "outcome", attemptOutcome(err))
				if ctx.Err() != nil {
					break
				}
			}
			a.logger.Warn("Falling back to local chat reply", "error", ErrAllModelsExhausted, "models", len(a.models))
		}
	}

	chatRepliesTotal.WithLabelValues(RankedByLocal).Inc()
	return &ChatAnswer{Reply: LocalReply(q), AnsweredBy: RankedByLocal}
}

func (a *Advisor) attempt(ctx context.Context, model, prompt string) (reply string, err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, a.attemptTimeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			reply, err = "", &ModelError{Model: model, Err: errors.New("chat client panicked")}
		}
		rankingAttemptsTotal.WithLabelValues(model, attemptOutcome(err)).Inc()
	}()

	content, err := a.client.Complete(attemptCtx, services.CompletionRequest{
		Model:        model,
		SystemPrompt: advisorPrompt,
		UserPrompt:   prompt,
	})
	if err != nil {
		return "", &ModelError{Model: model, Err: err}
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", &ModelError{Model: model, Err: services.ErrEmptyCompletion}
	}
	return content, nil
}

func chatPrompt(q ChatQuery) (string, error) {
	req := RankRequest{Mode: ModeChat, Plans: q.Plans}
	if q.Profile != nil {
		req.Profile = *q.Profile
	}
	body, err := buildPayload(req)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Context:\n%s\n\nQuestion:\n%s", body, q.Message), nil
}

// LocalReply summarizes the strongest supplied plans without a model
func LocalReply(q ChatQuery) string {
	plans := CapPlans(q.Plans, advisorContextPlans)
	if len(plans) == 0 {
		return "The advisory model is unavailable and no plan data is stored yet. Please try again after the next data refresh."
	}

	var b strings.Builder
	b.WriteString("The advisory model is unavailable, so here is what the stored plan data shows.")
	for i := range plans {
		p := &plans[i]
		fmt.Fprintf(&b, " %d. %s %s: claim settlement ratio %.2f%%", i+1, p.Provider, p.PlanName, p.ClaimSettlementRatio)
		if p.PremiumAnnual > 0 {
			fmt.Fprintf(&b, ", ₹%s a year", formatRupees(p.PremiumAnnual))
		}
		b.WriteString(".")
	}
	if prof := q.Profile; prof != nil && prof.PremiumBudget > 0 {
		within := 0
		for i := range plans {
			if WithinBudget(*prof, &plans[i]) {
				within++
			}
		}
		fmt.Fprintf(&b, " %d of these fit your budget of ₹%s.", within, formatRupees(prof.PremiumBudget))
	}
	b.WriteString(" A higher claim settlement ratio means the insurer pays out more of the claims it receives.")
	return b.String()
}
