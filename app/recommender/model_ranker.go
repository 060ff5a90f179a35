package recommender

import (
	"context"
	"fmt"

	"github.com/amirphl/term-insurance-analyzer/app/services"
)

const rankingSchemaName = "term_plan_ranking"

const systemPrompt = `You are an independent advisor on Indian term life insurance.
You rank plans for one customer using only the data supplied.
Weigh claim settlement ratio most, then premium against the customer's budget, then whether the plan's
sum assured range covers the desired cover, then features.
Premiums are annual and in INR. Sum assured figures are in lakhs.
Only reference plans by the plan_id values you were given.
Respond with JSON only, matching the supplied schema.`

var rankingSchema = services.GenerateSchema[rankingResponse]()

// ModelRanker asks one hosted model to rank the plans
type ModelRanker struct {
	client services.RankingClient
	model  string
}

func NewModelRanker(client services.RankingClient, model string) *ModelRanker {
	return &ModelRanker{client: client, model: model}
}

// NewModelRankers creates one ranker per model identifier, preserving order
func NewModelRankers(client services.RankingClient, modelIDs []string) []Ranker {
	if client == nil {
		return nil
	}
	rankers := make([]Ranker, 0, len(modelIDs))
	for _, id := range modelIDs {
		if id == "" {
			continue
		}
		rankers = append(rankers, NewModelRanker(client, id))
	}
	return rankers
}

func (r *ModelRanker) Name() string { return r.model }

func (r *ModelRanker) Rank(ctx context.Context, req RankRequest) (*Recommendation, error) {
	body, err := buildPayload(req)
	if err != nil {
		return nil, &ModelError{Model: r.model, Err: fmt.Errorf("build payload: %w", err)}
	}

	content, err := r.client.Complete(ctx, services.CompletionRequest{
		Model:        r.model,
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt(req.Mode, string(body)),
		SchemaName:   rankingSchemaName,
		Schema:       rankingSchema,
	})
	if err != nil {
		return nil, &ModelError{Model: r.model, Err: err}
	}

	resp, err := decodeResponse(content)
	if err != nil {
		return nil, &ModelError{Model: r.model, Err: err}
	}

	rec, err := repairResponse(resp, req)
	if err != nil {
		return nil, &ModelError{Model: r.model, Err: err}
	}
	rec.RankedBy = r.model
	return rec, nil
}

func userPrompt(mode, payload string) string {
	task := "Rank every plan below from best to worst for this customer."
	if mode == ModeCompare {
		task = "Compare the plans below side by side for this customer and rank them from best to worst."
	}
	return fmt.Sprintf(`%s
For each plan give rank (1 is best), score from 0 to 100, a one or two sentence reason, and short pros and cons.
Set top_pick to the provider and plan name of rank 1, and write an overall_summary of at most three sentences.

Input:
%s`, task, payload)
}
