package businessflow

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/amirphl/term-insurance-analyzer/app/dto"
	"github.com/amirphl/term-insurance-analyzer/models"
	"github.com/amirphl/term-insurance-analyzer/repository"
	testingutil "github.com/amirphl/term-insurance-analyzer/testing"
	"github.com/amirphl/term-insurance-analyzer/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"
)

type planFlowEnv struct {
	flow     PlanFlow
	planRepo repository.InsurancePlanRepository
	runRepo  repository.ScrapeRunRepository
	fixtures *testingutil.TestFixtures
}

func newPlanFlowEnv(t *testing.T) *planFlowEnv {
	t.Helper()
	db := testingutil.NewTestDB(t)
	planRepo := repository.NewInsurancePlanRepository(db.DB)
	runRepo := repository.NewScrapeRunRepository(db.DB)
	return &planFlowEnv{
		flow:     NewPlanFlow(planRepo, runRepo, utils.NewNopLogger()),
		planRepo: planRepo,
		runRepo:  runRepo,
		fixtures: testingutil.NewTestFixtures(db),
	}
}

func validCreateRequest() *dto.CreatePlanRequest {
	return &dto.CreatePlanRequest{
		PlanName:             "  Smart   Term ",
		Provider:             "Acme Life",
		SumAssuredMin:        25,
		SumAssuredMax:        500,
		PremiumAnnual:        7000,
		PolicyTermMin:        10,
		PolicyTermMax:        40,
		AgeMin:               18,
		AgeMax:               60,
		ClaimSettlementRatio: 98.2,
		KeyFeatures:          []string{"Accidental death cover", " "},
	}
}

func TestPlanFlow_CreatePlan(t *testing.T) {
	env := newPlanFlowEnv(t)
	ctx := context.Background()
	metadata := NewClientMetadata("127.0.0.1", "test")

	t.Run("stores a manual plan", func(t *testing.T) {
		out, err := env.flow.CreatePlan(ctx, validCreateRequest(), metadata)
		require.NoError(t, err)
		assert.NotZero(t, out.ID)
		assert.Equal(t, "Smart Term", out.PlanName)
		assert.Equal(t, models.PlanSourceManual, out.Source)
		assert.Equal(t, []string{"Accidental death cover"}, out.KeyFeatures)
		assert.NotEmpty(t, out.LastUpdated)
	})

	t.Run("rejects a duplicate natural key", func(t *testing.T) {
		_, err := env.flow.CreatePlan(ctx, validCreateRequest(), metadata)
		assert.True(t, IsPlanAlreadyExists(err))
	})

	t.Run("rejects a case variant of an existing plan", func(t *testing.T) {
		req := validCreateRequest()
		req.Provider = "ACME LIFE"
		req.PlanName = "smart term"
		_, err := env.flow.CreatePlan(ctx, req, metadata)
		assert.True(t, IsPlanAlreadyExists(err))
	})

	t.Run("reports broken ranges field by field", func(t *testing.T) {
		req := validCreateRequest()
		req.PlanName = "Inverted"
		req.AgeMin, req.AgeMax = 60, 18
		req.ClaimSettlementRatio = 101

		_, err := env.flow.CreatePlan(ctx, req, metadata)
		ve := AsValidationError(err)
		require.NotNil(t, ve)
		fields := make([]string, 0, len(ve.Fields))
		for _, f := range ve.Fields {
			fields = append(fields, f.Field)
		}
		assert.ElementsMatch(t, []string{"age_max", "claim_settlement_ratio"}, fields)
	})
}

// staleLookupRepo misses existing rows in ByNaturalKey, as when a scrape writes
// the same plan between the lookup and the insert
type staleLookupRepo struct {
	repository.InsurancePlanRepository
}

func (staleLookupRepo) ByNaturalKey(context.Context, string, string) (*models.InsurancePlan, error) {
	return nil, nil
}

func TestPlanFlow_WriteRaceMapsToConflict(t *testing.T) {
	env := newPlanFlowEnv(t)
	ctx := context.Background()
	flow := NewPlanFlow(staleLookupRepo{env.planRepo}, env.runRepo, utils.NewNopLogger())

	existing, err := env.fixtures.CreatePlan("Acme Life", "Smart Term")
	require.NoError(t, err)
	other, err := env.fixtures.CreatePlan("Acme Life", "Basic Term")
	require.NoError(t, err)

	_, err = flow.CreatePlan(ctx, validCreateRequest(), nil)
	assert.True(t, IsPlanAlreadyExists(err), "got %v", err)

	name := "SMART TERM"
	_, err = flow.UpdatePlan(ctx, other.ID, &dto.UpdatePlanRequest{PlanName: &name}, nil)
	assert.True(t, IsPlanAlreadyExists(err), "got %v", err)

	stored, err := env.planRepo.ByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "Basic Term", stored.PlanName)
	assert.NotEqual(t, existing.ID, stored.ID)
}

func TestPlanFlow_GetAndDelete(t *testing.T) {
	env := newPlanFlowEnv(t)
	ctx := context.Background()

	plan, err := env.fixtures.CreatePlan("HDFC Life", "Click 2 Protect Super")
	require.NoError(t, err)

	got, err := env.flow.GetPlan(ctx, plan.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "HDFC Life", got.Provider)

	_, err = env.flow.GetPlan(ctx, plan.ID+100, nil)
	assert.True(t, IsPlanNotFound(err))

	_, err = env.flow.GetPlan(ctx, 0, nil)
	assert.True(t, IsPlanIDRequired(err))

	deleted, err := env.flow.DeletePlan(ctx, plan.ID, nil)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)

	_, err = env.flow.DeletePlan(ctx, plan.ID, nil)
	assert.True(t, IsPlanNotFound(err))
}

func TestPlanFlow_UpdatePlan(t *testing.T) {
	env := newPlanFlowEnv(t)
	ctx := context.Background()

	plan, err := env.fixtures.CreatePlan("HDFC Life", "Click 2 Protect Super", testingutil.WithAges(18, 65))
	require.NoError(t, err)
	_, err = env.fixtures.CreatePlan("HDFC Life", "Sanchay")
	require.NoError(t, err)

	t.Run("merges a partial update", func(t *testing.T) {
		out, err := env.flow.UpdatePlan(ctx, plan.ID, &dto.UpdatePlanRequest{PremiumAnnual: utils.ToPtr(7500.0)}, nil)
		require.NoError(t, err)
		assert.Equal(t, 7500.0, out.PremiumAnnual)
		assert.Equal(t, 65, out.AgeMax)

		stored, err := env.planRepo.ByID(ctx, plan.ID)
		require.NoError(t, err)
		assert.Equal(t, 7500.0, stored.PremiumAnnual)
	})

	t.Run("checks the merged record", func(t *testing.T) {
		_, err := env.flow.UpdatePlan(ctx, plan.ID, &dto.UpdatePlanRequest{AgeMin: utils.ToPtr(70)}, nil)
		require.True(t, IsValidationError(err))
		assert.Equal(t, "age_max", AsValidationError(err).Fields[0].Field)
	})

	t.Run("requires a change", func(t *testing.T) {
		_, err := env.flow.UpdatePlan(ctx, plan.ID, &dto.UpdatePlanRequest{}, nil)
		assert.True(t, IsPlanUpdateRequired(err))
	})

	t.Run("rejects a rename onto another plan", func(t *testing.T) {
		_, err := env.flow.UpdatePlan(ctx, plan.ID, &dto.UpdatePlanRequest{PlanName: utils.ToPtr("Sanchay")}, nil)
		assert.True(t, IsPlanAlreadyExists(err))
	})

	t.Run("unknown plan", func(t *testing.T) {
		_, err := env.flow.UpdatePlan(ctx, plan.ID+100, &dto.UpdatePlanRequest{PremiumAnnual: utils.ToPtr(1.0)}, nil)
		assert.True(t, IsPlanNotFound(err))
	})
}

func TestPlanFlow_ListPlans(t *testing.T) {
	env := newPlanFlowEnv(t)
	ctx := context.Background()

	_, _, err := env.fixtures.ScenarioPlans()
	require.NoError(t, err)
	_, err = env.fixtures.CreatePlan("Max Life", "Smart Secure Plus",
		testingutil.WithCSR(99.51), testingutil.WithSource(models.PlanSourceBeshak))
	require.NoError(t, err)

	tests := []struct {
		name string
		req  *dto.ListPlansRequest
		want []string
	}{
		{"no filter sorts by csr", &dto.ListPlansRequest{}, []string{"Click 2 Protect Super", "Smart Secure Plus", "Basic Term"}},
		{"nil request", nil, []string{"Click 2 Protect Super", "Smart Secure Plus", "Basic Term"}},
		{"source", &dto.ListPlansRequest{Source: utils.ToPtr("beshak")}, []string{"Smart Secure Plus"}},
		{"min csr", &dto.ListPlansRequest{MinCSR: utils.ToPtr(99.6)}, []string{"Click 2 Protect Super"}},
		{"search by provider", &dto.ListPlansRequest{Search: utils.ToPtr("acme")}, []string{"Basic Term"}},
		{"search by plan name", &dto.ListPlansRequest{Search: utils.ToPtr("SECURE")}, []string{"Smart Secure Plus"}},
		{"blank search", &dto.ListPlansRequest{Search: utils.ToPtr("  ")}, []string{"Click 2 Protect Super", "Smart Secure Plus", "Basic Term"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := env.flow.ListPlans(ctx, tt.req, nil)
			require.NoError(t, err)
			names := make([]string, 0, len(out.Plans))
			for _, p := range out.Plans {
				names = append(names, p.PlanName)
			}
			assert.Equal(t, tt.want, names)
			assert.Equal(t, len(tt.want), out.Total)
		})
	}
}

func TestPlanFlow_Stats(t *testing.T) {
	env := newPlanFlowEnv(t)
	ctx := context.Background()

	empty, err := env.flow.Stats(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalPlans)
	assert.Nil(t, empty.LastUpdated)
	assert.Nil(t, empty.LastRun)

	_, _, err = env.fixtures.ScenarioPlans()
	require.NoError(t, err)
	_, err = env.fixtures.CreatePlan("LIC", "Tech Term", testingutil.WithSource(models.PlanSourceFallback), testingutil.WithCSR(98.52))
	require.NoError(t, err)

	finished := utils.UTCNow()
	run := &models.ScrapeRun{
		UUID:        uuid.New(),
		TriggeredBy: models.ScrapeTriggerScheduled,
		Sources: datatypes.JSONSlice[models.SourceResult]{
			{Source: models.PlanSourceBeshak, Status: models.SourceStatusOK, Count: 2},
		},
		Upserted:   2,
		StoreSize:  3,
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: &finished,
	}
	require.NoError(t, env.runRepo.Save(ctx, run))

	stats, err := env.flow.Stats(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalPlans)
	assert.Equal(t, map[string]int64{models.PlanSourceManual: 2, models.PlanSourceFallback: 1}, stats.BySource)
	assert.InDelta(t, 97.72, stats.AverageCSR, 0.01)
	require.NotNil(t, stats.LastUpdated)
	require.NotNil(t, stats.LastRun)
	assert.Equal(t, run.UUID.String(), stats.LastRun.UUID)
	assert.True(t, stats.LastRun.Finished)
	require.Len(t, stats.LastRun.Sources, 1)
	assert.Equal(t, 2, stats.LastRun.Sources[0].Count)
}

func TestPlanFlow_ExportPlans(t *testing.T) {
	env := newPlanFlowEnv(t)
	ctx := context.Background()

	_, _, err := env.fixtures.ScenarioPlans()
	require.NoError(t, err)

	filename, data, err := env.flow.ExportPlans(ctx, &dto.ListPlansRequest{MinCSR: utils.ToPtr(97.0)}, nil)
	require.NoError(t, err)
	assert.Contains(t, filename, ".xlsx")

	xl, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = xl.Close() }()

	rows, err := xl.GetRows("plans")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, exportHeader, rows[0])
	assert.Equal(t, "HDFC Life", rows[1][1])
	assert.Equal(t, "Click 2 Protect Super", rows[1][2])
}
