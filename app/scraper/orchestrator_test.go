package scraper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/term-insurance-analyzer/models"
	"github.com/amirphl/term-insurance-analyzer/repository"
	testingutil "github.com/amirphl/term-insurance-analyzer/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	source string
	plans  []models.InsurancePlan
	err    error
	delay  time.Duration
	block  chan struct{}

	mu    sync.Mutex
	calls int
}

func (s *stubAdapter) Source() string { return s.source }

func (s *stubAdapter) Fetch(ctx context.Context) ([]models.InsurancePlan, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.InsurancePlan, len(s.plans))
	copy(out, s.plans)
	return out, nil
}

func failing(source string) *stubAdapter {
	return &stubAdapter{source: source, err: errors.New(source + " is down")}
}

func livePlan(source, provider, name string, premium float64) models.InsurancePlan {
	p := testingutil.NewPlan(provider, name, testingutil.WithSource(source), testingutil.WithPremium(premium))
	return *p
}

func newTestOrchestrator(t *testing.T, adapters ...Adapter) (*Orchestrator, repository.InsurancePlanRepository, repository.ScrapeRunRepository) {
	t.Helper()
	testDB := testingutil.NewTestDB(t)
	planRepo := repository.NewInsurancePlanRepository(testDB.DB)
	runRepo := repository.NewScrapeRunRepository(testDB.DB)
	o := NewOrchestrator(planRepo, runRepo, adapters, NewFallbackAdapter(), nil, OrchestratorConfig{RunTimeout: time.Minute}, nil)
	return o, planRepo, runRepo
}

func TestOrchestrator_AllSourcesFailUsesFallback(t *testing.T) {
	o, planRepo, runRepo := newTestOrchestrator(t,
		failing(models.PlanSourceBeshak),
		panicAdapter{},
		NewDittoAdapter("https://listing.test", nil, nil),
	)
	ctx := testingutil.CreateTestContext()

	run, err := o.Run(ctx, models.ScrapeTriggerStartup)
	require.NoError(t, err)
	require.NotNil(t, run)

	count, err := planRepo.Count(ctx, models.InsurancePlanFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(FallbackPlanCount()), count)
	assert.Equal(t, int64(FallbackPlanCount()), run.StoreSize)
	assert.True(t, run.FallbackUsed)
	assert.False(t, run.Succeeded())

	require.Len(t, run.Sources, 4)
	for _, sr := range run.Sources[:3] {
		assert.Equal(t, models.SourceStatusFailed, sr.Status, sr.Source)
		assert.NotEmpty(t, sr.Error)
	}
	assert.Equal(t, models.PlanSourceFallback, run.Sources[3].Source)
	assert.Equal(t, models.SourceStatusOK, run.Sources[3].Status)
	assert.Equal(t, FallbackPlanCount(), run.Sources[3].Count)

	stored, err := runRepo.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, run.UUID, stored.UUID)
	assert.NotNil(t, stored.FinishedAt)
	assert.True(t, stored.FallbackUsed)

	t.Run("SecondFailingRunLeavesStoreUntouched", func(t *testing.T) {
		run, err := o.Run(ctx, models.ScrapeTriggerScheduled)
		require.NoError(t, err)
		assert.False(t, run.FallbackUsed)
		assert.Equal(t, models.SourceStatusSkipped, run.Sources[len(run.Sources)-1].Status)

		count, err := planRepo.Count(ctx, models.InsurancePlanFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(FallbackPlanCount()), count)
	})
}

func TestOrchestrator_PartialSuccessSkipsFallback(t *testing.T) {
	ditto := &stubAdapter{source: models.PlanSourceDitto, plans: []models.InsurancePlan{
		livePlan(models.PlanSourceDitto, "HDFC Life", "Click 2 Protect Super", 8100),
		livePlan(models.PlanSourceDitto, "SBI Life", "eShield Next", 9800),
	}}
	o, planRepo, _ := newTestOrchestrator(t, failing(models.PlanSourceBeshak), failing(models.PlanSourcePolicybazaar), ditto)
	ctx := testingutil.CreateTestContext()

	run, err := o.Run(ctx, models.ScrapeTriggerManual)
	require.NoError(t, err)
	assert.False(t, run.FallbackUsed)
	assert.True(t, run.Succeeded())
	assert.Equal(t, 2, run.Upserted)
	assert.Equal(t, int64(2), run.StoreSize)

	source := models.PlanSourceFallback
	fallbackRows, err := planRepo.Count(ctx, models.InsurancePlanFilter{Source: &source})
	require.NoError(t, err)
	assert.Zero(t, fallbackRows)
}

func TestOrchestrator_AppliesInPriorityOrder(t *testing.T) {
	// the first source finishes last but is still applied first
	beshak := &stubAdapter{source: models.PlanSourceBeshak, delay: 50 * time.Millisecond, plans: []models.InsurancePlan{
		livePlan(models.PlanSourceBeshak, "Max Life Insurance", "Smart Secure Plus", 8500),
	}}
	policybazaar := &stubAdapter{source: models.PlanSourcePolicybazaar, plans: []models.InsurancePlan{
		livePlan(models.PlanSourcePolicybazaar, "Max Life Insurance", "Smart Secure Plus", 8650),
	}}
	o, planRepo, _ := newTestOrchestrator(t, beshak, policybazaar)
	ctx := testingutil.CreateTestContext()

	run, err := o.Run(ctx, models.ScrapeTriggerManual)
	require.NoError(t, err)
	assert.Equal(t, int64(1), run.StoreSize)
	assert.Equal(t, models.PlanSourceBeshak, run.Sources[0].Source)
	assert.Equal(t, models.PlanSourcePolicybazaar, run.Sources[1].Source)

	plan, err := planRepo.ByNaturalKey(ctx, "Max Life Insurance", "Smart Secure Plus")
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, models.PlanSourcePolicybazaar, plan.Source)
	assert.Equal(t, 8650.0, plan.PremiumAnnual)
}

func TestOrchestrator_InvalidRecordsAreRejected(t *testing.T) {
	bad := livePlan(models.PlanSourceBeshak, "Broken Life", "Inverted", 9000)
	bad.AgeMin, bad.AgeMax = 60, 20
	beshak := &stubAdapter{source: models.PlanSourceBeshak, plans: []models.InsurancePlan{
		bad,
		livePlan(models.PlanSourceBeshak, "Kotak Mahindra Life", "e-Term", 8300),
	}}
	o, planRepo, _ := newTestOrchestrator(t, beshak)
	ctx := testingutil.CreateTestContext()

	run, err := o.Run(ctx, models.ScrapeTriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Sources[0].Count)
	assert.Equal(t, models.SourceStatusOK, run.Sources[0].Status)

	found, err := planRepo.ByNaturalKey(ctx, "Broken Life", "Inverted")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestOrchestrator_SerializesRuns(t *testing.T) {
	block := make(chan struct{})
	slow := &stubAdapter{source: models.PlanSourceBeshak, block: block, plans: []models.InsurancePlan{
		livePlan(models.PlanSourceBeshak, "LIC", "Tech Term", 10500),
	}}
	o, planRepo, runRepo := newTestOrchestrator(t, slow)
	ctx := testingutil.CreateTestContext()

	started, err := o.Start(ctx, models.ScrapeTriggerManual)
	require.NoError(t, err)
	require.NotNil(t, started)
	assert.Nil(t, started.FinishedAt)
	assert.True(t, o.Running())

	_, err = o.Run(ctx, models.ScrapeTriggerManual)
	assert.ErrorIs(t, err, ErrScrapeInProgress)
	assert.True(t, IsScrapeInProgress(err))

	_, err = o.Start(ctx, models.ScrapeTriggerScheduled)
	assert.ErrorIs(t, err, ErrScrapeInProgress)

	close(block)
	require.Eventually(t, func() bool { return !o.Running() }, 5*time.Second, 10*time.Millisecond)

	latest, err := runRepo.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, started.UUID, latest.UUID)
	assert.NotNil(t, latest.FinishedAt)

	count, err := planRepo.Count(ctx, models.InsurancePlanFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// the guard is free again
	_, err = o.Run(ctx, models.ScrapeTriggerManual)
	assert.NoError(t, err)

	slow.mu.Lock()
	defer slow.mu.Unlock()
	assert.Equal(t, 2, slow.calls)
}

func TestOrchestrator_SeedFallback(t *testing.T) {
	t.Run("EmptyStoreIsSeededOnce", func(t *testing.T) {
		o, planRepo, runRepo := newTestOrchestrator(t)
		ctx := testingutil.CreateTestContext()

		inserted, err := o.SeedFallback(ctx)
		require.NoError(t, err)
		assert.Equal(t, FallbackPlanCount(), inserted)

		source := models.PlanSourceFallback
		count, err := planRepo.Count(ctx, models.InsurancePlanFilter{Source: &source})
		require.NoError(t, err)
		assert.Equal(t, int64(FallbackPlanCount()), count)

		inserted, err = o.SeedFallback(ctx)
		require.NoError(t, err)
		assert.Zero(t, inserted)

		// seeding is not a scrape run
		latest, err := runRepo.Latest(ctx)
		require.NoError(t, err)
		assert.Nil(t, latest)
	})

	t.Run("PopulatedStoreIsLeftAlone", func(t *testing.T) {
		o, planRepo, _ := newTestOrchestrator(t)
		ctx := testingutil.CreateTestContext()

		plan := livePlan(models.PlanSourceDitto, "HDFC Life", "Click 2 Protect Super", 8100)
		_, err := planRepo.Upsert(ctx, &plan)
		require.NoError(t, err)

		inserted, err := o.SeedFallback(ctx)
		require.NoError(t, err)
		assert.Zero(t, inserted)

		count, err := planRepo.Count(ctx, models.InsurancePlanFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}

func newRedisOrchestrator(t *testing.T, tr *testingutil.TestRedis, adapters ...Adapter) *Orchestrator {
	t.Helper()
	testDB := testingutil.NewTestDB(t)
	return NewOrchestrator(
		repository.NewInsurancePlanRepository(testDB.DB),
		repository.NewScrapeRunRepository(testDB.DB),
		adapters,
		NewFallbackAdapter(),
		tr.Client,
		OrchestratorConfig{LockKey: tr.Key(DefaultLockKey), LockTTL: time.Minute, RunTimeout: time.Minute},
		nil,
	)
}

func TestOrchestrator_SharedLock(t *testing.T) {
	tr := testingutil.NewTestRedis(t)
	ctx := testingutil.CreateTestContext()
	lockKey := tr.Key(DefaultLockKey)

	t.Run("HeldKeyRejectsRun", func(t *testing.T) {
		o := newRedisOrchestrator(t, tr, failing(models.PlanSourceBeshak))
		require.NoError(t, tr.Client.Set(ctx, lockKey, "other-instance", time.Minute).Err())
		defer tr.Client.Del(ctx, lockKey)

		_, err := o.Run(ctx, models.ScrapeTriggerManual)
		assert.ErrorIs(t, err, ErrScrapeInProgress)
		assert.False(t, o.Running())

		held, err := tr.Client.Get(ctx, lockKey).Result()
		require.NoError(t, err)
		assert.Equal(t, "other-instance", held)
	})

	t.Run("FinishedRunDeletesItsOwnKey", func(t *testing.T) {
		o := newRedisOrchestrator(t, tr, failing(models.PlanSourceBeshak))

		_, err := o.Run(ctx, models.ScrapeTriggerManual)
		require.NoError(t, err)

		n, err := tr.Client.Exists(ctx, lockKey).Result()
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("ReleaseKeepsForeignToken", func(t *testing.T) {
		block := make(chan struct{})
		slow := &stubAdapter{source: models.PlanSourceBeshak, block: block}
		o := newRedisOrchestrator(t, tr, slow)
		defer tr.Client.Del(ctx, lockKey)

		_, err := o.Start(ctx, models.ScrapeTriggerManual)
		require.NoError(t, err)

		ours, err := tr.Client.Get(ctx, lockKey).Result()
		require.NoError(t, err)
		assert.NotEmpty(t, ours)

		// our lock expired and another instance took it
		require.NoError(t, tr.Client.Set(ctx, lockKey, "other-instance", time.Minute).Err())

		close(block)
		require.Eventually(t, func() bool { return !o.Running() }, 5*time.Second, 10*time.Millisecond)

		held, err := tr.Client.Get(ctx, lockKey).Result()
		require.NoError(t, err)
		assert.Equal(t, "other-instance", held)
	})
}
