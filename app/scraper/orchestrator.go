package scraper

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amirphl/term-insurance-analyzer/models"
	"github.com/amirphl/term-insurance-analyzer/repository"
	"github.com/amirphl/term-insurance-analyzer/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// DefaultLockKey is the redis key guarding scrape runs across instances
const DefaultLockKey = "scrape:lock"

// releaseLockScript deletes the lock only while it still carries our token
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// OrchestratorConfig tunes a scrape run
type OrchestratorConfig struct {
	LockKey    string
	LockTTL    time.Duration
	RunTimeout time.Duration
}

// Orchestrator runs the adapters in priority order and keeps the plan store non-empty
type Orchestrator struct {
	planRepo repository.InsurancePlanRepository
	runRepo  repository.ScrapeRunRepository
	adapters []Adapter
	fallback Adapter
	rc       *redis.Client
	cfg      OrchestratorConfig
	logger   *utils.Logger

	mu      sync.Mutex
	running atomic.Bool
}

// NewOrchestrator creates an orchestrator. adapters are tried in slice order; fallback
// is only consulted when the store is empty after them. rc may be nil.
func NewOrchestrator(
	planRepo repository.InsurancePlanRepository,
	runRepo repository.ScrapeRunRepository,
	adapters []Adapter,
	fallback Adapter,
	rc *redis.Client,
	cfg OrchestratorConfig,
	logger *utils.Logger,
) *Orchestrator {
	if cfg.LockKey == "" {
		cfg.LockKey = DefaultLockKey
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 15 * time.Minute
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Orchestrator{
		planRepo: planRepo,
		runRepo:  runRepo,
		adapters: adapters,
		fallback: fallback,
		rc:       rc,
		cfg:      cfg,
		logger:   logger.With("component", "scraper"),
	}
}

// Running reports whether a run is active in this process
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Run performs a complete scrape and returns its record.
// It fails with ErrScrapeInProgress when another run holds the guard.
func (o *Orchestrator) Run(ctx context.Context, trigger string) (*models.ScrapeRun, error) {
	release, err := o.acquire(ctx)
	if err != nil {
		scrapeRunsTotal.WithLabelValues(trigger, "rejected").Inc()
		return nil, err
	}
	defer release()

	run, err := o.begin(ctx, trigger)
	if err != nil {
		return nil, err
	}
	return o.execute(ctx, run)
}

// Start acquires the guard and runs the scrape in the background.
// The returned record has no FinishedAt; the finished run is stored in scrape_runs.
func (o *Orchestrator) Start(ctx context.Context, trigger string) (*models.ScrapeRun, error) {
	release, err := o.acquire(ctx)
	if err != nil {
		scrapeRunsTotal.WithLabelValues(trigger, "rejected").Inc()
		return nil, err
	}

	run, err := o.begin(ctx, trigger)
	if err != nil {
		release()
		return nil, err
	}

	snapshot := *run
	bg := context.WithoutCancel(ctx)
	go func() {
		defer release()
		if _, err := o.execute(bg, run); err != nil {
			o.logger.Error("Background scrape failed", "run", run.UUID.String(), "error", err)
		}
	}()

	return &snapshot, nil
}

// acquire takes the process guard and, when redis is configured, the shared lock
func (o *Orchestrator) acquire(ctx context.Context) (func(), error) {
	if !o.mu.TryLock() {
		return nil, ErrScrapeInProgress
	}
	o.running.Store(true)

	local := func() {
		o.running.Store(false)
		o.mu.Unlock()
	}
	if o.rc == nil {
		return local, nil
	}

	token := uuid.NewString()
	ok, err := o.rc.SetNX(ctx, o.cfg.LockKey, token, o.cfg.LockTTL).Result()
	if err != nil {
		o.logger.Warn("Shared scrape lock unavailable, using process guard only", "error", err)
		return local, nil
	}
	if !ok {
		local()
		return nil, ErrScrapeInProgress
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseLockScript.Run(releaseCtx, o.rc, []string{o.cfg.LockKey}, token).Err(); err != nil {
			o.logger.Warn("Failed to release shared scrape lock", "error", err)
		}
		local()
	}, nil
}

func (o *Orchestrator) begin(ctx context.Context, trigger string) (*models.ScrapeRun, error) {
	run := &models.ScrapeRun{
		UUID:        uuid.New(),
		TriggeredBy: trigger,
		Sources:     []models.SourceResult{},
		StartedAt:   utils.UTCNow(),
	}
	if err := o.runRepo.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("record scrape run: %w", err)
	}
	return run, nil
}

type fetchResult struct {
	plans    []models.InsurancePlan
	err      error
	duration time.Duration
}

// execute fetches all live sources concurrently and applies their records in priority order.
// A source is applied as soon as it and every higher-priority source have finished.
func (o *Orchestrator) execute(ctx context.Context, run *models.ScrapeRun) (*models.ScrapeRun, error) {
	started := time.Now()
	if o.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.RunTimeout)
		defer cancel()
	}

	log := o.logger.With("run", run.UUID.String(), "trigger", run.TriggeredBy)
	log.Info("Scrape run started", "sources", len(o.adapters))

	results := make([]chan fetchResult, len(o.adapters))
	var g errgroup.Group
	for i, a := range o.adapters {
		results[i] = make(chan fetchResult, 1)
		g.Go(func() error {
			t := time.Now()
			plans, err := safeFetch(ctx, a)
			results[i] <- fetchResult{plans: plans, err: err, duration: time.Since(t)}
			return nil
		})
	}

	for i, a := range o.adapters {
		res := <-results[i]
		sr := models.SourceResult{Source: a.Source(), DurationMS: res.duration.Milliseconds()}

		if res.err != nil {
			sr.Status = models.SourceStatusFailed
			sr.Error = res.err.Error()
			scrapeSourceFailures.WithLabelValues(sr.Source).Inc()
			log.Warn("Source unavailable", "source", sr.Source, "error", res.err)
		} else {
			written, err := o.apply(ctx, res.plans, log)
			sr.Count = written
			if written == 0 && err != nil {
				sr.Status = models.SourceStatusFailed
				sr.Error = err.Error()
				log.Warn("Source records rejected", "source", sr.Source, "error", err)
			} else {
				sr.Status = models.SourceStatusOK
				run.Upserted += written
				scrapeSourcePlans.WithLabelValues(sr.Source, "upserted").Add(float64(written))
				log.Info("Source applied", "source", sr.Source, "parsed", len(res.plans), "upserted", written)
			}
		}
		run.Sources = append(run.Sources, sr)
	}
	_ = g.Wait()

	// store writes below must survive an expired run deadline
	storeCtx, cancelStore := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancelStore()

	size, err := o.planRepo.Count(storeCtx, models.InsurancePlanFilter{})
	if err != nil {
		o.finish(storeCtx, run, started, "error", log)
		return run, fmt.Errorf("count plans: %w", err)
	}

	if o.fallback != nil {
		sr := models.SourceResult{Source: o.fallback.Source(), Status: models.SourceStatusSkipped}
		if size == 0 {
			sr = o.applyFallback(storeCtx, log)
			run.FallbackUsed = true
			run.Upserted += sr.Count
			size, err = o.planRepo.Count(storeCtx, models.InsurancePlanFilter{})
			if err != nil {
				run.Sources = append(run.Sources, sr)
				o.finish(storeCtx, run, started, "error", log)
				return run, fmt.Errorf("count plans: %w", err)
			}
		}
		run.Sources = append(run.Sources, sr)
	}

	run.StoreSize = size
	outcome := "ok"
	if run.FallbackUsed {
		outcome = "fallback"
	}
	o.finish(storeCtx, run, started, outcome, log)
	return run, nil
}

// apply upserts each record in its own transaction and returns how many were written
func (o *Orchestrator) apply(ctx context.Context, plans []models.InsurancePlan, log *utils.Logger) (int, error) {
	var (
		written  int
		firstErr error
	)
	for i := range plans {
		if _, err := o.planRepo.Upsert(ctx, &plans[i]); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			log.Debug("Plan rejected", "provider", plans[i].Provider, "plan", plans[i].PlanName, "error", err)
			continue
		}
		written++
	}
	return written, firstErr
}

// SeedFallback inserts the fallback set when the store is empty and reports how many rows
// were written. It runs once at startup so the store is populated even without scheduled scrapes.
func (o *Orchestrator) SeedFallback(ctx context.Context) (int, error) {
	if o.fallback == nil {
		return 0, nil
	}
	exists, err := o.planRepo.Exists(ctx, models.InsurancePlanFilter{})
	if err != nil {
		return 0, fmt.Errorf("check plan store: %w", err)
	}
	if exists {
		return 0, nil
	}

	inserted, err := o.loadFallback(ctx, o.logger)
	if err != nil {
		return 0, err
	}
	scrapeSourcePlans.WithLabelValues(o.fallback.Source(), "inserted").Add(float64(inserted))
	o.logger.Info("Plan store seeded with fallback set", "inserted", inserted)
	return inserted, nil
}

func (o *Orchestrator) applyFallback(ctx context.Context, log *utils.Logger) models.SourceResult {
	t := time.Now()
	sr := models.SourceResult{Source: o.fallback.Source()}

	inserted, err := o.loadFallback(ctx, log)
	sr.DurationMS = time.Since(t).Milliseconds()
	if err != nil {
		sr.Status = models.SourceStatusFailed
		sr.Error = err.Error()
		log.Error("Fallback source failed", "error", err)
		return sr
	}

	sr.Status = models.SourceStatusOK
	sr.Count = inserted
	scrapeSourcePlans.WithLabelValues(sr.Source, "inserted").Add(float64(sr.Count))
	log.Warn("No live source produced plans, fallback set applied", "inserted", sr.Count)
	return sr
}

// loadFallback writes every fallback record whose natural key is free
func (o *Orchestrator) loadFallback(ctx context.Context, log *utils.Logger) (int, error) {
	plans, err := safeFetch(ctx, o.fallback)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for i := range plans {
		ok, err := o.planRepo.InsertIfAbsent(ctx, &plans[i])
		if err != nil {
			log.Warn("Fallback plan rejected", "provider", plans[i].Provider, "plan", plans[i].PlanName, "error", err)
			continue
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

func (o *Orchestrator) finish(ctx context.Context, run *models.ScrapeRun, started time.Time, outcome string, log *utils.Logger) {
	run.FinishedAt = utils.UTCNowPtr()
	if err := o.runRepo.Finish(ctx, run); err != nil {
		log.Error("Failed to record scrape run", "error", err)
	}

	elapsed := time.Since(started)
	scrapeRunsTotal.WithLabelValues(run.TriggeredBy, outcome).Inc()
	scrapeRunDuration.Observe(elapsed.Seconds())
	planStoreSize.Set(float64(run.StoreSize))

	log.Info("Scrape run finished",
		"outcome", outcome,
		"upserted", run.Upserted,
		"store_size", run.StoreSize,
		"fallback_used", run.FallbackUsed,
		"duration", elapsed.String(),
	)
}
