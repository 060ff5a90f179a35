// Package scheduler runs background jobs on a fixed interval
package scheduler

import (
	"context"
	"time"

	"github.com/amirphl/term-insurance-analyzer/app/scraper"
	"github.com/amirphl/term-insurance-analyzer/models"
	"github.com/amirphl/term-insurance-analyzer/utils"
)

// ScrapeRunner is the part of the scrape orchestrator the scheduler needs
type ScrapeRunner interface {
	Run(ctx context.Context, trigger string) (*models.ScrapeRun, error)
}

// ScrapeScheduler periodically refreshes the plan store
type ScrapeScheduler struct {
	runner       ScrapeRunner
	interval     time.Duration
	runOnStartup bool
	logger       *utils.Logger
}

func NewScrapeScheduler(runner ScrapeRunner, interval time.Duration, runOnStartup bool, logger *utils.Logger) *ScrapeScheduler {
	if interval <= 0 {
		interval = utils.DefaultScrapeInterval
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &ScrapeScheduler{
		runner:       runner,
		interval:     interval,
		runOnStartup: runOnStartup,
		logger:       logger.With("component", "scrape_scheduler"),
	}
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *ScrapeScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		if s.runOnStartup {
			s.runOnce(ctx, models.ScrapeTriggerStartup)
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx, models.ScrapeTriggerScheduled)
			}
		}
	}()

	s.logger.Info("Scrape scheduler started", "interval", s.interval.String(), "run_on_startup", s.runOnStartup)

	return func() {
		cancel()
		<-done
	}
}

func (s *ScrapeScheduler) runOnce(ctx context.Context, trigger string) {
	run, err := s.runner.Run(ctx, trigger)
	if err != nil {
		if scraper.IsScrapeInProgress(err) {
			s.logger.Info("Skipping scheduled scrape, another run is active", "trigger", trigger)
			return
		}
		s.logger.Error("Scheduled scrape failed", "trigger", trigger, "error", err)
		return
	}
	s.logger.Info("Scheduled scrape completed",
		"trigger", trigger,
		"run", run.UUID.String(),
		"upserted", run.Upserted,
		"store_size", run.StoreSize,
	)
}
