package businessflow

import (
	"context"

	"github.com/amirphl/term-insurance-analyzer/app/dto"
	"github.com/amirphl/term-insurance-analyzer/models"
	"github.com/amirphl/term-insurance-analyzer/repository"
	"github.com/amirphl/term-insurance-analyzer/utils"
)

// Scraper runs the listing adapters against the plan store
type Scraper interface {
	Run(ctx context.Context, trigger string) (*models.ScrapeRun, error)
	Start(ctx context.Context, trigger string) (*models.ScrapeRun, error)
}

// ScrapeFlow defines manual scrape triggering and run history
type ScrapeFlow interface {
	TriggerScrape(ctx context.Context, req *dto.TriggerScrapeRequest, metadata *ClientMetadata) (*dto.TriggerScrapeResponse, error)
	ListRuns(ctx context.Context, limit int, metadata *ClientMetadata) (*dto.ListScrapeRunsResponse, error)
}

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// ScrapeFlowImpl implements ScrapeFlow
type ScrapeFlowImpl struct {
	scraper Scraper
	runRepo repository.ScrapeRunRepository
	logger  *utils.Logger
}

func NewScrapeFlow(scraper Scraper, runRepo repository.ScrapeRunRepository, logger *utils.Logger) ScrapeFlow {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &ScrapeFlowImpl{scraper: scraper, runRepo: runRepo, logger: logger.With("component", "scrape_flow")}
}

// TriggerScrape starts a manual run. With Wait the call returns the finished run,
// otherwise it returns as soon as the run holds the lock.
func (f *ScrapeFlowImpl) TriggerScrape(ctx context.Context, req *dto.TriggerScrapeRequest, metadata *ClientMetadata) (*dto.TriggerScrapeResponse, error) {
	wait := req != nil && req.Wait

	var (
		run *models.ScrapeRun
		err error
	)
	if wait {
		run, err = f.scraper.Run(ctx, models.ScrapeTriggerManual)
	} else {
		run, err = f.scraper.Start(ctx, models.ScrapeTriggerManual)
	}
	if err != nil {
		if IsScrapeInProgress(err) {
			return nil, ErrScrapeInProgress
		}
		return nil, NewBusinessError("SCRAPE_FAILED", "Failed to run scrape", err)
	}

	f.logger.Info("Manual scrape triggered", append([]any{"run_uuid", run.UUID.String(), "wait", wait}, metadata.logFields()...)...)

	out := ToScrapeRunDTO(*run)
	return &dto.TriggerScrapeResponse{Accepted: !wait, Run: &out}, nil
}

func (f *ScrapeFlowImpl) ListRuns(ctx context.Context, limit int, metadata *ClientMetadata) (*dto.ListScrapeRunsResponse, error) {
	if limit == 0 {
		limit = defaultRunsLimit
	}
	if limit < 1 || limit > maxRunsLimit {
		return nil, ErrInvalidLimit
	}

	runs, err := f.runRepo.ByFilter(ctx, models.ScrapeRunFilter{}, "", limit, 0)
	if err != nil {
		return nil, NewBusinessError("LIST_SCRAPE_RUNS_FAILED", "Failed to list scrape runs", err)
	}

	out := make([]dto.ScrapeRunDTO, 0, len(runs))
	for _, r := range runs {
		out = append(out, ToScrapeRunDTO(*r))
	}
	return &dto.ListScrapeRunsResponse{Runs: out}, nil
}
