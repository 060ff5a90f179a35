package businessflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amirphl/term-insurance-analyzer/app/dto"
	"github.com/amirphl/term-insurance-analyzer/app/scraper"
	"github.com/amirphl/term-insurance-analyzer/models"
	"github.com/amirphl/term-insurance-analyzer/repository"
	testingutil "github.com/amirphl/term-insurance-analyzer/testing"
	"github.com/amirphl/term-insurance-analyzer/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubScraper struct {
	err      error
	runs     int
	starts   int
	triggers []string
}

func (s *stubScraper) result(trigger string, finished bool) *models.ScrapeRun {
	s.triggers = append(s.triggers, trigger)
	run := &models.ScrapeRun{
		UUID:        uuid.New(),
		TriggeredBy: trigger,
		StartedAt:   utils.UTCNow(),
	}
	if finished {
		run.FinishedAt = utils.UTCNowPtr()
		run.Sources = []models.SourceResult{{Source: models.PlanSourceBeshak, Status: models.SourceStatusOK, Count: 4}}
		run.Upserted = 4
		run.StoreSize = 4
	}
	return run
}

func (s *stubScraper) Run(ctx context.Context, trigger string) (*models.ScrapeRun, error) {
	s.runs++
	if s.err != nil {
		return nil, s.err
	}
	return s.result(trigger, true), nil
}

func (s *stubScraper) Start(ctx context.Context, trigger string) (*models.ScrapeRun, error) {
	s.starts++
	if s.err != nil {
		return nil, s.err
	}
	return s.result(trigger, false), nil
}

func TestScrapeFlow_TriggerScrape(t *testing.T) {
	ctx := context.Background()

	t.Run("wait returns the finished run", func(t *testing.T) {
		s := &stubScraper{}
		flow := NewScrapeFlow(s, nil, nil)

		resp, err := flow.TriggerScrape(ctx, &dto.TriggerScrapeRequest{Wait: true}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, s.runs)
		assert.False(t, resp.Accepted)
		assert.True(t, resp.Run.Finished)
		assert.Equal(t, 4, resp.Run.Upserted)
		assert.Equal(t, []string{models.ScrapeTriggerManual}, s.triggers)
	})

	t.Run("without wait the run is accepted", func(t *testing.T) {
		s := &stubScraper{}
		flow := NewScrapeFlow(s, nil, nil)

		resp, err := flow.TriggerScrape(ctx, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, s.starts)
		assert.True(t, resp.Accepted)
		assert.False(t, resp.Run.Finished)
		assert.Nil(t, resp.Run.FinishedAt)
	})

	t.Run("in progress is reported as such", func(t *testing.T) {
		flow := NewScrapeFlow(&stubScraper{err: scraper.ErrScrapeInProgress}, nil, nil)

		_, err := flow.TriggerScrape(ctx, &dto.TriggerScrapeRequest{}, nil)
		assert.True(t, IsScrapeInProgress(err))
	})

	t.Run("other failures are wrapped", func(t *testing.T) {
		cause := errors.New("db down")
		flow := NewScrapeFlow(&stubScraper{err: cause}, nil, nil)

		_, err := flow.TriggerScrape(ctx, &dto.TriggerScrapeRequest{Wait: true}, nil)
		var be *BusinessError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, "SCRAPE_FAILED", be.Code)
		assert.ErrorIs(t, err, cause)
	})
}

func TestScrapeFlow_ListRuns(t *testing.T) {
	db := testingutil.NewTestDB(t)
	runRepo := repository.NewScrapeRunRepository(db.DB)
	flow := NewScrapeFlow(&stubScraper{}, runRepo, nil)
	ctx := context.Background()

	base := utils.UTCNow().Add(-time.Hour)
	for i, trigger := range []string{models.ScrapeTriggerStartup, models.ScrapeTriggerScheduled, models.ScrapeTriggerManual} {
		require.NoError(t, runRepo.Save(ctx, &models.ScrapeRun{
			UUID:        uuid.New(),
			TriggeredBy: trigger,
			StartedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}

	resp, err := flow.ListRuns(ctx, 0, nil)
	require.NoError(t, err)
	require.Len(t, resp.Runs, 3)
	assert.Equal(t, models.ScrapeTriggerManual, resp.Runs[0].TriggeredBy)
	assert.Equal(t, models.ScrapeTriggerStartup, resp.Runs[2].TriggeredBy)

	resp, err = flow.ListRuns(ctx, 2, nil)
	require.NoError(t, err)
	assert.Len(t, resp.Runs, 2)

	_, err = flow.ListRuns(ctx, 101, nil)
	assert.True(t, IsInvalidLimit(err))
	_, err = flow.ListRuns(ctx, -1, nil)
	assert.True(t, IsInvalidLimit(err))
}
