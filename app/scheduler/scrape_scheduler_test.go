package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/term-insurance-analyzer/app/scraper"
	"github.com/amirphl/term-insurance-analyzer/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	mu       sync.Mutex
	triggers []string
	err      error
}

func (r *recordingRunner) Run(_ context.Context, trigger string) (*models.ScrapeRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers = append(r.triggers, trigger)
	if r.err != nil {
		return nil, r.err
	}
	return &models.ScrapeRun{UUID: uuid.New(), TriggeredBy: trigger}, nil
}

func (r *recordingRunner) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.triggers...)
}

func TestScrapeScheduler_RunsOnStartupThenOnTick(t *testing.T) {
	runner := &recordingRunner{}
	s := NewScrapeScheduler(runner, 20*time.Millisecond, true, nil)

	stop := s.Start(context.Background())
	require.Eventually(t, func() bool { return len(runner.snapshot()) >= 3 }, 2*time.Second, 5*time.Millisecond)
	stop()

	triggers := runner.snapshot()
	assert.Equal(t, models.ScrapeTriggerStartup, triggers[0])
	for _, tr := range triggers[1:] {
		assert.Equal(t, models.ScrapeTriggerScheduled, tr)
	}

	// nothing runs after stop returns
	n := len(runner.snapshot())
	time.Sleep(60 * time.Millisecond)
	assert.Len(t, runner.snapshot(), n)
}

func TestScrapeScheduler_SkipsStartupRunWhenDisabled(t *testing.T) {
	runner := &recordingRunner{}
	s := NewScrapeScheduler(runner, time.Hour, false, nil)

	stop := s.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	stop()

	assert.Empty(t, runner.snapshot())
}

func TestScrapeScheduler_InProgressIsNotFatal(t *testing.T) {
	runner := &recordingRunner{err: scraper.ErrScrapeInProgress}
	s := NewScrapeScheduler(runner, 10*time.Millisecond, true, nil)

	stop := s.Start(context.Background())
	require.Eventually(t, func() bool { return len(runner.snapshot()) >= 2 }, 2*time.Second, 5*time.Millisecond)
	stop()
}
