// Package scraper fetches term plan listings from external sources and refreshes the plan store
package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/term-insurance-analyzer/config"
	"github.com/amirphl/term-insurance-analyzer/models"
	"github.com/amirphl/term-insurance-analyzer/utils"
)

var (
	// ErrScrapeInProgress is returned when a run is requested while another is active
	ErrScrapeInProgress = errors.New("scrape already in progress")
	// ErrNoPlansParsed is returned by an adapter whose page held no usable rows
	ErrNoPlansParsed = errors.New("no plans parsed")
	// ErrBrowserUnavailable is returned when script-rendered sources are disabled
	ErrBrowserUnavailable = errors.New("browser rendering unavailable")
)

// Adapter fetches normalized plan records from one listing source.
// Implementations must not panic; every failure is returned as an error.
type Adapter interface {
	Source() string
	Fetch(ctx context.Context) ([]models.InsurancePlan, error)
}

// SourceError reports that a single source could not be scraped
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// IsSourceUnavailable reports whether err came from a failing adapter
func IsSourceUnavailable(err error) bool {
	var se *SourceError
	return errors.As(err, &se)
}

// IsScrapeInProgress reports whether err rejected a concurrent run
func IsScrapeInProgress(err error) bool {
	return errors.Is(err, ErrScrapeInProgress)
}

// safeFetch runs an adapter and converts panics and errors into a SourceError
func safeFetch(ctx context.Context, a Adapter) (plans []models.InsurancePlan, err error) {
	defer func() {
		if r := recover(); r != nil {
			plans = nil
			err = &SourceError{Source: a.Source(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	plans, err = a.Fetch(ctx)
	if err != nil {
		return nil, &SourceError{Source: a.Source(), Err: err}
	}
	if len(plans) == 0 {
		return nil, &SourceError{Source: a.Source(), Err: ErrNoPlansParsed}
	}
	return plans, nil
}

// NewLiveAdapters builds the live sources in priority order. Script-rendered sources get
// no renderer when the browser is disabled and then report ErrBrowserUnavailable.
func NewLiveAdapters(cfg config.ScraperConfig, logger *utils.Logger) []Adapter {
	var renderer Renderer
	if cfg.BrowserEnabled {
		renderer = NewChromeRenderer(cfg.BrowserPath, cfg.UserAgent, cfg.BrowserTimeout)
	}
	return []Adapter{
		NewBeshakAdapter(cfg.BeshakURL, cfg.UserAgent, cfg.HTTPTimeout, cfg.HTTPRetries, logger),
		NewPolicybazaarAdapter(cfg.PolicybazaarURL, renderer, logger),
		NewDittoAdapter(cfg.DittoURL, renderer, logger),
	}
}
