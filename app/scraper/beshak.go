package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/amirphl/term-insurance-analyzer/models"
	"github.com/amirphl/term-insurance-analyzer/utils"
	"github.com/cenkalti/backoff/v5"
)

// maxPageBytes caps how much of a listing page is read
const maxPageBytes = 8 << 20

// HTTPAdapter scrapes a server-rendered listing with a plain GET and parses its tables
type HTTPAdapter struct {
	source     string
	url        string
	userAgent  string
	retries    uint
	httpClient *http.Client
	logger     *utils.Logger
}

// NewBeshakAdapter creates the adapter for the server-rendered claim settlement listing
func NewBeshakAdapter(url, userAgent string, timeout time.Duration, retries int, logger *utils.Logger) *HTTPAdapter {
	return NewHTTPAdapter(models.PlanSourceBeshak, url, userAgent, &http.Client{Timeout: timeout}, retries, logger)
}

// NewHTTPAdapter creates a table-parsing adapter for any server-rendered source
func NewHTTPAdapter(source, url, userAgent string, client *http.Client, retries int, logger *utils.Logger) *HTTPAdapter {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if retries < 1 {
		retries = 1
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &HTTPAdapter{
		source:     source,
		url:        url,
		userAgent:  userAgent,
		retries:    uint(retries),
		httpClient: client,
		logger:     logger.With("source", source),
	}
}

func (a *HTTPAdapter) Source() string { return a.source }

// Fetch downloads the page, retrying transient failures, and parses its plan tables
func (a *HTTPAdapter) Fetch(ctx context.Context) ([]models.InsurancePlan, error) {
	if a.url == "" {
		return nil, fmt.Errorf("no url configured")
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		return a.download(ctx)
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(a.retries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			a.logger.Debug("Retrying listing download", "error", err, "wait", wait.String())
		}),
	)
	if err != nil {
		return nil, err
	}

	plans, err := ParsePlanTables(bytes.NewReader(body), a.source, a.url)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	if len(plans) == 0 {
		return nil, ErrNoPlansParsed
	}
	return plans, nil
}

func (a *HTTPAdapter) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-IN,en;q=0.9")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, err
	}
	return body, nil
}
