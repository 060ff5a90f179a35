package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/term-insurance-analyzer/models"
	"github.com/amirphl/term-insurance-analyzer/utils"
	"github.com/chromedp/chromedp"
)

// Renderer loads a page in a browser and returns its HTML once waitSelector is visible
type Renderer interface {
	Render(ctx context.Context, url, waitSelector string) (string, error)
}

// ChromeRenderer renders pages with a headless Chrome instance per call
type ChromeRenderer struct {
	execPath  string
	userAgent string
	timeout   time.Duration
}

// NewChromeRenderer creates a renderer; an empty execPath lets chromedp locate Chrome
func NewChromeRenderer(execPath, userAgent string, timeout time.Duration) *ChromeRenderer {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &ChromeRenderer{execPath: execPath, userAgent: userAgent, timeout: timeout}
}

func (r *ChromeRenderer) Render(ctx context.Context, url, waitSelector string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1366, 900),
	)
	if r.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.userAgent))
	}
	if r.execPath != "" {
		opts = append(opts, chromedp.ExecPath(r.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, r.timeout)
	defer cancelRun()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(waitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	return html, nil
}

// ScriptAdapter scrapes a listing whose plans are populated by page scripts
type ScriptAdapter struct {
	source    string
	url       string
	selectors CardSelectors
	renderer  Renderer
	logger    *utils.Logger
}

// NewScriptAdapter creates an adapter that renders url and parses cards matched by selectors.
// A nil renderer makes every fetch fail with ErrBrowserUnavailable.
func NewScriptAdapter(source, url string, selectors CardSelectors, renderer Renderer, logger *utils.Logger) *ScriptAdapter {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &ScriptAdapter{
		source:    source,
		url:       url,
		selectors: selectors,
		renderer:  renderer,
		logger:    logger.With("source", source),
	}
}

// PolicybazaarSelectors match the term plan comparison cards
var PolicybazaarSelectors = CardSelectors{
	Card:       "div.plan-card",
	Provider:   ".insurer-name",
	PlanName:   ".plan-name",
	CSR:        ".claim-settled, .csr-value",
	Premium:    ".premium-amount, .plan-price",
	SumAssured: ".cover-amount, .life-cover",
	Age:        ".entry-age",
	Term:       ".policy-term, .cover-till",
	Features:   ".plan-features li",
}

// DittoSelectors match the plan list on the advisory site
var DittoSelectors = CardSelectors{
	Card:       "[data-testid='plan-card'], article.term-plan",
	Provider:   "[data-testid='insurer'], .insurer",
	PlanName:   "[data-testid='plan-name'], h3",
	CSR:        "[data-testid='csr'], .csr",
	Premium:    "[data-testid='premium'], .premium",
	SumAssured: "[data-testid='cover'], .cover",
	Age:        "[data-testid='entry-age'], .entry-age",
	Term:       "[data-testid='term'], .term",
	Features:   "[data-testid='features'] li, ul.features li",
}

// NewPolicybazaarAdapter creates the first script-rendered source
func NewPolicybazaarAdapter(url string, renderer Renderer, logger *utils.Logger) *ScriptAdapter {
	return NewScriptAdapter(models.PlanSourcePolicybazaar, url, PolicybazaarSelectors, renderer, logger)
}

// NewDittoAdapter creates the second script-rendered source
func NewDittoAdapter(url string, renderer Renderer, logger *utils.Logger) *ScriptAdapter {
	return NewScriptAdapter(models.PlanSourceDitto, url, DittoSelectors, renderer, logger)
}

func (a *ScriptAdapter) Source() string { return a.source }

// Fetch renders the page and parses plan cards, or a comparison table when no cards are present
func (a *ScriptAdapter) Fetch(ctx context.Context) ([]models.InsurancePlan, error) {
	if a.renderer == nil {
		return nil, ErrBrowserUnavailable
	}
	if a.url == "" {
		return nil, fmt.Errorf("no url configured")
	}

	html, err := a.renderer.Render(ctx, a.url, a.selectors.Card)
	if err != nil {
		return nil, err
	}

	plans, err := ParsePlanCards(strings.NewReader(html), a.selectors, a.source, a.url)
	if err != nil {
		return nil, fmt.Errorf("parse rendered page: %w", err)
	}
	if len(plans) == 0 {
		return nil, ErrNoPlansParsed
	}
	a.logger.Debug("Parsed rendered listing", "plans", len(plans))
	return plans, nil
}
