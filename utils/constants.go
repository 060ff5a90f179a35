package utils

import (
	"time"
)

type contextKey string

// Request-scoped context keys set by handlers
const (
	RequestIDKey contextKey = "request_id"
	UserAgentKey contextKey = "user_agent"
	IPAddressKey contextKey = "ip_address"
	EndpointKey  contextKey = "endpoint"
	TimeoutKey   contextKey = "timeout"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Scraping and ranking defaults
const (
	// DefaultScrapeInterval is how often the background scrape runs (24 hours)
	DefaultScrapeInterval = 24 * time.Hour

	// DefaultMinCSR is the minimum claim settlement ratio applied when the caller sends none
	DefaultMinCSR = 95.0

	// MaxRankedPlans bounds how many plans are sent to a ranking model
	MaxRankedPlans = 20
)
