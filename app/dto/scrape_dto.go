package dto

// TriggerScrapeRequest controls whether the caller waits for the run to finish
type TriggerScrapeRequest struct {
	Wait bool `json:"wait"`
}

// SourceResultDTO is one source's outcome in a run
type SourceResultDTO struct {
	Source     string `json:"source"`
	Status     string `json:"status"`
	Count      int    `json:"count"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// ScrapeRunDTO represents one scrape run
type ScrapeRunDTO struct {
	UUID         string            `json:"uuid"`
	TriggeredBy  string            `json:"triggered_by"`
	Sources      []SourceResultDTO `json:"sources"`
	Upserted     int               `json:"upserted"`
	FallbackUsed bool              `json:"fallback_used"`
	StoreSize    int64             `json:"store_size"`
	StartedAt    string            `json:"started_at"`
	FinishedAt   *string           `json:"finished_at,omitempty"`
	Finished     bool              `json:"finished"`
}

// TriggerScrapeResponse returns the finished run when the caller waited, otherwise the accepted run
type TriggerScrapeResponse struct {
	Accepted bool          `json:"accepted"`
	Run      *ScrapeRunDTO `json:"run"`
}

// ListScrapeRunsResponse wraps recent runs, newest first
type ListScrapeRunsResponse struct {
	Runs []ScrapeRunDTO `json:"runs"`
}
