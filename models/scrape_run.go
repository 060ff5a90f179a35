package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Scrape triggers
const (
	ScrapeTriggerStartup   = "startup"
	ScrapeTriggerScheduled = "scheduled"
	ScrapeTriggerManual    = "manual"
)

// Per-source outcomes
const (
	SourceStatusOK      = "ok"
	SourceStatusFailed  = "failed"
	SourceStatusSkipped = "skipped"
)

// SourceResult records what one adapter contributed to a scrape run
type SourceResult struct {
	Source     string `json:"source"`
	Status     string `json:"status"`
	Count      int    `json:"count"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// ScrapeRun is the history entry of one orchestrator run
// Table: scrape_runs
type ScrapeRun struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_scrape_runs_uuid" json:"uuid"`

	TriggeredBy  string                            `gorm:"size:16;not null;index:idx_scrape_runs_triggered_by" json:"triggered_by"`
	Sources      datatypes.JSONSlice[SourceResult] `json:"sources"`
	Upserted     int                               `gorm:"not null;default:0" json:"upserted"`
	FallbackUsed bool                              `gorm:"not null;default:false" json:"fallback_used"`
	StoreSize    int64                             `gorm:"not null;default:0" json:"store_size"`

	StartedAt  time.Time  `gorm:"not null;index:idx_scrape_runs_started_at" json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func (ScrapeRun) TableName() string {
	return "scrape_runs"
}

// Succeeded reports whether at least one live source contributed records
func (r *ScrapeRun) Succeeded() bool {
	for _, s := range r.Sources {
		if s.Source != PlanSourceFallback && s.Status == SourceStatusOK && s.Count > 0 {
			return true
		}
	}
	return false
}

// ScrapeRunFilter represents filter criteria for scrape run queries
type ScrapeRunFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	TriggeredBy   *string
	StartedAfter  *time.Time
	StartedBefore *time.Time
}
