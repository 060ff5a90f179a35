// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/term-insurance-analyzer/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
}

// InsurancePlanRepository defines operations for the plan store
type InsurancePlanRepository interface {
	Repository[models.InsurancePlan, models.InsurancePlanFilter]
	ByNaturalKey(ctx context.Context, provider, planName string) (*models.InsurancePlan, error)
	ListAll(ctx context.Context) ([]*models.InsurancePlan, error)
	Exists(ctx context.Context, filter models.InsurancePlanFilter) (bool, error)
	// Upsert inserts or updates by the case-folded (provider, plan_name) in a single transaction
	// and returns the stored row.
	Upsert(ctx context.Context, plan *models.InsurancePlan) (*models.InsurancePlan, error)
	// InsertIfAbsent inserts only when no row has the same natural key.
	// It reports whether a row was written.
	InsertIfAbsent(ctx context.Context, plan *models.InsurancePlan) (bool, error)
	Update(ctx context.Context, plan *models.InsurancePlan) error
	Delete(ctx context.Context, id uint) (bool, error)
	Stats(ctx context.Context) (*models.InsurancePlanStats, error)
	LastUpdatedAt(ctx context.Context) (*time.Time, error)
}

// ScrapeRunRepository defines operations for scrape run history
type ScrapeRunRepository interface {
	Repository[models.ScrapeRun, models.ScrapeRunFilter]
	Latest(ctx context.Context) (*models.ScrapeRun, error)
	Finish(ctx context.Context, run *models.ScrapeRun) error
}
