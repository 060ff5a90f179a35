// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/term-insurance-analyzer/models"
	"github.com/amirphl/term-insurance-analyzer/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// planMutableColumns are overwritten when a scrape refreshes an existing plan
var planMutableColumns = []string{
	"source",
	"sum_assured_min",
	"sum_assured_max",
	"premium_annual",
	"policy_term_min",
	"policy_term_max",
	"age_min",
	"age_max",
	"claim_settlement_ratio",
	"key_features",
	"source_url",
	"last_updated",
}

// InsurancePlanRepositoryImpl implements InsurancePlanRepository interface
type InsurancePlanRepositoryImpl struct {
	*BaseRepository[models.InsurancePlan, models.InsurancePlanFilter]
}

// NewInsurancePlanRepository creates a new plan repository
func NewInsurancePlanRepository(db *gorm.DB) InsurancePlanRepository {
	return &InsurancePlanRepositoryImpl{
		BaseRepository: NewBaseRepository[models.InsurancePlan, models.InsurancePlanFilter](db),
	}
}

// Save validates and inserts a new plan
func (r *InsurancePlanRepositoryImpl) Save(ctx context.Context, plan *models.InsurancePlan) error {
	plan.Normalize()
	if err := plan.Validate(); err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}
	now := utils.UTCNow()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	if plan.LastUpdated.IsZero() {
		plan.LastUpdated = now
	}
	return r.BaseRepository.Save(ctx, plan)
}

// ByNaturalKey retrieves a plan by provider and plan name, ignoring case and spacing
func (r *InsurancePlanRepositoryImpl) ByNaturalKey(ctx context.Context, provider, planName string) (*models.InsurancePlan, error) {
	db := r.getDB(ctx)

	var plan models.InsurancePlan
	err := db.Where("natural_key = ?", models.PlanNaturalKey(provider, planName)).Take(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

// ListAll returns every stored plan, highest claim settlement ratio first
func (r *InsurancePlanRepositoryImpl) ListAll(ctx context.Context) ([]*models.InsurancePlan, error) {
	return r.ByFilter(ctx, models.InsurancePlanFilter{}, "", 0, 0)
}

// Upsert inserts the plan or refreshes the row with the same natural key.
// The stored provider and plan name keep the casing of the first insert.
// The write and the read-back share one transaction.
func (r *InsurancePlanRepositoryImpl) Upsert(ctx context.Context, plan *models.InsurancePlan) (*models.InsurancePlan, error) {
	row := *plan
	row.ID = 0
	row.Normalize()
	if err := row.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan %q: %w", row.PlanName, err)
	}

	now := utils.UTCNow()
	row.LastUpdated = now
	row.CreatedAt = now

	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return nil, err
	}

	var stored models.InsurancePlan
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "natural_key"}},
		DoUpdates: clause.AssignmentColumns(planMutableColumns),
	}).Create(&row).Error
	if err != nil {
		err = fmt.Errorf("failed to upsert plan %q: %w", row.PlanName, err)
	} else {
		err = db.Where("natural_key = ?", row.UniqueKey).Take(&stored).Error
	}

	if err := finishWrite(db, shouldCommit, err); err != nil {
		return nil, err
	}
	return &stored, nil
}

// InsertIfAbsent writes the plan only when its natural key is free
func (r *InsurancePlanRepositoryImpl) InsertIfAbsent(ctx context.Context, plan *models.InsurancePlan) (bool, error) {
	row := *plan
	row.ID = 0
	row.Normalize()
	if err := row.Validate(); err != nil {
		return false, fmt.Errorf("invalid plan %q: %w", row.PlanName, err)
	}

	now := utils.UTCNow()
	row.LastUpdated = now
	row.CreatedAt = now

	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}

	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "natural_key"}},
		DoNothing: true,
	}).Create(&row)
	err = res.Error
	if err != nil {
		err = fmt.Errorf("failed to insert plan %q: %w", row.PlanName, err)
	}

	if err := finishWrite(db, shouldCommit, err); err != nil {
		return false, err
	}
	return res.RowsAffected > 0, nil
}

// Update overwrites all mutable fields of an existing plan by ID
func (r *InsurancePlanRepositoryImpl) Update(ctx context.Context, plan *models.InsurancePlan) error {
	plan.Normalize()
	if err := plan.Validate(); err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}
	plan.LastUpdated = utils.UTCNow()

	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	columns := append([]string{"plan_name", "provider", "natural_key"}, planMutableColumns...)
	res := db.Model(&models.InsurancePlan{}).
		Where("id = ?", plan.ID).
		Select(columns).
		Updates(plan)
	err = res.Error
	if err == nil && res.RowsAffected == 0 {
		err = gorm.ErrRecordNotFound
	}

	return finishWrite(db, shouldCommit, err)
}

// Delete removes a plan by ID and reports whether it existed
func (r *InsurancePlanRepositoryImpl) Delete(ctx context.Context, id uint) (bool, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}

	res := db.Delete(&models.InsurancePlan{}, id)
	if err := finishWrite(db, shouldCommit, res.Error); err != nil {
		return false, err
	}
	return res.RowsAffected > 0, nil
}

// LastUpdatedAt returns the most recent refresh time across all plans, nil when empty
func (r *InsurancePlanRepositoryImpl) LastUpdatedAt(ctx context.Context) (*time.Time, error) {
	db := r.getDB(ctx)

	var latest models.InsurancePlan
	err := db.Select("last_updated").Order("last_updated DESC").Take(&latest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	t := latest.LastUpdated.UTC()
	return &t, nil
}

// Stats aggregates counts per source, average claim settlement ratio and freshness
func (r *InsurancePlanRepositoryImpl) Stats(ctx context.Context) (*models.InsurancePlanStats, error) {
	db := r.getDB(ctx)

	type sourceCount struct {
		Source string
		Total  int64
	}
	var rows []sourceCount
	if err := db.Model(&models.InsurancePlan{}).
		Select("source, COUNT(*) AS total").
		Group("source").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count plans by source: %w", err)
	}

	stats := &models.InsurancePlanStats{BySource: make(map[string]int64, len(rows))}
	for _, row := range rows {
		stats.BySource[row.Source] = row.Total
		stats.Total += row.Total
	}

	var avg float64
	if err := db.Model(&models.InsurancePlan{}).
		Select("COALESCE(AVG(claim_settlement_ratio), 0)").
		Scan(&avg).Error; err != nil {
		return nil, fmt.Errorf("failed to average claim settlement ratio: %w", err)
	}
	stats.AverageCSR = utils.Round(avg, 2)

	lastUpdated, err := r.LastUpdatedAt(ctx)
	if err != nil {
		return nil, err
	}
	stats.LastUpdated = lastUpdated

	return stats, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *InsurancePlanRepositoryImpl) applyFilter(query *gorm.DB, filter models.InsurancePlanFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if len(filter.IDs) > 0 {
		query = query.Where("id IN ?", filter.IDs)
	}
	if filter.Provider != nil {
		query = query.Where("provider = ?", *filter.Provider)
	}
	if filter.PlanName != nil {
		query = query.Where("plan_name = ?", *filter.PlanName)
	}
	if len(filter.PlanNames) > 0 {
		query = query.Where("plan_name IN ?", filter.PlanNames)
	}
	if filter.Source != nil {
		query = query.Where("source = ?", *filter.Source)
	}
	if filter.MinCSR != nil {
		query = query.Where("claim_settlement_ratio >= ?", *filter.MinCSR)
	}
	if filter.Search != nil {
		if term := strings.TrimSpace(*filter.Search); term != "" {
			like := "%" + strings.ToLower(term) + "%"
			query = query.Where("LOWER(plan_name) LIKE ? OR LOWER(provider) LIKE ?", like, like)
		}
	}
	return query
}

// ByFilter retrieves plans based on filter criteria, highest claim settlement ratio first by default
func (r *InsurancePlanRepositoryImpl) ByFilter(ctx context.Context, filter models.InsurancePlanFilter, orderBy string, limit, offset int) ([]*models.InsurancePlan, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.InsurancePlan{})

	query = r.applyFilter(query, filter)

	if orderBy == "" {
		orderBy = "claim_settlement_ratio DESC, id ASC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var plans []*models.InsurancePlan
	if err := query.Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

// Count returns the number of plans matching the filter
func (r *InsurancePlanRepositoryImpl) Count(ctx context.Context, filter models.InsurancePlanFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.InsurancePlan{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any plan matching the filter exists
func (r *InsurancePlanRepositoryImpl) Exists(ctx context.Context, filter models.InsurancePlanFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
