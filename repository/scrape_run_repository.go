package repository

import (
	"context"
	"errors"

	"github.com/amirphl/term-insurance-analyzer/models"
	"gorm.io/gorm"
)

// ScrapeRunRepositoryImpl implements ScrapeRunRepository interface
type ScrapeRunRepositoryImpl struct {
	*BaseRepository[models.ScrapeRun, models.ScrapeRunFilter]
}

// NewScrapeRunRepository creates a new scrape run repository
func NewScrapeRunRepository(db *gorm.DB) ScrapeRunRepository {
	return &ScrapeRunRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ScrapeRun, models.ScrapeRunFilter](db),
	}
}

// Latest returns the most recently started run, nil when there is none
func (r *ScrapeRunRepositoryImpl) Latest(ctx context.Context) (*models.ScrapeRun, error) {
	db := r.getDB(ctx)

	var run models.ScrapeRun
	err := db.Order("started_at DESC, id DESC").Take(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// Finish stores the outcome of a run
func (r *ScrapeRunRepositoryImpl) Finish(ctx context.Context, run *models.ScrapeRun) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	err = db.Model(&models.ScrapeRun{}).
		Where("id = ?", run.ID).
		Select("sources", "upserted", "fallback_used", "store_size", "finished_at").
		Updates(run).Error

	return finishWrite(db, shouldCommit, err)
}

func (r *ScrapeRunRepositoryImpl) applyFilter(query *gorm.DB, filter models.ScrapeRunFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.TriggeredBy != nil {
		query = query.Where("triggered_by = ?", *filter.TriggeredBy)
	}
	if filter.StartedAfter != nil {
		query = query.Where("started_at > ?", *filter.StartedAfter)
	}
	if filter.StartedBefore != nil {
		query = query.Where("started_at < ?", *filter.StartedBefore)
	}
	return query
}

// ByFilter retrieves runs based on filter criteria, newest first by default
func (r *ScrapeRunRepositoryImpl) ByFilter(ctx context.Context, filter models.ScrapeRunFilter, orderBy string, limit, offset int) ([]*models.ScrapeRun, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ScrapeRun{}), filter)

	if orderBy == "" {
		orderBy = "started_at DESC, id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var runs []*models.ScrapeRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// Count returns the number of runs matching the filter
func (r *ScrapeRunRepositoryImpl) Count(ctx context.Context, filter models.ScrapeRunFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ScrapeRun{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
