package repository

import (
	"fmt"

	"github.com/amirphl/term-insurance-analyzer/models"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates the tables owned by this service
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.InsurancePlan{},
		&models.ScrapeRun{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
