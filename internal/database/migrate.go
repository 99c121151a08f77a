package database

import (
	"gorm.io/gorm"

	"github.com/noah-isme/climb-review-api/internal/models"
)

// Migrate creates or updates the tables owned by the review service.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.ReviewChain{}, &models.ReviewObligation{}, &models.Notification{})
}
