package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"dragonfly-id/internal/model"
)

type SightingRepository struct {
	db *gorm.DB
}

func NewSightingRepository(db *gorm.DB) *SightingRepository {
	return &SightingRepository{db: db}
}

func (r *SightingRepository) Create(sighting *model.Sighting) error {
	if err := r.db.Create(sighting).Error; err != nil {
		return fmt.Errorf("create sighting failed: %w", err)
	}
	return nil
}

// ExistsByEventID reports whether a sighting with eventID was already synced.
func (r *SightingRepository) ExistsByEventID(eventID string) (bool, error) {
	var sighting model.Sighting
	err := r.db.Select("id").Where("event_id = ?", eventID).First(&sighting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("query sighting by event id failed: %w", err)
	}
	return true, nil
}
