package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"dragonfly-id/internal/model"
)

type ObserverRepository struct {
	db *gorm.DB
}

func NewObserverRepository(db *gorm.DB) *ObserverRepository {
	return &ObserverRepository{db: db}
}

func (r *ObserverRepository) Create(observer *model.Observer) error {
	if err := r.db.Create(observer).Error; err != nil {
		return fmt.Errorf("create observer failed: %w", err)
	}
	return nil
}

func (r *ObserverRepository) GetByUsername(username string) (*model.Observer, error) {
	var observer model.Observer
	if err := r.db.Where("username = ?", username).First(&observer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query observer by username failed: %w", err)
	}
	return &observer, nil
}

func (r *ObserverRepository) GetByEmail(email string) (*model.Observer, error) {
	var observer model.Observer
	if err := r.db.Where("email = ?", email).First(&observer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query observer by email failed: %w", err)
	}
	return &observer, nil
}

func (r *ObserverRepository) GetByID(id uint) (*model.Observer, error) {
	var observer model.Observer
	if err := r.db.First(&observer, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query observer by id failed: %w", err)
	}
	return &observer, nil
}
