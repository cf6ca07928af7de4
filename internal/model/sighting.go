package model

import (
	"time"

	"github.com/google/uuid"
)

// Sighting is one successful identification. The in-process log keeps them in memory; the
// sync worker mirrors them into the remote database keyed by EventID.
type Sighting struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	EventID    string    `gorm:"size:36;not null;uniqueIndex" json:"event_id"`
	ObserverID uint      `gorm:"not null;index" json:"observer_id"`
	Label      string    `gorm:"size:128;not null;index" json:"label"`
	Confidence float32   `gorm:"not null" json:"confidence"`
	Source     string    `gorm:"size:16;not null" json:"source"`
	ImagePath  string    `gorm:"size:512;not null" json:"image_path"`
	Timestamp  time.Time `gorm:"not null;index" json:"timestamp"`
}

func NewSighting(observerID uint, label string, confidence float32, source, imagePath string, at time.Time) Sighting {
	return Sighting{
		EventID:    uuid.NewString(),
		ObserverID: observerID,
		Label:      label,
		Confidence: confidence,
		Source:     source,
		ImagePath:  imagePath,
		Timestamp:  at,
	}
}
