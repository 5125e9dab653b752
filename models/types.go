// Package models holds the rows the node persists between restarts.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Model is a base model for all entities.
type Model struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GetID returns the ID of the entity.
func (m Model) GetID() string {
	return m.ID
}

// BeforeCreate assigns a fresh ID unless one is set.
// This is a GORM hook and should not be called directly.
func (m *Model) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
