// internal/models/skill.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Skill struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Title    string `gorm:"not null" json:"title"`
	Category string `gorm:"type:varchar(60);index" json:"category"` // e.g. "design", "music", "language"

	// free-form tags, kept as JSON so the frontend can evolve them
	Tags datatypes.JSON `json:"tags"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Owner *Profile `gorm:"foreignKey:UserID;references:ID" json:"owner,omitempty"`
}
